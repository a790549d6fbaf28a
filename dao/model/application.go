package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Application is one user's request to join one project.
//
// A partial unique index (see dao/query/migrate.go) allows at most one
// pending application per project and applicant.
type Application struct {
	Base
	ProjectID   uuid.UUID         `gorm:"type:uuid;not null;index;comment:target project" json:"projectId"`
	Project     *Project          `gorm:"foreignKey:ProjectID" json:"-"`
	ApplicantID uuid.UUID         `gorm:"type:uuid;not null;index;comment:requesting user" json:"applicantId"`
	Applicant   *User             `gorm:"foreignKey:ApplicantID" json:"-"`
	Message     string            `gorm:"type:text;comment:answers to the application questions" json:"message"`
	Status      ApplicationStatus `gorm:"type:varchar(16);not null;default:pending;index;comment:pending, accepted or rejected" json:"status"`
}

// ApplicationMessage formats the answers of the application form.
func ApplicationMessage(why, experience string) string {
	return fmt.Sprintf("Why: %s\nExperience: %s", why, experience)
}
