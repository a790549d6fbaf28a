package model

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Project is a posted collaboration opportunity. Its creator is the only user
// who decides on applications to it.
type Project struct {
	Base
	Title       string                      `gorm:"type:varchar(128);not null;comment:project title" json:"title"`
	Description string                      `gorm:"type:text;comment:project description" json:"description"`
	Category    string                      `gorm:"type:varchar(64);index;comment:category" json:"category"`
	Stage       ProjectStage                `gorm:"type:varchar(16);not null;default:idea;comment:idea, prototype, mvp or launched" json:"stage"`
	Tags        datatypes.JSONSlice[string] `gorm:"comment:tag set" json:"tags"`
	RolesNeeded datatypes.JSONSlice[string] `gorm:"comment:roles the project is looking for" json:"rolesNeeded"`

	CreatorID uuid.UUID `gorm:"type:uuid;not null;index;comment:owning user" json:"creatorId"`
	Creator   *User     `gorm:"foreignKey:CreatorID" json:"-"`
}
