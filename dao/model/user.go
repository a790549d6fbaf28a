package model

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"k8s.io/utils/ptr"
)

const AnonymousUserName = "Anonymous User"

const (
	profileFieldCount = 9
	// DiscoverMinCompletion is the profile completion a user needs to be
	// listed on Discover.
	DiscoverMinCompletion = 70
)

// User is the account and display identity of a person on the platform
type User struct {
	Base
	Email        string  `gorm:"uniqueIndex;type:varchar(255);not null;comment:login email, lowercased" json:"email"`
	PasswordHash string  `gorm:"type:varchar(128);not null;comment:bcrypt hash" json:"-"`
	FirstName    *string `gorm:"type:varchar(64);comment:first name" json:"firstName"`
	LastName     *string `gorm:"type:varchar(64);comment:last name" json:"lastName"`
	Role         Role    `gorm:"not null;default:1;comment:platform role (1 user, 2 admin)" json:"role"`
	Profile      `gorm:"embedded"`
}

// Profile is what a user tells collaborators about themselves.
type Profile struct {
	Title       string                      `gorm:"type:varchar(128);comment:professional title" json:"title"`
	Location    string                      `gorm:"type:varchar(128);comment:location" json:"location"`
	Experience  string                      `gorm:"type:varchar(64);comment:experience level" json:"experience"`
	Industry    string                      `gorm:"type:varchar(64);comment:industry" json:"industry"`
	Education   string                      `gorm:"type:varchar(255);comment:education" json:"education"`
	GithubURL   string                      `gorm:"type:varchar(255);comment:github profile url" json:"githubUrl"`
	LinkedinURL string                      `gorm:"type:varchar(255);comment:linkedin profile url" json:"linkedinUrl"`
	Bio         string                      `gorm:"type:text;comment:short bio" json:"bio"`
	Skills      datatypes.JSONSlice[string] `gorm:"comment:skill set" json:"skills"`
}

// UserInfo is the public part of a user that decorates applications and projects.
type UserInfo struct {
	ID          uuid.UUID `json:"id"`
	FirstName   *string   `json:"firstName"`
	LastName    *string   `json:"lastName"`
	DisplayName string    `json:"displayName"`
}

// DisplayName joins first and last name, falling back to AnonymousUserName.
func DisplayName(firstName, lastName *string) string {
	var parts []string
	if firstName != nil {
		parts = append(parts, strings.TrimSpace(*firstName))
	}
	if lastName != nil {
		parts = append(parts, strings.TrimSpace(*lastName))
	}
	name := strings.TrimSpace(strings.Join(parts, " "))
	if name == "" {
		return AnonymousUserName
	}
	return name
}

func (u *User) Info() UserInfo {
	return UserInfo{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: DisplayName(u.FirstName, u.LastName),
	}
}

// ProfileCompletion is the rounded share of the nine profile fields that are
// filled: names, title, location, skills, industry, education, experience
// and bio. Links do not count.
func (u *User) ProfileCompletion() int {
	filled := 0
	for _, v := range []string{
		ptr.Deref(u.FirstName, ""), ptr.Deref(u.LastName, ""), u.Title, u.Location,
		u.Industry, u.Education, u.Experience, u.Bio,
	} {
		if strings.TrimSpace(v) != "" {
			filled++
		}
	}
	if len(u.Skills) > 0 {
		filled++
	}
	return completionPercent(filled)
}

func completionPercent(filled int) int {
	return int(math.Round(float64(filled) / profileFieldCount * 100))
}

// MinFilledFields is the fewest filled profile fields that reach percent.
func MinFilledFields(percent int) int {
	for n := 0; n < profileFieldCount; n++ {
		if completionPercent(n) >= percent {
			return n
		}
	}
	return profileFieldCount
}
