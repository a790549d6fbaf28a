package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/utils/ptr"
)

func TestProfileCompletion(t *testing.T) {
	u := &User{}
	assert.Equal(t, 0, u.ProfileCompletion())

	u.FirstName = ptr.To("Bob")
	u.LastName = ptr.To("  ")
	u.GithubURL = "github.com/bob"
	assert.Equal(t, 11, u.ProfileCompletion())

	u.LastName = ptr.To("Jones")
	u.Title = "Frontend Engineer"
	u.Location = "Berlin"
	u.Skills = []string{"React"}
	u.Industry = "Web Development"
	assert.Equal(t, 67, u.ProfileCompletion())

	u.Bio = "Builds accessible web apps for climate startups."
	assert.Equal(t, 78, u.ProfileCompletion())

	u.Education = "TU Berlin"
	u.Experience = "Senior (6-10 years)"
	assert.Equal(t, 100, u.ProfileCompletion())
}

func TestMinFilledFields(t *testing.T) {
	assert.Equal(t, 7, MinFilledFields(DiscoverMinCompletion))
	assert.Equal(t, 0, MinFilledFields(0))
	assert.Equal(t, 9, MinFilledFields(100))
}
