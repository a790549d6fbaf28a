package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithPrimary(t *testing.T) {
	ctx := context.Background()
	assert.False(t, ReadsPrimary(ctx))
	assert.True(t, ReadsPrimary(WithPrimary(ctx)))
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%eco%", containsPattern("eco"))
	assert.Equal(t, `%100\%\_sure\\%`, containsPattern(`100%_sure\`))
}
