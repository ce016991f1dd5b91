package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinTargetsEmpty(t *testing.T) {
	assert.Equal(t, "-", joinTargets(nil))
}

func TestJoinTargetsMultiple(t *testing.T) {
	assert.Equal(t, "png, jpg, webp", joinTargets([]string{"png", "jpg", "webp"}))
}

func TestContainsFoldCaseInsensitive(t *testing.T) {
	assert.True(t, containsFold([]string{"PNG", "JPG"}, "png"))
	assert.False(t, containsFold([]string{"PNG", "JPG"}, "gif"))
}
