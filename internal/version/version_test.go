package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort_NoCommit(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestShort_WithCommit(t *testing.T) {
	old := Commit
	Commit = "deadbeefcafebabe"
	defer func() { Commit = old }()

	assert.Equal(t, Version+" (deadbeef)", Short())
}

func TestString_ContainsApplicationName(t *testing.T) {
	assert.True(t, strings.HasPrefix(String(), ApplicationName+" version"))
}

func TestJSON_Valid(t *testing.T) {
	assert.Contains(t, JSON(), `"version"`)
}
