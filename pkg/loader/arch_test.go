package loader

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildArchMatchesRuntime(t *testing.T) {
	a := buildArch()
	assert.Contains(t, string(a), runtime.GOOS)
	assert.Contains(t, string(a), runtime.GOARCH)
}

func TestIsWindowsOnlyForWindowsArch(t *testing.T) {
	assert.True(t, arch("windows_amd64").isWindows())
	assert.True(t, arch("windows_386").isWindows())
	assert.False(t, arch("linux_amd64").isWindows())
	assert.False(t, arch("darwin_arm64").isWindows())
}
