package loader

import (
	"fmt"
	"runtime"
	"strings"
)

// arch identifies the host OS/architecture combination, used only to decide
// whether a CLI plugin executable needs a ".exe" suffix appended.
type arch string

// buildArch returns the running process's OS/ARCH.
func buildArch() arch {
	return arch(fmt.Sprintf("%s_%s", runtime.GOOS, runtime.GOARCH))
}

// isWindows reports whether a is a Windows arch.
func (a arch) isWindows() bool {
	return strings.HasPrefix(string(a), "windows_")
}
