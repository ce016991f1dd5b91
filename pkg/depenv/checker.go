package depenv

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver"

	"github.com/uniconv/uniconv/pkg/manifest"
)

// CheckResult is the outcome of checking a single dependency: whether it is
// satisfied, a human-readable message, and (when unsatisfied) an install
// hint the CLI can print.
type CheckResult struct {
	Satisfied  bool
	Message    string
	InstallHint string
}

// Checker probes whether declared dependencies are already present, without
// installing anything.
type Checker struct {
	// PythonBin overrides the python executable used for python dependency
	// checks (e.g. a plugin's own venv interpreter). Defaults to "python3"
	// ("python" on Windows) when empty.
	PythonBin string
	// Timeout bounds each check subprocess. Defaults to 10 seconds.
	Timeout time.Duration
}

// Check runs dep's custom check command if it has one, otherwise dispatches
// on dep.Runtime. "system" and "native-module" dependencies are both
// resolved by PATH lookup; "python" and "node" run their own toolchain's
// package query.
func (c *Checker) Check(dep manifest.Dependency) CheckResult {
	if dep.Check != "" {
		return c.checkCustom(dep)
	}
	switch dep.Runtime {
	case "python":
		return c.checkPython(dep)
	case "node":
		return c.checkNode(dep)
	case "system", "native-module":
		return c.checkSystem(dep)
	default:
		return CheckResult{Satisfied: false, Message: "unknown dependency runtime: " + dep.Runtime}
	}
}

// checkCustom runs dep.Check through a shell, treating exit code 0 as
// satisfied; this takes priority over runtime-based dispatch.
func (c *Checker) checkCustom(dep manifest.Dependency) CheckResult {
	shell, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		shell, flag = "cmd", "/c"
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, flag, dep.Check)
	err := cmd.Run()
	if err != nil {
		return CheckResult{
			Satisfied: false,
			Message:   dep.Name + " not found (check: " + dep.Check + ")",
		}
	}
	return CheckResult{Satisfied: true, Message: dep.Name + " found"}
}

// CheckAll checks every dependency in deps and returns one result per entry,
// in the same order.
func (c *Checker) CheckAll(deps []manifest.Dependency) []CheckResult {
	out := make([]CheckResult, len(deps))
	for i, d := range deps {
		out[i] = c.Check(d)
	}
	return out
}

func (c *Checker) checkSystem(dep manifest.Dependency) CheckResult {
	_, err := exec.LookPath(dep.Name)
	if err != nil {
		return CheckResult{
			Satisfied:   false,
			Message:     dep.Name + " not found on PATH",
			InstallHint: systemInstallHint(dep.Name),
		}
	}
	return CheckResult{Satisfied: true, Message: dep.Name + " found on PATH"}
}

func systemInstallHint(name string) string {
	switch runtime.GOOS {
	case "darwin":
		return "brew install " + name
	case "windows":
		return "winget install " + name
	default:
		return "apt install " + name
	}
}

func (c *Checker) checkPython(dep manifest.Dependency) CheckResult {
	pythonCmd := c.PythonBin
	if pythonCmd == "" {
		pythonCmd = "python3"
		if runtime.GOOS == "windows" {
			pythonCmd = "python"
		}
	}

	out, err := c.capture(pythonCmd, "-m", "pip", "show", dep.Name)
	hint := "python3 -m pip install "
	if dep.Constraint != "" {
		hint += "'" + dep.Name + dep.Constraint + "'"
	} else {
		hint += dep.Name
	}

	if err != nil || !strings.Contains(out, "Name:") {
		return CheckResult{Satisfied: false, Message: dep.Name + " not installed", InstallHint: hint}
	}

	if dep.Constraint == "" {
		return CheckResult{Satisfied: true, Message: dep.Name + " installed"}
	}

	version := parsePipShowVersion(out)
	if version == "" {
		return CheckResult{Satisfied: true, Message: dep.Name + " installed (version unknown)"}
	}
	if satisfies(version, dep.Constraint) {
		return CheckResult{Satisfied: true, Message: dep.Name + " " + version + " satisfies " + dep.Constraint}
	}
	return CheckResult{
		Satisfied:   false,
		Message:     dep.Name + " " + version + " does not satisfy " + dep.Constraint,
		InstallHint: hint,
	}
}

func parsePipShowVersion(pipShowOutput string) string {
	for _, line := range strings.Split(pipShowOutput, "\n") {
		if strings.HasPrefix(line, "Version:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		}
	}
	return ""
}

func (c *Checker) checkNode(dep manifest.Dependency) CheckResult {
	out, err := c.capture("npm", "ls", "-g", "--depth=0", dep.Name)
	hint := "npm install -g " + dep.Name
	if dep.Constraint != "" {
		hint += "@" + strings.TrimLeft(dep.Constraint, "<>=~^ ")
	}

	if err != nil || !strings.Contains(out, dep.Name) {
		return CheckResult{Satisfied: false, Message: dep.Name + " not installed globally", InstallHint: hint}
	}
	return CheckResult{Satisfied: true, Message: dep.Name + " installed"}
}

func (c *Checker) capture(name string, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	return out.String(), err
}

// satisfies evaluates a dependency constraint (">=", "==", "~=", "<")
// against a semver-ish version string. "~=" is mapped onto a caret-style
// "compatible release" range.
func satisfies(versionStr, constraint string) bool {
	v, err := semver.NewVersion(versionStr)
	if err != nil {
		return false
	}

	constraint = strings.TrimSpace(constraint)
	var op, rest string
	switch {
	case strings.HasPrefix(constraint, ">="):
		op, rest = ">=", constraint[2:]
	case strings.HasPrefix(constraint, "=="):
		op, rest = "==", constraint[2:]
	case strings.HasPrefix(constraint, "~="):
		op, rest = "~=", constraint[2:]
	case strings.HasPrefix(constraint, "<"):
		op, rest = "<", constraint[1:]
	default:
		op, rest = "==", constraint
	}

	target, err := semver.NewVersion(strings.TrimSpace(rest))
	if err != nil {
		return false
	}

	switch op {
	case ">=":
		return v.Compare(target) >= 0
	case "==":
		return v.Compare(target) == 0
	case "<":
		return v.Compare(target) < 0
	case "~=":
		upper := target.IncMajor()
		return v.Compare(target) >= 0 && v.Compare(&upper) < 0
	default:
		return false
	}
}
