package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aunum/log"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/manifest"
)

// CLIPlugin invokes a plugin's executable as a subprocess, passing the
// request as arguments and reading the result from its stdout as JSON.
type CLIPlugin struct {
	manifest *manifest.Manifest
	env      PathPrefixer
	Timeout  time.Duration
}

// NewCLIPlugin builds a CLI-backend Plugin from m. env may be nil.
func NewCLIPlugin(m *manifest.Manifest, env PathPrefixer) *CLIPlugin {
	return &CLIPlugin{manifest: m, env: env, Timeout: DefaultTimeout}
}

func (p *CLIPlugin) Info() etl.Info                      { return p.manifest.Info() }
func (p *CLIPlugin) SupportsTarget(target string) bool    { return p.manifest.SupportsTarget(target) }
func (p *CLIPlugin) SupportsInput(format string) bool     { return p.manifest.SupportsInput(format) }

// resolveExecutable tries an absolute path as-is, then a path relative to
// the plugin directory, then PATH lookup. On Windows, a bare executable
// name without an extension gets ".exe" appended before the relative-path
// check.
func (p *CLIPlugin) resolveExecutable() string {
	exe := p.manifest.Executable
	if buildArch().isWindows() && filepath.Ext(exe) == "" {
		exe += ".exe"
	}
	if filepath.IsAbs(exe) {
		return exe
	}
	candidate := filepath.Join(p.manifest.PluginDir, exe)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return exe
}

// buildArguments constructs argv exactly as the CLI subprocess protocol
// requires: universal flags, then "--" followed by raw plugin options.
func (p *CLIPlugin) buildArguments(req etl.Request) []string {
	args := []string{"--input", req.Source, "--target", req.Target}

	if req.Core.Output != "" {
		args = append(args, "--output", req.Core.Output)
	}
	if req.Core.Force {
		args = append(args, "--force")
	}
	if req.Core.DryRun {
		args = append(args, "--dry-run")
	}
	if len(req.PluginOptions) > 0 {
		args = append(args, "--")
		args = append(args, req.PluginOptions...)
	}
	return args
}

type cliResultEnvelope struct {
	Success bool `json:"success"`
	Output  string `json:"output"`
	// Outputs is populated by a plugin that scattered: it produced more
	// than one output file from a single invocation.
	Outputs    []string       `json:"outputs,omitempty"`
	OutputSize *int64         `json:"output_size"`
	Error      string         `json:"error"`
	Extra      map[string]any `json:"extra"`
}

func (p *CLIPlugin) Execute(ctx context.Context, req etl.Request) (etl.Result, error) {
	exe := p.resolveExecutable()
	if filepath.IsAbs(exe) {
		if _, err := os.Stat(exe); err != nil {
			return etl.Failure(req.ETL, req.Target, req.Source, "plugin executable not found: "+exe), nil
		}
	}

	args := p.buildArguments(req)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, exe, args...)
	if p.env != nil {
		cmd.Env = append(os.Environ(), "PATH="+prependPath(p.env.PathDirs()))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("running plugin %s: %s %v", p.manifest.ID(), exe, args)
	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return etl.Failure(req.ETL, req.Target, req.Source, "plugin execution timed out"), nil
	}

	result := p.parseResult(req, stdout.Bytes(), stderr.String(), exitCode(runErr))

	if info, err := os.Stat(req.Source); err == nil {
		result.InputSize = info.Size()
	}
	return result, nil
}

func (p *CLIPlugin) parseResult(req etl.Request, stdout []byte, stderrText string, exitCode int) etl.Result {
	if exitCode != 0 && len(bytes.TrimSpace(stdout)) == 0 {
		msg := "plugin exited with code " + strconv.Itoa(exitCode)
		if stderrText != "" {
			msg += ": " + stderrText
		}
		return etl.Failure(req.ETL, req.Target, req.Source, msg)
	}

	var env cliResultEnvelope
	if err := json.Unmarshal(stdout, &env); err != nil {
		msg := "failed to parse plugin output as JSON: " + err.Error()
		if stderrText != "" {
			msg += "\nstderr: " + stderrText
		}
		return etl.Failure(req.ETL, req.Target, req.Source, msg)
	}

	result := etl.Result{
		ETL:        req.ETL,
		Target:     req.Target,
		PluginUsed: p.manifest.Group,
		Input:      req.Source,
		Error:      env.Error,
		Extra:      env.Extra,
	}

	// A non-zero exit code always means failure, even when the JSON body on
	// stdout claims success: the exit code is the authoritative signal.
	success := exitCode == 0 && env.Success
	if success {
		result.Status = etl.StatusSuccess
	} else {
		result.Status = etl.StatusError
		if result.Error == "" && exitCode != 0 {
			result.Error = "plugin exited with code " + strconv.Itoa(exitCode) + " despite reporting success"
		}
	}

	if env.Output != "" {
		result.Output = env.Output
		result.HasOutput = true
		if env.OutputSize != nil {
			result.OutputSize = *env.OutputSize
		} else if info, err := os.Stat(env.Output); err == nil {
			result.OutputSize = info.Size()
		}
	}

	if len(env.Outputs) > 0 {
		result.Outputs = env.Outputs
		if result.Output == "" {
			result.Output = env.Outputs[0]
			result.HasOutput = true
		}
	}

	return result
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func prependPath(dirs []string) string {
	existing := os.Getenv("PATH")
	if len(dirs) == 0 {
		return existing
	}
	joined := filepath.ListSeparator
	out := ""
	for _, d := range dirs {
		out += d + string(joined)
	}
	return out + existing
}
