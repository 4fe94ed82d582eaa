// Package kernel runs generated code through locally installed interpreters.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ShayCichocki/quill/internal/config"
	"github.com/ShayCichocki/quill/internal/exec"
)

// ErrNoKernel is returned when no interpreter is configured for a language
// or the configured interpreter is not installed.
var ErrNoKernel = errors.New("no kernel for language")

// Kernel is an interpreter able to run source code of one language.
// Args must make Command read the program from stdin.
type Kernel struct {
	Language string
	Command  string
	Args     []string
	Timeout  time.Duration
	Env      []string
}

// Execution is the outcome of running code on a kernel.
type Execution struct {
	Output   string
	Success  bool
	Error    string
	Duration time.Duration
}

// Backend executes code on a kernel.
type Backend interface {
	Execute(ctx context.Context, k *Kernel, code string) (*Execution, error)
}

// Resolver picks the kernel for a language.
type Resolver interface {
	KernelFor(ctx context.Context, language string) (*Kernel, error)
}

var languageAliases = map[string]string{
	"py":      "python",
	"python3": "python",
	"sh":      "shell",
	"bash":    "shell",
	"zsh":     "shell",
	"js":      "javascript",
	"node":    "javascript",
	"nodejs":  "javascript",
}

// NormalizeLanguage maps common spellings of a language to its kernel name.
func NormalizeLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if alias, ok := languageAliases[l]; ok {
		return alias
	}
	return l
}

// ConfigResolver resolves kernels from the kernels section of the config.
type ConfigResolver struct {
	live   *config.Live
	runner exec.CommandRunner
}

// NewConfigResolver creates a resolver reading the current config on every
// lookup. runner locates the interpreter binaries; nil uses the local PATH.
func NewConfigResolver(live *config.Live, runner exec.CommandRunner) *ConfigResolver {
	if runner == nil {
		runner = exec.NewRunner()
	}
	return &ConfigResolver{live: live, runner: runner}
}

// KernelFor implements Resolver.
func (r *ConfigResolver) KernelFor(ctx context.Context, language string) (*Kernel, error) {
	name := NormalizeLanguage(language)
	kernels := r.live.Get().Kernels
	k, ok := kernels[name]
	if !ok || k.Command == "" {
		return nil, fmt.Errorf("%w %q (configured: %s)", ErrNoKernel, language, strings.Join(kernelNames(kernels), ", "))
	}
	path, err := r.runner.LookPath(k.Command)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %s not installed: %v", ErrNoKernel, language, k.Command, err)
	}
	return &Kernel{
		Language: name,
		Command:  path,
		Args:     append([]string(nil), k.Args...),
		Timeout:  k.Timeout,
		Env:      append([]string(nil), k.Env...),
	}, nil
}

func kernelNames(kernels map[string]config.KernelSettings) []string {
	names := make([]string, 0, len(kernels))
	for n := range kernels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LocalBackend runs kernels as subprocesses.
type LocalBackend struct {
	runner exec.CommandRunner
}

// NewLocalBackend creates a backend over the given command runner.
func NewLocalBackend(runner exec.CommandRunner) *LocalBackend {
	if runner == nil {
		runner = exec.NewRunner()
	}
	return &LocalBackend{runner: runner}
}

// Execute feeds code to the kernel on stdin, inside a scratch directory
// removed afterwards. A non-zero exit or a timeout is a failed execution,
// not an error.
func (b *LocalBackend) Execute(ctx context.Context, k *Kernel, code string) (*Execution, error) {
	dir, err := os.MkdirTemp("", "quill-kernel-*")
	if err != nil {
		return nil, fmt.Errorf("create %s scratch dir: %w", k.Language, err)
	}
	defer os.RemoveAll(dir)

	out, err := b.runner.Run(ctx, exec.Command{
		Name:    k.Command,
		Args:    append([]string(nil), k.Args...),
		Dir:     dir,
		Stdin:   code,
		Timeout: k.Timeout,
		Env:     k.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("run %s kernel: %w", k.Language, err)
	}

	ex := &Execution{
		Output:   out.Stdout,
		Success:  out.ExitCode == 0 && !out.TimedOut,
		Duration: out.Duration,
	}
	if !ex.Success {
		msg := strings.TrimSpace(out.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(out.Stdout)
		}
		if out.TimedOut {
			msg = strings.TrimSpace(fmt.Sprintf("timed out after %s\n%s", k.Timeout, msg))
		}
		if msg == "" {
			msg = fmt.Sprintf("exit status %d", out.ExitCode)
		}
		ex.Error = msg
	}
	return ex, nil
}

// Verify implementations at compile time.
var (
	_ Backend  = (*LocalBackend)(nil)
	_ Resolver = (*ConfigResolver)(nil)
)
