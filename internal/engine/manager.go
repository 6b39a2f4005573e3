// Package engine drives the external ffmpeg encoder: lazy engine
// initialization, scratch file staging, preset command construction, and
// progress reporting for frame-sequence and still-image conversions.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// commandContext is swapped by tests to stub engine subprocesses.
var commandContext = exec.CommandContext

// Engine is a validated encoder instance: a resolved binary plus the scratch
// directory that backs its working filesystem.
type Engine struct {
	binary      string
	version     string
	scratchRoot string
}

// NewEngine constructs an engine instance directly, for custom LoadFuncs.
func NewEngine(binary, version, scratchRoot string) *Engine {
	return &Engine{binary: binary, version: version, scratchRoot: scratchRoot}
}

// Binary returns the resolved encoder executable path.
func (e *Engine) Binary() string { return e.binary }

// Version returns the version string reported by the binary at load time.
func (e *Engine) Version() string { return e.version }

// ScratchRoot returns the directory used for staged inputs and outputs.
func (e *Engine) ScratchRoot() string { return e.scratchRoot }

// LoadFunc initializes an engine instance. The default implementation
// resolves and probes the configured ffmpeg binary.
type LoadFunc func(ctx context.Context) (*Engine, error)

// Manager memoizes engine initialization. The first caller performs the load
// while concurrent callers wait on the same attempt; a successful load is
// cached for the manager's lifetime, a failed load is cleared so the next
// call retries from scratch.
type Manager struct {
	mu      sync.Mutex
	loading chan struct{}
	engine  *Engine
	load    LoadFunc
}

// NewManager returns a manager that initializes the named ffmpeg binary and
// roots its scratch filesystem at scratchRoot.
func NewManager(binary, scratchRoot string) *Manager {
	return &Manager{load: defaultLoader(binary, scratchRoot)}
}

// NewManagerWithLoader returns a manager backed by a custom load function.
func NewManagerWithLoader(load LoadFunc) *Manager {
	return &Manager{load: load}
}

// Engine returns the initialized engine, loading it on first use. Concurrent
// callers during a load block until that load resolves rather than starting
// their own.
func (m *Manager) Engine(ctx context.Context) (*Engine, error) {
	for {
		m.mu.Lock()
		if m.engine != nil {
			eng := m.engine
			m.mu.Unlock()
			return eng, nil
		}
		if m.loading == nil {
			done := make(chan struct{})
			m.loading = done
			m.mu.Unlock()

			eng, err := m.load(ctx)

			m.mu.Lock()
			if err == nil {
				m.engine = eng
			}
			m.loading = nil
			close(done)
			m.mu.Unlock()
			return eng, err
		}
		done := m.loading
		m.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Loaded reports whether an engine instance is currently cached.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine != nil
}

func defaultLoader(binary, scratchRoot string) LoadFunc {
	return func(ctx context.Context) (*Engine, error) {
		resolved, err := exec.LookPath(binary)
		if err != nil {
			return nil, &EngineLoadError{Binary: binary, Err: err}
		}
		version, err := probeVersion(ctx, resolved)
		if err != nil {
			return nil, &EngineLoadError{Binary: binary, Err: err}
		}
		if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
			return nil, &EngineLoadError{Binary: binary, Err: fmt.Errorf("create scratch root: %w", err)}
		}
		return &Engine{binary: resolved, version: version, scratchRoot: scratchRoot}, nil
	}
}

func probeVersion(ctx context.Context, binary string) (string, error) {
	cmd := commandContext(ctx, binary, "-version")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("probe version: %w", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("probe version: empty output")
}
