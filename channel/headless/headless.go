// Package headless provides the per-call process-spawn channel.
//
// Each call spawns one Godot process in headless mode running the bridge
// script, passes the operation and its payload as trailing arguments, and
// parses a single structured result line from the captured output. Calls
// share no state; a bounded pool caps the number of simultaneous engine
// processes.
package headless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"golang.org/x/sync/semaphore"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// ErrOperationFailed is returned when the bridge script reports an
// operation-level error. It wraps channel.ErrOperationFailed.
var ErrOperationFailed = fmt.Errorf("%w: bridge script", channel.ErrOperationFailed)

// DefaultMaxProcesses is the default spawn pool size.
const DefaultMaxProcesses = 4

// Config configures the headless channel.
type Config struct {
	// GodotBin is the engine binary. Required.
	GodotBin string

	// ProjectPath is the project directory passed via --path.
	ProjectPath string

	// BridgeScript is the GDScript entrypoint executed per call. Required.
	BridgeScript string

	// MaxProcesses caps simultaneous spawned processes. Default 4.
	MaxProcesses int64

	// Logger is an optional logger for channel events.
	Logger channel.Logger
}

// Runner is the process-spawn channel. It is stateless between calls and is
// always Ready; resource exhaustion is reported per call.
type Runner struct {
	bin     string
	project string
	script  string
	sem     *semaphore.Weighted
	log     channel.Logger
}

// New creates a headless channel.
func New(cfg Config) *Runner {
	maxProcs := cfg.MaxProcesses
	if maxProcs <= 0 {
		maxProcs = DefaultMaxProcesses
	}
	log := cfg.Logger
	if log == nil {
		log = channel.NopLogger{}
	}
	return &Runner{
		bin:     cfg.GodotBin,
		project: cfg.ProjectPath,
		script:  cfg.BridgeScript,
		sem:     semaphore.NewWeighted(maxProcs),
		log:     log,
	}
}

// Kind returns the channel kind.
func (r *Runner) Kind() channel.Kind { return channel.KindHeadless }

// State reports Ready; the per-call kind has no connection to degrade.
func (r *Runner) State() channel.State { return channel.Ready }

// Start verifies the engine binary is resolvable.
func (r *Runner) Start(context.Context) error {
	if r.bin == "" {
		return errors.New("headless: engine binary is required")
	}
	if r.script == "" {
		return errors.New("headless: bridge script is required")
	}
	if _, err := exec.LookPath(r.bin); err != nil {
		return fmt.Errorf("headless: engine binary not found: %w", err)
	}
	return nil
}

// Stop is a no-op; in-flight processes are bound to their call contexts.
func (r *Runner) Stop() error { return nil }

// Call spawns one engine process for the operation. Waiting for a pool slot
// is bounded by the caller's deadline; exhaustion fails with ErrUnavailable
// rather than queueing indefinitely. A process that outlives the deadline is
// terminated and the call fails with ErrTimeout.
func (r *Runner) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: spawn pool exhausted: %v", channel.ErrUnavailable, err)
	}
	defer r.sem.Release(1)

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode operation payload: %w", err)
	}

	args := []string{"--headless", "--quit-after", "1000"}
	if r.project != "" {
		args = append(args, "--path", r.project)
	}
	args = append(args, "--script", r.script, "--", "--op", method, "--payload", string(payload))

	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() != nil {
		// CommandContext already delivered the termination signal.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s terminated after deadline", channel.ErrTimeout, method)
		}
		return nil, ctx.Err()
	}

	result, err := extractResult(stdout.Bytes())
	if err != nil {
		r.log.Error("headless: no usable result payload",
			"op", method, "stdout", stdout.String(), "stderr", stderr.String(), "exit_error", runErr)
		return nil, err
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrOperationFailed, result.Error)
	}
	if runErr != nil {
		// The bridge script reported success yet the engine exited nonzero;
		// trust the structured line but record the anomaly.
		r.log.Warn("headless: nonzero exit with successful result", "op", method, "error", runErr)
	}
	return result.Value, nil
}

var _ channel.Channel = (*Runner)(nil)
