package ollama

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PullFunc runs a blocking model download and returns its combined output.
// The default implementation shells out to `ollama pull`.
type PullFunc func(ctx context.Context, model string) (string, error)

// Provisioner makes sure required models are installed, downloading missing
// ones with a hard ceiling on wait time. Downloads are never retried; a
// failure is reported to the caller, who decides whether to abort startup.
type Provisioner struct {
	mgr     *Manager
	pull    PullFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewProvisioner builds a provisioner over the given manager. timeout bounds
// each individual download (default 30 minutes).
func NewProvisioner(mgr *Manager, timeout time.Duration, logger *zap.Logger) *Provisioner {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		mgr:     mgr,
		pull:    pullWithCLI,
		timeout: timeout,
		logger:  logger,
	}
}

// SetPullFunc overrides the download implementation. Used by tests.
func (p *Provisioner) SetPullFunc(fn PullFunc) {
	p.pull = fn
}

// Ensure succeeds immediately when the model is already installed, otherwise
// blocks on a download bounded by the configured timeout.
func (p *Provisioner) Ensure(ctx context.Context, model string) error {
	if p.mgr.HasModel(ctx, model) {
		p.logger.Debug("model already installed", zap.String("model", model))
		return nil
	}

	p.logger.Info("model missing, downloading", zap.String("model", model), zap.Duration("timeout", p.timeout))

	pullCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := p.pull(pullCtx, model)
	if err != nil {
		if pullCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("pull %s: timed out after %s", model, p.timeout)
		}
		return fmt.Errorf("pull %s: %w: %s", model, err, strings.TrimSpace(output))
	}

	p.logger.Info("model downloaded", zap.String("model", model))
	return nil
}

// pullWithCLI shells out to the ollama CLI, mirroring what an operator would
// run by hand. Output is captured for error reporting.
func pullWithCLI(ctx context.Context, model string) (string, error) {
	cmd := exec.CommandContext(ctx, "ollama", "pull", model)
	out, err := cmd.CombinedOutput()
	return string(out), err
}
