package bridge

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/protocol"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// State is the lifecycle state of a driven provider.
type State int

// Lifecycle states. Failed is absorbing until Closed.
const (
	Created State = iota
	Initialized
	Running
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Driver walks one provider through init, run and close.
// It is single use: exactly one Close per Driver.
type Driver struct {
	log      *zap.Logger
	state    State
	failedIn domain.Phase
}

// NewDriver creates a Driver.
func NewDriver(log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{log: log}
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// FailedIn returns the phase that failed, or "" when none did.
func (d *Driver) FailedIn() domain.Phase { return d.failedIn }

// Run initializes p with req, runs it against a write-only view of w and
// always closes it.
// The returned error is the init or run failure wrapped in a *domain.PhaseError;
// close failures are logged only.
func (d *Driver) Run(ctx context.Context, p provider.Provider, req *protocol.Request, w provider.ResultWriter) error {
	if d.state != Created {
		return fmt.Errorf("driver already used (state %s)", d.state)
	}
	defer d.close(p)

	err := guard(func() error {
		return p.Init(ctx, req.Provider, req.Indexes, req.Info, req.RequiredFields)
	})
	if err != nil {
		return d.fail(domain.PhaseInit, err)
	}
	d.state = Initialized
	d.log.Debug("provider initialized", zap.Int("indexes", len(req.Indexes)))

	d.state = Running
	if err := guard(func() error { return p.Run(ctx, resultProxy{w: w}) }); err != nil {
		return d.fail(domain.PhaseRun, err)
	}
	return nil
}

func (d *Driver) fail(phase domain.Phase, err error) error {
	d.state = Failed
	d.failedIn = phase
	return domain.NewPhaseError(phase, err)
}

func (d *Driver) close(p provider.Provider) {
	prev := d.state
	d.state = Closed
	if err := guard(p.Close); err != nil {
		d.log.Error("provider close failed", zap.Stringer("after", prev), zap.Error(err))
	}
}

// guard converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
