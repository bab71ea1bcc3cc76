// Package goscrub implements a background disk-scrubbing engine: a
// control surface for tuning a scrub round's traversal strategy, worker
// count, and bounds, backed by a SCSI VERIFY(10) pass-through driver.
package goscrub

import (
	"github.com/gamvros/goscrub/internal/controller"
	"github.com/gamvros/goscrub/internal/interfaces"
	"github.com/gamvros/goscrub/internal/logging"
	"github.com/gamvros/goscrub/internal/scsipt"
	"github.com/gamvros/goscrub/internal/sysfs"
)

// ScrubberInstance binds one block device to one control surface and
// controller. Exactly one round runs at a time; tunable writes mid-round
// take effect on the next round (RoundSnapshot isolation).
type ScrubberInstance struct {
	device   interfaces.Device
	registry *sysfs.Registry
	ctrl     *controller.Controller
	logger   *logging.Logger
	metrics  *Metrics
}

// Option configures a ScrubberInstance at construction time.
type Option func(*scrubOptions)

type scrubOptions struct {
	logger   *logging.Logger
	observer interfaces.Observer
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *scrubOptions) { o.logger = l }
}

// WithObserver overrides the default metrics observer.
func WithObserver(obs interfaces.Observer) Option {
	return func(o *scrubOptions) { o.observer = obs }
}

// Open opens path as a SCSI pass-through device and wraps it in a new
// ScrubberInstance.
func Open(path string, opts ...Option) (*ScrubberInstance, error) {
	dev, err := scsipt.OpenDevice(path)
	if err != nil {
		return nil, WrapError("open", err)
	}
	return New(dev, opts...), nil
}

// New creates a ScrubberInstance over an already-open device, e.g. a
// MockDevice or backend.MemDevice for testing.
func New(device interfaces.Device, opts ...Option) *ScrubberInstance {
	o := &scrubOptions{logger: logging.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.observer == nil {
		o.observer = NewMetrics()
	}

	tunables := sysfs.Default()

	var inst ScrubberInstance
	registry := sysfs.New(tunables, 0, func() {
		if inst.ctrl != nil {
			inst.ctrl.Wake()
		}
	}, o.logger)

	inst = ScrubberInstance{
		device:   device,
		registry: registry,
		ctrl:     controller.New(device, registry, o.logger, o.observer),
		logger:   o.logger,
	}
	if m, ok := o.observer.(*Metrics); ok {
		inst.metrics = m
	}
	return &inst
}

// Start launches the controller's state-machine loop in its own
// goroutine. It does not itself begin scrubbing — store "on" to state to
// start a round.
func (s *ScrubberInstance) Start() {
	go s.ctrl.Run()
}

// Stop tells the controller to end any in-flight round at the next
// segment boundary (dispatched segments complete) and exit, blocks until
// it has, then closes the underlying device.
func (s *ScrubberInstance) Stop() error {
	s.ctrl.Stop()
	return s.device.Close()
}

// Show renders the current value of a sysfs-style attribute.
func (s *ScrubberInstance) Show(attr string) (string, error) {
	return s.registry.Show(attr)
}

// Store writes value to a sysfs-style attribute. Writing "on" to state
// starts the next round; writing "abort" ends an in-flight round early.
func (s *ScrubberInstance) Store(attr, value string) error {
	return s.registry.Store(attr, value)
}

// Snapshot returns the instance's current tunables.
func (s *ScrubberInstance) Snapshot() sysfs.Tunables {
	return s.registry.Snapshot()
}

// Metrics returns the instance's cumulative metrics, or nil if the
// Observer supplied via WithObserver is not a *Metrics.
func (s *ScrubberInstance) Metrics() *Metrics {
	return s.metrics
}
