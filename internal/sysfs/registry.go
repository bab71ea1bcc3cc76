package sysfs

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gamvros/goscrub/internal/logging"
	"github.com/gamvros/goscrub/internal/priority"
	"github.com/gamvros/goscrub/internal/strategy"
)

// WakeFunc is invoked whenever state transitions to On, so the controller
// can wake from its idle wait.
type WakeFunc func()

// Registry is the mutex-guarded control surface: a map of attribute name
// to (show, store) closures over a shared *Tunables. All access to the
// underlying Tunables must go through Registry.
type Registry struct {
	mu       sync.Mutex
	t        *Tunables
	wake     WakeFunc
	logger   *logging.Logger
	ops      map[string]attrOps
	strats   []strategy.Kind
	prios    []priority.Class
	capacity uint64
}

type attrOps struct {
	show  func(*Tunables) string
	store func(*Tunables, string) error
}

// New creates a Registry over t, clamping size/offset writes against
// capacity sectors. wake is called after a successful store(state, "on").
// logger receives rejected-write diagnostics.
func New(t *Tunables, capacity uint64, wake WakeFunc, logger *logging.Logger) *Registry {
	r := &Registry{
		t:        t,
		wake:     wake,
		logger:   logger,
		strats:   []strategy.Kind{strategy.Sequential, strategy.Staggered, strategy.Fixed},
		prios:    []priority.Class{priority.Realtime, priority.IdleCheck},
		capacity: capacity,
	}
	r.ops = r.buildOps()
	return r
}

// SetCapacity updates the capacity used to clamp size/offset tunables,
// e.g. once the block device contract reports it after Open.
func (r *Registry) SetCapacity(capacity uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capacity = capacity
}

// Show renders the current value of attr, or an error if attr is
// unknown.
func (r *Registry) Show(attr string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[attr]
	if !ok {
		return "", fmt.Errorf("sysfs: unknown attribute %q", attr)
	}
	return op.show(r.t), nil
}

// Store writes value to attr. Invalid writes are logged and the previous
// value is retained; the call still returns nil (the write is consumed,
// per §4.1).
func (r *Registry) Store(attr, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[attr]
	if !ok {
		return fmt.Errorf("sysfs: unknown attribute %q", attr)
	}
	value = strings.TrimSuffix(value, "\n")

	if err := op.store(r.t, value); err != nil {
		if r.logger != nil {
			r.logger.Warn("rejected tunable write", "attr", attr, "value", value, "reason", err.Error())
		}
		return nil
	}

	if attr == "state" && State(value) == StateOn {
		if r.wake != nil {
			r.wake()
		}
	}
	return nil
}

// Snapshot returns a copy of the current tunables, taken under the
// registry's mutex, for the controller to use as an immutable
// RoundSnapshot source.
func (r *Registry) Snapshot() Tunables {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.t
}

// ResetRoundCounters zeroes the round statistics ttime_ms, resptime_us
// and reqcount under the registry's mutex at round start. read_errs is
// not a tunable; it lives in the round's own counters, created fresh
// each round.
func (r *Registry) ResetRoundCounters() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t.TTimeMs = 0
	r.t.RespTimeUs = 0
	r.t.ReqCount = 0
}

// UpdateRoundStats writes the post-round statistics back under the
// registry's mutex (§4.2 step 12).
func (r *Registry) UpdateRoundStats(ttimeMs, respTimeUs, reqCount uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t.TTimeMs = ttimeMs
	r.t.RespTimeUs = respTimeUs
	r.t.ReqCount = reqCount
}

// SetIdleStamp records the Unix timestamp a round's snapshot was taken
// at, surfaced read-only via the "idlestamp" attribute.
func (r *Registry) SetIdleStamp(unix int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.t.IdleStampUnix = unix
}

// CurrentState returns the live state tunable without a full snapshot.
func (r *Registry) CurrentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.State
}

func bracketed(selected string, all []string) string {
	var b strings.Builder
	for _, v := range all {
		if v == selected {
			b.WriteString("[" + v + "] ")
		} else {
			b.WriteString(v + " ")
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func (r *Registry) buildOps() map[string]attrOps {
	return map[string]attrOps{
		"reqbound": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Scrubbing requests to limit next round to: %d\n", t.ReqBound)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				t.ReqBound = n
				return nil
			},
		},
		"segsize": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Segment size: %d KB\n", t.SegSize)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("segsize cannot be 0")
				}
				if r.capacity > 0 && n > r.capacity {
					n = r.capacity
				}
				t.SegSize = n
				return nil
			},
		},
		"regsize": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Region size: %d KB\n", t.RegSize)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("regsize cannot be 0")
				}
				if r.capacity > 0 && n > r.capacity {
					n = r.capacity
				}
				t.RegSize = n
				return nil
			},
		},
		"spoint": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Scrubbing starts at sector: %d\n", t.SPoint)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				if r.capacity > 0 && n > r.capacity {
					n = 0
				}
				t.SPoint = n
				return nil
			},
		},
		"scount": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("# of sectors to be scrubbed: %d\n", t.SCount)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				if r.capacity > 0 && n > r.capacity {
					n = r.capacity
				}
				t.SCount = n
				return nil
			},
		},
		"strategy": {
			show: func(t *Tunables) string {
				all := make([]string, len(r.strats))
				for i, s := range r.strats {
					all[i] = string(s)
				}
				return bracketed(string(t.Strategy), all)
			},
			store: func(t *Tunables, v string) error {
				for _, s := range r.strats {
					if string(s) == v {
						t.Strategy = s
						return nil
					}
				}
				return fmt.Errorf("strategy %q not found", v)
			},
		},
		"priority": {
			show: func(t *Tunables) string {
				all := make([]string, len(r.prios))
				for i, p := range r.prios {
					all[i] = string(p)
				}
				return bracketed(string(t.Priority), all)
			},
			store: func(t *Tunables, v string) error {
				for _, p := range r.prios {
					if string(p) == v {
						t.Priority = p
						return nil
					}
				}
				return fmt.Errorf("priority %q not found", v)
			},
		},
		"state": {
			show: func(t *Tunables) string {
				return bracketed(string(t.State), []string{string(StateOn), string(StateOff), string(StateAbort)})
			},
			store: func(t *Tunables, v string) error {
				switch State(v) {
				case StateOn, StateOff, StateAbort:
					t.State = State(v)
					return nil
				default:
					return fmt.Errorf("state %q not recognized", v)
				}
			},
		},
		"threads": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Worker threads: %d\n", t.Threads)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 32)
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("threads must be positive")
				}
				t.Threads = uint32(n)
				return nil
			},
		},
		"dpo": {
			show: func(t *Tunables) string {
				return bracketed(onOff(t.DPO), []string{"on", "off"})
			},
			store: func(t *Tunables, v string) error {
				b, err := parseOnOff(v)
				if err != nil {
					return err
				}
				t.DPO = b
				return nil
			},
		},
		"vrprotect": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("VRProtect: %d\n", t.VRProtect)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 8)
				if err != nil {
					return err
				}
				if n > 7 {
					return fmt.Errorf("vrprotect out of range [0,7]")
				}
				t.VRProtect = uint8(n)
				return nil
			},
		},
		"verbose": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Verbosity: %d\n", t.Verbose)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 8)
				if err != nil {
					return err
				}
				if n > 3 {
					return fmt.Errorf("verbose out of range [0,3]")
				}
				t.Verbose = uint8(n)
				if r.logger != nil {
					r.logger.SetLevel(logging.LevelFromVerbose(t.Verbose))
				}
				return nil
			},
		},
		"timed": {
			show: func(t *Tunables) string {
				return bracketed(onOff(t.Timed), []string{"on", "off"})
			},
			store: func(t *Tunables, v string) error {
				b, err := parseOnOff(v)
				if err != nil {
					return err
				}
				t.Timed = b
				return nil
			},
		},
		"ttime_ms": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Total scrubbing time: %d ms\n", t.TTimeMs)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				t.TTimeMs = n
				return nil
			},
		},
		"resptime_us": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Average response time: %d us\n", t.RespTimeUs)
			},
			store: func(t *Tunables, v string) error {
				return fmt.Errorf("resptime_us is read-only")
			},
		},
		"reqcount": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Requests issued: %d\n", t.ReqCount)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				t.ReqCount = n
				return nil
			},
		},
		"idlestamp": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Last round snapshot: %d\n", t.IdleStampUnix)
			},
			store: func(t *Tunables, v string) error {
				return fmt.Errorf("idlestamp is read-only")
			},
		},
		"delayms": {
			show: func(t *Tunables) string {
				return fmt.Sprintf("Pacing delay: %d ms\n", t.DelayMs)
			},
			store: func(t *Tunables, v string) error {
				n, err := strconv.ParseUint(v, 10, 64)
				if err != nil {
					return err
				}
				t.DelayMs = n
				return nil
			},
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on/off, got %q", v)
	}
}
