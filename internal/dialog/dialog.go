// Package dialog implements the MIDI port selection dialog as a headless
// controller. The controller owns an explicit selection model; views only
// receive snapshots of it and never act as the source of truth.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midiports/sdk/contracts"
)

// Messages shown to the user when a remote call fails.
const (
	MsgLoadFailed   = "Failed to get list of MIDI devices"
	MsgSubmitFailed = "Failed to enable some MIDI devices"
)

// DefaultTimeout bounds remote calls when no timeout is configured.
const DefaultTimeout = 10 * time.Second

var (
	// ErrNotVisible is returned by edits and Submit while the dialog is hidden.
	ErrNotVisible = errors.New("dialog is not visible")
	// ErrUnknownDevice is returned when editing an identifier that is not listed.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrClosed is returned by Open and Submit after Close.
	ErrClosed = errors.New("dialog is closed")
)

// Entry is one rendered checkbox/label pair.
type Entry struct {
	ID      string
	Name    string
	Checked bool
}

// Snapshot is a copy of the dialog state handed to views.
type Snapshot struct {
	Visible    bool
	Loading    bool
	Entries    []Entry
	Mode       contracts.RoutingMode
	Generation uint64
}

// Checked returns the identifiers of checked entries in display order.
func (s Snapshot) Checked() []string {
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Checked {
			out = append(out, e.ID)
		}
	}
	return out
}

// View renders snapshots. Render may be called from any goroutine.
type View interface {
	Render(s Snapshot)
}

// ViewFunc adapts a function to the View interface.
type ViewFunc func(s Snapshot)

// Render calls f(s).
func (f ViewFunc) Render(s Snapshot) { f(s) }

// Op names the remote operation a Result belongs to.
type Op int

const (
	// OpLoad is the device list fetch started by Open.
	OpLoad Op = iota
	// OpSubmit is the selection update started by Submit.
	OpSubmit
)

func (o Op) String() string {
	if o == OpLoad {
		return "load"
	}
	return "submit"
}

// Result reports the outcome of Open or Submit.
type Result struct {
	Op         Op
	Generation uint64
	// Stale is set when a load finished after a newer Open or a Cancel; its
	// data was discarded.
	Stale     bool
	Selection contracts.Selection
	Err       error
}

// OK reports whether the operation succeeded and was applied.
func (r Result) OK() bool {
	return r.Err == nil && !r.Stale
}

// Config holds the collaborators of a Dialog.
type Config struct {
	Service  contracts.DeviceService
	Logger   contracts.Logger
	Notifier contracts.Notifier
	View     View
	Timeout  time.Duration
}

// Dialog is the device selection controller.
//
// Control flow is open, load, render, edit, then submit or cancel. Remote
// calls run on their own goroutines; a load is applied only if no Open or
// Cancel happened after it was issued.
type Dialog struct {
	svc      contracts.DeviceService
	logger   contracts.Logger
	notifier contracts.Notifier
	view     View
	timeout  time.Duration

	mu         sync.Mutex
	visible    bool
	loading    bool
	entries    []Entry
	index      map[string]int
	mode       contracts.RoutingMode
	baseline   []bool
	baseMode   contracts.RoutingMode
	gen        uint64
	cancelLoad context.CancelFunc
	closed     bool

	// wg.Add is only called with mu held and closed unset.
	wg sync.WaitGroup
}

// New builds a hidden dialog.
func New(cfg Config) (*Dialog, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("dialog: nil device service")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("dialog: nil logger")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier(cfg.Logger)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dialog{
		svc:      cfg.Service,
		logger:   cfg.Logger,
		notifier: cfg.Notifier,
		view:     cfg.View,
		timeout:  cfg.Timeout,
		index:    map[string]int{},
	}, nil
}

// SetView replaces the view. A nil view disables rendering.
func (d *Dialog) SetView(v View) {
	d.mu.Lock()
	d.view = v
	snap := d.snapshotLocked()
	d.mu.Unlock()
	d.render(v, snap)
}

// Open starts loading device state. It returns immediately; the returned
// channel receives exactly one Result once the load has been applied or
// discarded. A load still pending from an earlier Open is cancelled.
// After Close the Result carries ErrClosed and nothing is fetched.
func (d *Dialog) Open(ctx context.Context) <-chan Result {
	done := make(chan Result, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		done <- Result{Op: OpLoad, Err: ErrClosed}
		return done
	}
	d.gen++
	gen := d.gen
	if d.cancelLoad != nil {
		d.cancelLoad()
	}
	loadCtx, cancel := context.WithTimeout(ctx, d.timeout)
	d.cancelLoad = cancel
	d.loading = true
	d.wg.Add(1)
	d.mu.Unlock()

	d.logger.Debug("loading MIDI devices", d.logger.Field().Uint64("generation", gen))

	go func() {
		defer d.wg.Done()
		defer cancel()

		state, err := d.svc.GetDevices(loadCtx)
		done <- d.applyLoad(gen, state, err)
	}()
	return done
}

func (d *Dialog) applyLoad(gen uint64, state contracts.DeviceState, err error) Result {
	res := Result{Op: OpLoad, Generation: gen, Err: err}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		res.Stale = true
		d.logger.Debug("discarding stale device list",
			d.logger.Field().Uint64("generation", gen))
		return res
	}
	d.loading = false
	d.cancelLoad = nil

	if err != nil {
		d.mu.Unlock()
		d.logger.Error(MsgLoadFailed, d.logger.Field().Error("error", err))
		d.notifier.Notify(contracts.Notification{Level: contracts.ErrorLevel, Message: MsgLoadFailed, Err: err})
		return res
	}

	d.populateLocked(state)
	d.visible = true
	snap := d.snapshotLocked()
	view := d.view
	d.mu.Unlock()

	d.logger.Info("MIDI devices loaded",
		d.logger.Field().Int("devices", len(snap.Entries)),
		d.logger.Field().Strings("in_use", snap.Checked()),
		d.logger.Field().String("mode", snap.Mode.String()))
	d.render(view, snap)
	return res
}

// populateLocked replaces all entries with the loaded state.
func (d *Dialog) populateLocked(state contracts.DeviceState) {
	inUse := make(map[string]struct{}, len(state.DevsInUse))
	for _, id := range state.DevsInUse {
		inUse[id] = struct{}{}
	}

	d.entries = make([]Entry, 0, len(state.DevList))
	d.index = make(map[string]int, len(state.DevList))
	for _, id := range state.DevList {
		if _, dup := d.index[id]; dup {
			continue
		}
		name, ok := state.Names[id]
		if !ok || name == "" {
			name = id
		}
		_, checked := inUse[id]
		d.index[id] = len(d.entries)
		d.entries = append(d.entries, Entry{ID: id, Name: name, Checked: checked})
	}

	d.mode = state.Mode()
	d.baseMode = d.mode
	d.baseline = make([]bool, len(d.entries))
	for i, e := range d.entries {
		d.baseline[i] = e.Checked
	}
}

// Cancel hides the dialog and discards edits made since the last load. A
// pending load is cancelled and its result ignored.
func (d *Dialog) Cancel() {
	d.mu.Lock()
	d.gen++
	if d.cancelLoad != nil {
		d.cancelLoad()
		d.cancelLoad = nil
	}
	d.loading = false
	for i := range d.entries {
		d.entries[i].Checked = d.baseline[i]
	}
	d.mode = d.baseMode
	d.visible = false
	snap := d.snapshotLocked()
	view := d.view
	d.mu.Unlock()

	d.logger.Debug("MIDI devices dialog cancelled")
	d.render(view, snap)
}

// Submit sends the checked devices and the selected routing mode. The dialog
// is hidden before the send completes; a failed send only raises a
// notification. The returned channel receives exactly one Result.
func (d *Dialog) Submit(ctx context.Context) <-chan Result {
	done := make(chan Result, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		done <- Result{Op: OpSubmit, Err: ErrClosed}
		return done
	}
	if !d.visible {
		d.mu.Unlock()
		done <- Result{Op: OpSubmit, Err: ErrNotVisible}
		return done
	}
	gen := d.gen
	sel := contracts.Selection{
		Devs:               d.snapshotLocked().Checked(),
		MidiAggregatedMode: d.mode.IsAggregated(),
	}
	d.visible = false
	snap := d.snapshotLocked()
	view := d.view
	d.wg.Add(1)
	d.mu.Unlock()

	d.render(view, snap)
	d.logger.Info("submitting MIDI device selection",
		d.logger.Field().Strings("devs", sel.Devs),
		d.logger.Field().Bool("aggregated", sel.MidiAggregatedMode))

	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		err := d.svc.SetDevices(sendCtx, sel)
		if err != nil {
			d.logger.Error(MsgSubmitFailed, d.logger.Field().Error("error", err))
			d.notifier.Notify(contracts.Notification{Level: contracts.ErrorLevel, Message: MsgSubmitFailed, Err: err})
		}
		done <- Result{Op: OpSubmit, Generation: gen, Selection: sel, Err: err}
	}()
	return done
}

// SetChecked sets the checkbox of device id.
func (d *Dialog) SetChecked(id string, checked bool) error {
	return d.edit(func() error {
		i, ok := d.index[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
		}
		d.entries[i].Checked = checked
		return nil
	})
}

// Toggle flips the checkbox of device id.
func (d *Dialog) Toggle(id string) error {
	return d.edit(func() error {
		i, ok := d.index[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
		}
		d.entries[i].Checked = !d.entries[i].Checked
		return nil
	})
}

// SetAll checks or unchecks every device.
func (d *Dialog) SetAll(checked bool) error {
	return d.edit(func() error {
		for i := range d.entries {
			d.entries[i].Checked = checked
		}
		return nil
	})
}

// SetMode selects the routing mode.
func (d *Dialog) SetMode(mode contracts.RoutingMode) error {
	return d.edit(func() error {
		d.mode = mode
		return nil
	})
}

func (d *Dialog) edit(fn func() error) error {
	d.mu.Lock()
	if !d.visible {
		d.mu.Unlock()
		return ErrNotVisible
	}
	if err := fn(); err != nil {
		d.mu.Unlock()
		return err
	}
	snap := d.snapshotLocked()
	view := d.view
	d.mu.Unlock()

	d.render(view, snap)
	return nil
}

// Snapshot returns a copy of the current state.
func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Dialog) snapshotLocked() Snapshot {
	entries := make([]Entry, len(d.entries))
	copy(entries, d.entries)
	return Snapshot{
		Visible:    d.visible,
		Loading:    d.loading,
		Entries:    entries,
		Mode:       d.mode,
		Generation: d.gen,
	}
}

func (d *Dialog) render(v View, s Snapshot) {
	if v != nil {
		v.Render(s)
	}
}

// Wait blocks until every in-flight remote call has finished or ctx is done.
func (d *Dialog) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels a pending load and waits for in-flight calls. Later Open and
// Submit calls fail with ErrClosed.
func (d *Dialog) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.gen++
	if d.cancelLoad != nil {
		d.cancelLoad()
		d.cancelLoad = nil
	}
	d.loading = false
	d.mu.Unlock()
	return d.Wait(ctx)
}
