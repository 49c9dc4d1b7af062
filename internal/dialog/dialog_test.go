package dialog

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midiports/internal/logger"
	"github.com/leandrodaf/midiports/sdk/contracts"
	"go.uber.org/zap/zapcore"
)

// fakeService answers GetDevices from a queue of replies. A reply with a
// non-nil gate blocks until the gate is closed or the context ends.
type fakeService struct {
	mu      sync.Mutex
	replies []reply
	sent    []contracts.Selection
	setErr  error
	calls   int
}

type reply struct {
	state contracts.DeviceState
	err   error
	gate  chan struct{}
}

func (f *fakeService) GetDevices(ctx context.Context) (contracts.DeviceState, error) {
	f.mu.Lock()
	f.calls++
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return contracts.DeviceState{}, ctx.Err()
		}
	}
	return r.state, r.err
}

func (f *fakeService) SetDevices(ctx context.Context, sel contracts.Selection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sel)
	return f.setErr
}

func (f *fakeService) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		c := f.calls
		f.mu.Unlock()
		if c >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("GetDevices called fewer than %d times", n)
}

func (f *fakeService) lastSent(t *testing.T) contracts.Selection {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return f.sent[len(f.sent)-1]
}

func scenarioState() contracts.DeviceState {
	return contracts.DeviceState{
		DevList:            []string{"hw:0", "hw:1"},
		DevsInUse:          []string{"hw:1"},
		Names:              map[string]string{"hw:0": "Card A", "hw:1": "Card B"},
		MidiAggregatedMode: true,
	}
}

func newTestDialog(t *testing.T, svc contracts.DeviceService) (*Dialog, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	d, err := New(Config{
		Service:  svc,
		Logger:   logger.NewWithCore(zapcore.NewNopCore()),
		Notifier: rec,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, rec
}

func await(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}

func TestOpen_RendersDevicesFromServer(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, rec := newTestDialog(t, svc)

	var rendered []Snapshot
	var mu sync.Mutex
	d.SetView(ViewFunc(func(s Snapshot) {
		mu.Lock()
		rendered = append(rendered, s)
		mu.Unlock()
	}))

	if res := await(t, d.Open(context.Background())); !res.OK() {
		t.Fatalf("Open() result = %+v", res)
	}

	s := d.Snapshot()
	if !s.Visible {
		t.Error("dialog not visible after successful load")
	}
	want := []Entry{
		{ID: "hw:0", Name: "Card A", Checked: false},
		{ID: "hw:1", Name: "Card B", Checked: true},
	}
	if !reflect.DeepEqual(s.Entries, want) {
		t.Errorf("Entries = %+v, want %+v", s.Entries, want)
	}
	if s.Mode != contracts.Aggregated {
		t.Errorf("Mode = %v, want aggregated", s.Mode)
	}
	if len(rec.All()) != 0 {
		t.Errorf("unexpected notifications %+v", rec.All())
	}

	mu.Lock()
	defer mu.Unlock()
	if last := rendered[len(rendered)-1]; !last.Visible || len(last.Entries) != 2 {
		t.Errorf("last render = %+v, want visible with two entries", last)
	}
}

func TestOpen_CheckedMatchesInUseSet(t *testing.T) {
	tests := []struct {
		name  string
		list  []string
		inUse []string
	}{
		{"none in use", []string{"a", "b", "c"}, nil},
		{"all in use", []string{"a", "b"}, []string{"b", "a"}},
		{"subset", []string{"a", "b", "c", "d"}, []string{"d", "b"}},
		{"empty list", []string{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{replies: []reply{{state: contracts.DeviceState{
				DevList:   tt.list,
				DevsInUse: tt.inUse,
				Names:     map[string]string{},
			}}}}
			d, _ := newTestDialog(t, svc)
			await(t, d.Open(context.Background()))

			s := d.Snapshot()
			if len(s.Entries) != len(tt.list) {
				t.Fatalf("got %d entries, want %d", len(s.Entries), len(tt.list))
			}
			inUse := map[string]bool{}
			for _, id := range tt.inUse {
				inUse[id] = true
			}
			for i, e := range s.Entries {
				if e.ID != tt.list[i] {
					t.Errorf("entry %d = %q, want %q", i, e.ID, tt.list[i])
				}
				if e.Checked != inUse[e.ID] {
					t.Errorf("entry %q checked = %v, want %v", e.ID, e.Checked, inUse[e.ID])
				}
				if e.Name != e.ID {
					t.Errorf("entry %q name = %q, want fallback to id", e.ID, e.Name)
				}
			}
		})
	}
}

func TestOpen_DuplicateIDsRenderedOnce(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: contracts.DeviceState{
		DevList: []string{"hw:0", "hw:0", "hw:1"},
		Names:   map[string]string{"hw:0": "Card A"},
	}}}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	if n := len(d.Snapshot().Entries); n != 2 {
		t.Errorf("got %d entries, want 2", n)
	}
}

func TestOpen_FailureKeepsDialogHidden(t *testing.T) {
	svc := &fakeService{replies: []reply{{err: errors.New("connection refused")}}}
	d, rec := newTestDialog(t, svc)

	res := await(t, d.Open(context.Background()))
	if res.Err == nil {
		t.Fatal("expected load error")
	}

	s := d.Snapshot()
	if s.Visible {
		t.Error("dialog visible after failed load")
	}
	if len(s.Entries) != 0 {
		t.Errorf("got %d entries, want none", len(s.Entries))
	}
	n, ok := rec.Last()
	if !ok || n.Message != MsgLoadFailed || n.Level != contracts.ErrorLevel {
		t.Errorf("notification = %+v, want %q", n, MsgLoadFailed)
	}
}

func TestOpen_FailureLeavesPriorStateUntouched(t *testing.T) {
	svc := &fakeService{replies: []reply{
		{state: scenarioState()},
		{err: errors.New("timeout")},
	}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))
	d.Cancel()

	await(t, d.Open(context.Background()))
	s := d.Snapshot()
	if s.Visible {
		t.Error("dialog visible after failed reload")
	}
	if len(s.Entries) != 2 {
		t.Errorf("got %d entries, want prior 2", len(s.Entries))
	}
}

func TestOpen_ReopenResetsEntries(t *testing.T) {
	second := contracts.DeviceState{DevList: []string{"hw:9"}, Names: map[string]string{"hw:9": "Card Z"}}
	svc := &fakeService{replies: []reply{{state: scenarioState()}, {state: second}}}
	d, _ := newTestDialog(t, svc)

	await(t, d.Open(context.Background()))
	await(t, d.Open(context.Background()))

	s := d.Snapshot()
	if len(s.Entries) != 1 || s.Entries[0].ID != "hw:9" {
		t.Errorf("Entries = %+v, want only hw:9", s.Entries)
	}
	if s.Mode != contracts.Separated {
		t.Errorf("Mode = %v, want separated", s.Mode)
	}
}

func TestOpen_StaleResponseIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	slow := contracts.DeviceState{DevList: []string{"old"}, Names: map[string]string{}}
	svc := &fakeService{replies: []reply{
		{state: slow, gate: gate},
		{state: scenarioState()},
	}}
	d, rec := newTestDialog(t, svc)

	first := d.Open(context.Background())
	svc.waitCalls(t, 1)
	second := d.Open(context.Background())

	if res := await(t, second); !res.OK() {
		t.Fatalf("second Open() = %+v", res)
	}
	close(gate)
	res := await(t, first)
	if !res.Stale {
		t.Errorf("first Open() = %+v, want stale", res)
	}

	s := d.Snapshot()
	if len(s.Entries) != 2 || s.Entries[0].ID != "hw:0" {
		t.Errorf("Entries = %+v, stale response overwrote newer state", s.Entries)
	}
	if len(rec.All()) != 0 {
		t.Errorf("stale load raised notifications: %+v", rec.All())
	}
}

func TestCancel_DuringLoadSuppressesDialog(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{replies: []reply{{state: scenarioState(), gate: gate}}}
	d, rec := newTestDialog(t, svc)

	ch := d.Open(context.Background())
	d.Cancel()

	res := await(t, ch)
	if !res.Stale {
		t.Errorf("result = %+v, want stale", res)
	}
	if d.Snapshot().Visible {
		t.Error("dialog shown after cancel")
	}
	if len(rec.All()) != 0 {
		t.Errorf("cancelled load raised notifications: %+v", rec.All())
	}
}

func TestCancel_DiscardsEdits(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	if err := d.SetChecked("hw:0", true); err != nil {
		t.Fatalf("SetChecked() error = %v", err)
	}
	if err := d.SetMode(contracts.Separated); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	d.Cancel()

	s := d.Snapshot()
	if s.Visible {
		t.Error("dialog visible after cancel")
	}
	if got := s.Checked(); !reflect.DeepEqual(got, []string{"hw:1"}) {
		t.Errorf("Checked() = %v, want [hw:1]", got)
	}
	if s.Mode != contracts.Aggregated {
		t.Errorf("Mode = %v, want aggregated", s.Mode)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.sent) != 0 {
		t.Errorf("cancel sent %d selections", len(svc.sent))
	}
}

func TestSubmit_Scenario(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	if err := d.SetChecked("hw:1", false); err != nil {
		t.Fatal(err)
	}
	if err := d.SetChecked("hw:0", true); err != nil {
		t.Fatal(err)
	}

	res := await(t, d.Submit(context.Background()))
	if !res.OK() {
		t.Fatalf("Submit() = %+v", res)
	}
	want := contracts.Selection{Devs: []string{"hw:0"}, MidiAggregatedMode: true}
	if got := svc.lastSent(t); !reflect.DeepEqual(got, want) {
		t.Errorf("sent %+v, want %+v", got, want)
	}
	if d.Snapshot().Visible {
		t.Error("dialog visible after submit")
	}
}

func TestSubmit_SeparatedMode(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	if err := d.SetMode(contracts.Separated); err != nil {
		t.Fatal(err)
	}
	await(t, d.Submit(context.Background()))

	if svc.lastSent(t).MidiAggregatedMode {
		t.Error("sent midiAggregatedMode=true, want false")
	}
}

func TestSubmit_NewlyCheckedDeviceIncluded(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	if err := d.Toggle("hw:0"); err != nil {
		t.Fatal(err)
	}
	await(t, d.Submit(context.Background()))

	if got := svc.lastSent(t).Devs; !reflect.DeepEqual(got, []string{"hw:0", "hw:1"}) {
		t.Errorf("devs = %v, want [hw:0 hw:1] in display order", got)
	}
}

func TestSubmit_AllUncheckedSendsEmptySlice(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	if err := d.SetAll(false); err != nil {
		t.Fatal(err)
	}
	await(t, d.Submit(context.Background()))

	devs := svc.lastSent(t).Devs
	if devs == nil || len(devs) != 0 {
		t.Errorf("devs = %#v, want empty non-nil slice", devs)
	}
}

func TestSubmit_FailureNotifiesAndStaysHidden(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}, setErr: errors.New("500")}
	d, rec := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	res := await(t, d.Submit(context.Background()))
	if res.Err == nil {
		t.Fatal("expected submit error")
	}
	if d.Snapshot().Visible {
		t.Error("dialog visible after failed submit")
	}
	n, ok := rec.Last()
	if !ok || n.Message != MsgSubmitFailed {
		t.Errorf("notification = %+v, want %q", n, MsgSubmitFailed)
	}
}

func TestSubmit_HidesBeforeSendCompletes(t *testing.T) {
	block := make(chan struct{})
	svc := &blockingSetService{fakeService: fakeService{replies: []reply{{state: scenarioState()}}}, block: block}
	d, _ := newTestDialog(t, svc)
	await(t, d.Open(context.Background()))

	ch := d.Submit(context.Background())
	if d.Snapshot().Visible {
		t.Error("dialog still visible while send is in flight")
	}
	close(block)
	await(t, ch)
}

type blockingSetService struct {
	fakeService
	block chan struct{}
}

func (b *blockingSetService) SetDevices(ctx context.Context, sel contracts.Selection) error {
	<-b.block
	return b.fakeService.SetDevices(ctx, sel)
}

func TestEdits_RequireVisibleDialog(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)

	if err := d.SetChecked("hw:0", true); !errors.Is(err, ErrNotVisible) {
		t.Errorf("SetChecked() error = %v, want ErrNotVisible", err)
	}
	if res := await(t, d.Submit(context.Background())); !errors.Is(res.Err, ErrNotVisible) {
		t.Errorf("Submit() error = %v, want ErrNotVisible", res.Err)
	}

	await(t, d.Open(context.Background()))
	if err := d.Toggle("hw:7"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Toggle() error = %v, want ErrUnknownDevice", err)
	}
}

func TestClose_WaitsForInFlightCalls(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{replies: []reply{{state: scenarioState(), gate: gate}}}
	d, _ := newTestDialog(t, svc)

	ch := d.Open(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if res := await(t, ch); !res.Stale {
		t.Errorf("result = %+v, want stale after Close", res)
	}
}

func TestClose_RejectsLaterCalls(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)

	if res := await(t, d.Open(context.Background())); !res.OK() {
		t.Fatalf("Open() result = %+v", res)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if res := await(t, d.Open(context.Background())); !errors.Is(res.Err, ErrClosed) {
		t.Errorf("Open() after Close err = %v, want ErrClosed", res.Err)
	}
	if res := await(t, d.Submit(context.Background())); !errors.Is(res.Err, ErrClosed) {
		t.Errorf("Submit() after Close err = %v, want ErrClosed", res.Err)
	}
	svc.mu.Lock()
	calls, sent := svc.calls, len(svc.sent)
	svc.mu.Unlock()
	if calls != 1 || sent != 0 {
		t.Errorf("service saw %d loads and %d sends after Close, want 1 and 0", calls, sent)
	}
}

func TestClose_ConcurrentOpen(t *testing.T) {
	svc := &fakeService{replies: []reply{{state: scenarioState()}}}
	d, _ := newTestDialog(t, svc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := <-d.Open(context.Background())
			if res.Err != nil && !errors.Is(res.Err, ErrClosed) && !errors.Is(res.Err, context.Canceled) {
				t.Errorf("Open() err = %v", res.Err)
			}
		}()
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Logger: logger.NewWithCore(zapcore.NewNopCore())}); err == nil {
		t.Error("New() expected error without service")
	}
	if _, err := New(Config{Service: &fakeService{}}); err == nil {
		t.Error("New() expected error without logger")
	}
}
