package frame

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/vklab/internal/gfxerr"
)

type fakeWindow struct {
	width, height int

	// restoreAfter is how many WaitEvents calls it takes to un-minimize.
	restoreAfter int
	waits        int
	onWait       func()

	closeAfterPolls int
	polls           int
	closed          bool
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{width: 800, height: 600, closeAfterPolls: -1}
}

func (w *fakeWindow) PollEvents() {
	w.polls++
	if w.closeAfterPolls >= 0 && w.polls > w.closeAfterPolls {
		w.closed = true
	}
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
	if w.waits >= w.restoreAfter {
		w.width, w.height = 1024, 768
	}
	if w.onWait != nil {
		w.onWait()
	}
}

func (w *fakeWindow) ShouldClose() bool              { return w.closed }
func (w *fakeWindow) FramebufferSize() (int, int)    { return w.width, w.height }
func (w *fakeWindow) minimize(waitsUntilRestore int) { w.width, w.height, w.restoreAfter, w.waits = 0, 0, waitsUntilRestore, 0 }
func (w *fakeWindow) closeAfter(polls int)           { w.closeAfterPolls = polls }

// fakeBackend records every call and simulates the GPU finishing a slot's
// work when its fence is waited on.
type fakeBackend struct {
	slots int

	calls []string

	pending        map[int]bool
	maxOutstanding int
	waitedSince    map[int]bool

	acquireStatus []ChainStatus
	presentStatus []ChainStatus
	acquireErr    error
	submitErr     error
	presentErr    error

	nextImage int
	images    int
	targets   int

	onBuild func()
}

func newFakeBackend(slots int) *fakeBackend {
	return &fakeBackend{
		slots:       slots,
		pending:     map[int]bool{},
		waitedSince: map[int]bool{},
		images:      3,
		targets:     3,
	}
}

func (b *fakeBackend) record(format string, args ...interface{}) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) WaitForFence(slot int) error {
	b.record("wait %d", slot)
	delete(b.pending, slot)
	b.waitedSince[slot] = true
	return nil
}

func (b *fakeBackend) AcquireImage(slot int) (int, ChainStatus, error) {
	b.record("acquire %d", slot)
	if b.acquireErr != nil {
		return 0, ChainOK, b.acquireErr
	}
	status := ChainOK
	if len(b.acquireStatus) > 0 {
		status, b.acquireStatus = b.acquireStatus[0], b.acquireStatus[1:]
	}
	image := b.nextImage
	b.nextImage = (b.nextImage + 1) % b.images
	return image, status, nil
}

func (b *fakeBackend) UpdateUniforms(slot int) error {
	b.record("update %d", slot)
	return nil
}

func (b *fakeBackend) ResetFence(slot int) error {
	b.record("reset %d", slot)
	if !b.waitedSince[slot] {
		return errors.Newf("slot %d fence reset without a wait", slot)
	}
	b.waitedSince[slot] = false
	return nil
}

func (b *fakeBackend) Record(slot, imageIndex int) error {
	b.record("record %d %d", slot, imageIndex)
	return nil
}

func (b *fakeBackend) Submit(slot int) error {
	b.record("submit %d", slot)
	if b.submitErr != nil {
		return b.submitErr
	}
	b.pending[slot] = true
	if len(b.pending) > b.maxOutstanding {
		b.maxOutstanding = len(b.pending)
	}
	return nil
}

func (b *fakeBackend) Present(slot, imageIndex int) (ChainStatus, error) {
	b.record("present %d %d", slot, imageIndex)
	if b.presentErr != nil {
		return ChainOK, b.presentErr
	}
	status := ChainOK
	if len(b.presentStatus) > 0 {
		status, b.presentStatus = b.presentStatus[0], b.presentStatus[1:]
	}
	return status, nil
}

func (b *fakeBackend) TeardownChain() {
	b.record("teardown")
	b.images, b.targets = 0, 0
}

func (b *fakeBackend) BuildChain() error {
	b.record("build")
	if b.onBuild != nil {
		b.onBuild()
	}
	b.images = 3
	b.targets = b.images
	b.nextImage = 0
	return nil
}

func (b *fakeBackend) WaitIdle() error {
	b.record("idle")
	b.pending = map[int]bool{}
	return nil
}

func (b *fakeBackend) count(call string) int {
	n := 0
	for _, c := range b.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (b *fakeBackend) indexOf(call string) int {
	for i, c := range b.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func newTestScheduler(slots int) (*Scheduler, *fakeBackend, *fakeWindow) {
	backend := newFakeBackend(slots)
	window := newFakeWindow()
	return NewScheduler(backend, window, slots, nil), backend, window
}

func TestTickFollowsProtocolOrder(t *testing.T) {
	s, backend, _ := newTestScheduler(2)

	require.NoError(t, s.Tick())
	assert.Equal(t, []string{
		"wait 0",
		"acquire 0",
		"update 0",
		"reset 0",
		"record 0 0",
		"submit 0",
		"present 0 0",
	}, backend.calls)
	assert.Equal(t, 1, s.Current())
	assert.Equal(t, Idle, s.State(0))
	assert.Equal(t, uint64(1), s.Frames())
}

func TestSlotsAlternate(t *testing.T) {
	s, backend, _ := newTestScheduler(2)

	var waited []string
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Tick())
	}
	for _, c := range backend.calls {
		if c[:4] == "wait" {
			waited = append(waited, c)
		}
	}
	assert.Equal(t, []string{"wait 0", "wait 1", "wait 0", "wait 1", "wait 0", "wait 1"}, waited)
}

func TestAtMostNFramesInFlight(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			s, backend, _ := newTestScheduler(n)
			for i := 0; i < 20; i++ {
				require.NoError(t, s.Tick())
			}
			assert.LessOrEqual(t, backend.maxOutstanding, n)
			assert.Equal(t, n, backend.maxOutstanding)
		})
	}
}

func TestAcquireOutOfDateRebuildsWithoutSubmitting(t *testing.T) {
	s, backend, _ := newTestScheduler(2)
	backend.acquireStatus = []ChainStatus{ChainOutOfDate}

	require.NoError(t, s.Tick())
	assert.Equal(t, []string{"wait 0", "acquire 0", "idle", "teardown", "build"}, backend.calls)
	assert.Equal(t, 0, s.Current(), "slot is not consumed")
	assert.Equal(t, uint64(1), s.Rebuilds())

	// The fence was never reset, so the retry does not deadlock on it.
	require.NoError(t, s.Tick())
	assert.Equal(t, 1, backend.count("reset 0"))
	assert.Equal(t, 1, s.Current())
}

func TestAcquireSuboptimalRebuildsAfterPresent(t *testing.T) {
	s, backend, _ := newTestScheduler(2)
	backend.acquireStatus = []ChainStatus{ChainSuboptimal}

	require.NoError(t, s.Tick())
	present := backend.indexOf("present 0 0")
	require.NotEqual(t, -1, present)
	assert.Greater(t, backend.indexOf("build"), present)
	assert.Equal(t, 1, s.Current())
}

func TestPresentOutOfDateRebuildsBeforeNextAcquire(t *testing.T) {
	for _, status := range []ChainStatus{ChainOutOfDate, ChainSuboptimal} {
		t.Run(status.String(), func(t *testing.T) {
			s, backend, _ := newTestScheduler(2)
			backend.presentStatus = []ChainStatus{status}

			require.NoError(t, s.Tick())
			require.NoError(t, s.Tick())

			build := backend.indexOf("build")
			require.NotEqual(t, -1, build)
			assert.Less(t, backend.indexOf("present 0 0"), backend.indexOf("idle"))
			assert.Less(t, build, backend.indexOf("acquire 1"))
			assert.Equal(t, backend.images, backend.targets)
		})
	}
}

func TestResizeFlagClearedBeforeRebuild(t *testing.T) {
	s, backend, _ := newTestScheduler(2)
	var pendingDuringBuild []bool
	backend.onBuild = func() { pendingDuringBuild = append(pendingDuringBuild, s.ResizePending()) }

	s.NotifyResize(1024, 768)
	require.True(t, s.ResizePending())

	require.NoError(t, s.Tick())
	assert.Equal(t, []bool{false}, pendingDuringBuild)
	assert.False(t, s.ResizePending())

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, backend.count("build"), "no redundant rebuild")
}

func TestResizeThenAcquireOutOfDateRebuildsOnce(t *testing.T) {
	s, backend, _ := newTestScheduler(2)
	backend.acquireStatus = []ChainStatus{ChainOutOfDate}

	s.NotifyResize(1024, 768)
	require.NoError(t, s.Tick())
	assert.False(t, s.ResizePending())

	require.NoError(t, s.Tick())
	assert.Equal(t, 1, backend.count("build"))
	assert.Equal(t, uint64(1), s.Rebuilds())
	assert.Equal(t, uint64(1), s.Frames())
}

func TestResizeDuringMinimizedWaitRebuildsOnce(t *testing.T) {
	s, backend, window := newTestScheduler(2)
	window.minimize(2)
	window.onWait = func() { s.NotifyResize(window.width, window.height) }

	require.NoError(t, s.Tick())
	assert.False(t, s.ResizePending())

	require.NoError(t, s.Tick())
	require.NoError(t, s.Tick())
	assert.Equal(t, 1, backend.count("build"))
	assert.Equal(t, uint64(2), s.Frames())
}

func TestMinimizedWindowBlocksRebuild(t *testing.T) {
	s, backend, window := newTestScheduler(2)
	window.minimize(3)

	require.NoError(t, s.Tick())
	assert.Equal(t, 3, window.waits)
	assert.Equal(t, []string{"idle", "teardown", "build"}, backend.calls,
		"no GPU work until the size is non-zero")
}

func TestMinimizedWindowClosed(t *testing.T) {
	s, backend, window := newTestScheduler(2)
	window.minimize(100)
	window.closed = true

	require.NoError(t, s.Rebuild())
	assert.Empty(t, backend.calls)
	assert.Equal(t, uint64(0), s.Rebuilds())
}

func TestFatalFailures(t *testing.T) {
	boom := errors.New("device lost")

	tests := []struct {
		name  string
		setup func(*fakeBackend)
		kind  error
	}{
		{"acquire", func(b *fakeBackend) { b.acquireErr = boom }, gfxerr.ErrAcquire},
		{"submit", func(b *fakeBackend) { b.submitErr = boom }, gfxerr.ErrSubmit},
		{"present", func(b *fakeBackend) { b.presentErr = boom }, gfxerr.ErrPresent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, backend, _ := newTestScheduler(2)
			tt.setup(backend)

			err := s.Tick()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind))
			assert.True(t, errors.Is(err, boom))
			assert.Zero(t, backend.count("build"), "failures are not retried")
			assert.Equal(t, Idle, s.State(0))
		})
	}
}

func TestRunStopsOnClose(t *testing.T) {
	s, backend, window := newTestScheduler(2)
	window.closeAfter(3)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, uint64(3), s.Frames())
	assert.Equal(t, "idle", backend.calls[len(backend.calls)-1])
}

func TestRunStopsOnCancel(t *testing.T) {
	s, backend, _ := newTestScheduler(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	assert.Zero(t, s.Frames())
	assert.Equal(t, []string{"idle"}, backend.calls)
}

func TestRunPropagatesFatalError(t *testing.T) {
	s, backend, _ := newTestScheduler(2)
	backend.submitErr = errors.New("lost")

	err := s.Run(context.Background())
	assert.True(t, errors.Is(err, gfxerr.ErrSubmit))
}

func TestSlotStateString(t *testing.T) {
	assert.Equal(t, "WaitingForFence", WaitingForFence.String())
	assert.Equal(t, "Presenting", Presenting.String())
	assert.Equal(t, "SlotState(42)", SlotState(42).String())
	assert.Equal(t, "out of date", ChainOutOfDate.String())
}
