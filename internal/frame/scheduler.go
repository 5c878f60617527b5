package frame

import (
	"context"

	"github.com/vkngwrapper/vklab/internal/gfxerr"
	"github.com/vkngwrapper/vklab/internal/logging"
	"golang.org/x/exp/slog"
)

// Backend performs the GPU side of each step for a slot. Transient chain
// conditions are reported through ChainStatus, never as errors.
type Backend interface {
	WaitForFence(slot int) error
	AcquireImage(slot int) (imageIndex int, status ChainStatus, err error)
	UpdateUniforms(slot int) error
	ResetFence(slot int) error
	Record(slot, imageIndex int) error
	Submit(slot int) error
	Present(slot, imageIndex int) (ChainStatus, error)

	// TeardownChain destroys targets, views and chain in that order;
	// BuildChain recreates them in reverse.
	TeardownChain()
	BuildChain() error

	WaitIdle() error
}

// Window is what the loop needs from the windowing system.
type Window interface {
	PollEvents()
	WaitEvents()
	ShouldClose() bool
	FramebufferSize() (width, height int)
}

type Scheduler struct {
	backend Backend
	window  Window
	logger  *slog.Logger

	slots   []SlotState
	current int
	resized bool

	frames   uint64
	rebuilds uint64
}

func NewScheduler(backend Backend, window Window, framesInFlight int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		backend: backend,
		window:  window,
		logger:  logging.OrDiscard(logger),
		slots:   make([]SlotState, framesInFlight),
	}
}

// NotifyResize flags the chain as stale; it is rebuilt after the next
// present.
func (s *Scheduler) NotifyResize(width, height int) {
	s.logger.Debug("resize notified", "width", width, "height", height)
	s.resized = true
}

func (s *Scheduler) Current() int             { return s.current }
func (s *Scheduler) State(slot int) SlotState { return s.slots[slot] }
func (s *Scheduler) Frames() uint64           { return s.frames }
func (s *Scheduler) Rebuilds() uint64         { return s.rebuilds }
func (s *Scheduler) ResizePending() bool      { return s.resized }
func (s *Scheduler) FramesInFlight() int      { return len(s.slots) }

// Tick renders one frame on the current slot. Out-of-date chains are rebuilt
// and the tick ends early without advancing the slot.
func (s *Scheduler) Tick() error {
	if width, height := s.window.FramebufferSize(); width == 0 || height == 0 {
		return s.Rebuild()
	}

	slot := s.current
	defer func() { s.slots[slot] = Idle }()

	s.slots[slot] = WaitingForFence
	if err := s.backend.WaitForFence(slot); err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrSubmit, "wait for slot %d fence", slot)
	}

	s.slots[slot] = Acquiring
	imageIndex, status, err := s.backend.AcquireImage(slot)
	if err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrAcquire, "acquire image for slot %d", slot)
	}
	if status == ChainOutOfDate {
		s.logger.Debug("acquire reported stale chain", "slot", slot, "status", status)
		return s.Rebuild()
	}
	stale := status == ChainSuboptimal

	s.slots[slot] = Recording
	if err := s.backend.UpdateUniforms(slot); err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrSubmit, "update uniforms for slot %d", slot)
	}
	if err := s.backend.ResetFence(slot); err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrSubmit, "reset slot %d fence", slot)
	}
	if err := s.backend.Record(slot, imageIndex); err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrSubmit, "record slot %d", slot)
	}

	if err := s.backend.Submit(slot); err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrSubmit, "submit slot %d", slot)
	}
	s.slots[slot] = Submitted

	s.slots[slot] = Presenting
	status, err = s.backend.Present(slot, imageIndex)
	if err != nil {
		return gfxerr.Wrapf(err, gfxerr.ErrPresent, "present image %d", imageIndex)
	}

	s.frames++
	s.current = (s.current + 1) % len(s.slots)

	if stale || status != ChainOK || s.resized {
		s.logger.Debug("present reported stale chain", "status", status, "resized", s.resized)
		return s.Rebuild()
	}

	return nil
}

// Rebuild recreates the chain for the window's current size and clears any
// pending resize. While the window is minimized it blocks on window events;
// if the window is closed meanwhile it returns without touching the chain.
func (s *Scheduler) Rebuild() error {
	width, height := s.window.FramebufferSize()
	for width == 0 || height == 0 {
		s.window.WaitEvents()
		if s.window.ShouldClose() {
			return nil
		}
		width, height = s.window.FramebufferSize()
	}

	// The new chain covers any resize reported up to here.
	s.resized = false

	if err := s.backend.WaitIdle(); err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrChainCreation, "wait idle before rebuild")
	}

	s.backend.TeardownChain()
	if err := s.backend.BuildChain(); err != nil {
		return err
	}

	s.rebuilds++
	s.logger.Info("chain rebuilt", "width", width, "height", height, "rebuilds", s.rebuilds)
	return nil
}

// Run ticks until the window asks to close or ctx is done, then waits for
// the device to finish outstanding work.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.window.PollEvents()
		if s.window.ShouldClose() || ctx.Err() != nil {
			break
		}

		if err := s.Tick(); err != nil {
			return err
		}
	}

	s.logger.Info("render loop finished", "frames", s.frames, "rebuilds", s.rebuilds)
	if err := s.backend.WaitIdle(); err != nil {
		return gfxerr.Wrap(err, gfxerr.ErrSubmit, "wait idle on shutdown")
	}
	return nil
}
