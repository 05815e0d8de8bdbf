// Package session runs a live face tracking session: it pulls camera frames,
// feeds them to the recognition tracker, resolves names and liveness for every
// visible identity, works out which face is under the pointer and publishes
// one immutable Frame of render instructions per processed camera frame.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrCodeEU/facetrack/pkg/camera"
	"github.com/MrCodeEU/facetrack/pkg/display"
	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
	"github.com/google/uuid"
)

// Store is the identity store as used by a session.
type Store interface {
	Tracker() recognition.Tracker
	Name(id int64) string
	SetName(id int64, name string) error
	Purge(id int64) error
	Save(path string) error
	Close() error
}

// Options configures a session.
type Options struct {
	// MemoryPath is where the identity store is saved on Close.
	MemoryPath string
	// TrackerParameters are applied to the tracker once at start.
	TrackerParameters string
	// DisplaySize is the initial display surface size.
	DisplaySize image.Point
	// PollInterval is the pause after a tick that produced no frame.
	PollInterval time.Duration
}

type pointerState struct {
	p     image.Point
	valid bool
}

// Session is a live tracking session. Pointer, display size and selection
// may be updated from any goroutine; ticks are serialized.
type Session struct {
	id      string
	engine  recognition.Engine
	camera  camera.Device
	store   Store
	tracker recognition.Tracker
	opts    Options
	log     *logging.Entry

	// tickMu serializes ticks, and with them every tracker feed.
	tickMu sync.Mutex
	seq    uint64

	state    atomic.Int32
	pointer  atomic.Pointer[pointerState]
	display  atomic.Pointer[image.Point]
	lastSize atomic.Pointer[image.Point]
	selected atomic.Int64
	frames   *Mailbox

	mu        sync.Mutex
	closing   bool
	running   bool
	cancelRun context.CancelFunc
	runWG     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New creates a session over an activated engine, an open camera and a loaded
// identity store. The session takes ownership of all three.
func New(engine recognition.Engine, cam camera.Device, store Store, opts Options) (*Session, error) {
	if engine == nil || !engine.Activated() {
		return nil, NewError(ErrCodeActivation, recognition.ErrNotActivated)
	}
	if cam == nil {
		return nil, NewError(ErrCodeNoCamera, camera.ErrNoCamera)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Millisecond
	}

	s := &Session{
		id:      uuid.NewString(),
		engine:  engine,
		camera:  cam,
		store:   store,
		tracker: store.Tracker(),
		opts:    opts,
		frames:  NewMailbox(),
	}
	s.log = logging.Component("session").WithField("session", s.id)
	s.selected.Store(NoSelection)
	s.state.Store(int32(StateIdle))
	if opts.DisplaySize.X > 0 && opts.DisplaySize.Y > 0 {
		size := opts.DisplaySize
		s.display.Store(&size)
	}

	if opts.TrackerParameters != "" {
		if pos, err := s.tracker.SetParameters(opts.TrackerParameters); err != nil {
			s.log.WithError(err).WithField("position", pos).Warn("Tracker rejected parameters")
		}
	}

	s.log.WithFields(logging.Fields{
		"camera":     cam.Info().String(),
		"identities": len(s.tracker.IDs()),
	}).Info("Session started")

	return s, nil
}

// Store returns the identity store, for naming identities while the session
// runs.
func (s *Session) Store() Store {
	return s.store
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current loop state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Frames returns the mailbox Run publishes to.
func (s *Session) Frames() *Mailbox {
	return s.frames
}

// SetPointer records the pointer position in display coordinates.
func (s *Session) SetPointer(p image.Point) {
	s.pointer.Store(&pointerState{p: p, valid: true})
}

// ClearPointer marks the pointer as having left the display.
func (s *Session) ClearPointer() {
	s.pointer.Store(&pointerState{})
}

// SetDisplaySize records the display surface size.
func (s *Session) SetDisplaySize(size image.Point) {
	s.display.Store(&size)
}

// Selected returns the id under the pointer as of the last tick.
func (s *Session) Selected() (int64, bool) {
	id := s.selected.Load()
	return id, id != NoSelection
}

// TakeSelection returns the current selection and resets it to none.
func (s *Session) TakeSelection() (int64, bool) {
	id := s.selected.Swap(NoSelection)
	return id, id != NoSelection
}

// ResolvePointer maps the current pointer into the coordinates of the last
// captured frame. ok is false when the pointer is unset or outside the image.
func (s *Session) ResolvePointer() (p image.Point, ok bool, err error) {
	size := s.lastSize.Load()
	if size == nil {
		return image.Point{}, false, ErrNoFrameYet
	}
	p, ok = s.resolve(*size, s.display.Load())
	return p, ok, nil
}

func (s *Session) resolve(imgSize image.Point, disp *image.Point) (image.Point, bool) {
	ptr := s.pointer.Load()
	if ptr == nil || !ptr.valid || disp == nil {
		return image.Point{}, false
	}
	return display.Resolve(ptr.p, imgSize, *disp)
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Tick runs one capture, track and render cycle. It returns nil, nil when the
// camera had no frame or the engine could not process it; those ticks leave
// the loop idle. Faces whose details cannot be fetched are left out of the
// frame.
func (s *Session) Tick(ctx context.Context) (*Frame, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.isClosing() {
		return nil, ErrNotStarted
	}

	s.state.Store(int32(StateCapturing))

	camFrame, err := s.camera.Grab(ctx)
	if err != nil {
		s.state.Store(int32(StateIdle))
		switch {
		case errors.Is(err, camera.ErrNoFrame):
			return nil, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, camera.ErrCameraNotOpen):
			return nil, err
		default:
			s.log.WithError(err).Warn("Frame grab failed")
			return nil, nil
		}
	}

	s.state.Store(int32(StateTracking))
	ids, err := s.tracker.FeedFrame(camFrame.Data)
	if err != nil {
		s.log.WithError(err).Warn("Tracker rejected frame")
		s.state.Store(int32(StateIdle))
		return nil, nil
	}

	size := image.Pt(camFrame.Width, camFrame.Height)
	s.lastSize.Store(&size)

	faces := make([]TrackedFace, 0, len(ids))
	for _, id := range ids {
		box, err := s.tracker.Face(id)
		if err != nil {
			s.log.WithError(err).WithField("id", id).Debug("Skipping face")
			continue
		}
		score, livenessErr := readLiveness(s.tracker, id)
		faces = append(faces, TrackedFace{
			ID:            id,
			Box:           box,
			Name:          s.store.Name(id),
			LivenessScore: score,
			LivenessError: livenessErr,
		})
	}

	s.state.Store(int32(StateRendering))
	s.seq++
	frame := &Frame{
		Seq:       s.seq,
		Image:     camFrame.Data,
		Width:     camFrame.Width,
		Height:    camFrame.Height,
		Timestamp: camFrame.Timestamp,
		Faces:     faces,
		Overlays:  make([]Overlay, 0, len(faces)),
		Selected:  NoSelection,
	}
	disp := s.display.Load()
	if disp != nil {
		frame.Display = *disp
	}
	frame.Pointer, frame.PointerInImage = s.resolve(size, disp)

	for _, f := range faces {
		hit := frame.PointerInImage && display.Hit(f.Box, frame.Pointer)
		if hit && frame.Selected == NoSelection {
			frame.Selected = f.ID
		}
		frame.Overlays = append(frame.Overlays, BuildOverlay(f, hit))
	}
	s.selected.Store(frame.Selected)

	s.state.Store(int32(StateIdle))
	return frame, nil
}

// Run ticks until ctx is done or the session is closed, publishing every
// processed frame to Frames. Errors that end the loop are returned; a close
// or a cancelled ctx returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("session %s is already running", s.id)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancelRun = cancel
	s.runWG.Add(1)
	s.mu.Unlock()

	defer s.runWG.Done()
	defer cancel()

	s.log.Debug("Frame loop started")
	defer s.log.Debug("Frame loop stopped")

	for {
		if ctx.Err() != nil || s.isClosing() {
			return nil
		}

		frame, err := s.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrNotStarted) {
				return nil
			}
			return err
		}

		if frame == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.opts.PollInterval):
			}
			continue
		}

		s.frames.Publish(frame)
	}
}

// Close stops the loop, saves the identity store, then releases the camera
// and the engine. Only the first call does any work; later calls return the
// first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		cancel := s.cancelRun
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.runWG.Wait()

		// Wait for a tick in flight outside Run.
		s.tickMu.Lock()
		defer s.tickMu.Unlock()

		var errs []error
		if s.opts.MemoryPath != "" {
			if err := s.store.Save(s.opts.MemoryPath); err != nil {
				s.log.WithError(err).Error("Failed to save identity store")
				errs = append(errs, err)
			}
		}
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.camera.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close camera")
			errs = append(errs, err)
		}
		if err := s.engine.Close(); err != nil {
			errs = append(errs, err)
		}

		s.frames.Close()
		s.state.Store(int32(StateClosed))

		consecutive, total := s.frames.Drops()
		s.log.WithFields(logging.Fields{
			"frames":         s.seq,
			"dropped_frames": total,
			"drop_streak":    consecutive,
		}).Info("Session closed")

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
