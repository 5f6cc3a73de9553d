package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"veridia/internal/services"
	"veridia/internal/storage"
	"veridia/pkg/session"
	"veridia/pkg/turn"
)

// Phase is the controller's position in the session lifecycle.
type Phase string

const (
	PhaseNoSession    Phase = "no_session"
	PhaseInitializing Phase = "initializing"
	PhaseIdle         Phase = "idle"
	PhaseAwaitingTurn Phase = "awaiting_turn"
	PhaseGameOver     Phase = "game_over"
)

var (
	// ErrBusy means a turn generation is already in flight. Player
	// actions during this window are ignored, not queued.
	ErrBusy = errors.New("turn generation in progress")

	// ErrNoSession means no game has been started or loaded.
	ErrNoSession = errors.New("no active session")

	// ErrGameOver means the current turn ended the game; only a new
	// game is accepted.
	ErrGameOver = errors.New("game is over")

	// ErrGeneration wraps generator transport/parse failures. The
	// session is left in a terminal but coherent state when this is
	// returned.
	ErrGeneration = errors.New("turn generation failed")
)

// imageTimeout bounds a fire-and-forget scene art request. Art requests
// may outlive the turn that spawned them; they must not outlive the
// process by much.
const imageTimeout = 90 * time.Second

// ImageUpdate announces that scene art arrived for a log entry, possibly
// turns after the entry was written.
type ImageUpdate struct {
	EntryID uuid.UUID
}

// Controller orchestrates the session lifecycle: it requests turns from
// the generator, merges them into the session, persists after every
// turn, and runs the async scene-art pipeline. All mutation happens
// under one mutex; generation itself runs unlocked so the single-flight
// guard is the phase, not the lock.
type Controller struct {
	gen    services.Generator
	images services.ImageGenerator
	store  storage.Store
	slot   string
	logger *slog.Logger

	mu    sync.Mutex
	sess  *session.Session
	phase Phase

	updates   chan ImageUpdate
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a controller. images may be nil when the provider has no
// image model; turns then simply carry no art.
func New(gen services.Generator, images services.ImageGenerator, store storage.Store, slot string, logger *slog.Logger) *Controller {
	return &Controller{
		gen:     gen,
		images:  images,
		store:   store,
		slot:    slot,
		logger:  logger,
		phase:   PhaseNoSession,
		updates: make(chan ImageUpdate, 16),
	}
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns a deep-copied snapshot of the session, or nil before
// the first game. Only the controller touches the live session; handing
// out the pointer would race the async art patches.
func (c *Controller) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.Snapshot()
}

// Updates delivers scene-art arrivals so the UI can re-render entries
// whose turn completed before the art did.
func (c *Controller) Updates() <-chan ImageUpdate {
	return c.updates
}

// NewGame discards any current session and save, requests the opening
// turn, and persists the seeded session. The opening location is always
// a new location, so scene art is requested for it. On generation
// failure the session holds a terminal severed turn and ErrGeneration is
// returned for the UI to surface.
func (c *Controller) NewGame(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseInitializing || c.phase == PhaseAwaitingTurn {
		c.mu.Unlock()
		return ErrBusy
	}
	c.phase = PhaseInitializing
	c.sess = session.New()
	c.mu.Unlock()

	if err := c.store.DeleteSession(ctx, c.slot); err != nil {
		c.logger.Warn("Failed to clear save slot", "slot", c.slot, "error", err)
	}

	ts, genErr := c.gen.OpeningTurn(ctx)
	if genErr != nil {
		c.logger.Error("Opening turn generation failed", "error", genErr)
		ts = turn.SeveredTurn(nil)
	}

	c.mu.Lock()
	entryID, isNew := c.sess.ApplyTurn(ts)
	c.phase = phaseFor(ts)
	c.persistLocked(ctx)
	c.mu.Unlock()

	if genErr != nil {
		return fmt.Errorf("%w: %s", ErrGeneration, genErr)
	}
	if isNew {
		c.requestSceneImage(entryID, ts.SceneDescription)
	}
	return nil
}

// Act submits a player action. While a generation is in flight, after
// game over, or before any game exists, the action is rejected with a
// sentinel error and nothing changes. Otherwise the action is logged
// first (the attempt survives a failed turn), the generator produces the
// next turn, the merger folds it in, and the session is persisted. A new
// location triggers a fire-and-forget scene art request keyed by the
// system entry's identity.
func (c *Controller) Act(ctx context.Context, action string) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseNoSession, PhaseInitializing:
		c.mu.Unlock()
		return ErrNoSession
	case PhaseAwaitingTurn:
		c.mu.Unlock()
		return ErrBusy
	case PhaseGameOver:
		c.mu.Unlock()
		return ErrGameOver
	}
	c.phase = PhaseAwaitingTurn
	c.sess.AppendPlayer(action)
	history := c.sess.History(3)
	current := c.sess.Current.Clone()
	c.mu.Unlock()

	ts, genErr := c.gen.NextTurn(ctx, history, current, action)
	if genErr != nil {
		c.logger.Error("Turn generation failed", "action", action, "error", genErr)
		ts = turn.SeveredTurn(&current.Location)
	}

	c.mu.Lock()
	entryID, isNew := c.sess.ApplyTurn(ts)
	c.phase = phaseFor(ts)
	c.persistLocked(ctx)
	c.mu.Unlock()

	if genErr != nil {
		return fmt.Errorf("%w: %s", ErrGeneration, genErr)
	}
	if isNew {
		c.requestSceneImage(entryID, ts.SceneDescription)
	}
	return nil
}

// Save persists the current session on demand.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNoSession
	}
	return c.persistLocked(ctx)
}

// Load replaces the current session with the saved one. storage
// sentinels pass through: ErrNotFound when no save exists, ErrCorrupt
// when the save cannot be read. Either way the controller keeps its
// previous state.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == PhaseInitializing || c.phase == PhaseAwaitingTurn {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	s, err := c.store.LoadSession(ctx, c.slot)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sess = s
	c.phase = PhaseIdle
	if s.GameOver() {
		c.phase = PhaseGameOver
	}
	c.mu.Unlock()
	return nil
}

// WaitForImages blocks until all in-flight scene art requests finish.
// Used by tests and shutdown.
func (c *Controller) WaitForImages() {
	c.wg.Wait()
}

// Close waits for in-flight art requests and then closes the updates
// channel so subscribers drain and stop instead of blocking forever.
// Safe to call more than once.
func (c *Controller) Close() {
	c.wg.Wait()
	c.closeOnce.Do(func() {
		close(c.updates)
	})
}

// requestSceneImage fires an async art request for a log entry. The
// result is applied by entry identity: if the entry is gone or the
// session was replaced by the time the art arrives, the patch no-ops.
func (c *Controller) requestSceneImage(entryID uuid.UUID, description string) {
	if c.images == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), imageTimeout)
		defer cancel()

		ref, err := c.images.SceneImage(ctx, description)
		if err != nil {
			c.logger.Warn("Scene image generation failed", "entry_id", entryID, "error", err)
			return
		}
		if ref == "" {
			return
		}

		c.mu.Lock()
		applied := c.sess != nil && c.sess.AttachImage(entryID, ref)
		if applied {
			c.persistLocked(ctx)
		}
		c.mu.Unlock()

		if applied {
			select {
			case c.updates <- ImageUpdate{EntryID: entryID}:
			default:
			}
		}
	}()
}

// persistLocked writes the session; save failures are reported but never
// fail the turn that triggered them.
func (c *Controller) persistLocked(ctx context.Context) error {
	if err := c.store.SaveSession(ctx, c.slot, c.sess); err != nil {
		c.logger.Error("Failed to persist session", "slot", c.slot, "error", err)
		return err
	}
	return nil
}

func phaseFor(ts *turn.TurnState) Phase {
	if ts.IsGameOver {
		return PhaseGameOver
	}
	return PhaseIdle
}
