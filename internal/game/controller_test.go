package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridia/internal/services"
	"veridia/internal/storage"
	"veridia/pkg/session"
	"veridia/pkg/turn"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func turnAt(name string, x, y int) *turn.TurnState {
	ts := &turn.TurnState{
		SceneDescription: "Scene at " + name,
		Location: turn.Location{
			Name:        name,
			X:           x,
			Y:           y,
			Description: "desc",
			Environment: turn.EnvRuins,
		},
		PlayerHealth: turn.MaxPlayerHealth,
	}
	ts.Normalize()
	return ts
}

type fixture struct {
	ctrl   *Controller
	gen    *services.MockGenerator
	images *services.MockImageGenerator
	store  *storage.MockStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gen := services.NewMockGenerator()
	images := services.NewMockImageGenerator()
	store := storage.NewMockStore()
	return &fixture{
		ctrl:   New(gen, images, store, "adventure", testLogger()),
		gen:    gen,
		images: images,
		store:  store,
	}
}

func TestNewGame(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.Equal(t, PhaseNoSession, f.ctrl.Phase())
	require.NoError(t, f.ctrl.NewGame(ctx))
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())

	sess := f.ctrl.Session()
	require.NotNil(t, sess)
	require.NotNil(t, sess.Current)
	assert.Equal(t, 0, sess.Current.Location.X)
	assert.Equal(t, 0, sess.Current.Location.Y)
	assert.Equal(t, turn.MaxPlayerHealth, sess.Current.PlayerHealth)
	assert.Len(t, sess.Log, 1)
	assert.Contains(t, sess.Map, session.CoordKey(0, 0))

	// The opening turn was persisted.
	saved, err := f.store.LoadSession(ctx, "adventure")
	require.NoError(t, err)
	assert.Len(t, saved.Log, 1)

	// The opening location gets scene art.
	f.ctrl.WaitForImages()
	assert.Len(t, f.images.Calls(), 1)
}

func TestNewGameDiscardsOldSave(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.NewGame(ctx))
	require.NoError(t, f.ctrl.Act(ctx, "look around"))
	require.NoError(t, f.ctrl.NewGame(ctx))

	sess := f.ctrl.Session()
	assert.Len(t, sess.Log, 1)
	assert.Equal(t, 2, f.gen.OpeningTurnCalls)
}

func TestActMovesAndRecords(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))

	f.gen.NextTurnFunc = func(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
		return turnAt("Northern Ruin", 0, 1), nil
	}
	require.NoError(t, f.ctrl.Act(ctx, "go north"))

	sess := f.ctrl.Session()
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.Equal(t, 1, sess.Current.Location.Y)
	assert.Len(t, sess.Map, 2)

	// Log order: opening scene, player action, new scene.
	require.Len(t, sess.Log, 3)
	assert.Equal(t, session.EntrySystem, sess.Log[0].Kind)
	assert.Equal(t, session.EntryPlayer, sess.Log[1].Kind)
	assert.Equal(t, "go north", sess.Log[1].Text)
	assert.Equal(t, session.EntrySystem, sess.Log[2].Kind)

	// The turn was persisted and a new location requested art.
	saved, err := f.store.LoadSession(ctx, "adventure")
	require.NoError(t, err)
	assert.Len(t, saved.Log, 3)

	f.ctrl.WaitForImages()
	assert.Len(t, f.images.Calls(), 2)
}

func TestActRevisitSkipsArt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))
	f.ctrl.WaitForImages()

	// Default mock echoes the current location; no move, no art request.
	require.NoError(t, f.ctrl.Act(ctx, "look around"))
	f.ctrl.WaitForImages()
	assert.Len(t, f.images.Calls(), 1)
}

func TestActRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.Act(ctx, "look"), ErrNoSession)

	require.NoError(t, f.ctrl.NewGame(ctx))

	f.gen.NextTurnFunc = func(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
		ts := turnAt("The End", 0, 0)
		ts.IsGameOver = true
		ts.GameOverMessage = "You have fallen."
		ts.Normalize()
		return ts, nil
	}
	require.NoError(t, f.ctrl.Act(ctx, "fight the sentinel"))
	assert.Equal(t, PhaseGameOver, f.ctrl.Phase())

	assert.ErrorIs(t, f.ctrl.Act(ctx, "keep fighting"), ErrGameOver)

	// A new game leaves game over behind.
	require.NoError(t, f.ctrl.NewGame(ctx))
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
}

func TestActSingleFlight(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))

	release := make(chan struct{})
	started := make(chan struct{})
	f.gen.NextTurnFunc = func(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
		close(started)
		<-release
		return turnAt("Somewhere", 1, 0), nil
	}

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Act(ctx, "go east") }()
	<-started

	assert.Equal(t, PhaseAwaitingTurn, f.ctrl.Phase())
	assert.ErrorIs(t, f.ctrl.Act(ctx, "go west"), ErrBusy)
	assert.ErrorIs(t, f.ctrl.NewGame(ctx), ErrBusy)
	assert.ErrorIs(t, f.ctrl.Load(ctx), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())

	// The rejected action left no trace in the log.
	sess := f.ctrl.Session()
	require.Len(t, sess.Log, 3)
	assert.Equal(t, "go east", sess.Log[1].Text)
}

func TestActGenerationFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))
	origin := f.ctrl.Session().Current.Location

	f.gen.SetError(errors.New("api timeout"))
	err := f.ctrl.Act(ctx, "go north")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, PhaseGameOver, f.ctrl.Phase())

	sess := f.ctrl.Session()
	// The attempted action stays in the log, followed by the severed turn.
	require.Len(t, sess.Log, 3)
	assert.Equal(t, "go north", sess.Log[1].Text)
	assert.True(t, sess.Current.IsGameOver)
	assert.Equal(t, origin.X, sess.Current.Location.X)
	assert.Equal(t, origin.Y, sess.Current.Location.Y)

	// The terminal state was persisted so a reload lands in the same place.
	saved, err := f.store.LoadSession(ctx, "adventure")
	require.NoError(t, err)
	assert.True(t, saved.Current.IsGameOver)
}

func TestNewGameGenerationFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.gen.SetError(errors.New("api down"))
	err := f.ctrl.NewGame(ctx)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, PhaseGameOver, f.ctrl.Phase())

	sess := f.ctrl.Session()
	require.NotNil(t, sess.Current)
	assert.True(t, sess.Current.IsGameOver)

	// No art is requested for a severed opening.
	f.ctrl.WaitForImages()
	assert.Empty(t, f.images.Calls())
}

func TestActHistoryWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.ctrl.Act(ctx, "wait"))
	}

	last := f.gen.NextTurnCalls[len(f.gen.NextTurnCalls)-1]
	assert.Len(t, last.History, 3)
	assert.Equal(t, "wait", last.Action)
}

func TestSceneImageAttached(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))
	f.ctrl.WaitForImages()

	sess := f.ctrl.Session()
	assert.NotEmpty(t, sess.Current.SceneImage)
	assert.NotEmpty(t, sess.Log[0].State.SceneImage)

	// The arrival was announced.
	select {
	case update := <-f.ctrl.Updates():
		assert.Equal(t, sess.Log[0].ID, update.EntryID)
	case <-time.After(time.Second):
		t.Fatal("no image update announced")
	}

	// And the patched session was persisted.
	saved, err := f.store.LoadSession(ctx, "adventure")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Current.SceneImage)
}

func TestStaleSceneImageDropped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	release := make(chan struct{})
	f.images.SceneImageFunc = func(ctx context.Context, description string) (string, error) {
		<-release
		return "data:image/png;base64,bGF0ZQ==", nil
	}

	require.NoError(t, f.ctrl.NewGame(ctx))
	// The session is replaced while the opening's art is still in flight.
	require.NoError(t, f.ctrl.NewGame(ctx))
	close(release)
	f.ctrl.WaitForImages()

	// One of the two requests matches the live session; the stale one must
	// not have landed anywhere else.
	sess := f.ctrl.Session()
	require.Len(t, sess.Log, 1)
}

// A render loop polling Session() while art resolves must never observe
// the live session being written. Run with -race.
func TestConcurrentRendersDuringArt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	release := make(chan struct{})
	f.images.SceneImageFunc = func(ctx context.Context, description string) (string, error) {
		<-release
		return "data:image/png;base64,bGF0ZQ==", nil
	}
	require.NoError(t, f.ctrl.NewGame(ctx))

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			sess := f.ctrl.Session()
			if sess == nil || sess.Current == nil {
				continue
			}
			_ = sess.Current.SceneImage
			for _, entry := range sess.Log {
				if entry.State != nil {
					_ = entry.State.SceneImage
				}
			}
		}
	}()

	close(release)
	f.ctrl.WaitForImages()
	close(stop)
	<-done

	assert.NotEmpty(t, f.ctrl.Session().Current.SceneImage)
}

func TestSessionReturnsIsolatedSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))

	snap := f.ctrl.Session()
	snap.Current.SceneDescription = "tampered"
	snap.Log[0].Text = "tampered"
	snap.Map[session.CoordKey(9, 9)] = turn.Location{Name: "Nowhere"}

	fresh := f.ctrl.Session()
	assert.NotEqual(t, "tampered", fresh.Current.SceneDescription)
	assert.NotEqual(t, "tampered", fresh.Log[0].Text)
	assert.NotContains(t, fresh.Map, session.CoordKey(9, 9))
}

func TestCloseEndsUpdates(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ctrl.NewGame(context.Background()))
	f.ctrl.Close()
	f.ctrl.Close()

	// Drain the art announcement, then observe the closed channel.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-f.ctrl.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("updates channel still open after Close")
		}
	}
}

func TestImageFailureIsSilent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.images.SceneImageFunc = func(ctx context.Context, description string) (string, error) {
		return "", errors.New("image api down")
	}
	require.NoError(t, f.ctrl.NewGame(ctx))
	f.ctrl.WaitForImages()

	sess := f.ctrl.Session()
	assert.Empty(t, sess.Current.SceneImage)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())

	select {
	case <-f.ctrl.Updates():
		t.Fatal("failed art must not be announced")
	default:
	}
}

func TestNilImageGenerator(t *testing.T) {
	gen := services.NewMockGenerator()
	store := storage.NewMockStore()
	ctrl := New(gen, nil, store, "adventure", testLogger())

	require.NoError(t, ctrl.NewGame(context.Background()))
	ctrl.WaitForImages()
	assert.Empty(t, ctrl.Session().Current.SceneImage)
}

func TestSaveAndLoad(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.Save(ctx), ErrNoSession)
	assert.ErrorIs(t, f.ctrl.Load(ctx), storage.ErrNotFound)

	require.NoError(t, f.ctrl.NewGame(ctx))
	require.NoError(t, f.ctrl.Act(ctx, "look around"))
	require.NoError(t, f.ctrl.Save(ctx))

	// A second controller against the same store resumes the game.
	ctrl2 := New(f.gen, f.images, f.store, "adventure", testLogger())
	require.NoError(t, ctrl2.Load(ctx))
	assert.Equal(t, PhaseIdle, ctrl2.Phase())
	assert.Len(t, ctrl2.Session().Log, 3)
}

func TestLoadCorrupt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))

	f.store.Corrupt("adventure")
	err := f.ctrl.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrCorrupt)

	// The in-memory session is untouched.
	assert.NotNil(t, f.ctrl.Session())
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
}

func TestLoadGameOverSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.NewGame(ctx))
	f.gen.NextTurnFunc = func(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
		ts := turnAt("The End", 0, 0)
		ts.IsGameOver = true
		ts.Normalize()
		return ts, nil
	}
	require.NoError(t, f.ctrl.Act(ctx, "jump"))

	ctrl2 := New(f.gen, f.images, f.store, "adventure", testLogger())
	require.NoError(t, ctrl2.Load(ctx))
	assert.Equal(t, PhaseGameOver, ctrl2.Phase())
}

func TestSaveFailureDoesNotFailTurn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.NewGame(ctx))

	f.store.SaveErr = errors.New("disk full")
	require.NoError(t, f.ctrl.Act(ctx, "look around"))
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.Len(t, f.ctrl.Session().Log, 3)
}
