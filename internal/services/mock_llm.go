package services

import (
	"context"
	"sync"

	"veridia/pkg/session"
	"veridia/pkg/turn"
)

// MockGenerator is a call-tracking Generator for tests.
type MockGenerator struct {
	OpeningTurnFunc func(ctx context.Context) (*turn.TurnState, error)
	NextTurnFunc    func(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error)

	OpeningTurnCalls int
	NextTurnCalls    []NextTurnCall

	mu sync.Mutex
}

type NextTurnCall struct {
	History []session.TurnContext
	Action  string
}

// NewMockGenerator creates a mock generator that returns a minimal
// playable opening turn by default.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) OpeningTurn(ctx context.Context) (*turn.TurnState, error) {
	m.mu.Lock()
	m.OpeningTurnCalls++
	fn := m.OpeningTurnFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}

	ts := &turn.TurnState{
		SceneDescription: "You wake in a plaza of humming crystal.",
		Location: turn.Location{
			Name:        "Crystal Plaza",
			Description: "A shattered plaza",
			Environment: turn.EnvRuins,
		},
		PlayerHealth: turn.MaxPlayerHealth,
		VisualEffect: turn.EffectGlitch,
	}
	ts.Normalize()
	return ts, nil
}

func (m *MockGenerator) NextTurn(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
	m.mu.Lock()
	m.NextTurnCalls = append(m.NextTurnCalls, NextTurnCall{History: history, Action: action})
	fn := m.NextTurnFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, history, current, action)
	}

	ts := &turn.TurnState{
		SceneDescription: "Nothing much happens.",
		Location:         current.Location,
		Inventory:        current.Inventory,
		Lore:             current.Lore,
		PlayerHealth:     current.PlayerHealth,
	}
	ts.Normalize()
	return ts, nil
}

// SetError makes both generation methods fail with err.
func (m *MockGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpeningTurnFunc = func(ctx context.Context) (*turn.TurnState, error) {
		return nil, err
	}
	m.NextTurnFunc = func(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error) {
		return nil, err
	}
}

// MockImageGenerator is a call-tracking ImageGenerator for tests.
type MockImageGenerator struct {
	SceneImageFunc  func(ctx context.Context, description string) (string, error)
	SceneImageCalls []string

	mu sync.Mutex
}

func NewMockImageGenerator() *MockImageGenerator {
	return &MockImageGenerator{}
}

func (m *MockImageGenerator) SceneImage(ctx context.Context, description string) (string, error) {
	m.mu.Lock()
	m.SceneImageCalls = append(m.SceneImageCalls, description)
	fn := m.SceneImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, description)
	}
	return "data:image/png;base64,bW9jaw==", nil
}

// Calls returns a copy of the recorded scene descriptions.
func (m *MockImageGenerator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.SceneImageCalls))
	copy(out, m.SceneImageCalls)
	return out
}
