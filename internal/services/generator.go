package services

import (
	"context"

	"veridia/pkg/session"
	"veridia/pkg/turn"
)

// Generator produces game turns from an external model. Implementations
// return turns already normalized to the closed schema; transport and
// parse errors propagate to the caller as generation failures.
type Generator interface {
	// OpeningTurn generates the first scene of a new game.
	OpeningTurn(ctx context.Context) (*turn.TurnState, error)

	// NextTurn generates the scene following a player action. History is
	// the last few system turns' scene text and combat log only.
	NextTurn(ctx context.Context, history []session.TurnContext, current *turn.TurnState, action string) (*turn.TurnState, error)
}

// ImageGenerator produces scene art. A failed or empty result never
// blocks turn progression; callers log and move on.
type ImageGenerator interface {
	// SceneImage returns an image reference (data URI) for a scene
	// description, or empty when no image could be produced.
	SceneImage(ctx context.Context, description string) (string, error)
}
