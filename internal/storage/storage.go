package storage

import (
	"context"
	"errors"

	"veridia/pkg/session"
)

// ErrNotFound means no saved session exists in the slot. Documents
// written under a prior schema version also surface as ErrNotFound: the
// store keys are versioned, so an incompatible save is simply invisible
// rather than a parse hazard.
var ErrNotFound = errors.New("session not found")

// ErrCorrupt means a same-version document exists but could not be
// decoded. Callers report it and continue with no session loaded.
var ErrCorrupt = errors.New("session data corrupt")

// Store persists sessions as whole-document replacements, last writer
// wins. There is no partial merge.
type Store interface {
	SaveSession(ctx context.Context, slot string, s *session.Session) error
	LoadSession(ctx context.Context, slot string) (*session.Session, error)
	DeleteSession(ctx context.Context, slot string) error

	Ping(ctx context.Context) error
	Close() error
}
