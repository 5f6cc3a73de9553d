package session

import (
	"fmt"

	"github.com/google/uuid"

	"veridia/pkg/turn"
)

// SchemaVersion tags the save document. Bump it whenever the session
// shape changes incompatibly; stores treat documents written under a
// different version as absent rather than trying to parse them.
const SchemaVersion = 3

// EntryKind distinguishes player input from generated scenes in the log.
type EntryKind string

const (
	EntryPlayer EntryKind = "player"
	EntrySystem EntryKind = "system"
)

// StoryLogEntry is one line of the story log. Player entries carry only
// the action text; system entries carry the full turn that produced them.
// The ID is the handle used to patch scene art in after the fact.
type StoryLogEntry struct {
	ID    uuid.UUID       `json:"id"`
	Kind  EntryKind       `json:"kind"`
	Text  string          `json:"text"`
	State *turn.TurnState `json:"state,omitempty"`
}

// TurnContext is the slice of a past turn handed back to the generator:
// scene text plus combat log, nothing else.
type TurnContext struct {
	SceneText string
	CombatLog string
}

// Session is the full persisted game: the current turn, the ordered story
// log, and the map memory of every visited coordinate.
type Session struct {
	Version int                      `json:"version"`
	Current *turn.TurnState          `json:"gameState"`
	Log     []StoryLogEntry          `json:"storyLog"`
	Map     map[string]turn.Location `json:"visitedLocations"`
}

// New returns an empty session ready for an opening turn.
func New() *Session {
	return &Session{
		Version: SchemaVersion,
		Log:     make([]StoryLogEntry, 0),
		Map:     make(map[string]turn.Location),
	}
}

// CoordKey builds the map-memory key for a coordinate.
func CoordKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

// AppendPlayer records the player's action in the log and returns the
// entry ID. The entry is appended before the generator is called, so a
// failed turn still shows the attempt.
func (s *Session) AppendPlayer(action string) uuid.UUID {
	entry := StoryLogEntry{
		ID:   uuid.New(),
		Kind: EntryPlayer,
		Text: action,
	}
	s.Log = append(s.Log, entry)
	return entry.ID
}

// ApplyTurn merges a freshly generated turn into the session: carries
// scene art forward on a non-moving turn, records the coordinate in map
// memory (first description wins; revisits never overwrite), sets the
// current turn, and appends the system log entry. It reports the new
// entry's ID and whether the coordinate had not been seen before.
func (s *Session) ApplyTurn(ts *turn.TurnState) (uuid.UUID, bool) {
	if ts.SceneImage == "" && s.Current != nil &&
		s.Current.Location.X == ts.Location.X &&
		s.Current.Location.Y == ts.Location.Y {
		ts.SceneImage = s.Current.SceneImage
	}

	key := CoordKey(ts.Location.X, ts.Location.Y)
	_, seen := s.Map[key]
	if !seen {
		if s.Map == nil {
			s.Map = make(map[string]turn.Location)
		}
		s.Map[key] = ts.Location
	}

	s.Current = ts
	entry := StoryLogEntry{
		ID:    uuid.New(),
		Kind:  EntrySystem,
		Text:  ts.SceneDescription,
		State: ts,
	}
	s.Log = append(s.Log, entry)
	return entry.ID, !seen
}

// AttachImage patches scene art onto the log entry with the given ID.
// It reports whether the patch landed: a missing or non-system entry is a
// no-op, so a late image for a superseded turn can never be misapplied.
// When the patched entry is the latest system entry, the current turn is
// updated as well.
func (s *Session) AttachImage(entryID uuid.UUID, ref string) bool {
	if ref == "" {
		return false
	}
	for i := range s.Log {
		if s.Log[i].ID != entryID {
			continue
		}
		if s.Log[i].Kind != EntrySystem || s.Log[i].State == nil {
			return false
		}
		s.Log[i].State.SceneImage = ref
		if i == s.lastSystemIndex() && s.Current != nil {
			s.Current.SceneImage = ref
		}
		return true
	}
	return false
}

// History returns the scene text and combat log of the last n system
// turns, oldest first. Only this slice goes back to the generator; full
// state would blow the context window for nothing.
func (s *Session) History(n int) []TurnContext {
	var out []TurnContext
	for i := len(s.Log) - 1; i >= 0 && len(out) < n; i-- {
		if s.Log[i].Kind != EntrySystem || s.Log[i].State == nil {
			continue
		}
		out = append(out, TurnContext{
			SceneText: s.Log[i].State.SceneDescription,
			CombatLog: s.Log[i].State.Combat.CombatLog,
		})
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Snapshot returns a deep copy of the session. Renderers hold snapshots,
// never the live session, so late scene-art patches can keep mutating the
// original without racing a read.
func (s *Session) Snapshot() *Session {
	out := &Session{
		Version: s.Version,
		Current: s.Current.Clone(),
		Log:     make([]StoryLogEntry, len(s.Log)),
		Map:     make(map[string]turn.Location, len(s.Map)),
	}
	for i, entry := range s.Log {
		entry.State = entry.State.Clone()
		out.Log[i] = entry
	}
	for k, v := range s.Map {
		out.Map[k] = v
	}
	return out
}

// GameOver reports whether the current turn ended the game.
func (s *Session) GameOver() bool {
	return s.Current != nil && s.Current.IsGameOver
}

func (s *Session) lastSystemIndex() int {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Kind == EntrySystem {
			return i
		}
	}
	return -1
}
