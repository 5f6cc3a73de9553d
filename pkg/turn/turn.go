package turn

import (
	"encoding/json"
	"fmt"
)

// Environment classifies a location for map rendering.
type Environment string

const (
	EnvForest Environment = "forest"
	EnvRuins  Environment = "ruins"
	EnvCity   Environment = "city"
	EnvTech   Environment = "tech"
	EnvCave   Environment = "cave"
	EnvPlains Environment = "plains"
	EnvIndoor Environment = "indoor"
	EnvOther  Environment = "other"
)

// ItemType classifies an inventory item.
type ItemType string

const (
	ItemWeapon     ItemType = "weapon"
	ItemArmor      ItemType = "armor"
	ItemConsumable ItemType = "consumable"
	ItemQuest      ItemType = "quest"
	ItemMisc       ItemType = "misc"
)

// VisualEffect is a rendering hint attached to a turn.
type VisualEffect string

const (
	EffectNone            VisualEffect = "none"
	EffectShake           VisualEffect = "shake"
	EffectGlitch          VisualEffect = "glitch"
	EffectFlashRed        VisualEffect = "flash_red"
	EffectFlashWhite      VisualEffect = "flash_white"
	EffectParticlesCombat VisualEffect = "particles_combat"
)

// Location is a visited point on the world grid. Identity is (X, Y);
// name and description are fixed once the coordinate is first recorded.
type Location struct {
	Name        string      `json:"name"`
	X           int         `json:"x"`
	Y           int         `json:"y"`
	Description string      `json:"description"`
	Environment Environment `json:"environment"`
}

// Item is a carried inventory item. The generator returns the full
// inventory list each turn; items have no identity beyond their name.
type Item struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        ItemType `json:"type"`
}

// LoreEntry is one entry in the cumulative knowledge base. ID is the
// deduplication key.
type LoreEntry struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
	Details string `json:"details"`
}

// CombatState tracks the current fight, if any.
type CombatState struct {
	IsInCombat     bool   `json:"isInCombat"`
	EnemyName      string `json:"enemyName"`
	EnemyHealth    int    `json:"enemyHealth"`
	EnemyMaxHealth int    `json:"enemyMaxHealth"`
	CombatLog      string `json:"combatLog"`
}

// TurnState is one generated scene: the complete game state returned by
// the generator for a single turn. JSON tags are the generator wire
// contract and the save-document format.
type TurnState struct {
	SceneDescription string       `json:"sceneDescription"`
	Location         Location     `json:"location"`
	Inventory        []Item       `json:"inventory"`
	PlayerHealth     int          `json:"playerHealth"`
	SuggestedActions []string     `json:"suggestedActions"`
	IsGameOver       bool         `json:"isGameOver"`
	GameOverMessage  string       `json:"gameOverMessage"`
	Lore             []LoreEntry  `json:"lore"`
	Combat           CombatState  `json:"combat"`
	VisualEffect     VisualEffect `json:"visualEffect"`
	SceneImage       string       `json:"sceneImage,omitempty"`
}

// SuggestedActionCount is the number of actions a playable turn carries.
const SuggestedActionCount = 3

// MaxPlayerHealth bounds player health on every turn.
const MaxPlayerHealth = 100

// fallbackActions pad out a short suggestion list. The generator is asked
// for exactly three but is not always obedient.
var fallbackActions = []string{
	"Look around",
	"Wait and listen",
	"Check your belongings",
}

// ParseTurn decodes raw generator output into a TurnState and normalizes
// it. Malformed JSON is returned as an error for the caller to treat as a
// generation failure; out-of-enum values and list-length drift are
// coerced, not rejected.
func ParseTurn(data []byte) (*TurnState, error) {
	var ts TurnState
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("failed to parse turn: %w", err)
	}
	ts.Normalize()
	return &ts, nil
}

// Normalize coerces a turn into the closed schema. The generator is
// non-deterministic and occasionally produces out-of-enum text or the
// wrong number of suggestions; those are repaired in place rather than
// failing the turn.
func (ts *TurnState) Normalize() {
	if ts.SceneDescription == "" {
		ts.SceneDescription = "The scene flickers, details lost to static."
	}

	switch ts.Location.Environment {
	case EnvForest, EnvRuins, EnvCity, EnvTech, EnvCave, EnvPlains, EnvIndoor, EnvOther:
	default:
		ts.Location.Environment = EnvOther
	}

	switch ts.VisualEffect {
	case EffectNone, EffectShake, EffectGlitch, EffectFlashRed, EffectFlashWhite, EffectParticlesCombat:
	default:
		ts.VisualEffect = EffectNone
	}

	if ts.Inventory == nil {
		ts.Inventory = make([]Item, 0)
	}
	for i := range ts.Inventory {
		switch ts.Inventory[i].Type {
		case ItemWeapon, ItemArmor, ItemConsumable, ItemQuest, ItemMisc:
		default:
			ts.Inventory[i].Type = ItemMisc
		}
	}

	if ts.Lore == nil {
		ts.Lore = make([]LoreEntry, 0)
	}

	if ts.PlayerHealth < 0 {
		ts.PlayerHealth = 0
	} else if ts.PlayerHealth > MaxPlayerHealth {
		ts.PlayerHealth = MaxPlayerHealth
	}
	if ts.Combat.EnemyHealth < 0 {
		ts.Combat.EnemyHealth = 0
	}

	if ts.SuggestedActions == nil {
		ts.SuggestedActions = make([]string, 0)
	}
	if !ts.IsGameOver {
		for i := 0; len(ts.SuggestedActions) < SuggestedActionCount; i++ {
			ts.SuggestedActions = append(ts.SuggestedActions, fallbackActions[i%len(fallbackActions)])
		}
		if len(ts.SuggestedActions) > SuggestedActionCount {
			ts.SuggestedActions = ts.SuggestedActions[:SuggestedActionCount]
		}
	}
}

// Clone returns a deep copy of the turn.
func (ts *TurnState) Clone() *TurnState {
	if ts == nil {
		return nil
	}
	out := *ts
	out.Inventory = append([]Item(nil), ts.Inventory...)
	out.SuggestedActions = append([]string(nil), ts.SuggestedActions...)
	out.Lore = append([]LoreEntry(nil), ts.Lore...)
	return &out
}

// SeveredTurn is the terminal turn substituted when the generator cannot
// be reached or its reply cannot be parsed. The game ends in place rather
// than crashing; the coordinate of the last known location is kept so the
// map stays coherent.
func SeveredTurn(last *Location) *TurnState {
	loc := Location{
		Name:        "Severed Link",
		Description: "The signal is gone.",
		Environment: EnvOther,
	}
	if last != nil {
		loc.X = last.X
		loc.Y = last.Y
	}
	ts := &TurnState{
		SceneDescription: "The connection to the Gem-Tech network has been severed. The world dissolves into dead static.",
		Location:         loc,
		IsGameOver:       true,
		GameOverMessage:  "Connection to the network lost.",
		VisualEffect:     EffectGlitch,
	}
	ts.Normalize()
	return ts
}
