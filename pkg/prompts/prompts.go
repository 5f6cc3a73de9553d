package prompts

import (
	"fmt"
	"strings"

	"veridia/pkg/scenario"
	"veridia/pkg/session"
	"veridia/pkg/turn"
)

// BaseSystemPrompt frames every generation request. The schema itself is
// enforced by the provider's structured-output mode; this covers conduct.
const BaseSystemPrompt = `You are a Dungeon Master for a text-based RPG. You narrate the world and adjudicate every outcome. Respond strictly in JSON matching the provided schema.`

// Builder assembles generator prompts for one scenario.
type Builder struct {
	scen *scenario.Scenario
}

// NewBuilder returns a prompt builder for the given scenario.
func NewBuilder(scen *scenario.Scenario) *Builder {
	return &Builder{scen: scen}
}

// Opening returns the prompt for the first scene of a new game.
func (b *Builder) Opening() string {
	return fmt.Sprintf(`%s
WORLD CODEX: %s

TASK: Generate the first scene. The player wakes up with amnesia in this world.
- Coordinates: Start at x=0, y=0.
- Visuals: Use the 'visualEffect' field. Use 'glitch' for the opening.
- Combat: Starts with 'isInCombat': false.
- Health: 100. Inventory: Empty.
- Respond strictly in JSON.
`, BaseSystemPrompt, b.scen.Codex)
}

// NextTurn returns the prompt for a follow-up scene. Only the last few
// turns' scene text and combat logs are included; the status block covers
// the rest of the state in compact form.
func (b *Builder) NextTurn(history []session.TurnContext, current *turn.TurnState, action string) string {
	var hist strings.Builder
	for i, h := range history {
		if i > 0 {
			hist.WriteString("\n---\n")
		}
		combatLog := h.CombatLog
		if combatLog == "" {
			combatLog = "None"
		}
		fmt.Fprintf(&hist, "Scene: %s\nCombat Log: %s", h.SceneText, combatLog)
	}

	items := make([]string, 0, len(current.Inventory))
	for _, it := range current.Inventory {
		items = append(items, it.Name)
	}

	combatStatus := "Not in combat"
	if current.Combat.IsInCombat {
		combatStatus = fmt.Sprintf("Fighting %s (%d/%d HP)",
			current.Combat.EnemyName, current.Combat.EnemyHealth, current.Combat.EnemyMaxHealth)
	}

	return fmt.Sprintf(`%s
WORLD CODEX: %s

CURRENT STATUS:
Location: %s (x:%d, y:%d)
Health: %d
Inventory Items: [%s]
Lore Entries Known: %d
Combat Status: %s

STORY HISTORY (Last %d turns):
%s

PLAYER ACTION: %q

LOGIC & RULES:
1. MAPPING:
   - Track player movement on a grid.
   - If action implies moving North, y = y + 1. South, y = y - 1.
   - If action implies moving East, x = x + 1. West, x = x - 1.
   - If no movement, keep x, y same.
   - Return new coordinates in 'location' object.

2. COMBAT SYSTEM:
   - Manage 'combat' object state. Calculate damage reasonably.
   - If a fight starts or damage is taken, use 'visualEffect': 'shake' or 'flash_red'.
   - If an enemy is defeated, use 'particles_combat'.

3. INVENTORY & LORE:
   - Return the FULL list of inventory and lore (cumulative).
   - New items/lore should be added to the list.
   - Inventory items need 'name', 'description', 'type'.
   - Lore needs 'id', 'topic', 'summary', 'details'.

Respond strictly in JSON.
`, BaseSystemPrompt, b.scen.Codex,
		current.Location.Name, current.Location.X, current.Location.Y,
		current.PlayerHealth, strings.Join(items, ", "), len(current.Lore),
		combatStatus, len(history), hist.String(), action)
}

// SceneImage returns the prompt for generating scene art.
func (b *Builder) SceneImage(description string) string {
	return fmt.Sprintf("Generate a high quality, cinematic, sci-fi fantasy concept art image for a text RPG location. Atmosphere: %s. Description: %s",
		b.scen.ImageStyle, description)
}
