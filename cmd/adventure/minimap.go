package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"veridia/pkg/session"
	"veridia/pkg/turn"
)

// mapRange is how many cells the minimap shows in each direction from the
// player, giving a 7x7 window onto the visited-location map.
const mapRange = 3

var environmentGlyphs = map[turn.Environment]string{
	turn.EnvForest: "♣",
	turn.EnvRuins:  "#",
	turn.EnvCity:   "■",
	turn.EnvTech:   "◆",
	turn.EnvCave:   "∩",
	turn.EnvPlains: "~",
	turn.EnvIndoor: "□",
	turn.EnvOther:  "?",
}

var (
	mapCurrentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	mapVisitedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	mapEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236"))
)

// renderMiniMap draws the visited-location window centered on the player.
// Rows run north (positive y) at the top, matching the compass.
func renderMiniMap(sess *session.Session) string {
	if sess == nil || sess.Current == nil {
		return ""
	}
	cx, cy := sess.Current.Location.X, sess.Current.Location.Y

	var b strings.Builder
	for dy := mapRange; dy >= -mapRange; dy-- {
		for dx := -mapRange; dx <= mapRange; dx++ {
			x, y := cx+dx, cy+dy

			if x == cx && y == cy {
				b.WriteString(mapCurrentStyle.Render("@"))
			} else if loc, ok := sess.Map[session.CoordKey(x, y)]; ok {
				glyph, known := environmentGlyphs[loc.Environment]
				if !known {
					glyph = "?"
				}
				b.WriteString(mapVisitedStyle.Render(glyph))
			} else {
				b.WriteString(mapEmptyStyle.Render("·"))
			}
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	return b.String()
}
