package turn

// ResponseSchema returns the JSON schema for a generated turn, handed to
// providers that support structured output. Keeping the enums closed here
// does most of the validation work before the reply ever reaches Go.
func ResponseSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sceneDescription": map[string]interface{}{
				"type":        "string",
				"description": "A detailed, immersive description of the current scene. Focus on sensory details.",
			},
			"location": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Short name of current location (e.g. 'Crystal Plaza').",
					},
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X Coordinate. East is +x, West is -x.",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y Coordinate. North is +y, South is -y.",
					},
					"description": map[string]interface{}{
						"type":        "string",
						"description": "Very brief description for a map tooltip.",
					},
					"environment": map[string]interface{}{
						"type": "string",
						"enum": []string{"forest", "ruins", "city", "tech", "cave", "plains", "indoor", "other"},
					},
				},
				"required": []string{"name", "x", "y", "description", "environment"},
			},
			"inventory": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":        map[string]interface{}{"type": "string"},
						"description": map[string]interface{}{"type": "string"},
						"type": map[string]interface{}{
							"type": "string",
							"enum": []string{"weapon", "armor", "consumable", "quest", "misc"},
						},
					},
					"required": []string{"name", "description", "type"},
				},
				"description": "Full list of items carried, cumulative across turns.",
			},
			"playerHealth": map[string]interface{}{"type": "integer"},
			"combat": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"isInCombat":     map[string]interface{}{"type": "boolean"},
					"enemyName":      map[string]interface{}{"type": "string"},
					"enemyHealth":    map[string]interface{}{"type": "integer"},
					"enemyMaxHealth": map[string]interface{}{"type": "integer"},
					"combatLog":      map[string]interface{}{"type": "string"},
				},
				"required": []string{"isInCombat", "enemyName", "enemyHealth", "enemyMaxHealth", "combatLog"},
			},
			"visualEffect": map[string]interface{}{
				"type": "string",
				"enum": []string{"none", "shake", "glitch", "flash_red", "flash_white", "particles_combat"},
			},
			"suggestedActions": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Exactly 3 suggested actions.",
			},
			"isGameOver":      map[string]interface{}{"type": "boolean"},
			"gameOverMessage": map[string]interface{}{"type": "string"},
			"lore": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id": map[string]interface{}{
							"type":        "string",
							"description": "Unique short ID like 'origin_story'",
						},
						"topic":   map[string]interface{}{"type": "string"},
						"summary": map[string]interface{}{"type": "string"},
						"details": map[string]interface{}{"type": "string"},
					},
					"required": []string{"id", "topic", "summary", "details"},
				},
				"description": "Cumulative knowledge base.",
			},
		},
		"required": []string{
			"sceneDescription", "location", "inventory", "playerHealth",
			"combat", "visualEffect", "suggestedActions", "isGameOver",
			"gameOverMessage", "lore",
		},
	}
}
