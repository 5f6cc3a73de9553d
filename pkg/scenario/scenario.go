package scenario

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed veridia.yaml
var defaultScenario []byte

// Scenario describes the world the generator narrates: a name for the
// title screen, the codex the prompts are built around, and a style hint
// for scene art.
type Scenario struct {
	Name       string `yaml:"name"`
	Tagline    string `yaml:"tagline"`
	Codex      string `yaml:"codex"`
	ImageStyle string `yaml:"image_style"`
}

// Default returns the built-in Veridia scenario.
func Default() (*Scenario, error) {
	return parse(defaultScenario)
}

// LoadFile reads a scenario from a YAML file, for worlds other than the
// built-in one.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario has no name")
	}
	if s.Codex == "" {
		return nil, fmt.Errorf("scenario %q has no codex", s.Name)
	}
	return &s, nil
}
