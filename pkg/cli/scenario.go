package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

// LoadScenario reads a scenario file on top of base: fields the file does
// not set keep their value from base. A path of "-" reads stdin.
//
// Files may be YAML or JSON; durations are written as strings such as
// "500ms" in both.
func LoadScenario(path string, base stress.Scenario) (stress.Scenario, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return base, fmt.Errorf("cli: read scenario: %w", err)
	}
	return ParseScenario(data, base)
}

// ParseScenario parses YAML or JSON scenario data on top of base and
// validates the result.
func ParseScenario(data []byte, base stress.Scenario) (stress.Scenario, error) {
	sc := base
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return base, fmt.Errorf("cli: parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return base, err
	}
	return sc, nil
}
