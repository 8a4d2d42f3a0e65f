package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Loader resolves scripts either from the request body (inline) or from a
// JSON file under the scenario directory, keyed by scenario id. One codepath:
// the engine never sees the difference.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Resolve prefers the inline script when present. Both strategies validate
// the script's shape before handing it to the engine.
func (l *Loader) Resolve(inline *Script, scenarioID string) (*Script, error) {
	if inline != nil {
		if err := inline.Validate(); err != nil {
			return nil, err
		}
		return inline, nil
	}
	if scenarioID == "" {
		return nil, fmt.Errorf("neither scenario nor scenarioId supplied")
	}
	return l.Load(scenarioID)
}

func (l *Loader) Load(scenarioID string) (*Script, error) {
	// Reject ids that escape the scenario directory.
	if scenarioID != filepath.Base(scenarioID) {
		return nil, fmt.Errorf("invalid scenario id: %s", scenarioID)
	}
	path := filepath.Join(l.dir, scenarioID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", scenarioID, err)
	}
	var script Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", scenarioID, err)
	}
	if script.ScenarioID == "" {
		script.ScenarioID = scenarioID
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}
