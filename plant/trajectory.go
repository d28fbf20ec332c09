package plant

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadTrajectory reads a precomputed snapshot sequence produced by an
// external hydraulic solver. The file holds a JSON array of states.
func LoadTrajectory(path string) ([]State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trajectory %s: %w", path, err)
	}

	var snapshots []State
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parsing trajectory %s: %w", path, err)
	}

	return snapshots, nil
}
