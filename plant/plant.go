// Package plant defines the boundary between the control side of the
// co-simulation and the hydraulic plant, plus a replay plant that serves
// precomputed snapshots for demos and tests. The numeric solver itself is an
// external collaborator behind the same two operations.
package plant

import "errors"

// ErrEndOfHorizon is returned by Step when the plant has no further
// timesteps to serve. It ends a run normally rather than aborting it.
var ErrEndOfHorizon = errors.New("end of simulation horizon")

// Pump status values as they appear in snapshots and commands.
const (
	PumpOn  = "ON"
	PumpOff = "OFF"
)

// A State is the snapshot of the plant at one timestep. The control side
// treats it as read-only input.
type State struct {
	// Time is the simulated time of the snapshot, in seconds.
	Time float64

	// Tanks maps tank IDs to water levels.
	Tanks map[string]float64

	// Pressures maps junction IDs to pressures.
	Pressures map[string]float64

	// Pumps maps pump IDs to their current status, PumpOn or PumpOff.
	Pumps map[string]string

	// Valves maps valve IDs to their current settings.
	Valves map[string]float64
}

// SensorValue resolves a measurement by element ID, checking tank levels
// first and junction pressures second.
func (s State) SensorValue(id string) (float64, bool) {
	if v, ok := s.Tanks[id]; ok {
		return v, true
	}

	if v, ok := s.Pressures[id]; ok {
		return v, true
	}

	return 0, false
}

// Commands is the actuator command set for one step. Absent keys mean no
// change is requested for that element.
type Commands struct {
	// Pumps maps pump IDs to a commanded status, PumpOn or PumpOff.
	Pumps map[string]string

	// Valves maps valve IDs to a commanded setting.
	Valves map[string]float64
}

// MakeCommands creates an empty command set.
func MakeCommands() Commands {
	return Commands{
		Pumps:  make(map[string]string),
		Valves: make(map[string]float64),
	}
}

// Len returns the total number of commanded elements.
func (c Commands) Len() int {
	return len(c.Pumps) + len(c.Valves)
}
