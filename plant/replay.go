package plant

// A ReplayPlant serves a precomputed snapshot sequence one step at a time.
// Hydraulics are open loop: applied commands are cached for inspection and
// logging but do not alter the stored trajectory. A closed-loop plant
// replaces this type behind the same two operations.
type ReplayPlant struct {
	snapshots []State
	stepIdx   int

	lastCommands Commands
}

// NewReplayPlant creates a plant that replays the given snapshots in order.
func NewReplayPlant(snapshots []State) *ReplayPlant {
	return &ReplayPlant{snapshots: snapshots}
}

// Step returns the next snapshot, or ErrEndOfHorizon past the last one.
func (p *ReplayPlant) Step() (State, error) {
	if p.stepIdx >= len(p.snapshots) {
		return State{}, ErrEndOfHorizon
	}

	s := p.snapshots[p.stepIdx]
	p.stepIdx++

	return s, nil
}

// ApplyActuatorCommands caches the issued commands. The stored trajectory is
// precomputed, so commands have no hydraulic effect here.
func (p *ReplayPlant) ApplyActuatorCommands(c Commands) error {
	p.lastCommands = c
	return nil
}

// LastCommands returns the most recently applied command set.
func (p *ReplayPlant) LastCommands() Commands {
	return p.lastCommands
}

// StepsServed returns how many snapshots have been handed out.
func (p *ReplayPlant) StepsServed() int {
	return p.stepIdx
}
