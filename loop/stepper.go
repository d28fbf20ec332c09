// Package loop runs the closed-loop co-simulation: every step reads the
// plant state, asks the control layer for commands, and applies them, in
// that order, one step fully completing before the next begins.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hydrolab/waterloop/hooking"
	"github.com/hydrolab/waterloop/plant"
)

// A Plant is the physical side of the loop. The stepper owns it exclusively
// for the duration of a run and calls exactly these two operations per step.
type Plant interface {
	Step() (plant.State, error)
	ApplyActuatorCommands(plant.Commands) error
}

// A Controller decides actuator commands from a plant snapshot. It must not
// fail for well-formed input; any error it returns is fatal for the run.
type Controller interface {
	Decide(plant.State) (plant.Commands, error)
}

// RunState is the lifecycle state of a Stepper.
type RunState int

// The stepper lifecycle: Idle until Run, then Running, ending in either
// Completed or Aborted.
const (
	StateIdle RunState = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "invalid"
	}
}

// HookPosBeforeStep triggers after the plant snapshot is read, before the
// controller decides.
var HookPosBeforeStep = &hooking.HookPos{Name: "BeforeStep"}

// HookPosAfterStep triggers after the commands for a step are applied.
var HookPosAfterStep = &hooking.HookPos{Name: "AfterStep"}

// StepInfo is the hook item for step hooks. Steps are numbered from 1.
type StepInfo struct {
	Step     int
	State    plant.State
	Commands plant.Commands
}

// A StepFailure aborts a run. Hydraulic state is not safely replayable
// mid-step, so the failing step is never retried.
type StepFailure struct {
	// Step is the step that failed, LastApplied the last step whose commands
	// were fully applied (0 if none).
	Step        int
	LastApplied int
	Err         error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %d failed (last applied step %d): %v",
		e.Step, e.LastApplied, e.Err)
}

func (e *StepFailure) Unwrap() error {
	return e.Err
}

// An EndHandler is called once after a run ends, in either final state.
type EndHandler interface {
	RunEnded(final RunState)
}

// A Stepper drives the closed loop. It is single-threaded and cooperative:
// read, decide, apply, with no overlap between physical stepping and control
// evaluation. The external stop signal is honored between steps only, never
// mid-step, so the plant is never left partially applied.
type Stepper struct {
	hooking.HookableBase

	plant      Plant
	controller Controller
	totalSteps int

	stateLock   sync.RWMutex
	state       RunState
	lastApplied int
	simTime     float64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	endHandlers []EndHandler
}

// NewStepper creates a stepper that runs for at most totalSteps steps. A
// non-positive totalSteps runs until the plant signals end of horizon.
func NewStepper(p Plant, c Controller, totalSteps int) *Stepper {
	return &Stepper{
		plant:      p,
		controller: c,
		totalSteps: totalSteps,
	}
}

// RegisterEndHandler registers a handler invoked once after the run ends.
func (s *Stepper) RegisterEndHandler(h EndHandler) {
	s.endHandlers = append(s.endHandlers, h)
}

// State returns the current lifecycle state.
func (s *Stepper) State() RunState {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	return s.state
}

// LastAppliedStep returns the last step whose commands were fully applied.
func (s *Stepper) LastAppliedStep() int {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	return s.lastApplied
}

// CurrentTime returns the simulated time of the last snapshot, in seconds.
func (s *Stepper) CurrentTime() float64 {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	return s.simTime
}

// TotalSteps returns the configured step budget, 0 if horizon-bound.
func (s *Stepper) TotalSteps() int {
	if s.totalSteps < 0 {
		return 0
	}

	return s.totalSteps
}

// Run executes the loop until the step budget or the plant's horizon is
// reached, the context is canceled, or a step fails. Cancellation ends the
// run as Completed at the next step boundary; a step failure ends it as
// Aborted with a StepFailure. A stepper runs at most once.
func (s *Stepper) Run(ctx context.Context) error {
	s.singleRunLock.Lock()
	defer s.singleRunLock.Unlock()

	if s.State() != StateIdle {
		return fmt.Errorf("stepper has already run (state %s)", s.State())
	}
	s.setState(StateRunning)

	err := s.runLoop(ctx)
	if err != nil {
		s.setState(StateAborted)
	} else {
		s.setState(StateCompleted)
	}

	for _, h := range s.endHandlers {
		h.RunEnded(s.State())
	}

	return err
}

func (s *Stepper) runLoop(ctx context.Context) error {
	for step := 1; s.totalSteps <= 0 || step <= s.totalSteps; step++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		done, err := s.runStep(step)
		if err != nil {
			return &StepFailure{
				Step:        step,
				LastApplied: step - 1,
				Err:         err,
			}
		}
		if done {
			return nil
		}
	}

	return nil
}

// runStep performs one full read-decide-apply iteration. The pause lock is
// held for the whole step, so Pause only takes effect at step boundaries.
func (s *Stepper) runStep(step int) (done bool, err error) {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	state, err := s.plant.Step()
	if errors.Is(err, plant.ErrEndOfHorizon) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("plant step: %w", err)
	}

	s.setSimTime(state.Time)

	info := StepInfo{Step: step, State: state}
	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosBeforeStep,
		Item:   info,
	})

	commands, err := s.controller.Decide(state)
	if err != nil {
		return false, fmt.Errorf("controller decide: %w", err)
	}

	if err := s.plant.ApplyActuatorCommands(commands); err != nil {
		return false, fmt.Errorf("applying actuator commands: %w", err)
	}

	s.setLastApplied(step)

	info.Commands = commands
	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosAfterStep,
		Item:   info,
	})

	return false, nil
}

// Pause blocks the loop at the next step boundary until Continue is called.
func (s *Stepper) Pause() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if s.isPaused {
		return
	}

	s.pauseLock.Lock()
	s.isPaused = true
}

// Continue resumes a paused loop.
func (s *Stepper) Continue() {
	s.isPausedLock.Lock()
	defer s.isPausedLock.Unlock()

	if !s.isPaused {
		return
	}

	s.pauseLock.Unlock()
	s.isPaused = false
}

func (s *Stepper) setState(state RunState) {
	s.stateLock.Lock()
	s.state = state
	s.stateLock.Unlock()
}

func (s *Stepper) setLastApplied(step int) {
	s.stateLock.Lock()
	s.lastApplied = step
	s.stateLock.Unlock()
}

func (s *Stepper) setSimTime(t float64) {
	s.stateLock.Lock()
	s.simTime = t
	s.stateLock.Unlock()
}
