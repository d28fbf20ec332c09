package recording

import (
	"sort"

	"github.com/hydrolab/waterloop/hooking"
	"github.com/hydrolab/waterloop/loop"
)

// Table names used by the step logger.
const (
	StepTable    = "steps"
	SensorTable  = "sensor_readings"
	CommandTable = "commands"
)

// A StepRecord summarizes one completed step.
type StepRecord struct {
	Step    int
	SimTime float64
}

// A SensorRecord is one sensor reading at one step.
type SensorRecord struct {
	Step      int
	ElementID string
	Value     float64
}

// A CommandRecord is one actuator command issued at one step.
type CommandRecord struct {
	Step      int
	ElementID string
	Command   string
	Setting   float64
}

// A StepLogger is a run-loop hook that writes one StepRecord plus the
// sensor readings and issued commands of every completed step. Registered as
// an AfterStep hook and an end handler on the stepper.
type StepLogger struct {
	recorder Recorder
}

// NewStepLogger creates the step tables and returns the logger.
func NewStepLogger(recorder Recorder) *StepLogger {
	recorder.CreateTable(StepTable, StepRecord{})
	recorder.CreateTable(SensorTable, SensorRecord{})
	recorder.CreateTable(CommandTable, CommandRecord{})

	return &StepLogger{recorder: recorder}
}

// AttachTo registers the logger on a stepper.
func (l *StepLogger) AttachTo(s *loop.Stepper) {
	s.AcceptHook(l)
	s.RegisterEndHandler(l)
}

// Func records a completed step. Rows are written in sorted element order so
// identical runs produce identical databases.
func (l *StepLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != loop.HookPosAfterStep {
		return
	}

	info, ok := ctx.Item.(loop.StepInfo)
	if !ok {
		return
	}

	l.recorder.InsertRecord(StepTable, StepRecord{
		Step:    info.Step,
		SimTime: info.State.Time,
	})

	l.recordSensors(info)
	l.recordCommands(info)
}

func (l *StepLogger) recordSensors(info loop.StepInfo) {
	for _, id := range sortedKeys(info.State.Tanks) {
		l.recorder.InsertRecord(SensorTable, SensorRecord{
			Step:      info.Step,
			ElementID: id,
			Value:     info.State.Tanks[id],
		})
	}

	for _, id := range sortedKeys(info.State.Pressures) {
		l.recorder.InsertRecord(SensorTable, SensorRecord{
			Step:      info.Step,
			ElementID: id,
			Value:     info.State.Pressures[id],
		})
	}
}

func (l *StepLogger) recordCommands(info loop.StepInfo) {
	for _, id := range sortedKeys(info.Commands.Pumps) {
		l.recorder.InsertRecord(CommandTable, CommandRecord{
			Step:      info.Step,
			ElementID: id,
			Command:   info.Commands.Pumps[id],
		})
	}

	for _, id := range sortedKeys(info.Commands.Valves) {
		l.recorder.InsertRecord(CommandTable, CommandRecord{
			Step:      info.Step,
			ElementID: id,
			Command:   "SETTING",
			Setting:   info.Commands.Valves[id],
		})
	}
}

// RunEnded flushes buffered records when the run finishes.
func (l *StepLogger) RunEnded(loop.RunState) {
	l.recorder.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
