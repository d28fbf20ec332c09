package scada

import (
	"github.com/hydrolab/waterloop/controls"
	"github.com/hydrolab/waterloop/network"
	"github.com/hydrolab/waterloop/plant"
	"github.com/hydrolab/waterloop/plc"
)

// Valve settings commanded for open and closed valves.
const (
	valveOpenSetting   = 1.0
	valveClosedSetting = 0.0
)

// A Server is the supervisory endpoint: it ingests sensor reports, evaluates
// the classified control rules for actuator PLCs, and answers each request
// with the commands the PLC should apply.
//
// When several rules on one actuator are simultaneously true, the higher
// priority wins and ties fall back to the rule later in the file. That
// policy lives here, in the control layer, not in the rules themselves.
type Server struct {
	inventory     *plc.Inventory
	rulesByTarget map[string][]controls.ControlRule

	latestSensors map[string]float64
	pumpCommands  map[string]string
	valveCommands map[string]float64
	overrides     map[string]string
}

// NewServer creates a server over a synthesized inventory and rule set.
func NewServer(inventory *plc.Inventory, rules []controls.ControlRule) *Server {
	byTarget := make(map[string][]controls.ControlRule)
	for _, r := range rules {
		byTarget[r.TargetID] = append(byTarget[r.TargetID], r)
	}

	return &Server{
		inventory:     inventory,
		rulesByTarget: byTarget,
		latestSensors: make(map[string]float64),
		pumpCommands:  make(map[string]string),
		valveCommands: make(map[string]float64),
		overrides:     make(map[string]string),
	}
}

// SetOverride forces a manual action for one PLC until cleared. The action
// replaces rule-derived commands in replies to that PLC.
func (s *Server) SetOverride(plcID, action string) {
	s.overrides[plcID] = action
}

// ClearOverride removes a manual override.
func (s *Server) ClearOverride(plcID string) {
	delete(s.overrides, plcID)
}

// HandleRequest answers one PLC request.
func (s *Server) HandleRequest(req PlcRequest) ScadaReply {
	entry, ok := s.inventory.ByID(req.PlcID)
	if !ok {
		return ScadaReply{PlcID: req.PlcID, Error: "unknown_plc"}
	}

	if entry.Role == plc.RoleSensor {
		s.ingestSensor(entry, req.Observations)
		return ScadaReply{PlcID: req.PlcID}
	}

	return s.answerActuator(entry, req)
}

func (s *Server) ingestSensor(entry plc.Entry, obs Observations) {
	if obs.TankLevel != nil {
		s.latestSensors[entry.ElementID] = *obs.TankLevel
	}
	if obs.Pressure != nil {
		s.latestSensors[entry.ElementID] = *obs.Pressure
	}
}

func (s *Server) answerActuator(entry plc.Entry, req PlcRequest) ScadaReply {
	reply := ScadaReply{PlcID: entry.PlcID}

	rule, triggered := s.winningRule(entry.ElementID, req.Observations)
	if triggered {
		s.recordCommand(entry, rule)
	}

	if action, ok := s.overrides[entry.PlcID]; ok {
		reply.Responses.OverrideAction = action
		return reply
	}

	if !triggered {
		return reply
	}

	switch entry.LinkKind {
	case network.LinkKindPump:
		reply.Responses.PumpCommand = pumpCommand(rule.Mode)
	case network.LinkKindValve:
		setting := valveSetting(rule.Mode)
		reply.Responses.ValveSetting = &setting
	}

	return reply
}

// winningRule evaluates every rule on a target and picks the triggered one
// with the highest priority, breaking ties toward the later rule.
func (s *Server) winningRule(
	targetID string,
	obs Observations,
) (controls.ControlRule, bool) {
	var winner controls.ControlRule
	found := false

	for _, rule := range s.rulesByTarget[targetID] {
		value, ok := s.sensorValue(rule.SensorID, obs)
		if !ok {
			continue
		}

		if !rule.Mode.Triggered(value, rule.Threshold) {
			continue
		}

		if !found || rule.Priority > winner.Priority ||
			(rule.Priority == winner.Priority && rule.Index > winner.Index) {
			winner = rule
			found = true
		}
	}

	return winner, found
}

// sensorValue prefers the last ingested report for the conditioning sensor
// and falls back to the level the actuator PLC observed itself.
func (s *Server) sensorValue(sensorID string, obs Observations) (float64, bool) {
	if v, ok := s.latestSensors[sensorID]; ok {
		return v, true
	}

	if obs.TankLevel != nil {
		return *obs.TankLevel, true
	}

	return 0, false
}

func (s *Server) recordCommand(entry plc.Entry, rule controls.ControlRule) {
	switch entry.LinkKind {
	case network.LinkKindPump:
		s.pumpCommands[entry.ElementID] = pumpCommand(rule.Mode)
	case network.LinkKindValve:
		s.valveCommands[entry.ElementID] = valveSetting(rule.Mode)
	}
}

// LatestCommands returns copies of the last commands issued per element.
// The maps are not cleared between steps, so the caller can reuse them when
// no new report arrives.
func (s *Server) LatestCommands() (map[string]string, map[string]float64) {
	pumps := make(map[string]string, len(s.pumpCommands))
	for k, v := range s.pumpCommands {
		pumps[k] = v
	}

	valves := make(map[string]float64, len(s.valveCommands))
	for k, v := range s.valveCommands {
		valves[k] = v
	}

	return pumps, valves
}

func pumpCommand(mode controls.LogicMode) string {
	if mode.Opens() {
		return plant.PumpOn
	}

	return plant.PumpOff
}

func valveSetting(mode controls.LogicMode) float64 {
	if mode.Opens() {
		return valveOpenSetting
	}

	return valveClosedSetting
}
