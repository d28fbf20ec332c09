package scada

import (
	"github.com/hydrolab/waterloop/network"
	"github.com/hydrolab/waterloop/plant"
	"github.com/hydrolab/waterloop/plc"
)

// An Agent is the light-weight stand-in for one PLC. It builds a SCADA
// request from the current plant snapshot and turns the latest reply into an
// actuator effect for its element.
type Agent struct {
	entry plc.Entry

	// sensorID is the conditioning sensor for actuator PLCs, empty for
	// sensor PLCs and unruled actuators.
	sensorID string

	lastReply ScadaReply
}

// NewAgent creates an agent for one inventory entry. For actuator entries,
// sensorID names the measurement point of the first rule targeting the
// element, if any.
func NewAgent(entry plc.Entry, sensorID string) *Agent {
	return &Agent{entry: entry, sensorID: sensorID}
}

// PlcID returns the agent's PLC ID.
func (a *Agent) PlcID() string {
	return a.entry.PlcID
}

// IsActuator returns true if the agent drives an actuator.
func (a *Agent) IsActuator() bool {
	return a.entry.Role == plc.RoleActuator
}

// BuildRequest assembles the agent's report for the current snapshot.
func (a *Agent) BuildRequest(state plant.State) PlcRequest {
	req := PlcRequest{
		PlcID: a.entry.PlcID,
		Role:  a.entry.Role.String(),
		Time:  state.Time,
	}

	if a.entry.Role == plc.RoleSensor {
		req.Observations = a.sensorObservations(state)
	} else {
		req.Observations = a.actuatorObservations(state)
	}

	return req
}

func (a *Agent) sensorObservations(state plant.State) Observations {
	var obs Observations

	switch a.entry.NodeKind {
	case network.NodeKindTank:
		if level, ok := state.Tanks[a.entry.ElementID]; ok {
			obs.TankLevel = &level
		}
	case network.NodeKindJunction, network.NodeKindReservoir:
		if pressure, ok := state.Pressures[a.entry.ElementID]; ok {
			obs.Pressure = &pressure
		}
	}

	return obs
}

func (a *Agent) actuatorObservations(state plant.State) Observations {
	var obs Observations

	if a.sensorID != "" {
		if value, ok := state.SensorValue(a.sensorID); ok {
			obs.TankLevel = &value
		}
	}

	switch a.entry.LinkKind {
	case network.LinkKindPump:
		obs.CurrentStatus = state.Pumps[a.entry.ElementID]
	case network.LinkKindValve:
		obs.Pressures = state.Pressures
		if setting, ok := state.Valves[a.entry.ElementID]; ok {
			obs.CurrentSetting = &setting
		}
	}

	return obs
}

// UpdateFromReply stores the latest SCADA reply for the agent.
func (a *Agent) UpdateFromReply(reply ScadaReply) {
	a.lastReply = reply
}

// ApplyEffect merges the agent's latest commanded effect into the aggregate
// command set. Override actions win over regular commands.
func (a *Agent) ApplyEffect(commands *plant.Commands) {
	if a.entry.Role != plc.RoleActuator {
		return
	}

	resp := a.lastReply.Responses

	switch a.entry.LinkKind {
	case network.LinkKindPump:
		switch {
		case resp.OverrideAction != "":
			commands.Pumps[a.entry.ElementID] = resp.OverrideAction
		case resp.PumpCommand != "":
			commands.Pumps[a.entry.ElementID] = resp.PumpCommand
		}
	case network.LinkKindValve:
		if resp.ValveSetting != nil {
			commands.Valves[a.entry.ElementID] = *resp.ValveSetting
		}
	}
}
