package scada

import (
	"fmt"

	"github.com/hydrolab/waterloop/controls"
	"github.com/hydrolab/waterloop/plant"
	"github.com/hydrolab/waterloop/plc"
)

// A Controller runs the PLC/SCADA exchange once per step: sensor PLCs report
// first so the server sees fresh measurements, then actuator PLCs request
// commands and their effects are aggregated into one command set. Every
// request and reply passes through the wire codec, so the in-process
// exchange carries exactly what a networked one would.
type Controller struct {
	server *Server
	agents []*Agent
}

// NewController wires one agent per inventory entry to a fresh server.
func NewController(
	inventory *plc.Inventory,
	rules []controls.ControlRule,
) *Controller {
	sensorFor := make(map[string]string)
	for _, r := range rules {
		if _, ok := sensorFor[r.TargetID]; !ok {
			sensorFor[r.TargetID] = r.SensorID
		}
	}

	c := &Controller{server: NewServer(inventory, rules)}
	for _, entry := range inventory.Entries() {
		c.agents = append(c.agents, NewAgent(entry, sensorFor[entry.ElementID]))
	}

	return c
}

// Server exposes the underlying SCADA server, mainly for overrides.
func (c *Controller) Server() *Server {
	return c.server
}

// Decide implements the control boundary of the run loop.
func (c *Controller) Decide(state plant.State) (plant.Commands, error) {
	// Sensors first so actuator decisions see this step's measurements.
	for _, agent := range c.agents {
		if agent.IsActuator() {
			continue
		}

		if _, err := c.exchange(agent, state); err != nil {
			return plant.Commands{}, err
		}
	}

	commands := plant.MakeCommands()
	for _, agent := range c.agents {
		if !agent.IsActuator() {
			continue
		}

		reply, err := c.exchange(agent, state)
		if err != nil {
			return plant.Commands{}, err
		}

		agent.UpdateFromReply(reply)
		agent.ApplyEffect(&commands)
	}

	return commands, nil
}

func (c *Controller) exchange(agent *Agent, state plant.State) (ScadaReply, error) {
	payload, err := EncodePlcRequest(agent.BuildRequest(state))
	if err != nil {
		return ScadaReply{}, fmt.Errorf("encoding request for %s: %w", agent.PlcID(), err)
	}

	req, err := DecodePlcRequest(payload)
	if err != nil {
		return ScadaReply{}, fmt.Errorf("decoding request for %s: %w", agent.PlcID(), err)
	}

	replyPayload, err := EncodeScadaReply(c.server.HandleRequest(req))
	if err != nil {
		return ScadaReply{}, fmt.Errorf("encoding reply for %s: %w", agent.PlcID(), err)
	}

	reply, err := DecodeScadaReply(replyPayload)
	if err != nil {
		return ScadaReply{}, fmt.Errorf("decoding reply for %s: %w", agent.PlcID(), err)
	}

	return reply, nil
}

// A NopController always returns an empty command set. It is the minimal
// configuration for open-loop runs.
type NopController struct{}

// Decide returns empty commands.
func (NopController) Decide(plant.State) (plant.Commands, error) {
	return plant.MakeCommands(), nil
}
