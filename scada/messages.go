// Package scada is the in-process control layer: PLC agents build framed
// requests from the plant snapshot, a SCADA server evaluates the derived
// control rules and replies with actuator commands, and a Controller adapter
// runs the whole exchange once per step. The message shapes are what a real
// networked transport would carry; the framing is JSON either way.
package scada

import "encoding/json"

// Observations is the sensor payload of one PLC request. Which fields are
// set depends on the PLC's role and element kind.
type Observations struct {
	TankLevel      *float64           `json:"tank_level,omitempty"`
	Pressure       *float64           `json:"pressure,omitempty"`
	CurrentStatus  string             `json:"current_status,omitempty"`
	CurrentSetting *float64           `json:"current_setting,omitempty"`
	Pressures      map[string]float64 `json:"pressures,omitempty"`
}

// A PlcRequest is one PLC's report to SCADA for one timestep.
type PlcRequest struct {
	PlcID        string       `json:"plc_id"`
	Role         string       `json:"role"`
	Time         float64      `json:"time"`
	Observations Observations `json:"observations"`
}

// Responses is the command payload of one SCADA reply.
type Responses struct {
	PumpCommand    string   `json:"pump_command,omitempty"`
	ValveSetting   *float64 `json:"valve_setting,omitempty"`
	OverrideAction string   `json:"override_action,omitempty"`
}

// A ScadaReply answers one PlcRequest.
type ScadaReply struct {
	PlcID     string    `json:"plc_id"`
	Responses Responses `json:"responses"`
	Error     string    `json:"error,omitempty"`
}

// EncodePlcRequest frames a request for the wire.
func EncodePlcRequest(req PlcRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodePlcRequest parses a framed request.
func DecodePlcRequest(payload []byte) (PlcRequest, error) {
	var req PlcRequest
	err := json.Unmarshal(payload, &req)

	return req, err
}

// EncodeScadaReply frames a reply for the wire.
func EncodeScadaReply(reply ScadaReply) ([]byte, error) {
	return json.Marshal(reply)
}

// DecodeScadaReply parses a framed reply.
func DecodeScadaReply(payload []byte) (ScadaReply, error) {
	var reply ScadaReply
	err := json.Unmarshal(payload, &reply)

	return reply, err
}
