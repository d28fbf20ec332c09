// Package plc builds the complete PLC inventory of a run: the user-declared
// entries merged with sensor-only entries synthesized for every measurement
// point the control rules reference.
package plc

import (
	"net/netip"

	"github.com/hydrolab/waterloop/network"
)

// Role tells whether a PLC drives an actuator or reports a sensor.
type Role int

// The two PLC roles.
const (
	RoleActuator Role = iota
	RoleSensor
)

func (r Role) String() string {
	switch r {
	case RoleActuator:
		return "actuator"
	case RoleSensor:
		return "sensor"
	default:
		return "invalid"
	}
}

// An Entry is one PLC in the inventory. User-declared entries keep their
// declared ID and IP; Role and the element kinds are always derived from the
// network model, never user-specified. Entries are immutable once the
// inventory is built.
type Entry struct {
	PlcID     string
	ElementID string
	IP        netip.Addr
	Role      Role

	// Exactly one of LinkKind and NodeKind is meaningful, depending on Role.
	LinkKind network.LinkKind
	NodeKind network.NodeKind

	// Synthesized is true for entries invented by the synthesizer.
	Synthesized bool
}

// Kind returns the element kind as a printable name.
func (e Entry) Kind() string {
	if e.Role == RoleActuator {
		return e.LinkKind.String()
	}

	return e.NodeKind.String()
}

// A UserEntry is the minimal record shape a user declares in configuration.
// Everything richer is derived during synthesis so that configuration never
// duplicates network-model truth.
type UserEntry struct {
	PlcID     string
	ElementID string
	IP        string
}
