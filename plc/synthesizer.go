package plc

import (
	"fmt"
	"net/netip"

	"github.com/hydrolab/waterloop/controls"
	"github.com/hydrolab/waterloop/network"
)

// Synthesized PLC IDs follow a fixed naming rule so repeated synthesis from
// the same input is idempotent.
const synthesizedIDPrefix = "PLC_SENSOR_"

// Placeholder addresses for synthesized sensor PLCs come from a reserved,
// non-routable pool, skipping addresses already taken by user entries.
var (
	placeholderPool  = netip.MustParsePrefix("10.0.1.0/24")
	placeholderFirst = netip.MustParseAddr("10.0.1.10")
)

// A DuplicatePlcIDError aborts synthesis: a synthesized ID collided with a
// declared one, which signals a naming-scheme conflict that has to be fixed
// in the configuration rather than silently renamed here.
type DuplicatePlcIDError struct {
	PlcID     string
	ElementID string
}

func (e *DuplicatePlcIDError) Error() string {
	return fmt.Sprintf("duplicate PLC ID %s for element %s", e.PlcID, e.ElementID)
}

// Synthesize merges the user-declared PLC entries with the classified rule
// set into a complete inventory. User entries come first, verbatim, in
// declaration order; a sensor-only entry is appended for every rule sensor
// no user entry covers, in order of first reference. Calling Synthesize
// twice on the same input yields identical inventories.
//
// Unknown user elements are reported as diagnostics and the entry dropped;
// ID collisions and invalid user addresses abort with an error.
func Synthesize(
	users []UserEntry,
	rules []controls.ControlRule,
	model *network.Model,
) (*Inventory, []controls.Diagnostic, error) {
	inv := newInventory()
	var diags []controls.Diagnostic
	usedIPs := make(map[netip.Addr]bool)

	for _, u := range users {
		entry, diag, err := declaredEntry(u, model)
		if err != nil {
			return nil, diags, err
		}
		if diag != nil {
			diags = append(diags, *diag)
			continue
		}

		if inv.hasID(entry.PlcID) {
			return nil, diags, &DuplicatePlcIDError{
				PlcID:     entry.PlcID,
				ElementID: entry.ElementID,
			}
		}

		usedIPs[entry.IP] = true
		inv.add(entry)
	}

	for _, rule := range rules {
		if inv.coversElement(rule.SensorID) {
			continue
		}

		entry, err := synthesizedEntry(rule, inv, usedIPs)
		if err != nil {
			return nil, diags, err
		}

		usedIPs[entry.IP] = true
		inv.add(entry)
	}

	return inv, diags, nil
}

func declaredEntry(
	u UserEntry,
	model *network.Model,
) (Entry, *controls.Diagnostic, error) {
	ip, err := netip.ParseAddr(u.IP)
	if err != nil {
		return Entry{}, nil,
			fmt.Errorf("PLC %s: invalid address %q: %w", u.PlcID, u.IP, err)
	}

	entry := Entry{
		PlcID:     u.PlcID,
		ElementID: u.ElementID,
		IP:        ip,
	}

	if kind, ok := model.LinkKind(u.ElementID); ok {
		entry.Role = RoleActuator
		entry.LinkKind = kind

		return entry, nil, nil
	}

	if kind, ok := model.NodeKind(u.ElementID); ok {
		entry.Role = RoleSensor
		entry.NodeKind = kind

		return entry, nil, nil
	}

	diag := controls.DiagnosticFor(
		controls.ErrUnknownComponentKind,
		"PLC %s references element %s, which is not in the network model",
		u.PlcID, u.ElementID)

	return Entry{}, &diag, nil
}

func synthesizedEntry(
	rule controls.ControlRule,
	inv *Inventory,
	usedIPs map[netip.Addr]bool,
) (Entry, error) {
	plcID := synthesizedIDPrefix + rule.SensorID
	if inv.hasID(plcID) {
		return Entry{}, &DuplicatePlcIDError{
			PlcID:     plcID,
			ElementID: rule.SensorID,
		}
	}

	ip, err := nextPlaceholderIP(usedIPs)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		PlcID:       plcID,
		ElementID:   rule.SensorID,
		IP:          ip,
		Role:        RoleSensor,
		NodeKind:    rule.SensorKind,
		Synthesized: true,
	}, nil
}

func nextPlaceholderIP(used map[netip.Addr]bool) (netip.Addr, error) {
	for ip := placeholderFirst; placeholderPool.Contains(ip); ip = ip.Next() {
		if !used[ip] {
			return ip, nil
		}
	}

	return netip.Addr{},
		fmt.Errorf("placeholder pool %s exhausted", placeholderPool)
}
