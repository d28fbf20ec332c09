package controls

import (
	"github.com/hydrolab/waterloop/network"
)

// LogicMode is the closed set of threshold behaviors a control rule can
// express, the cross product of {open, close} and {below, above}.
type LogicMode int

// The four logic modes.
const (
	OpenIfBelow LogicMode = iota
	OpenIfAbove
	CloseIfBelow
	CloseIfAbove
)

func (m LogicMode) String() string {
	switch m {
	case OpenIfBelow:
		return "open_if_below"
	case OpenIfAbove:
		return "open_if_above"
	case CloseIfBelow:
		return "close_if_below"
	case CloseIfAbove:
		return "close_if_above"
	default:
		return "invalid"
	}
}

// Opens returns true if the mode commands the target open when triggered.
func (m LogicMode) Opens() bool {
	return m == OpenIfBelow || m == OpenIfAbove
}

// Triggered reports whether a sensor reading satisfies the mode's condition
// against a threshold.
func (m LogicMode) Triggered(value, threshold float64) bool {
	switch m {
	case OpenIfBelow, CloseIfBelow:
		return value < threshold
	case OpenIfAbove, CloseIfAbove:
		return value > threshold
	default:
		return false
	}
}

// A ControlRule is the typed form of one control statement. Rules are
// immutable once classified. Several rules may share a target; which one
// wins when several are simultaneously true is a control-layer decision,
// not encoded here.
type ControlRule struct {
	TargetID   string
	TargetKind network.LinkKind
	Mode       LogicMode
	Threshold  float64
	SensorID   string
	SensorKind network.NodeKind

	// Priority and Index carry the statement's declared priority and file
	// order for control layers that need a deterministic tie-break.
	Priority int
	Index    int
}

// Classify maps raw statements to control rules using the network model's
// component tables. A statement whose target or sensor is absent from the
// model, or whose target is not a pump or valve, produces a diagnostic and
// is dropped; the remaining statements are still classified.
func Classify(
	stmts []RawStatement,
	model *network.Model,
) ([]ControlRule, []Diagnostic) {
	var rules []ControlRule
	var diags []Diagnostic

	for _, stmt := range stmts {
		rule, diag, ok := classify(stmt, model)
		if !ok {
			diags = append(diags, diag)
			continue
		}

		rules = append(rules, rule)
	}

	return rules, diags
}

func classify(
	stmt RawStatement,
	model *network.Model,
) (ControlRule, Diagnostic, bool) {
	linkKind, ok := model.LinkKind(stmt.LinkID)
	if !ok {
		return ControlRule{},
			unknownKind(stmt.Line, "link %s is not in the network model", stmt.LinkID),
			false
	}

	if !linkKind.IsActuator() {
		return ControlRule{},
			unknownKind(stmt.Line,
				"link %s is a %s, not a controllable pump or valve",
				stmt.LinkID, linkKind),
			false
	}

	nodeKind, ok := model.NodeKind(stmt.NodeID)
	if !ok {
		return ControlRule{},
			unknownKind(stmt.Line, "node %s is not in the network model", stmt.NodeID),
			false
	}

	mode, ok := logicMode(stmt.Action, stmt.Comparator)
	if !ok {
		return ControlRule{},
			malformed(stmt.Line, "no logic mode for %s/%s", stmt.Action, stmt.Comparator),
			false
	}

	rule := ControlRule{
		TargetID:   stmt.LinkID,
		TargetKind: linkKind,
		Mode:       mode,
		Threshold:  stmt.Threshold,
		SensorID:   stmt.NodeID,
		SensorKind: nodeKind,
		Priority:   stmt.Priority,
		Index:      stmt.Index,
	}

	return rule, Diagnostic{}, true
}

func logicMode(action, comparator string) (LogicMode, bool) {
	switch {
	case action == "OPEN" && comparator == "BELOW":
		return OpenIfBelow, true
	case action == "OPEN" && comparator == "ABOVE":
		return OpenIfAbove, true
	case action == "CLOSED" && comparator == "BELOW":
		return CloseIfBelow, true
	case action == "CLOSED" && comparator == "ABOVE":
		return CloseIfAbove, true
	default:
		return 0, false
	}
}
