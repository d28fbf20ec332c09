// Package network reads EPANET-style INP network descriptions far enough to
// serve control inference: the component-kind tables and the raw [CONTROLS]
// section text. Hydraulic semantics of every other section stay with the
// external plant engine.
package network

// LinkKind is the kind of a link component in the network model.
type LinkKind int

// The link kinds that can appear in an INP file.
const (
	LinkKindUnknown LinkKind = iota
	LinkKindPipe
	LinkKindPump
	LinkKindValve
)

func (k LinkKind) String() string {
	switch k {
	case LinkKindPipe:
		return "pipe"
	case LinkKindPump:
		return "pump"
	case LinkKindValve:
		return "valve"
	default:
		return "unknown"
	}
}

// IsActuator returns true if links of this kind can be commanded.
func (k LinkKind) IsActuator() bool {
	return k == LinkKindPump || k == LinkKindValve
}

// NodeKind is the kind of a node component in the network model.
type NodeKind int

// The node kinds that can appear in an INP file.
const (
	NodeKindUnknown NodeKind = iota
	NodeKindJunction
	NodeKindTank
	NodeKindReservoir
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindJunction:
		return "junction"
	case NodeKindTank:
		return "tank"
	case NodeKindReservoir:
		return "reservoir"
	default:
		return "unknown"
	}
}

// A Line is one line of the source file together with its position, kept so
// that diagnostics can point back at the file.
type Line struct {
	Num  int
	Text string
}

// A Model is the component-kind table of one network, plus the raw text of
// its [CONTROLS] section. It is immutable after parsing.
type Model struct {
	links    map[string]LinkKind
	nodes    map[string]NodeKind
	controls []Line
}

// LinkKind looks up the kind of a link by its ID.
func (m *Model) LinkKind(id string) (LinkKind, bool) {
	k, ok := m.links[id]
	return k, ok
}

// NodeKind looks up the kind of a node by its ID.
func (m *Model) NodeKind(id string) (NodeKind, bool) {
	k, ok := m.nodes[id]
	return k, ok
}

// ControlLines returns the lines of the [CONTROLS] section in file order.
func (m *Model) ControlLines() []Line {
	lines := make([]Line, len(m.controls))
	copy(lines, m.controls)

	return lines
}

// NumLinks returns the number of links in the model.
func (m *Model) NumLinks() int {
	return len(m.links)
}

// NumNodes returns the number of nodes in the model.
func (m *Model) NumNodes() int {
	return len(m.nodes)
}
