package plc

// An Inventory is the ordered, read-only collection of PLC entries for one
// run. Every sensor referenced by a control rule resolves to exactly one
// entry once synthesis has completed.
type Inventory struct {
	entries   []Entry
	byID      map[string]int
	byElement map[string]int
}

func newInventory() *Inventory {
	return &Inventory{
		byID:      make(map[string]int),
		byElement: make(map[string]int),
	}
}

func (inv *Inventory) add(e Entry) {
	inv.byID[e.PlcID] = len(inv.entries)
	inv.byElement[e.ElementID] = len(inv.entries)
	inv.entries = append(inv.entries, e)
}

// Len returns the number of entries.
func (inv *Inventory) Len() int {
	return len(inv.entries)
}

// Entries returns the entries in inventory order.
func (inv *Inventory) Entries() []Entry {
	entries := make([]Entry, len(inv.entries))
	copy(entries, inv.entries)

	return entries
}

// ByID looks up an entry by its PLC ID.
func (inv *Inventory) ByID(plcID string) (Entry, bool) {
	i, ok := inv.byID[plcID]
	if !ok {
		return Entry{}, false
	}

	return inv.entries[i], true
}

// ByElement looks up the entry that owns a network element.
func (inv *Inventory) ByElement(elementID string) (Entry, bool) {
	i, ok := inv.byElement[elementID]
	if !ok {
		return Entry{}, false
	}

	return inv.entries[i], true
}

func (inv *Inventory) hasID(plcID string) bool {
	_, ok := inv.byID[plcID]
	return ok
}

func (inv *Inventory) coversElement(elementID string) bool {
	_, ok := inv.byElement[elementID]
	return ok
}
