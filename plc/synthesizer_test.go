package plc_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hydrolab/waterloop/controls"
	"github.com/hydrolab/waterloop/network"
	"github.com/hydrolab/waterloop/plc"
)

const testINP = `
[JUNCTIONS]
J1	100
[TANKS]
TANK1	10
TANK2	12
[RESERVOIRS]
R1	50
[PUMPS]
PUMP1	R1	J1
[VALVES]
V1	J1	TANK1
[CONTROLS]
`

func classifyRules(model *network.Model, texts ...string) []controls.ControlRule {
	lines := make([]network.Line, 0, len(texts))
	for i, t := range texts {
		lines = append(lines, network.Line{Num: i + 1, Text: t})
	}

	stmts, diags := controls.ParseStatements(lines)
	Expect(diags).To(BeEmpty())

	rules, diags := controls.Classify(stmts, model)
	Expect(diags).To(BeEmpty())

	return rules
}

var _ = Describe("Synthesize", func() {
	var (
		model *network.Model
		rules []controls.ControlRule
	)

	BeforeEach(func() {
		var err error
		model, err = network.Parse(strings.NewReader(testINP))
		Expect(err).ToNot(HaveOccurred())

		rules = classifyRules(model,
			"LINK PUMP1 OPEN IF NODE TANK1 BELOW 2.0")
	})

	It("should keep user entries verbatim, deriving only the role", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_PUMP_1", ElementID: "PUMP1", IP: "10.0.0.11"},
		}

		inventory, diags, err := plc.Synthesize(users, nil, model)

		Expect(err).ToNot(HaveOccurred())
		Expect(diags).To(BeEmpty())
		Expect(inventory.Len()).To(Equal(1))

		entry, ok := inventory.ByID("PLC_PUMP_1")
		Expect(ok).To(BeTrue())
		Expect(entry.ElementID).To(Equal("PUMP1"))
		Expect(entry.IP.String()).To(Equal("10.0.0.11"))
		Expect(entry.Role).To(Equal(plc.RoleActuator))
		Expect(entry.LinkKind).To(Equal(network.LinkKindPump))
		Expect(entry.Synthesized).To(BeFalse())
	})

	It("should synthesize exactly one sensor PLC for an uncovered sensor",
		func() {
			inventory, diags, err := plc.Synthesize(nil, rules, model)

			Expect(err).ToNot(HaveOccurred())
			Expect(diags).To(BeEmpty())
			Expect(inventory.Len()).To(Equal(1))

			entry, ok := inventory.ByElement("TANK1")
			Expect(ok).To(BeTrue())
			Expect(entry.PlcID).To(Equal("PLC_SENSOR_TANK1"))
			Expect(entry.Role).To(Equal(plc.RoleSensor))
			Expect(entry.NodeKind).To(Equal(network.NodeKindTank))
			Expect(entry.IP.String()).To(Equal("10.0.1.10"))
			Expect(entry.Synthesized).To(BeTrue())
		})

	It("should not synthesize when a user entry covers the sensor", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_TANK_1", ElementID: "TANK1", IP: "10.0.0.20"},
		}

		inventory, _, err := plc.Synthesize(users, rules, model)

		Expect(err).ToNot(HaveOccurred())
		Expect(inventory.Len()).To(Equal(1))

		entry, _ := inventory.ByElement("TANK1")
		Expect(entry.PlcID).To(Equal("PLC_TANK_1"))
		Expect(entry.Synthesized).To(BeFalse())
	})

	It("should synthesize one entry per sensor, not per rule", func() {
		rules = classifyRules(model,
			"LINK PUMP1 OPEN IF NODE TANK1 BELOW 2.0",
			"LINK V1 CLOSED IF NODE TANK1 ABOVE 4.0",
			"LINK V1 OPEN IF NODE TANK2 BELOW 1.0",
		)

		inventory, _, err := plc.Synthesize(nil, rules, model)

		Expect(err).ToNot(HaveOccurred())
		Expect(inventory.Len()).To(Equal(2))
	})

	It("should resolve every rule sensor after synthesis", func() {
		rules = classifyRules(model,
			"LINK PUMP1 OPEN IF NODE TANK1 BELOW 2.0",
			"LINK V1 OPEN IF NODE TANK2 BELOW 1.0",
			"LINK V1 CLOSED IF NODE J1 ABOVE 80",
		)
		users := []plc.UserEntry{
			{PlcID: "PLC_TANK_2", ElementID: "TANK2", IP: "10.0.0.21"},
		}

		inventory, _, err := plc.Synthesize(users, rules, model)
		Expect(err).ToNot(HaveOccurred())

		for _, r := range rules {
			_, ok := inventory.ByElement(r.SensorID)
			Expect(ok).To(BeTrue(), "sensor %s not covered", r.SensorID)
		}
	})

	It("should be idempotent", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_PUMP_1", ElementID: "PUMP1", IP: "10.0.0.11"},
		}
		rules = classifyRules(model,
			"LINK PUMP1 OPEN IF NODE TANK1 BELOW 2.0",
			"LINK V1 OPEN IF NODE TANK2 BELOW 1.0",
		)

		first, _, err := plc.Synthesize(users, rules, model)
		Expect(err).ToNot(HaveOccurred())

		second, _, err := plc.Synthesize(users, rules, model)
		Expect(err).ToNot(HaveOccurred())

		Expect(second.Entries()).To(Equal(first.Entries()))
	})

	It("should skip placeholder addresses already in use", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_TANK_2", ElementID: "TANK2", IP: "10.0.1.10"},
		}

		inventory, _, err := plc.Synthesize(users, rules, model)
		Expect(err).ToNot(HaveOccurred())

		entry, _ := inventory.ByElement("TANK1")
		Expect(entry.IP.String()).To(Equal("10.0.1.11"))
	})

	It("should refuse a synthesized ID that collides with a user one", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_SENSOR_TANK1", ElementID: "TANK2", IP: "10.0.0.30"},
		}

		_, _, err := plc.Synthesize(users, rules, model)

		var dup *plc.DuplicatePlcIDError
		Expect(err).To(HaveOccurred())
		Expect(errors.As(err, &dup)).To(BeTrue())
		Expect(dup.PlcID).To(Equal("PLC_SENSOR_TANK1"))
	})

	It("should refuse duplicate user IDs", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_1", ElementID: "PUMP1", IP: "10.0.0.11"},
			{PlcID: "PLC_1", ElementID: "V1", IP: "10.0.0.12"},
		}

		_, _, err := plc.Synthesize(users, nil, model)

		var dup *plc.DuplicatePlcIDError
		Expect(errors.As(err, &dup)).To(BeTrue())
	})

	It("should keep unique IDs across the whole inventory", func() {
		rules = classifyRules(model,
			"LINK PUMP1 OPEN IF NODE TANK1 BELOW 2.0",
			"LINK V1 OPEN IF NODE TANK2 BELOW 1.0",
		)
		users := []plc.UserEntry{
			{PlcID: "PLC_PUMP_1", ElementID: "PUMP1", IP: "10.0.0.11"},
		}

		inventory, _, err := plc.Synthesize(users, rules, model)
		Expect(err).ToNot(HaveOccurred())

		seen := map[string]bool{}
		for _, e := range inventory.Entries() {
			Expect(seen[e.PlcID]).To(BeFalse(), "duplicate ID %s", e.PlcID)
			seen[e.PlcID] = true
		}
	})

	It("should report a user entry for an unknown element", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_X", ElementID: "NOPE", IP: "10.0.0.40"},
		}

		inventory, diags, err := plc.Synthesize(users, nil, model)

		Expect(err).ToNot(HaveOccurred())
		Expect(inventory.Len()).To(Equal(0))
		Expect(diags).To(HaveLen(1))
		Expect(diags[0]).To(MatchError(controls.ErrUnknownComponentKind))
	})

	It("should reject an invalid user address", func() {
		users := []plc.UserEntry{
			{PlcID: "PLC_X", ElementID: "PUMP1", IP: "not-an-ip"},
		}

		_, _, err := plc.Synthesize(users, nil, model)

		Expect(err).To(HaveOccurred())
	})
})
