package plant_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hydrolab/waterloop/plant"
)

var _ = Describe("State", func() {
	state := plant.State{
		Tanks:     map[string]float64{"TANK1": 3.5},
		Pressures: map[string]float64{"JUNC1": 50.0},
	}

	It("should resolve tank levels by element ID", func() {
		v, ok := state.SensorValue("TANK1")

		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(3.5))
	})

	It("should resolve junction pressures by element ID", func() {
		v, ok := state.SensorValue("JUNC1")

		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(50.0))
	})

	It("should report unknown elements", func() {
		_, ok := state.SensorValue("NOPE")

		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("ReplayPlant", func() {
	snapshots := []plant.State{
		{Time: 0},
		{Time: 60},
		{Time: 120},
	}

	It("should serve snapshots in order", func() {
		p := plant.NewReplayPlant(snapshots)

		for i, want := range snapshots {
			state, err := p.Step()

			Expect(err).ToNot(HaveOccurred())
			Expect(state.Time).To(Equal(want.Time))
			Expect(p.StepsServed()).To(Equal(i + 1))
		}
	})

	It("should signal the end of the horizon", func() {
		p := plant.NewReplayPlant(snapshots[:1])

		_, err := p.Step()
		Expect(err).ToNot(HaveOccurred())

		_, err = p.Step()
		Expect(errors.Is(err, plant.ErrEndOfHorizon)).To(BeTrue())
	})

	It("should cache applied commands without changing the trajectory", func() {
		p := plant.NewReplayPlant(snapshots)

		commands := plant.MakeCommands()
		commands.Pumps["PUMP1"] = plant.PumpOn
		Expect(p.ApplyActuatorCommands(commands)).To(Succeed())

		Expect(p.LastCommands()).To(Equal(commands))

		state, err := p.Step()
		Expect(err).ToNot(HaveOccurred())
		Expect(state.Time).To(Equal(0.0))
	})
})

var _ = Describe("LoadTrajectory", func() {
	It("should load a snapshot sequence from JSON", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trajectory.json")
		content := `[
			{"Time": 0, "Tanks": {"TANK1": 2.5}},
			{"Time": 60, "Tanks": {"TANK1": 2.7}}
		]`
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())

		snapshots, err := plant.LoadTrajectory(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(snapshots).To(HaveLen(2))
		Expect(snapshots[1].Tanks).To(HaveKeyWithValue("TANK1", 2.7))
	})

	It("should fail on a missing file", func() {
		_, err := plant.LoadTrajectory("no_such_file.json")

		Expect(err).To(HaveOccurred())
	})

	It("should fail on malformed JSON", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.json")
		Expect(os.WriteFile(path, []byte("{not json"), 0644)).To(Succeed())

		_, err := plant.LoadTrajectory(path)

		Expect(err).To(HaveOccurred())
	})
})
