package loop_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/hydrolab/waterloop/hooking"
	"github.com/hydrolab/waterloop/loop"
	"github.com/hydrolab/waterloop/plant"
)

type hookRecorder struct {
	events []string
	infos  []loop.StepInfo
}

func (h *hookRecorder) Func(ctx hooking.HookCtx) {
	h.events = append(h.events, ctx.Pos.Name)
	h.infos = append(h.infos, ctx.Item.(loop.StepInfo))
}

type endRecorder struct {
	finals []loop.RunState
}

func (e *endRecorder) RunEnded(final loop.RunState) {
	e.finals = append(e.finals, final)
}

var _ = Describe("Stepper", func() {
	var (
		mockCtrl   *gomock.Controller
		mockPlant  *MockPlant
		controller *MockController
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockPlant = NewMockPlant(mockCtrl)
		controller = NewMockController(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start idle", func() {
		stepper := loop.NewStepper(mockPlant, controller, 3)

		Expect(stepper.State()).To(Equal(loop.StateIdle))
		Expect(stepper.LastAppliedStep()).To(Equal(0))
	})

	It("should read, decide and apply in strict alternation", func() {
		const numSteps = 5
		stepper := loop.NewStepper(mockPlant, controller, numSteps)

		var calls []any
		for i := 0; i < numSteps; i++ {
			state := plant.State{Time: float64(i) * 60}

			stepCall := mockPlant.EXPECT().Step().Return(state, nil)
			decideCall := controller.EXPECT().Decide(state).
				Return(plant.MakeCommands(), nil).After(stepCall)
			applyCall := mockPlant.EXPECT().
				ApplyActuatorCommands(plant.MakeCommands()).
				Return(nil).After(decideCall)

			calls = append(calls, stepCall, decideCall, applyCall)
		}
		gomock.InOrder(calls...)

		err := stepper.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(stepper.State()).To(Equal(loop.StateCompleted))
		Expect(stepper.LastAppliedStep()).To(Equal(numSteps))
		Expect(stepper.CurrentTime()).To(Equal(float64(numSteps-1) * 60))
	})

	It("should abort when the controller fails, without another step", func() {
		stepper := loop.NewStepper(mockPlant, controller, 10)

		cause := errors.New("decide exploded")

		mockPlant.EXPECT().Step().Return(plant.State{}, nil).Times(3)
		controller.EXPECT().Decide(gomock.Any()).
			Return(plant.MakeCommands(), nil).Times(2)
		controller.EXPECT().Decide(gomock.Any()).
			Return(plant.Commands{}, cause)
		mockPlant.EXPECT().ApplyActuatorCommands(gomock.Any()).
			Return(nil).Times(2)

		err := stepper.Run(context.Background())

		Expect(stepper.State()).To(Equal(loop.StateAborted))

		var failure *loop.StepFailure
		Expect(errors.As(err, &failure)).To(BeTrue())
		Expect(failure.Step).To(Equal(3))
		Expect(failure.LastApplied).To(Equal(2))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("should abort when the plant cannot step", func() {
		stepper := loop.NewStepper(mockPlant, controller, 10)

		mockPlant.EXPECT().Step().
			Return(plant.State{}, errors.New("solver diverged"))

		err := stepper.Run(context.Background())

		Expect(err).To(HaveOccurred())
		Expect(stepper.State()).To(Equal(loop.StateAborted))
	})

	It("should abort when commands cannot be applied", func() {
		stepper := loop.NewStepper(mockPlant, controller, 10)

		mockPlant.EXPECT().Step().Return(plant.State{}, nil)
		controller.EXPECT().Decide(gomock.Any()).
			Return(plant.MakeCommands(), nil)
		mockPlant.EXPECT().ApplyActuatorCommands(gomock.Any()).
			Return(errors.New("actuator gone"))

		err := stepper.Run(context.Background())

		var failure *loop.StepFailure
		Expect(errors.As(err, &failure)).To(BeTrue())
		Expect(failure.Step).To(Equal(1))
		Expect(failure.LastApplied).To(Equal(0))
	})

	It("should complete when the plant reaches its horizon", func() {
		stepper := loop.NewStepper(mockPlant, controller, 10)

		mockPlant.EXPECT().Step().Return(plant.State{}, nil).Times(2)
		controller.EXPECT().Decide(gomock.Any()).
			Return(plant.MakeCommands(), nil).Times(2)
		mockPlant.EXPECT().ApplyActuatorCommands(gomock.Any()).
			Return(nil).Times(2)
		mockPlant.EXPECT().Step().Return(plant.State{}, plant.ErrEndOfHorizon)

		err := stepper.Run(context.Background())

		Expect(err).ToNot(HaveOccurred())
		Expect(stepper.State()).To(Equal(loop.StateCompleted))
		Expect(stepper.LastAppliedStep()).To(Equal(2))
	})

	It("should honor a stop request at the step boundary", func() {
		stepper := loop.NewStepper(mockPlant, controller, 10)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := stepper.Run(ctx)

		Expect(err).ToNot(HaveOccurred())
		Expect(stepper.State()).To(Equal(loop.StateCompleted))
		Expect(stepper.LastAppliedStep()).To(Equal(0))
	})

	It("should refuse to run twice", func() {
		stepper := loop.NewStepper(mockPlant, controller, 1)

		mockPlant.EXPECT().Step().Return(plant.State{}, nil)
		controller.EXPECT().Decide(gomock.Any()).
			Return(plant.MakeCommands(), nil)
		mockPlant.EXPECT().ApplyActuatorCommands(gomock.Any()).Return(nil)

		Expect(stepper.Run(context.Background())).To(Succeed())
		Expect(stepper.Run(context.Background())).ToNot(Succeed())
	})

	It("should invoke hooks around every step", func() {
		stepper := loop.NewStepper(mockPlant, controller, 2)
		hook := &hookRecorder{}
		stepper.AcceptHook(hook)

		commands := plant.MakeCommands()
		commands.Pumps["PUMP1"] = plant.PumpOn

		mockPlant.EXPECT().Step().Return(plant.State{}, nil).Times(2)
		controller.EXPECT().Decide(gomock.Any()).
			Return(commands, nil).Times(2)
		mockPlant.EXPECT().ApplyActuatorCommands(gomock.Any()).
			Return(nil).Times(2)

		Expect(stepper.Run(context.Background())).To(Succeed())

		Expect(hook.events).To(Equal([]string{
			"BeforeStep", "AfterStep", "BeforeStep", "AfterStep",
		}))
		Expect(hook.infos[0].Step).To(Equal(1))
		Expect(hook.infos[1].Commands).To(Equal(commands))
		Expect(hook.infos[2].Step).To(Equal(2))
	})

	It("should tell end handlers how the run ended", func() {
		stepper := loop.NewStepper(mockPlant, controller, 1)
		end := &endRecorder{}
		stepper.RegisterEndHandler(end)

		mockPlant.EXPECT().Step().
			Return(plant.State{}, errors.New("solver diverged"))

		Expect(stepper.Run(context.Background())).ToNot(Succeed())
		Expect(end.finals).To(Equal([]loop.RunState{loop.StateAborted}))
	})
})
