package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hydrolab/waterloop/config"
	"github.com/hydrolab/waterloop/loop"
	"github.com/hydrolab/waterloop/monitoring"
	"github.com/hydrolab/waterloop/plant"
	"github.com/hydrolab/waterloop/recording"
	"github.com/hydrolab/waterloop/scada"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the closed-loop co-simulation.",
	Long: "`run` builds the PLC inventory from the network's [CONTROLS] " +
		"section, replays a precomputed plant trajectory, and drives the " +
		"derived PLC/SCADA logic one step at a time.",
	Run: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("config", "sim_config.yaml",
		"Path to the simulation config YAML file")
	runCmd.Flags().String("plcs", "", "Path to the user PLC YAML file")
	runCmd.Flags().String("trajectory", "",
		"Path to the precomputed plant trajectory JSON file")
	runCmd.Flags().Bool("nop-controller", false,
		"Run with a controller that never issues commands")
	runCmd.Flags().Bool("open-dashboard", false,
		"Open the monitoring dashboard in a browser")
	_ = runCmd.MarkFlagRequired("trajectory")
}

func runSimulation(cmd *cobra.Command, _ []string) {
	configPath, _ := cmd.Flags().GetString("config")
	plcPath, _ := cmd.Flags().GetString("plcs")
	trajectoryPath, _ := cmd.Flags().GetString("trajectory")
	nop, _ := cmd.Flags().GetBool("nop-controller")
	openDashboard, _ := cmd.Flags().GetBool("open-dashboard")

	cfg, err := config.LoadSimConfig(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	totalSteps, err := cfg.TotalSteps()
	if err != nil {
		log.Fatalf("Error in config: %v", err)
	}

	_, rules, inventory := buildInventory(cfg.Network.InpPath, plcPath)

	snapshots, err := plant.LoadTrajectory(trajectoryPath)
	if err != nil {
		log.Fatalf("Error loading trajectory: %v", err)
	}
	replay := plant.NewReplayPlant(snapshots)

	var controller loop.Controller = scada.NewController(inventory, rules)
	if nop {
		controller = scada.NopController{}
	}

	stepper := loop.NewStepper(replay, controller, totalSteps)

	if cfg.Recording.Enabled {
		recorder := recording.NewRecorder(cfg.Recording.Path)
		recording.NewStepLogger(recorder).AttachTo(stepper)
	}

	if cfg.Monitoring.Enabled {
		monitor := monitoring.NewMonitor().
			WithPortNumber(cfg.Monitoring.Port)
		monitor.RegisterStepper(stepper)

		url := monitor.StartServer()
		if openDashboard {
			monitor.OpenDashboard(url)
		}
	}

	log.Printf("Starting closed-loop simulation for %d steps", totalSteps)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := stepper.Run(ctx); err != nil {
		log.Fatalf("Run aborted: %v", err)
	}

	fmt.Printf("Simulation %s after %d steps (sim time %.0fs)\n",
		stepper.State(), stepper.LastAppliedStep(), stepper.CurrentTime())
}
