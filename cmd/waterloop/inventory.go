package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hydrolab/waterloop/config"
	"github.com/hydrolab/waterloop/controls"
	"github.com/hydrolab/waterloop/network"
	"github.com/hydrolab/waterloop/plc"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Derive and print the control rules and the PLC inventory.",
	Run: func(cmd *cobra.Command, _ []string) {
		inpPath, _ := cmd.Flags().GetString("inp")
		plcPath, _ := cmd.Flags().GetString("plcs")

		model, rules, inventory := buildInventory(inpPath, plcPath)

		fmt.Printf("Network: %d links, %d nodes\n",
			model.NumLinks(), model.NumNodes())

		fmt.Printf("\nControl rules (%d):\n", len(rules))
		for _, r := range rules {
			fmt.Printf("  %-12s %-5s %-14s sensor=%s (%s) threshold=%g\n",
				r.TargetID, r.TargetKind, r.Mode, r.SensorID, r.SensorKind,
				r.Threshold)
		}

		fmt.Printf("\nPLC inventory (%d):\n", inventory.Len())
		for _, e := range inventory.Entries() {
			origin := "declared"
			if e.Synthesized {
				origin = "synthesized"
			}

			fmt.Printf("  %-20s %-12s %-15s %-8s %-10s %s\n",
				e.PlcID, e.ElementID, e.IP, e.Role, e.Kind(), origin)
		}
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.Flags().String("inp", "", "Path to the INP network file")
	inventoryCmd.Flags().String("plcs", "", "Path to the user PLC YAML file")
	_ = inventoryCmd.MarkFlagRequired("inp")
}

// buildInventory runs the parser, classifier and synthesizer, printing every
// collected diagnostic to stderr. Fatal synthesis errors end the process.
func buildInventory(
	inpPath, plcPath string,
) (*network.Model, []controls.ControlRule, *plc.Inventory) {
	model, err := network.ParseFile(inpPath)
	if err != nil {
		log.Fatalf("Error reading network: %v", err)
	}

	var users []plc.UserEntry
	if plcPath != "" {
		plcFile, err := config.LoadUserPlcFile(plcPath)
		if err != nil {
			log.Fatalf("Error reading PLC config: %v", err)
		}
		users = plcFile.UserEntries()
	}

	stmts, parseDiags := controls.ParseStatements(model.ControlLines())
	rules, classifyDiags := controls.Classify(stmts, model)

	inventory, synthDiags, err := plc.Synthesize(users, rules, model)

	for _, d := range gatherDiags(parseDiags, classifyDiags, synthDiags) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", d)
	}

	if err != nil {
		log.Fatalf("Error building PLC inventory: %v", err)
	}

	return model, rules, inventory
}

func gatherDiags(lists ...[]controls.Diagnostic) []controls.Diagnostic {
	var all []controls.Diagnostic
	for _, l := range lists {
		all = append(all, l...)
	}

	return all
}
