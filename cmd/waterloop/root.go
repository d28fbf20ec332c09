package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "waterloop",
	Short: "waterloop derives PLC inventories from water-network control " +
		"statements and runs closed-loop co-simulations.",
	Long: `waterloop reads an EPANET-style network description, derives the ` +
		`control rules and the complete PLC inventory from its [CONTROLS] ` +
		`section, and steps a hydraulic plant in a closed loop against the ` +
		`derived PLC/SCADA logic.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Overrides in a .env file win over the config files but lose to
		// real environment variables.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
