// Package display renders command results for people (pterm tables) or for
// scripts (JSON).
package display

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OutputEnv selects JSON output when set to "json", for scripts that cannot
// pass --json to every call.
const OutputEnv = "DISCOGRAPH_OUTPUT"

// ShouldOutputJSON determines if a command should output JSON based on flags and environment
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return jsonFromEnv()
	}

	// Check if --json flag was explicitly set
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}

	// Check global --json flag
	if globalFlag, _ := cmd.Root().PersistentFlags().GetBool("json"); globalFlag {
		return true
	}

	return jsonFromEnv()
}

func jsonFromEnv() bool {
	return strings.EqualFold(os.Getenv(OutputEnv), "json")
}

// OutputJSON marshals and prints JSON using display.MarshalJSON
func OutputJSON(v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
