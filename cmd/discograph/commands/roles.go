package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/discograph/display"
	"github.com/teranos/discograph/role"
)

// RolesCmd lists the role catalog
var RolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the role names accepted by --roles, by category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		categories := role.Default().Categories()
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(map[string]interface{}{"categories": categories})
		}
		for _, cat := range categories {
			pterm.DefaultSection.WithLevel(2).Println(cat.Name)
			fmt.Println("  " + strings.Join(cat.Roles, ", "))
		}
		return nil
	},
}
