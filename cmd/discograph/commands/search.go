package commands

import (
	"context"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/discograph/display"
	"github.com/teranos/discograph/role"
)

// SearchCmd finds entities by name
var SearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find artists and labels by name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

// RandomCmd picks a random entity
var RandomCmd = &cobra.Command{
	Use:   "random",
	Short: "Pick a random artist or label to explore",
	Long: `Pick a random entity. With --roles, the entity is taken from a relation
with one of those roles, so its network is never empty.`,
	Args: cobra.NoArgs,
	RunE: runRandom,
}

var (
	searchLimit int
	randomRoles []string
)

func init() {
	SearchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
	RandomCmd.Flags().StringSliceVar(&randomRoles, "roles", nil, "Only pick entities with a relation in these roles")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := store.SearchByName(context.Background(), query, searchLimit)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{"results": results})
	}
	return display.PrintSearchResults(query, results)
}

func runRandom(cmd *cobra.Command, args []string) error {
	if err := role.Default().Validate(randomRoles); err != nil {
		return err
	}

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	key, err := store.RandomEntity(ctx, randomRoles)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]string{"center": key.JSONKey()})
	}

	e, err := store.GetEntity(ctx, key)
	if err != nil {
		return err
	}
	pterm.Info.Printf("%s (%s)\n", e.Name, key.JSONKey())
	return nil
}
