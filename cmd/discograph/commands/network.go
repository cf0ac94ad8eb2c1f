package commands

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/display"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/graph"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
)

// NetworkCmd builds an ego network from the command line
var NetworkCmd = &cobra.Command{
	Use:   "network <key>",
	Short: "Build the ego network around an artist or label",
	Long: `Build the ego network around an entity, following only the given roles.

Budgets default to the network.* configuration; the flags override them.

Examples:
  discograph network artist-2239 --roles "Released On" --roles Producer
  discograph network label-23528 --roles "Released On" --year 1993-1995 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runNetwork,
}

var (
	networkRoles     []string
	networkDegree    int
	networkMaxNodes  int
	networkLinkRatio int
	networkPages     int
	networkYear      string
)

func init() {
	NetworkCmd.Flags().StringSliceVar(&networkRoles, "roles", nil, "Roles to follow (repeatable; see 'discograph roles')")
	NetworkCmd.Flags().IntVar(&networkDegree, "degree", -1, "Maximum distance from the center (default network.degree)")
	NetworkCmd.Flags().IntVar(&networkMaxNodes, "max-nodes", 0, "Node budget (default network.max_nodes)")
	NetworkCmd.Flags().IntVar(&networkLinkRatio, "link-ratio", 0, "Links allowed per node (default network.link_ratio)")
	NetworkCmd.Flags().IntVar(&networkPages, "pages", 0, "Number of pages to partition into (default network.page_count)")
	NetworkCmd.Flags().StringVar(&networkYear, "year", "", "Only follow relations released in this year or range, e.g. 1994 or 1990-1999")
}

func runNetwork(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	key, err := entity.ParseJSONKey(args[0])
	if err != nil {
		return err
	}
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	opts, err := networkOptions(cfg.Network)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	center, err := store.GetEntity(ctx, key)
	if err != nil {
		return err
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	verbosity = logger.ClampVerbosity(verbosity)
	builder := graph.NewBuilder(store, role.Default(), verbosity, logger.Logger)
	network, err := builder.BuildEgoNetwork(ctx, center, opts)
	if err != nil {
		return errors.Wrapf(err, "failed to build network for %s", key.JSONKey())
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(network)
	}
	return display.PrintNetwork(network)
}

// networkOptions overlays the command flags on the configured budgets.
func networkOptions(cfg am.NetworkConfig) (graph.Options, error) {
	year, err := graph.ParseYearRange(networkYear)
	if err != nil {
		return graph.Options{}, err
	}
	roles := append([]string(nil), networkRoles...)
	if err := role.Default().Validate(roles); err != nil {
		return graph.Options{}, err
	}
	sort.Strings(roles)

	opts := graph.Options{
		Degree:    cfg.Degree,
		MaxNodes:  cfg.MaxNodes,
		LinkRatio: cfg.LinkRatio,
		PageCount: cfg.PageCount,
		Roles:     roles,
		Year:      year,
	}
	if networkDegree >= 0 {
		opts.Degree = networkDegree
	}
	if networkMaxNodes > 0 {
		opts.MaxNodes = networkMaxNodes
	}
	if networkLinkRatio > 0 {
		opts.LinkRatio = networkLinkRatio
	}
	if networkPages > 0 {
		opts.PageCount = networkPages
	}
	return opts, nil
}
