package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/version"
)

// printStartupBanner prints the server banner with the settings in effect.
func printStartupBanner(cfg *am.Config, port, verbosity int, dbPath string) {
	info := version.Get()

	_ = pterm.DefaultBigText.WithLetters(
		pterm.NewLettersFromStringWithStyle("disco", pterm.NewStyle(pterm.FgCyan)),
		pterm.NewLettersFromStringWithStyle("graph", pterm.NewStyle(pterm.FgMagenta)),
	).Render()

	rows := [][]string{
		{"Version", fmt.Sprintf("%s (%s)", info.Version, info.Short())},
		{"Address", fmt.Sprintf("http://localhost:%d", port)},
		{"Database", dbPath},
		{"Cache", cfg.Cache.Type},
		{"Verbosity", logger.LevelName(verbosity)},
		{"Network", fmt.Sprintf("degree %d, %d nodes (mobile: degree %d, %d nodes)",
			cfg.Network.Degree, cfg.Network.MaxNodes, cfg.Network.MobileDegree, cfg.Network.MobileMaxNodes)},
	}
	if cfg.Metrics.Enabled {
		rows = append(rows, []string{"Metrics", cfg.Metrics.Path})
	}
	if used := am.ConfigFileUsed(); used != "" {
		rows = append(rows, []string{"Config", used})
	}
	_ = pterm.DefaultTable.WithData(rows).Render()
	fmt.Println()
}
