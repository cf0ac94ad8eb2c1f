package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Log levels filter by severity. Output categories decide WHAT is printed or
// logged, so a command can hide its spinner at -v or dump full payloads
// only at -vvvv.
//
//	0 (default) - results, errors with hints, final status
//	1 (-v)      - + startup banner, import progress, cache decisions
//	2 (-vv)     - + search rounds, timing, config reloads
//	3 (-vvv)    - + BFS frontiers, repository batches
//	4 (-vvvv)   - + full network payloads

// OutputCategory is one kind of output that can be enabled or disabled.
type OutputCategory int

const (
	OutputResults OutputCategory = iota
	OutputErrors

	OutputStartup
	OutputProgress
	OutputCache

	OutputSearchRounds
	OutputTiming
	OutputConfig

	OutputFrontier
	OutputBatches

	OutputDataDump
)

var categoryLevels = map[OutputCategory]int{
	OutputResults: VerbosityUser,
	OutputErrors:  VerbosityUser,

	OutputStartup:  VerbosityInfo,
	OutputProgress: VerbosityInfo,
	OutputCache:    VerbosityInfo,

	OutputSearchRounds: VerbosityDebug,
	OutputTiming:       VerbosityDebug,
	OutputConfig:       VerbosityDebug,

	OutputFrontier: VerbosityTrace,
	OutputBatches:  VerbosityTrace,

	OutputDataDump: VerbosityAll,
}

var categoryNames = map[OutputCategory]string{
	OutputResults:      "results",
	OutputErrors:       "errors",
	OutputStartup:      "startup",
	OutputProgress:     "progress",
	OutputCache:        "cache",
	OutputSearchRounds: "search-rounds",
	OutputTiming:       "timing",
	OutputConfig:       "config",
	OutputFrontier:     "frontier",
	OutputBatches:      "batches",
	OutputDataDump:     "data-dump",
}

// ShouldOutput reports whether category is shown at verbosity. Unknown
// categories need maximum verbosity.
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// ClampVerbosity bounds a -v count to the supported range.
func ClampVerbosity(verbosity int) int {
	switch {
	case verbosity < VerbosityUser:
		return VerbosityUser
	case verbosity > VerbosityAll:
		return VerbosityAll
	default:
		return verbosity
	}
}
