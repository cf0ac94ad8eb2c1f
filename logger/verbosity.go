package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// The network builder logs its per-round progress at Debug, so -vv is the
// level to use when tuning budgets.
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + startup, cache, import progress
	VerbosityDebug = 2 // -vv: + search rounds, pruning, partition summary
	VerbosityTrace = 3 // -vvv: + frontiers and repository batches
	VerbosityAll   = 4 // -vvvv: + full network payloads
)

var verbosityLevels = [...]struct {
	level zapcore.Level
	name  string
}{
	VerbosityUser:  {zapcore.WarnLevel, "User"},
	VerbosityInfo:  {zapcore.InfoLevel, "Info (-v)"},
	VerbosityDebug: {zapcore.DebugLevel, "Debug (-vv)"},
	VerbosityTrace: {zapcore.DebugLevel, "Trace (-vvv)"},
	VerbosityAll:   {zapcore.DebugLevel, "All (-vvvv)"},
}

// VerbosityToLevel maps a -v count to a zap level. Everything from -vv up
// logs at Debug; the finer steps are output categories, not levels.
func VerbosityToLevel(verbosity int) zapcore.Level {
	return verbosityLevels[ClampVerbosity(verbosity)].level
}

// LevelName returns a human-readable name for verbosity level
func LevelName(verbosity int) string {
	if verbosity > VerbosityAll {
		return "All (-vvvv+)"
	}
	if verbosity < VerbosityUser {
		return "Unknown"
	}
	return verbosityLevels[verbosity].name
}
