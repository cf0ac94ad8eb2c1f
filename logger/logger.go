// Package logger holds the process-wide zap logger, the verbosity model
// behind the -v flags, and the structured field names shared by every
// component.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the process-wide logger. It is a no-op until Initialize runs,
	// so packages may log from init paths and tests without a nil check.
	Logger = zap.NewNop().Sugar()

	// JSONOutput records whether Initialize selected JSON logs.
	JSONOutput bool

	// level is shared by every logger built from Initialize so SetVerbosity
	// takes effect without rebuilding loggers handed out earlier.
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

// Initialize builds Logger for the CLI. JSON logs use zap's production
// encoder; console logs are colored and timestamped to the millisecond.
// Both write to stderr, keeping stdout for command results and the MCP
// stdio transport.
func Initialize(jsonOutput bool, verbosity int) error {
	JSONOutput = jsonOutput
	level.SetLevel(VerbosityToLevel(verbosity))

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = level
		config.OutputPaths = []string{"stderr"}
		zapLogger, err := config.Build()
		if err != nil {
			return err
		}
		Logger = zapLogger.Sugar()
		return nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	Logger = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)).Sugar()
	return nil
}

// SetVerbosity changes the level of every logger created by Initialize.
func SetVerbosity(verbosity int) {
	level.SetLevel(VerbosityToLevel(verbosity))
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	_ = Logger.Sync()
}

// Named returns a child of Logger for one component.
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}
