package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		verbosity  int
		wantLevel  zapcore.Level
	}{
		{"JSON output mode", true, VerbosityUser, zapcore.WarnLevel},
		{"Console output mode", false, VerbosityInfo, zapcore.InfoLevel},
		{"Console debug", false, VerbosityDebug, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			require.NoError(t, Initialize(tt.jsonOutput, tt.verbosity))
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)
			assert.Equal(t, tt.wantLevel, level.Level())

			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestSetVerbosity(t *testing.T) {
	require.NoError(t, Initialize(false, VerbosityUser))
	defer func() { Logger = zap.NewNop().Sugar() }()

	SetVerbosity(VerbosityDebug)
	assert.True(t, Logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	SetVerbosity(VerbosityUser)
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(9))
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(-3))
	assert.Equal(t, "Debug (-vv)", LevelName(2))
	assert.Equal(t, "All (-vvvv+)", LevelName(7))
	assert.Equal(t, "Unknown", LevelName(-1))
}

func TestNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = zap.NewNop().Sugar() }()

	Named("cli").Infow("started")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "cli", logs.All()[0].LoggerName)
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithComponent(ctx, "server")

	FromContext(ctx, base).Infow("network served", FieldEntityKey, "artist-2239")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields[FieldRequestID])
	assert.Equal(t, "server", fields[FieldComponent])
	assert.Equal(t, "artist-2239", fields[FieldEntityKey])
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
}

func TestFromContextWithoutFields(t *testing.T) {
	base := zap.NewNop().Sugar()
	assert.Same(t, base, FromContext(context.Background(), base))
	assert.Empty(t, FieldsFromContext(context.Background()))
}
