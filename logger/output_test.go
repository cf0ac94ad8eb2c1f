package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldOutput(t *testing.T) {
	tests := []struct {
		verbosity int
		category  OutputCategory
		want      bool
	}{
		{VerbosityUser, OutputResults, true},
		{VerbosityUser, OutputStartup, false},
		{VerbosityInfo, OutputStartup, true},
		{VerbosityInfo, OutputSearchRounds, false},
		{VerbosityDebug, OutputConfig, true},
		{VerbosityDebug, OutputFrontier, false},
		{VerbosityTrace, OutputBatches, true},
		{VerbosityTrace, OutputDataDump, false},
		{VerbosityAll, OutputDataDump, true},
		{VerbosityTrace, OutputCategory(99), false},
		{VerbosityAll, OutputCategory(99), true},
	}
	for _, tt := range tests {
		t.Run(CategoryName(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldOutput(tt.verbosity, tt.category))
		})
	}
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "frontier", CategoryName(OutputFrontier))
	assert.Equal(t, "unknown", CategoryName(OutputCategory(99)))
}

func TestClampVerbosity(t *testing.T) {
	assert.Equal(t, VerbosityUser, ClampVerbosity(-1))
	assert.Equal(t, VerbosityDebug, ClampVerbosity(2))
	assert.Equal(t, VerbosityAll, ClampVerbosity(9))
}
