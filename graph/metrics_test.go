package graph

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/discograph/errors"
	dgtest "github.com/teranos/discograph/internal/testing"
	"github.com/teranos/discograph/role"
)

func TestMetrics_RecordsBuilds(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	store := dgtest.SeefeelMemoryStore()
	b := newTestBuilder(t, store).WithMetrics(m)
	center := seefeelCenter(t, store)

	_, err := b.BuildEgoNetwork(context.Background(), center, Options{Degree: 1, Roles: structuralRoles})
	require.NoError(t, err)
	_, err = b.BuildEgoNetwork(context.Background(), center, Options{Roles: []string{"Kazoo"}})
	require.Error(t, err)
	_, err = b.BuildEgoNetwork(context.Background(), center, Options{
		Degree:   3,
		MaxNodes: 8,
		Roles:    []string{role.MemberOf, role.ReleasedOn},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Builds.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Builds.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrunedRoles.WithLabelValues(role.ReleasedOn)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Nodes))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "discograph_network_builds_total")
	assert.Contains(t, names, "discograph_network_build_seconds")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeBuild(time.Now(), nil, nil)
		m.observePrune(role.Producer)
	})
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{errors.NewEntityNotFoundError("artist-1"), OutcomeNotFound},
		{errors.NewInvalidRoleFilterError("Kazoo"), OutcomeInvalid},
		{errors.WrapUnavailable(errors.New("disk gone"), "search"), OutcomeUnavailable},
		{errors.Wrap(context.DeadlineExceeded, "round 2"), OutcomeCancelled},
		{errors.New("boom"), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}
