package telemetry

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresServerAndName(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "pos"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "application name")

	_, err = NewProfiler(ProfilerConfig{
		Enabled:         true,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "pos",
		ProfileTypes:    []string{"heap"},
	}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unknown profile type")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}, types)

	types, err = ParseProfileTypes([]string{" CPU ", "mutex"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileMutexCount,
		pyroscope.ProfileMutexDuration,
	}, types)
}

func TestWithProfilingLabels(t *testing.T) {
	var got string
	WithProfilingLabels(context.Background(), map[string]string{
		"operation": "render_invoice",
		"layout":    "",
	}, func(ctx context.Context) {
		got, _ = pprof.Label(ctx, "operation")
		_, hasLayout := pprof.Label(ctx, "layout")
		assert.False(t, hasLayout)
	})
	assert.Equal(t, "render_invoice", got)

	called := false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
	assert.True(t, called)
}
