package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dms/internal/tracing"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := tracing.NewProvider(tracing.Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "run")
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_NoExporter(t *testing.T) {
	p, err := tracing.NewProvider(tracing.Config{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := tracing.NewProvider(tracing.Config{Enabled: true, Exporter: "carrier-pigeon"})
	assert.Error(t, err)
}
