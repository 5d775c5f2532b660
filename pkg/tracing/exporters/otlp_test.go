package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOTLPExporter_UnsupportedProtocol(t *testing.T) {
	_, err := NewOTLPExporter(context.Background(), OTLPConfig{Endpoint: "localhost:4317", Protocol: "udp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "udp")
}

func TestNewOTLPExporter_HTTP(t *testing.T) {
	exporter, err := NewOTLPExporter(context.Background(), OTLPConfig{Endpoint: "localhost:4318", Protocol: "HTTP", Insecure: true})
	require.NoError(t, err)
	require.NoError(t, exporter.Shutdown(context.Background()))
}

func TestOTLPConfigDefaults(t *testing.T) {
	cfg := OTLPConfig{}
	assert.Equal(t, ProtocolGRPC, cfg.protocol())
	assert.Equal(t, defaultTimeout, cfg.timeout())

	cfg.Timeout = time.Second
	assert.Equal(t, time.Second, cfg.timeout())
}
