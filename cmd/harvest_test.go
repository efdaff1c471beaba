package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankrot/harvester/internal/config"
	"bankrot/harvester/internal/fetcher/collyhttp"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestSessionFactoryHTTPMode(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Fetch.Mode = config.FetchModeHTTP
	cfg.Fetch.WaitTimeoutSec = 7

	factory, err := sessionFactory(cfg, nil)
	require.NoError(t, err)

	f, err := factory(t.Context())
	require.NoError(t, err)
	defer f.Close()
	_, ok := f.(*collyhttp.Session)
	assert.True(t, ok)
}

func TestSessionFactoryRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Fetch.Mode = "telnet"

	_, err := sessionFactory(cfg, nil)
	assert.Error(t, err)
}

func TestSessionFactoryHeadlessModeDefers(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Fetch.Mode = config.FetchModeHeadless
	cfg.Fetch.NavTimeoutSec = 1

	// Building the factory must not launch a browser; only invoking it does.
	factory, err := sessionFactory(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestRootCommandInitFailureSurfaces(t *testing.T) {
	origCfg := cfgFile
	t.Cleanup(func() { cfgFile = origCfg })

	cmd := newRootCmd()
	cfgFile = "does-not-exist.yaml"
	cmd.SetArgs([]string{"harvest"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize")
}

func TestConfigTimeoutsReachTransports(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	assert.Equal(t, 25*time.Second, cfg.NavTimeout())
	assert.Equal(t, 12*time.Second, cfg.WaitTimeout())
}
