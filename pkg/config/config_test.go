package config_test

import (
	"testing"
	"time"

	"github.com/goran-ethernal/ChainIndexor/internal/common"
	"github.com/goran-ethernal/ChainIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func validConfig() *config.Config {
	return &config.Config{
		Network: config.NetworkConfig{
			RPCURL:  "https://rpc.example.com",
			ChainID: 1,
		},
		DB: config.DatabaseConfig{
			Path: "./realtime.db",
		},
		LogFilters: []config.LogFilterConfig{
			{
				Key: "transfers",
				Filter: config.LogFilterRule{
					Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
				},
			},
		},
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	require.Equal(t, 4*time.Second, cfg.Network.PollingInterval.Duration)
	require.EqualValues(t, 64, cfg.Network.FinalityBlockCount)
	require.Equal(t, "WAL", cfg.DB.JournalMode)
	require.Equal(t, "NORMAL", cfg.DB.Synchronous)
	require.Equal(t, 5000, cfg.DB.BusyTimeout)
	require.Equal(t, 25, cfg.DB.MaxOpenConnections)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*config.Config) {},
			wantErr: false,
		},
		{
			name: "missing rpc url",
			mutate: func(c *config.Config) {
				c.Network.RPCURL = ""
			},
			wantErr: true,
		},
		{
			name: "missing chain id",
			mutate: func(c *config.Config) {
				c.Network.ChainID = 0
			},
			wantErr: true,
		},
		{
			name: "missing db path",
			mutate: func(c *config.Config) {
				c.DB.Path = ""
			},
			wantErr: true,
		},
		{
			name: "no log filters",
			mutate: func(c *config.Config) {
				c.LogFilters = nil
			},
			wantErr: true,
		},
		{
			name: "duplicate filter key",
			mutate: func(c *config.Config) {
				c.LogFilters = append(c.LogFilters, c.LogFilters[0])
			},
			wantErr: true,
		},
		{
			name: "filter missing address",
			mutate: func(c *config.Config) {
				c.LogFilters[0].Filter.Address = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			cfg.ApplyDefaults()

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfig_GetComponentLevel(t *testing.T) {
	l := &config.LoggingConfig{
		DefaultLevel: "info",
		ComponentLevels: map[string]string{
			"event-store": "debug",
		},
	}

	require.Equal(t, "debug", l.GetComponentLevel("event-store"))
	require.Equal(t, "info", l.GetComponentLevel("bloom-filter"))
	require.Equal(t, "info", l.GetDefaultLevel())
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		logging config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid default level",
			logging: config.LoggingConfig{DefaultLevel: "debug"},
			wantErr: false,
		},
		{
			name:    "invalid default level",
			logging: config.LoggingConfig{DefaultLevel: "verbose"},
			wantErr: true,
		},
		{
			name: "unknown component",
			logging: config.LoggingConfig{
				DefaultLevel:    "info",
				ComponentLevels: map[string]string{"nonexistent": "debug"},
			},
			wantErr: true,
		},
		{
			name: "invalid component level",
			logging: config.LoggingConfig{
				DefaultLevel:    "info",
				ComponentLevels: map[string]string{"event-store": "loud"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.logging.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	r := &config.RetryConfig{}
	r.ApplyDefaults()

	require.Equal(t, 5, r.MaxAttempts)
	require.Equal(t, common.NewDuration(time.Second), r.InitialBackoff)
	require.Equal(t, common.NewDuration(30*time.Second), r.MaxBackoff)
	require.InDelta(t, 2.0, r.BackoffMultiplier, 0.0001)
}
