package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/creditpool/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigOverlaysSimulationDefaults(t *testing.T) {
	path := writeConfig(t, `
service_name = "poolsim"

[http]
port = 9090

[engine]
workers = 2
run_timeout = 60

[simulation]
num_paths = 1000
seed = 11
collateral_vol = 0.25
amortization = "level_payment"
`)
	t.Setenv("APP_SIMULATION_SEED", "7")

	cfg := NewConfig()
	require.NoError(t, config.Load(path, cfg))

	assert.Equal(t, "poolsim", cfg.ServiceName)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, 60, cfg.Engine.RunTimeout)
	assert.Equal(t, 100_000, cfg.Engine.MaxPaths)

	assert.Equal(t, 1000, cfg.Simulation.NumPaths)
	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, 0.25, cfg.Simulation.CollateralVol)
	assert.Equal(t, "level_payment", string(cfg.Simulation.Amortization))
	// 文件中未出现的参数保持默认值
	assert.Equal(t, 0.12, cfg.Simulation.LoanCoupon)
	assert.Equal(t, 10, cfg.Simulation.NumProjects)
}

func TestLoadConfigRejectsInvalidSimulation(t *testing.T) {
	path := writeConfig(t, `
[simulation]
recovery_rate = 1.5
`)
	err := config.Load(path, NewConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovery_rate")
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, config.Load(filepath.Join(t.TempDir(), "absent.toml"), cfg))
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5000, cfg.Simulation.NumPaths)
}
