package application

import (
	"fmt"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/config"
)

// Config 模拟服务配置
type Config struct {
	config.Config `mapstructure:",squash"`
	Engine        EngineConfig            `mapstructure:"engine"`
	Simulation    domain.SimulationConfig `mapstructure:"simulation"`
}

// EngineConfig 编排器运行参数
type EngineConfig struct {
	// worker 数，<= 0 时使用 GOMAXPROCS
	Workers int `mapstructure:"workers"`
	// 单个批次最长运行时间（秒），超时后按部分结果保存
	RunTimeout int `mapstructure:"run_timeout"`
	// 单次请求允许的最大路径数
	MaxPaths int `mapstructure:"max_paths"`
	// 保存路径结果时的批大小
	PathBatchSize int `mapstructure:"path_batch_size"`
}

// NewConfig 返回带默认模拟参数的配置，供 config.Load 覆盖
func NewConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			RunTimeout:    300,
			MaxPaths:      100_000,
			PathBatchSize: 500,
		},
		Simulation: domain.DefaultSimulationConfig(),
	}
}

// Validate 校验基础配置、引擎参数与默认模拟参数
func (c *Config) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Engine.RunTimeout <= 0 {
		return fmt.Errorf("engine.run_timeout must be > 0, got %d", c.Engine.RunTimeout)
	}
	if c.Engine.MaxPaths <= 0 {
		return fmt.Errorf("engine.max_paths must be > 0, got %d", c.Engine.MaxPaths)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	return nil
}
