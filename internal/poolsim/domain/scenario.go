package domain

import (
	"fmt"
	"slices"
	"sort"
)

// Scenario 压力情景：在基准参数上派生一组新参数
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	apply       func(*SimulationConfig)
}

// Apply 返回在 base 上应用情景后的新参数，base 不变
func (s Scenario) Apply(base SimulationConfig) SimulationConfig {
	if s.apply == nil {
		return base
	}
	return base.With(s.apply)
}

// ScenarioBase 基准情景名称
const ScenarioBase = "BASE"

// ScenarioSet 情景注册表
type ScenarioSet struct {
	scenarios map[string]Scenario
}

// NewScenarioSet 创建包含默认情景的注册表
func NewScenarioSet() *ScenarioSet {
	s := &ScenarioSet{scenarios: make(map[string]Scenario)}
	s.initDefaultScenarios()
	return s
}

func (s *ScenarioSet) initDefaultScenarios() {
	s.Register(Scenario{
		Name:        ScenarioBase,
		Description: "Base case parameters",
	})

	// 房地产下行：抵押品负漂移、波动翻倍
	s.Register(Scenario{
		Name:        "RE_CRASH",
		Description: "Real estate downturn: collateral drift -5%, volatility 30%",
		apply: func(c *SimulationConfig) {
			c.CollateralDrift = -0.05
			c.CollateralVol = 0.30
		},
	})

	// 利率冲击：远期利率波动翻倍
	s.Register(Scenario{
		Name:        "RATE_SHOCK",
		Description: "Rate volatility shock: forward rate volatility 30%",
		apply: func(c *SimulationConfig) {
			c.ForwardRateVol = 0.30
		},
	})

	// 信用恶化：基础违约率三倍，回收率下降
	s.Register(Scenario{
		Name:        "HIGH_DEFAULT",
		Description: "Credit deterioration: base default probability x3, recovery 50%",
		apply: func(c *SimulationConfig) {
			c.BaseDefaultProb = min(1, c.BaseDefaultProb*3)
			c.RecoveryRate = 0.50
		},
	})
}

// Register 注册或覆盖情景
func (s *ScenarioSet) Register(sc Scenario) {
	s.scenarios[sc.Name] = sc
}

// Get 按名称查找情景
func (s *ScenarioSet) Get(name string) (Scenario, error) {
	sc, ok := s.scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("scenario %s not found", name)
	}
	return sc, nil
}

// Names 已注册情景名称，BASE 排在最前
func (s *ScenarioSet) Names() []string {
	names := make([]string, 0, len(s.scenarios))
	for name := range s.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	if i := slices.Index(names, ScenarioBase); i > 0 {
		names = slices.Delete(names, i, i+1)
		names = slices.Insert(names, 0, ScenarioBase)
	}
	return names
}
