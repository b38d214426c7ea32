package domain

// ResultSet 一次编排运行的结果集合，调用方只读使用
type ResultSet struct {
	Config SimulationConfig
	// 按路径序号升序排列的成功路径结果
	Results []PathResult
	// 前 K 条路径的完整序列
	Samples []*Path
	// 没有被取消且所有路径都成功
	Complete  bool
	Requested int
	Failures  []PathFailure
}

// Len 成功路径数
func (rs *ResultSet) Len() int { return len(rs.Results) }

// IRRs 按路径顺序的 IRR，无解路径为 IRRUndefined
func (rs *ResultSet) IRRs() []float64 {
	out := make([]float64, len(rs.Results))
	for i := range rs.Results {
		out[i] = rs.Results[i].IRR
	}
	return out
}

// DefinedIRRs 仅包含有解路径的 IRR
func (rs *ResultSet) DefinedIRRs() []float64 {
	out := make([]float64, 0, len(rs.Results))
	for i := range rs.Results {
		if rs.Results[i].IRRDefined {
			out = append(out, rs.Results[i].IRR)
		}
	}
	return out
}

// NPVs 按路径顺序的 NPV
func (rs *ResultSet) NPVs() []float64 {
	out := make([]float64, len(rs.Results))
	for i := range rs.Results {
		out[i] = rs.Results[i].NPV
	}
	return out
}

// DefaultMatrix 路径 × 项目的违约标记
func (rs *ResultSet) DefaultMatrix() [][]bool {
	out := make([][]bool, len(rs.Results))
	for i := range rs.Results {
		out[i] = rs.Results[i].Defaulted
	}
	return out
}

// DefaultRate 所有 (路径, 项目) 中违约的比例
func (rs *ResultSet) DefaultRate() float64 {
	var defaulted, total int
	for i := range rs.Results {
		defaulted += rs.Results[i].DefaultCount()
		total += len(rs.Results[i].Defaulted)
	}
	if total == 0 {
		return 0
	}
	return float64(defaulted) / float64(total)
}

// UndefinedIRRCount IRR 无解的路径数
func (rs *ResultSet) UndefinedIRRCount() int {
	n := 0
	for i := range rs.Results {
		if !rs.Results[i].IRRDefined {
			n++
		}
	}
	return n
}
