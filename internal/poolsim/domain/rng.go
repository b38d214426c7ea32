package domain

import "math/rand/v2"

// StreamRole 随机流用途
type StreamRole uint8

const (
	RoleRates         StreamRole = iota + 1 // 远期利率冲击
	RoleSystemic                            // 抵押品系统性冲击，路径内所有项目共享
	RoleIdiosyncratic                       // 抵押品特质冲击，index 为项目序号
	RoleDefault                             // 违约抽样，index 为项目序号
)

// StreamFactory 从主种子派生 (路径, 用途, 序号) 独立的随机流。
// 同样的输入总是得到同样的序列，与执行顺序和并发度无关。
type StreamFactory struct {
	seed uint64
}

// NewStreamFactory 创建随机流工厂
func NewStreamFactory(seed uint64) StreamFactory {
	return StreamFactory{seed: seed}
}

// Stream 返回 (path, role, index) 对应的 PCG 随机数生成器
func (f StreamFactory) Stream(path int, role StreamRole, index int) *rand.Rand {
	hi := splitmix64(splitmix64(f.seed) + uint64(path))
	lo := splitmix64(hi ^ (uint64(role)<<56 | uint64(uint32(index))))
	return rand.New(rand.NewPCG(hi, lo))
}

// splitmix64 64 位混合函数，保证相邻输入得到不相关的状态
func splitmix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
