package domain

import "math"

// AmortizationKind 还本方式
type AmortizationKind string

const (
	// AmortizationBullet 到期一次还本
	AmortizationBullet AmortizationKind = "bullet"
	// AmortizationLevelPrincipal 等额本金
	AmortizationLevelPrincipal AmortizationKind = "level_principal"
	// AmortizationLevelPayment 等额本息
	AmortizationLevelPayment AmortizationKind = "level_payment"
)

// Valid 是否为支持的还本方式
func (k AmortizationKind) Valid() bool {
	switch k {
	case AmortizationBullet, AmortizationLevelPrincipal, AmortizationLevelPayment:
		return true
	}
	return false
}

// Schedule 单笔贷款的还本计划
type Schedule struct {
	Kind         AmortizationKind
	Original     float64
	Coupon       float64
	Dt           float64
	MaturityStep int
}

// ScheduleFrom 从模拟参数构造还本计划
func ScheduleFrom(cfg *SimulationConfig) Schedule {
	return Schedule{
		Kind:         cfg.Amortization,
		Original:     cfg.LoanPerProject(),
		Coupon:       cfg.LoanCoupon,
		Dt:           cfg.Dt(),
		MaturityStep: cfg.MaturityStep(),
	}
}

// PrincipalDue 第 step 步（从 1 开始）应还本金，balance 为该步期初余额。
// 到期步及之后偿还全部余额；结果不超过 balance。
func (s Schedule) PrincipalDue(step int, balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	if step >= s.MaturityStep {
		return balance
	}

	var due float64
	switch s.Kind {
	case AmortizationLevelPrincipal:
		due = s.Original / float64(s.MaturityStep)
	case AmortizationLevelPayment:
		r := s.Coupon * s.Dt
		if r == 0 {
			due = s.Original / float64(s.MaturityStep)
			break
		}
		payment := s.Original * r / (1 - math.Pow(1+r, -float64(s.MaturityStep)))
		due = payment - balance*r
	default:
		return 0
	}
	return math.Max(0, math.Min(due, balance))
}
