package bargain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// cut policy names stored on the campaign
const (
	PolicyEven  = "even"
	PolicyFixed = "fixed"
)

// CutInput state a policy computes the next cut from. All amounts are cents.
type CutInput struct {
	Current    int64
	Floor      int64
	MinCut     int64
	Helped     int // helpers before this one
	MaxHelpers int
}

// CutPolicy decides how much one helper takes off the price. Implementations
// must return a value in [0, Current-Floor] and reach the floor on the last helper.
type CutPolicy interface {
	Name() string
	Cut(in CutInput) int64
}

// PolicyFor resolves a campaign's policy name
func PolicyFor(name string) (CutPolicy, error) {
	switch name {
	case "", PolicyEven:
		return EvenPolicy{}, nil
	case PolicyFixed:
		return FixedPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown cut policy %q", name)
	}
}

// EvenPolicy splits the remaining gap evenly over the remaining helper slots,
// rounded down to whole cents and never below MinCut
type EvenPolicy struct{}

// Name implements CutPolicy
func (EvenPolicy) Name() string { return PolicyEven }

// Cut implements CutPolicy
func (EvenPolicy) Cut(in CutInput) int64 {
	gap := in.Current - in.Floor
	if gap <= 0 {
		return 0
	}
	slots := in.MaxHelpers - in.Helped
	if slots <= 1 {
		return gap
	}
	cut := decimal.NewFromInt(gap).
		Div(decimal.NewFromInt(int64(slots))).
		Floor().
		IntPart()
	return clamp(cut, in.MinCut, gap)
}

// FixedPolicy takes MinCut per helper; the last helper takes whatever is left
type FixedPolicy struct{}

// Name implements CutPolicy
func (FixedPolicy) Name() string { return PolicyFixed }

// Cut implements CutPolicy
func (FixedPolicy) Cut(in CutInput) int64 {
	gap := in.Current - in.Floor
	if gap <= 0 {
		return 0
	}
	if in.MaxHelpers-in.Helped <= 1 {
		return gap
	}
	return clamp(in.MinCut, in.MinCut, gap)
}

func clamp(cut, min, max int64) int64 {
	if cut < min {
		cut = min
	}
	if cut > max {
		cut = max
	}
	return cut
}
