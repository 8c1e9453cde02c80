package survey

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSignificance is the two-sided significance level used for reports.
const DefaultSignificance = 0.05

// Estimate is a per-question Wilson-score estimate. Defined is false when the
// question has no answers; Mean and HalfWidth are zero in that case.
type Estimate struct {
	N         int     `json:"n"`
	Successes int     `json:"successes"`
	Mean      float64 `json:"mean"`
	HalfWidth float64 `json:"half_width"`
	Defined   bool    `json:"defined"`
}

// Lower is the lower bound of the interval.
func (e Estimate) Lower() float64 { return e.Mean - e.HalfWidth }

// Upper is the upper bound of the interval.
func (e Estimate) Upper() float64 { return e.Mean + e.HalfWidth }

// ChiSquareQuantile returns the chi-square(1) quantile at 1-alpha/2.
// A chi-square(1) variable is a squared standard normal, so the quantile at q
// is the square of the normal quantile at (1+q)/2.
func ChiSquareQuantile(alpha float64) float64 {
	z := distuv.UnitNormal.Quantile(1 - alpha/4)
	return z * z
}

// Wilson estimates the agreement proportion from x successes in n answers.
func Wilson(x, n int, alpha float64) Estimate {
	if n <= 0 {
		return Estimate{}
	}
	b := ChiSquareQuantile(alpha)
	xf, nf := float64(x), float64(n)
	mean := (xf + b/2) / (nf + b)
	halfWidth := math.Sqrt((b*b/4 + b*xf*(1-xf/nf)) / ((nf + b) * (nf + b)))
	return Estimate{
		N:         n,
		Successes: x,
		Mean:      mean,
		HalfWidth: halfWidth,
		Defined:   true,
	}
}

// ColumnEstimates computes one Wilson estimate per question of agg.
// Entries equal to 1 count as agreement.
func ColumnEstimates(agg *ResponseAggregate, items int, alpha float64) []Estimate {
	out := make([]Estimate, items)
	for k := 0; k < items; k++ {
		col := agg.Column(k)
		x := 0
		for _, v := range col {
			if v == 1 {
				x++
			}
		}
		out[k] = Wilson(x, len(col), alpha)
	}
	return out
}

// Value is a number that may be undefined for lack of data.
type Value struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// ColumnMeans returns the plain per-question mean of agg.
func ColumnMeans(agg *ResponseAggregate, items int) []Value {
	out := make([]Value, items)
	for k := 0; k < items; k++ {
		col := agg.Column(k)
		if len(col) == 0 {
			continue
		}
		sum := 0
		for _, v := range col {
			sum += v
		}
		out[k] = Value{Value: float64(sum) / float64(len(col)), Defined: true}
	}
	return out
}

// MeanShift returns post minus pre for every question defined in both.
func MeanShift(pre, post []Value) []Value {
	out := make([]Value, len(pre))
	for k := range pre {
		if k < len(post) && pre[k].Defined && post[k].Defined {
			out[k] = Value{Value: post[k].Value - pre[k].Value, Defined: true}
		}
	}
	return out
}

// OverallMean is the mean over every non-missing answer of agg.
func OverallMean(agg *ResponseAggregate) Value {
	n := agg.Len()
	if n == 0 {
		return Value{}
	}
	sum := 0
	for _, row := range agg.rows {
		for _, v := range row {
			if v != Missing {
				sum += v
			}
		}
	}
	return Value{Value: float64(sum) / float64(n), Defined: true}
}

// OverallStdErr is the standard error of OverallMean.
func OverallStdErr(agg *ResponseAggregate) Value {
	n := agg.Len()
	mean := OverallMean(agg)
	if n < 2 || !mean.Defined {
		return Value{}
	}
	var ss float64
	for _, row := range agg.rows {
		for _, v := range row {
			if v != Missing {
				d := float64(v) - mean.Value
				ss += d * d
			}
		}
	}
	nf := float64(n)
	return Value{Value: math.Sqrt(ss/(nf-1)) / math.Sqrt(nf), Defined: true}
}
