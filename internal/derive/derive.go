// Package derive turns a raw hourly usage series into the values and
// attribute maps the presentation layer exposes. Every function degrades to
// a zero/empty result on malformed input; data-shape problems never
// propagate past this boundary.
package derive

import (
	"math"

	"github.com/nzgrid/mercury-usage-exporter/internal/mercury"
)

// HoursPerDay is the fixed averaging denominator. The hourly average always
// reflects a nominal full day, even when the series is sparse or a DST
// transition yields 23 or 25 entries.
const HoursPerDay = 24

// Field selects which value of an hourly entry an aggregate operates on
type Field int

const (
	Consumption Field = iota
	Cost
)

func value(e mercury.HourlyEntry, f Field) float64 {
	if f == Cost {
		return e.Cost
	}
	return e.Consumption
}

// Hourly extracts the hourly series from a usage payload. Nil responses,
// empty usage arrays and missing data arrays all yield nil.
func Hourly(resp *mercury.UsageResponse) []mercury.HourlyEntry {
	if resp == nil || len(resp.Usage) == 0 {
		return nil
	}
	return resp.Usage[0].Data
}

// MeasurementDate returns the calendar date (YYYY-MM-DD) the series was
// measured on, taken from the first entry's timestamp. Empty series or a
// too-short date field yield "".
func MeasurementDate(series []mercury.HourlyEntry) string {
	if len(series) == 0 {
		return ""
	}
	date := series[0].Date
	if len(date) < 10 {
		return ""
	}
	return date[:10]
}

// DailyTotal sums the selected field across the series. Negative or NaN
// sums degrade to 0 so a malformed series never surfaces as a nonsense
// total.
func DailyTotal(series []mercury.HourlyEntry, f Field) float64 {
	var total float64
	for _, e := range series {
		total += value(e, f)
	}
	if math.IsNaN(total) || total < 0 {
		return 0
	}
	return total
}

// PeakStats describes the peak hour of a series and the average over a
// nominal 24-hour day
type PeakStats struct {
	PeakHour  int // index into the series; -1 when empty
	PeakValue float64
	Average   float64
}

// PeakAndAverage finds the peak consumption hour (first occurrence wins on
// ties) and the mean over the fixed 24-slot day
func PeakAndAverage(series []mercury.HourlyEntry) PeakStats {
	if len(series) == 0 {
		return PeakStats{PeakHour: -1}
	}

	peakHour := 0
	peakValue := series[0].Consumption
	var total float64
	for i, e := range series {
		total += e.Consumption
		if e.Consumption > peakValue {
			peakHour = i
			peakValue = e.Consumption
		}
	}

	return PeakStats{
		PeakHour:  peakHour,
		PeakValue: peakValue,
		Average:   total / HoursPerDay,
	}
}

// RateSummary aggregates per-hour cost/consumption rates
type RateSummary struct {
	AverageRate      float64 // total cost / total consumption; 0 when no consumption
	PeakRate         float64
	LowestRate       float64
	TotalConsumption float64
	TotalCost        float64
}

// RateStats computes per-hour rates, excluding zero-consumption hours from
// the peak/lowest figures to avoid division by zero
func RateStats(series []mercury.HourlyEntry) RateSummary {
	var sum RateSummary
	first := true
	for _, e := range series {
		sum.TotalConsumption += e.Consumption
		sum.TotalCost += e.Cost
		if e.Consumption > 0 {
			rate := e.Cost / e.Consumption
			if first {
				sum.PeakRate = rate
				sum.LowestRate = rate
				first = false
				continue
			}
			if rate > sum.PeakRate {
				sum.PeakRate = rate
			}
			if rate < sum.LowestRate {
				sum.LowestRate = rate
			}
		}
	}
	if sum.TotalConsumption > 0 {
		sum.AverageRate = sum.TotalCost / sum.TotalConsumption
	}
	return sum
}

// CumulativeState is the persisted running total for one metric. The total
// advances at most once per distinct measurement date.
type CumulativeState struct {
	Value             float64
	LastProcessedDate string // YYYY-MM-DD, "" before the first advance
}

// Restore rebuilds a state from persisted values, discarding anything
// malformed (NaN, infinite or negative totals, bad dates) so a corrupt
// restore resets to zero instead of poisoning the running total.
func Restore(value float64, lastProcessedDate string) CumulativeState {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return CumulativeState{}
	}
	if lastProcessedDate != "" && len(lastProcessedDate) != 10 {
		return CumulativeState{}
	}
	return CumulativeState{Value: value, LastProcessedDate: lastProcessedDate}
}

// Advance adds the series' day total for the selected field to the running
// total, once per distinct measurement date. It reports whether the state
// changed. Repeated calls with the same measurement date are no-ops, and a
// non-positive day total never advances the date marker.
func (s *CumulativeState) Advance(series []mercury.HourlyEntry, f Field) bool {
	date := MeasurementDate(series)
	if date == "" || date == s.LastProcessedDate {
		return false
	}
	total := DailyTotal(series, f)
	if total <= 0 {
		return false
	}
	s.Value += total
	s.LastProcessedDate = date
	return true
}
