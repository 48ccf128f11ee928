// Package grading turns percentages into letter grades following the school's grade scale.
package grading

import (
	"fmt"
	"math"
	"sort"
)

const (
	// NoGrade is returned when no band of the scale contains a percentage.
	NoGrade = "-"
	// FailGrade is the letter grade of a failed subject.
	FailGrade = "F"
)

type Band struct {
	Grade      string  `json:"grade" boil:"grade"`
	MinPercent float64 `json:"min_percent" boil:"min_percent"`
	MaxPercent float64 `json:"max_percent" boil:"max_percent"`
}

func (b Band) Contains(percent float64) bool {
	return b.MinPercent <= percent && percent <= b.MaxPercent
}

// Scale is an ordered list of bands. Bands may leave gaps; percentages falling in a gap have NoGrade.
type Scale []Band

// DefaultScale is the scale seeded on a new installation.
var DefaultScale = Scale{
	{Grade: "A", MinPercent: 80, MaxPercent: 100},
	{Grade: "B", MinPercent: 70, MaxPercent: 79.9},
	{Grade: "C", MinPercent: 60, MaxPercent: 69.9},
	{Grade: "D", MinPercent: 50, MaxPercent: 59.9},
	{Grade: "E", MinPercent: 40, MaxPercent: 49.9},
	{Grade: "F", MinPercent: 0, MaxPercent: 39.9},
}

// Resolve returns the grade of the first band containing percent, or NoGrade.
func (s Scale) Resolve(percent float64) string {
	for _, b := range s {
		if b.Contains(percent) {
			return b.Grade
		}
	}
	return NoGrade
}

// Resolve returns the grade of percent on scale. An empty scale always gives NoGrade.
func Resolve(percent float64, scale Scale) string {
	return scale.Resolve(percent)
}

// Issues lists the overlaps and the gaps (at 0.1 precision) of the scale between 0 and 100.
func (s Scale) Issues() []string {
	var issues []string
	sorted := make(Scale, len(s))
	copy(sorted, s)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinPercent < sorted[j].MinPercent })

	next := 0.0
	for i, b := range sorted {
		if i > 0 && b.MinPercent <= sorted[i-1].MaxPercent {
			issues = append(issues, fmt.Sprintf("%s (%.1f-%.1f) overlaps %s (%.1f-%.1f)",
				b.Grade, b.MinPercent, b.MaxPercent, sorted[i-1].Grade, sorted[i-1].MinPercent, sorted[i-1].MaxPercent))
		} else if Round1(b.MinPercent-next) > 0 {
			issues = append(issues, fmt.Sprintf("no grade between %.1f and %.1f", next, b.MinPercent))
		}
		if Round1(b.MaxPercent+0.1) > next {
			next = Round1(b.MaxPercent + 0.1)
		}
	}
	if len(sorted) == 0 {
		issues = append(issues, "empty scale: every percentage resolves to "+NoGrade)
	} else if next <= 100 {
		issues = append(issues, fmt.Sprintf("no grade between %.1f and 100.0", next))
	}
	return issues
}

// Round1 rounds x to one decimal place, halves away from zero.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// Percent returns marks out of full as a percentage rounded to one decimal. A non-positive full gives 0.
func Percent(marks, full float64) float64 {
	if full <= 0 {
		return 0
	}
	return Round1(marks / full * 100)
}

// IsPass reports whether grade is a passing grade. NoGrade counts as a fail.
func IsPass(grade string) bool {
	return grade != FailGrade && grade != NoGrade
}
