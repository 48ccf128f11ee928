package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale_Resolve(t *testing.T) {
	gapped := Scale{
		{Grade: "A", MinPercent: 80, MaxPercent: 100},
		{Grade: "B", MinPercent: 60, MaxPercent: 70},
	}
	overlapping := Scale{
		{Grade: "X", MinPercent: 50, MaxPercent: 100},
		{Grade: "Y", MinPercent: 0, MaxPercent: 60},
	}

	tests := []struct {
		name    string
		scale   Scale
		percent float64
		want    string
	}{
		{name: "top of scale", scale: DefaultScale, percent: 100, want: "A"},
		{name: "lower bound inclusive", scale: DefaultScale, percent: 80, want: "A"},
		{name: "upper bound inclusive", scale: DefaultScale, percent: 79.9, want: "B"},
		{name: "middle band", scale: DefaultScale, percent: 55.5, want: "D"},
		{name: "zero", scale: DefaultScale, percent: 0, want: "F"},
		{name: "above scale", scale: DefaultScale, percent: 100.1, want: NoGrade},
		{name: "negative", scale: DefaultScale, percent: -1, want: NoGrade},
		{name: "gap", scale: gapped, percent: 75, want: NoGrade},
		{name: "empty scale", scale: Scale{}, percent: 50, want: NoGrade},
		{name: "nil scale", scale: nil, percent: 50, want: NoGrade},
		{name: "first matching band wins", scale: overlapping, percent: 55, want: "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.percent, tt.scale))
		})
	}
}

func TestScale_Resolve_monotonic(t *testing.T) {
	rank := map[string]int{"F": 0, "E": 1, "D": 2, "C": 3, "B": 4, "A": 5}
	prev := rank[DefaultScale.Resolve(0)]
	for p := 0.0; p <= 100; p = Round1(p + 0.1) {
		curr := rank[DefaultScale.Resolve(p)]
		if curr < prev {
			t.Fatalf("grade decreased at %.1f", p)
		}
		prev = curr
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name        string
		marks, full float64
		want        float64
	}{
		{name: "whole", marks: 90, full: 100, want: 90},
		{name: "two exams", marks: 180, full: 200, want: 90},
		{name: "rounded down", marks: 2, full: 3, want: 66.7},
		{name: "eighth", marks: 1, full: 8, want: 12.5},
		{name: "zero full", marks: 10, full: 0, want: 0},
		{name: "negative full", marks: 10, full: -5, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percent(tt.marks, tt.full))
		})
	}
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 12.3, Round1(12.25))
	assert.Equal(t, -12.3, Round1(-12.25))
	assert.Equal(t, 12.2, Round1(12.24))
	assert.Equal(t, 0.0, Round1(0.04))
}

func TestIsPass(t *testing.T) {
	assert.True(t, IsPass("A"))
	assert.True(t, IsPass("E"))
	assert.False(t, IsPass(FailGrade))
	assert.False(t, IsPass(NoGrade))
}

func TestScale_Issues(t *testing.T) {
	assert.Empty(t, DefaultScale.Issues())

	gapped := Scale{
		{Grade: "A", MinPercent: 80, MaxPercent: 100},
		{Grade: "B", MinPercent: 60, MaxPercent: 70},
	}
	assert.Equal(t, []string{"no grade between 0.0 and 60.0", "no grade between 70.1 and 80.0"}, gapped.Issues())

	overlapping := Scale{
		{Grade: "A", MinPercent: 50, MaxPercent: 100},
		{Grade: "B", MinPercent: 0, MaxPercent: 60},
	}
	assert.Equal(t, []string{"A (50.0-100.0) overlaps B (0.0-60.0)"}, overlapping.Issues())

	assert.Len(t, Scale{}.Issues(), 1)
}
