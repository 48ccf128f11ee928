package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
)

func term(t *testing.T, s string) exam.Term {
	t.Helper()
	tm, err := exam.ParseTerm(s)
	require.NoError(t, err)
	return tm
}

func newExam(id, subjectID int64, subject string, total float64, tm exam.Term) exam.Exam {
	return exam.Exam{
		ID:          id,
		Title:       subject + " test",
		ExamDate:    time.Date(2024, 3, int(id), 0, 0, 0, 0, time.UTC),
		TotalMarks:  total,
		Term:        tm,
		ClassID:     1,
		SubjectID:   subjectID,
		SubjectName: subject,
	}
}

func TestAggregate(t *testing.T) {
	first := term(t, "First Term")
	math1 := newExam(1, 10, "Math", 100, first)
	eng1 := newExam(2, 20, "English", 50, first)
	math2 := newExam(3, 10, "Math", 50, first)
	eng2 := newExam(4, 20, "English", 50, first)

	t.Run("sums per subject in first-seen order", func(t *testing.T) {
		got := Aggregate(
			[]exam.Exam{math1, eng1, math2},
			[]exam.Result{
				{ExamID: 3, StudentID: 1, Marks: 40},
				{ExamID: 1, StudentID: 1, Marks: 80},
				{ExamID: 2, StudentID: 1, Marks: 25},
			},
			grading.DefaultScale,
		)
		require.Len(t, got, 2)

		assert.Equal(t, int64(10), got[0].SubjectID)
		assert.Equal(t, "Math", got[0].Subject)
		assert.Equal(t, 120.0, got[0].TotalMarks)
		assert.Equal(t, 150.0, got[0].TotalFull)
		assert.Equal(t, 80.0, got[0].Percent)
		assert.Equal(t, "A", got[0].FinalGrade)
		assert.Len(t, got[0].Exams, 2)

		assert.Equal(t, "English", got[1].Subject)
		assert.Equal(t, 50.0, got[1].Percent)
		assert.Equal(t, "D", got[1].FinalGrade)
	})

	t.Run("exams without a result are excluded from full marks", func(t *testing.T) {
		got := Aggregate(
			[]exam.Exam{math1, math2},
			[]exam.Result{{ExamID: 1, StudentID: 1, Marks: 70}},
			grading.DefaultScale,
		)
		require.Len(t, got, 1)
		assert.Equal(t, 100.0, got[0].TotalFull)
		assert.Equal(t, 70.0, got[0].Percent)
		assert.Equal(t, "B", got[0].FinalGrade)
	})

	t.Run("subjects keyed by id, not name", func(t *testing.T) {
		other := newExam(5, 30, "Math", 100, first) // same name, other subject
		got := Aggregate(
			[]exam.Exam{math1, other},
			[]exam.Result{{ExamID: 1, Marks: 50}, {ExamID: 5, Marks: 90}},
			grading.DefaultScale,
		)
		require.Len(t, got, 2)
		assert.Equal(t, 50.0, got[0].Percent)
		assert.Equal(t, 90.0, got[1].Percent)
	})

	t.Run("no results", func(t *testing.T) {
		got := Aggregate([]exam.Exam{math1, eng1}, nil, grading.DefaultScale)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("zero total marks", func(t *testing.T) {
		zero := newExam(6, 40, "Art", 0, first)
		got := Aggregate([]exam.Exam{zero}, []exam.Result{{ExamID: 6, Marks: 0}}, grading.DefaultScale)
		require.Len(t, got, 1)
		assert.Equal(t, 0.0, got[0].Percent)
	})

	t.Run("empty scale degrades to no grade", func(t *testing.T) {
		got := Aggregate([]exam.Exam{eng2}, []exam.Result{{ExamID: 4, Marks: 45}}, grading.Scale{})
		require.Len(t, got, 1)
		assert.Equal(t, grading.NoGrade, got[0].FinalGrade)
	})

	t.Run("idempotent", func(t *testing.T) {
		exams := []exam.Exam{math1, eng1, math2, eng2}
		results := []exam.Result{{ExamID: 1, Marks: 33}, {ExamID: 2, Marks: 41}, {ExamID: 4, Marks: 12}}
		assert.Equal(t, Aggregate(exams, results, grading.DefaultScale), Aggregate(exams, results, grading.DefaultScale))
	})
}

func TestRollup(t *testing.T) {
	st := exam.Student{ID: 7, FirstName: "Amani", LastName: "Juma"}

	got := Rollup(st, []SubjectResult{
		{SubjectID: 1, TotalMarks: 120, TotalFull: 150},
		{SubjectID: 2, TotalMarks: 25, TotalFull: 50},
	}, grading.DefaultScale)
	assert.Equal(t, int64(7), got.StudentID)
	assert.Equal(t, 145.0, got.OverallTotalMarks)
	assert.Equal(t, 200.0, got.OverallTotalFull)
	assert.Equal(t, 72.5, got.OverallPercent)
	assert.Equal(t, "B", got.OverallGrade)

	empty := Rollup(st, nil, grading.DefaultScale)
	assert.NotNil(t, empty.Subjects)
	assert.Equal(t, 0.0, empty.OverallPercent)
	assert.Equal(t, "F", empty.OverallGrade)
}

func TestRank(t *testing.T) {
	students := []StudentResult{
		{StudentID: 1, OverallPercent: 80},
		{StudentID: 2, OverallPercent: 90},
		{StudentID: 3, OverallPercent: 90},
	}

	got := Rank(students)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{got[0].StudentID, got[1].StudentID, got[2].StudentID})
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})

	// input untouched
	assert.Equal(t, int64(1), students[0].StudentID)

	assert.Empty(t, Rank(nil))
}

func TestSummarize(t *testing.T) {
	ranked := []RankedStudent{
		{Rank: 1, StudentResult: StudentResult{OverallPercent: 90, OverallGrade: "A"}},
		{Rank: 2, StudentResult: StudentResult{OverallPercent: 45.5, OverallGrade: "E"}},
		{Rank: 3, StudentResult: StudentResult{OverallPercent: 30, OverallGrade: "F"}},
		{Rank: 4, StudentResult: StudentResult{OverallPercent: 0, OverallGrade: grading.NoGrade}},
	}

	got := Summarize(ranked)
	assert.Equal(t, Summary{
		TotalStudents:  4,
		AveragePercent: 41.4,
		HighestPercent: 90,
		LowestPercent:  0,
		PassCount:      2,
		FailCount:      2,
	}, got)

	assert.Equal(t, Summary{}, Summarize(nil))
}
