package exam_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/tests"
)

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want a validation error, got %v", err)
	fields := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		fields[f.Field] = f.Error
	}
	return fields
}

func newExam(t *testing.T, app *testutil.App, ne exam.NewExam) exam.NewExam {
	t.Helper()
	require.NoError(t, ne.Validate(app.Validate))
	return ne
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	s := testutil.SeedSchool(t, app)

	createdAt := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	exam.NowFunc = func() time.Time { return createdAt }
	defer func() { exam.NowFunc = time.Now }()

	t.Run("created", func(t *testing.T) {
		e, err := app.ExamSvc.Create(ctx, newExam(t, app, exam.NewExam{
			Title: " Algebra ", ExamDate: "2026-03-02", TotalMarks: 50, Term: "mid-term", ClassID: s.Class.ID, SubjectID: s.Math.ID,
		}))
		require.NoError(t, err)
		assert.NotZero(t, e.ID)
		assert.Equal(t, "Algebra", e.Title)
		assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), e.ExamDate)
		assert.Equal(t, exam.MidTerm, e.Term.Kind())
		assert.Equal(t, "Mathematics", e.SubjectName)
		assert.Equal(t, s.Teacher.ID, e.TeacherID)
		assert.Equal(t, exam.StatusUpcoming, e.Status)
		assert.Equal(t, createdAt, e.CreatedAt)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := app.ExamSvc.Create(ctx, newExam(t, app, exam.NewExam{
			Title: "Algebra", ExamDate: "2026-03-02", TotalMarks: 50, Term: "mid term", ClassID: 9999, SubjectID: s.Math.ID,
		}))
		assert.Equal(t, map[string]string{"class_id": "class not found"}, fieldErrors(t, err))
	})

	t.Run("subject of another class", func(t *testing.T) {
		other := app.DB.AddClass("Grade 5")
		_, err := app.ExamSvc.Create(ctx, newExam(t, app, exam.NewExam{
			Title: "Algebra", ExamDate: "2026-03-02", TotalMarks: 50, Term: "mid term", ClassID: other.ID, SubjectID: s.Math.ID,
		}))
		assert.Equal(t, map[string]string{"subject_id": "subject is not taught in this class"}, fieldErrors(t, err))
	})
}

func TestNewExam_Validate(t *testing.T) {
	app := testutil.NewApp(t)

	tests := []struct {
		name      string
		ne        exam.NewExam
		wantField string
	}{
		{name: "blank title", ne: exam.NewExam{Title: "  ", ExamDate: "2026-03-02", TotalMarks: 10, Term: "First", ClassID: 1, SubjectID: 1}, wantField: "title"},
		{name: "bad date", ne: exam.NewExam{Title: "Quiz", ExamDate: "02/03/2026", TotalMarks: 10, Term: "First", ClassID: 1, SubjectID: 1}, wantField: "exam_date"},
		{name: "no total", ne: exam.NewExam{Title: "Quiz", ExamDate: "2026-03-02", Term: "First", ClassID: 1, SubjectID: 1}, wantField: "total_marks"},
		{name: "blank term", ne: exam.NewExam{Title: "Quiz", ExamDate: "2026-03-02", TotalMarks: 10, Term: " ", ClassID: 1, SubjectID: 1}, wantField: "term"},
		{name: "no subject", ne: exam.NewExam{Title: "Quiz", ExamDate: "2026-03-02", TotalMarks: 10, Term: "First", ClassID: 1}, wantField: "subject_id"},
		{name: "valid", ne: exam.NewExam{Title: "Quiz", ExamDate: "2026-03-02", TotalMarks: 10, Term: "Trimester 2", ClassID: 1, SubjectID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ne.Validate(app.Validate)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestService_RecordMarks(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	s := testutil.SeedSchool(t, app)
	algebra := testutil.CreateExam(t, app, s.Math, "Algebra", "2026-03-02", 50, "First Term")

	t.Run("grades each entry", func(t *testing.T) {
		results, err := app.ExamSvc.RecordMarks(ctx, algebra.ID, exam.NewMarks{Marks: []exam.MarkEntry{
			{StudentID: s.Alice.ID, Marks: 50},
			{StudentID: s.Bob.ID, Marks: 0},
		}})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "A", results[0].Grade)
		assert.Equal(t, "F", results[1].Grade)
	})

	t.Run("corrects existing marks", func(t *testing.T) {
		_, err := app.ExamSvc.RecordMarks(ctx, algebra.ID, exam.NewMarks{Marks: []exam.MarkEntry{{StudentID: s.Bob.ID, Marks: 35}}})
		require.NoError(t, err)

		results, err := app.ExamSvc.Results(ctx, algebra.ID)
		require.NoError(t, err)
		require.Len(t, results, 2) // no duplicate
		assert.Equal(t, float64(35), results[1].Marks)
		assert.Equal(t, "B", results[1].Grade) // 70%
	})

	t.Run("uses the current scale", func(t *testing.T) {
		_, err := app.GradingSvc.Replace(ctx, grading.NewScale{Bands: []grading.NewBand{
			{Grade: "P", MinPercent: 50, MaxPercent: 100},
		}})
		require.NoError(t, err)
		defer func() {
			_ = app.ScaleRepo.ReplaceScale(ctx, grading.DefaultScale)
		}()

		results, err := app.ExamSvc.RecordMarks(ctx, algebra.ID, exam.NewMarks{Marks: []exam.MarkEntry{
			{StudentID: s.Alice.ID, Marks: 30},
			{StudentID: s.Bob.ID, Marks: 10},
		}})
		require.NoError(t, err)
		assert.Equal(t, "P", results[0].Grade)
		assert.Equal(t, grading.NoGrade, results[1].Grade) // falls in the gap
	})

	t.Run("rejects the whole batch", func(t *testing.T) {
		outsider := app.DB.AddStudent(s.BobUser, app.DB.AddClass("Grade 5").ID, "Bob", "Other", 0)
		_, err := app.ExamSvc.RecordMarks(ctx, algebra.ID, exam.NewMarks{Marks: []exam.MarkEntry{
			{StudentID: s.Alice.ID, Marks: 12},
			{StudentID: s.Bob.ID, Marks: 60},
			{StudentID: s.Alice.ID, Marks: 13},
			{StudentID: outsider.ID, Marks: 1},
		}})
		assert.Equal(t, map[string]string{
			"marks[1].marks":      "marks cannot exceed the exam total (50)",
			"marks[2].student_id": "duplicate student",
			"marks[3].student_id": "student is not enrolled in the exam class",
		}, fieldErrors(t, err))

		results, err := app.ExamSvc.Results(ctx, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(30), results[0].Marks)
	})

	t.Run("unknown exam", func(t *testing.T) {
		_, err := app.ExamSvc.RecordMarks(ctx, 9999, exam.NewMarks{Marks: []exam.MarkEntry{{StudentID: s.Alice.ID, Marks: 1}}})
		assert.Equal(t, exam.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	s := testutil.SeedSchool(t, app)
	algebra := testutil.CreateExam(t, app, s.Math, "Algebra", "2026-03-02", 50, "First Term")
	testutil.RecordResult(t, app, algebra, s.Alice, 40)

	update := func(t *testing.T, ue exam.UpdateExam) (exam.Exam, error) {
		require.NoError(t, ue.Validate(app.Validate))
		return app.ExamSvc.Update(ctx, algebra.ID, ue)
	}
	str := func(s string) *string { return &s }
	num := func(f float64) *float64 { return &f }

	t.Run("total below recorded marks", func(t *testing.T) {
		_, err := update(t, exam.UpdateExam{Title: str("Algebra I"), TotalMarks: num(20)})
		assert.Equal(t, map[string]string{"total_marks": "recorded marks (40) exceed the new total"}, fieldErrors(t, err))

		// rolled back
		e, err := app.ExamSvc.Get(ctx, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, "Algebra", e.Title)
		assert.Equal(t, float64(50), e.TotalMarks)
	})

	t.Run("regrades", func(t *testing.T) {
		e, err := update(t, exam.UpdateExam{TotalMarks: num(100), Term: str("Final exam")})
		require.NoError(t, err)
		assert.Equal(t, float64(100), e.TotalMarks)
		assert.Equal(t, exam.FinalTerm, e.Term.Kind())

		results, err := app.ExamSvc.Results(ctx, algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, "E", results[0].Grade) // 40%
	})

	t.Run("moves to a subject of the class", func(t *testing.T) {
		english := s.English.ID
		e, err := update(t, exam.UpdateExam{SubjectID: &english})
		require.NoError(t, err)
		assert.Equal(t, "English", e.SubjectName)
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	s := testutil.SeedSchool(t, app)
	testutil.CreateExam(t, app, s.Math, "Algebra", "2026-03-02", 50, "First Term")
	testutil.CreateExam(t, app, s.English, "Essay", "2026-06-10", 20, "Mid Term")
	published := testutil.CreateExam(t, app, s.Math, "Geometry", "2026-01-10", 50, "First Term")
	_, err := app.ExamRepo.SetExamsStatus(ctx, []int64{published.ID}, exam.StatusPublished)
	require.NoError(t, err)

	exam.NowFunc = func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) }
	defer func() { exam.NowFunc = time.Now }()

	exams, err := app.ExamSvc.Query(ctx, exam.Filter{ClassID: s.Class.ID})
	require.NoError(t, err)
	require.Len(t, exams, 3)

	status := make(map[string]exam.Status)
	for _, e := range exams {
		status[e.Title] = e.Status
	}
	assert.Equal(t, map[string]exam.Status{
		"Geometry": exam.StatusPublished,
		"Algebra":  exam.StatusCompleted, // held today
		"Essay":    exam.StatusUpcoming,
	}, status)
	assert.Equal(t, "Geometry", exams[0].Title)

	exams, err = app.ExamSvc.Query(ctx, exam.Filter{ClassID: s.Class.ID, TermKey: "mid"})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, "Essay", exams[0].Title)
}
