package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

const dateLayout = "2006-01-02"

// NewExam contains information needed to create a new Exam. It must be validated before use.
type NewExam struct {
	Title      string  `json:"title" validate:"required,notblank,max=255"`
	ExamDate   string  `json:"exam_date" validate:"required,datetime=2006-01-02"`
	TotalMarks float64 `json:"total_marks" validate:"gt=0"`
	Term       string  `json:"term" validate:"required,notblank,max=100"`
	ClassID    int64   `json:"class_id" validate:"required"`
	SubjectID  int64   `json:"subject_id" validate:"required"`

	date time.Time
	term Term
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.ExamDate = core.CleanString(ne.ExamDate)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	ne.date, _ = time.Parse(dateLayout, ne.ExamDate)
	term, err := ParseTerm(ne.Term)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "term", Error: err.Error()})
	}
	ne.term = term
	return nil
}

// UpdateExam defines what information may be provided to modify an existing Exam. It must be validated before use.
type UpdateExam struct {
	Title      *string  `json:"title" validate:"omitempty,notblank,max=255"`
	ExamDate   *string  `json:"exam_date" validate:"omitempty,datetime=2006-01-02"`
	TotalMarks *float64 `json:"total_marks" validate:"omitempty,gt=0"`
	Term       *string  `json:"term" validate:"omitempty,notblank,max=100"`
	SubjectID  *int64   `json:"subject_id" validate:"omitempty,gt=0"`

	date time.Time
	term Term
}

func (ue *UpdateExam) Validate(validate *validator.Validate) error {
	if ue.Title != nil {
		title := core.CleanString(*ue.Title)
		ue.Title = &title
	}
	if err := validate.Struct(ue); err != nil {
		return err
	}
	if ue.ExamDate != nil {
		ue.date, _ = time.Parse(dateLayout, *ue.ExamDate)
	}
	if ue.Term != nil {
		term, err := ParseTerm(*ue.Term)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "term", Error: err.Error()})
		}
		ue.term = term
	}
	return nil
}

type (
	MarkEntry struct {
		StudentID int64   `json:"student_id" validate:"required"`
		Marks     float64 `json:"marks" validate:"gte=0"`
	}

	// NewMarks holds the marks a teacher enters for one exam.
	NewMarks struct {
		Marks []MarkEntry `json:"marks" validate:"required,min=1,dive"`
	}
)

func (nm *NewMarks) Validate(validate *validator.Validate) error {
	return validate.Struct(nm)
}
