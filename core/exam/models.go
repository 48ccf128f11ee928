package exam

import (
	"fmt"
	"strings"
	"time"

	"github.com/trezcool/alama/core"
)

type Status string

const (
	StatusUpcoming  Status = "Upcoming"
	StatusPublished Status = "Published"
	StatusCompleted Status = "Completed"
)

type (
	Class struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Subject struct {
		ID        int64  `json:"id"`
		ClassID   int64  `json:"class_id"`
		Name      string `json:"name"`
		TeacherID string `json:"teacher_id,omitempty"` // user ID
	}

	Parent struct {
		ID     int64  `json:"id"`
		UserID string `json:"user_id"`
		Name   string `json:"name"`
		Email  string `json:"email,omitempty"`
	}

	Student struct {
		ID        int64   `json:"id"`
		UserID    string  `json:"user_id"`
		ClassID   int64   `json:"class_id"`
		FirstName string  `json:"first_name"`
		LastName  string  `json:"last_name"`
		Email     string  `json:"email,omitempty"`
		Parent    *Parent `json:"parent,omitempty"`
	}

	Exam struct {
		ID          int64     `json:"id"`
		Title       string    `json:"title"`
		ExamDate    time.Time `json:"exam_date"`
		TotalMarks  float64   `json:"total_marks"`
		Term        Term      `json:"term"`
		ClassID     int64     `json:"class_id"`
		SubjectID   int64     `json:"subject_id"`
		SubjectName string    `json:"subject"`
		TeacherID   string    `json:"teacher_id,omitempty"` // user ID
		Status      Status    `json:"status"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	Result struct {
		ID        int64     `json:"id"`
		ExamID    int64     `json:"exam_id"`
		StudentID int64     `json:"student_id"`
		Marks     float64   `json:"marks"`
		Grade     string    `json:"grade,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	// Scope selects the exams of one class for one term.
	Scope struct {
		ClassID int64
		Term    Term
	}
)

func (st Student) FullName() string {
	return strings.TrimSpace(st.FirstName + " " + st.LastName)
}

func (st Student) HasParent() bool {
	return st.Parent != nil && st.Parent.UserID != ""
}

// DisplayStatus is the status shown in listings: a published exam stays Published,
// otherwise an exam whose date is reached is Completed.
func (e Exam) DisplayStatus(now time.Time) Status {
	if e.Status == StatusPublished {
		return StatusPublished
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := e.ExamDate.Date()
	if !time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).After(today) {
		return StatusCompleted
	}
	return StatusUpcoming
}

func (e Exam) IsPublished() bool { return e.Status == StatusPublished }

// ReportCacheKey is the cache key of the class report of the scope.
func (sc Scope) ReportCacheKey() string {
	return fmt.Sprintf("%s%d:%s", core.ReportCachePrefix, sc.ClassID, sc.Term.Key())
}

func (sc Scope) String() string {
	return fmt.Sprintf("class %d, %s", sc.ClassID, sc.Term.Label())
}

type (
	Filter struct {
		ClassID   int64
		SubjectID int64
		TermKey   string
		IDs       []int64
		Ordering  []core.DBOrdering // defaults to exam_date, id
	}

	ResultFilter struct {
		ExamIDs   []int64
		StudentID int64
	}

	StudentFilter struct {
		ClassID int64
		IDs     []int64
	}
)

// OrderingFields are the exam fields listings may be sorted on.
var OrderingFields = []string{"exam_date", "title", "total_marks", "created_at"}
