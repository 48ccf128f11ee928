package notice

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/user"
)

type Target string

const (
	TargetAll     Target = "all"
	TargetStudent Target = "student"
	TargetParent  Target = "parent"
	TargetTeacher Target = "teacher"
)

type Notice struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Target      Target    `json:"target"`
	ClassID     int64     `json:"class_id,omitempty"`
	ExamID      int64     `json:"exam_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty"` // user ID; empty for broadcasts to Target
	CreatedAt   time.Time `json:"created_at"`
}

// Filter matches notices sent to RecipientID, or broadcast to one of Targets.
type Filter struct {
	RecipientID string
	Targets     []Target
}

// ResultPublished builds the notice telling a student their result of an exam is out.
func ResultPublished(e exam.Exam, st exam.Student, r exam.Result, now time.Time) Notice {
	return Notice{
		Title: "Result Published: " + e.Title,
		Message: fmt.Sprintf("Your %s result for %s (%s) has been published: %g/%g.",
			e.Term.Label(), e.SubjectName, e.Title, r.Marks, e.TotalMarks),
		Target:      TargetStudent,
		ClassID:     e.ClassID,
		ExamID:      e.ID,
		RecipientID: st.UserID,
		CreatedAt:   now,
	}
}

// ChildResultPublished builds the notice telling a parent the result of their child is out.
func ChildResultPublished(e exam.Exam, st exam.Student, r exam.Result, now time.Time) Notice {
	return Notice{
		Title: "Result Published: " + e.Title,
		Message: fmt.Sprintf("The %s result of %s for %s (%s) has been published: %g/%g.",
			e.Term.Label(), st.FullName(), e.SubjectName, e.Title, r.Marks, e.TotalMarks),
		Target:      TargetParent,
		ClassID:     e.ClassID,
		ExamID:      e.ID,
		RecipientID: st.Parent.UserID,
		CreatedAt:   now,
	}
}

// TargetsOf returns the broadcast targets a user belongs to.
func TargetsOf(usr user.User) []Target {
	targets := []Target{TargetAll}
	if usr.IsStudent() {
		targets = append(targets, TargetStudent)
	}
	if usr.IsParent() {
		targets = append(targets, TargetParent)
	}
	if usr.IsTeacher() {
		targets = append(targets, TargetTeacher)
	}
	return targets
}

type (
	Repository interface {
		CreateNotices(ctx context.Context, notices []Notice, exec ...core.DBExecutor) ([]Notice, error)
		// QueryNotices returns matching notices, newest first.
		QueryNotices(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Notice, error)
	}

	Service interface {
		// QueryForUser lists the notices addressed to the user or broadcast to their roles.
		QueryForUser(ctx context.Context, usr user.User) ([]Notice, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &service{repo: repo}
}

func (svc *service) QueryForUser(ctx context.Context, usr user.User) ([]Notice, error) {
	notices, err := svc.repo.QueryNotices(ctx, Filter{RecipientID: usr.ID, Targets: TargetsOf(usr)})
	return notices, errors.Wrap(err, "querying notices")
}
