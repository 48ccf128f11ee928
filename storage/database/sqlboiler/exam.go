package boiledrepos

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
)

const (
	studentSelect = `SELECT s.id, s.user_id, s.class_id, s.first_name, s.last_name, u.email,
	p.id AS parent_id, p.user_id AS parent_user_id, pu.name AS parent_name, pu.email AS parent_email
FROM students s
JOIN users u ON u.id = s.user_id
LEFT JOIN parents p ON p.id = s.parent_id
LEFT JOIN users pu ON pu.id = p.user_id`
	studentOrder = " ORDER BY s.last_name, s.first_name, s.id"

	examSelect = `SELECT e.id, e.title, e.exam_date, e.total_marks, e.term, e.class_id, e.subject_id,
	sj.name AS subject_name, e.teacher_id, e.status, e.created_at, e.updated_at
FROM exams e
JOIN subjects sj ON sj.id = e.subject_id`
	examDefaultOrder = "e.exam_date ASC, e.id ASC"

	resultColumns = "id, exam_id, student_id, marks, grade, created_at, updated_at"
)

type (
	classRow struct {
		ID   int64  `boil:"id"`
		Name string `boil:"name"`
	}

	subjectRow struct {
		ID        int64       `boil:"id"`
		ClassID   int64       `boil:"class_id"`
		Name      string      `boil:"name"`
		TeacherID null.String `boil:"teacher_id"`
	}

	studentRow struct {
		ID           int64       `boil:"id"`
		UserID       string      `boil:"user_id"`
		ClassID      int64       `boil:"class_id"`
		FirstName    string      `boil:"first_name"`
		LastName     string      `boil:"last_name"`
		Email        null.String `boil:"email"`
		ParentID     null.Int64  `boil:"parent_id"`
		ParentUserID null.String `boil:"parent_user_id"`
		ParentName   null.String `boil:"parent_name"`
		ParentEmail  null.String `boil:"parent_email"`
	}

	examRow struct {
		ID          int64       `boil:"id" db:"id"`
		Title       string      `boil:"title" db:"title"`
		ExamDate    time.Time   `boil:"exam_date" db:"exam_date"`
		TotalMarks  float64     `boil:"total_marks" db:"total_marks"`
		Term        string      `boil:"term" db:"term"`
		TermKey     string      `boil:"-" db:"term_key"`
		ClassID     int64       `boil:"class_id" db:"class_id"`
		SubjectID   int64       `boil:"subject_id" db:"subject_id"`
		SubjectName string      `boil:"subject_name" db:"-"`
		TeacherID   null.String `boil:"teacher_id" db:"teacher_id"`
		Status      string      `boil:"status" db:"status"`
		CreatedAt   time.Time   `boil:"created_at" db:"created_at"`
		UpdatedAt   time.Time   `boil:"updated_at" db:"updated_at"`
	}

	resultRow struct {
		ID        int64       `boil:"id" db:"id"`
		ExamID    int64       `boil:"exam_id" db:"exam_id"`
		StudentID int64       `boil:"student_id" db:"student_id"`
		Marks     float64     `boil:"marks" db:"marks"`
		Grade     null.String `boil:"grade" db:"grade"`
		CreatedAt time.Time   `boil:"created_at" db:"created_at"`
		UpdatedAt time.Time   `boil:"updated_at" db:"updated_at"`
	}

	idRow struct {
		ID int64 `boil:"id"`
	}
)

type examRepository struct {
	repository
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(exec core.DBExecutor) *examRepository {
	return &examRepository{repository{exec: exec}}
}

func (repo examRepository) unboilStudent(row *studentRow) exam.Student {
	st := exam.Student{
		ID:        row.ID,
		UserID:    row.UserID,
		ClassID:   row.ClassID,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email.String,
	}
	if row.ParentID.Valid {
		st.Parent = &exam.Parent{
			ID:     row.ParentID.Int64,
			UserID: row.ParentUserID.String,
			Name:   row.ParentName.String,
			Email:  row.ParentEmail.String,
		}
	}
	return st
}

func (repo examRepository) boilExam(e exam.Exam) examRow {
	return examRow{
		ID:         e.ID,
		Title:      e.Title,
		ExamDate:   e.ExamDate.UTC(),
		TotalMarks: e.TotalMarks,
		Term:       e.Term.Label(),
		TermKey:    e.Term.Key(),
		ClassID:    e.ClassID,
		SubjectID:  e.SubjectID,
		TeacherID:  null.NewString(e.TeacherID, e.TeacherID != ""),
		Status:     string(e.Status),
		CreatedAt:  e.CreatedAt.UTC(),
		UpdatedAt:  e.UpdatedAt.UTC(),
	}
}

func (repo examRepository) unboilExam(row *examRow) exam.Exam {
	term, _ := exam.ParseTerm(row.Term) // stored labels are never blank
	return exam.Exam{
		ID:          row.ID,
		Title:       row.Title,
		ExamDate:    row.ExamDate.UTC(),
		TotalMarks:  row.TotalMarks,
		Term:        term,
		ClassID:     row.ClassID,
		SubjectID:   row.SubjectID,
		SubjectName: row.SubjectName,
		TeacherID:   row.TeacherID.String,
		Status:      exam.Status(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (repo examRepository) unboilExams(rows []*examRow) []exam.Exam {
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, repo.unboilExam(row))
	}
	return exams
}

func (repo examRepository) boilResult(r exam.Result) resultRow {
	return resultRow{
		ID:        r.ID,
		ExamID:    r.ExamID,
		StudentID: r.StudentID,
		Marks:     r.Marks,
		Grade:     null.NewString(r.Grade, r.Grade != ""),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo examRepository) unboilResult(row *resultRow) exam.Result {
	return exam.Result{
		ID:        row.ID,
		ExamID:    row.ExamID,
		StudentID: row.StudentID,
		Marks:     row.Marks,
		Grade:     row.Grade.String,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (repo examRepository) GetClass(ctx context.Context, id int64, exec ...core.DBExecutor) (exam.Class, error) {
	var row classRow
	if err := repo.bind(ctx, repo.getExec(exec), &row, "SELECT id, name FROM classes WHERE id = ?", id); err != nil {
		return exam.Class{}, trapNoRowsErr(err, exam.ErrClassNotFound, "finding class")
	}
	return exam.Class(row), nil
}

func (repo examRepository) GetSubject(ctx context.Context, id int64, exec ...core.DBExecutor) (exam.Subject, error) {
	var row subjectRow
	err := repo.bind(ctx, repo.getExec(exec), &row, "SELECT id, class_id, name, teacher_id FROM subjects WHERE id = ?", id)
	if err != nil {
		return exam.Subject{}, trapNoRowsErr(err, exam.ErrSubjectNotFound, "finding subject")
	}
	return exam.Subject{ID: row.ID, ClassID: row.ClassID, Name: row.Name, TeacherID: row.TeacherID.String}, nil
}

func (repo examRepository) GetStudent(ctx context.Context, id int64, exec ...core.DBExecutor) (exam.Student, error) {
	var row studentRow
	if err := repo.bind(ctx, repo.getExec(exec), &row, studentSelect+" WHERE s.id = ?", id); err != nil {
		return exam.Student{}, trapNoRowsErr(err, exam.ErrStudentNotFound, "finding student")
	}
	return repo.unboilStudent(&row), nil
}

func (repo examRepository) QueryStudents(ctx context.Context, filter exam.StudentFilter, exec ...core.DBExecutor) ([]exam.Student, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ClassID != 0 {
		conds = append(conds, "s.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []exam.Student{}, nil
		}
		conds = append(conds, "s.id IN (?)")
		args = append(args, filter.IDs)
	}

	query := studentSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var rows []*studentRow
	if err := repo.bind(ctx, repo.getExec(exec), &rows, query+studentOrder, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]exam.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.unboilStudent(row))
	}
	return students, nil
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	row := repo.boilExam(e)
	var id idRow
	err := repo.bindNamed(ctx, repo.getExec(exec), &id,
		`INSERT INTO exams (title, exam_date, total_marks, term, term_key, class_id, subject_id, teacher_id, status, created_at, updated_at)
		VALUES (:title, :exam_date, :total_marks, :term, :term_key, :class_id, :subject_id, :teacher_id, :status, :created_at, :updated_at)
		RETURNING id`, row)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	e.ID = id.ID
	return e, nil
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	row := repo.boilExam(e)
	cnt, err := repo.execute(ctx, repo.getExec(exec),
		`UPDATE exams SET title = ?, exam_date = ?, total_marks = ?, term = ?, term_key = ?, subject_id = ?,
		teacher_id = ?, updated_at = ? WHERE id = ?`,
		row.Title, row.ExamDate, row.TotalMarks, row.Term, row.TermKey, row.SubjectID, row.TeacherID, row.UpdatedAt, row.ID)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "updating exam")
	}
	if cnt == 0 {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, nil
}

func (repo examRepository) GetExam(ctx context.Context, id int64, exec ...core.DBExecutor) (exam.Exam, error) {
	var row examRow
	if err := repo.bind(ctx, repo.getExec(exec), &row, examSelect+" WHERE e.id = ?", id); err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "finding exam")
	}
	return repo.unboilExam(&row), nil
}

func (repo examRepository) QueryExams(ctx context.Context, filter exam.Filter, exec ...core.DBExecutor) ([]exam.Exam, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ClassID != 0 {
		conds = append(conds, "e.class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.SubjectID != 0 {
		conds = append(conds, "e.subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.TermKey != "" {
		conds = append(conds, "e.term_key = ?")
		args = append(args, filter.TermKey)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []exam.Exam{}, nil
		}
		conds = append(conds, "e.id IN (?)")
		args = append(args, filter.IDs)
	}

	query := examSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + repo.orderBy(filter.Ordering)

	var rows []*examRow
	if err := repo.bind(ctx, repo.getExec(exec), &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	return repo.unboilExams(rows), nil
}

// orderBy keeps the orderings on known fields and always ends with the default order.
func (repo examRepository) orderBy(ordering []core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if i := sort.SearchStrings(sortedOrderingFields, ord.Field); i < len(sortedOrderingFields) && sortedOrderingFields[i] == ord.Field {
			orderList = append(orderList, "e."+ord.String())
		}
	}
	return strings.Join(append(orderList, examDefaultOrder), ", ")
}

func (repo examRepository) LockExams(ctx context.Context, scope exam.Scope, exec ...core.DBExecutor) ([]exam.Exam, error) {
	var rows []*examRow
	err := repo.bind(ctx, repo.getExec(exec), &rows,
		examSelect+" WHERE e.class_id = ? AND e.term_key = ? ORDER BY "+examDefaultOrder+" FOR UPDATE OF e",
		scope.ClassID, scope.Term.Key())
	if err != nil {
		return nil, errors.Wrap(err, "locking exams")
	}
	return repo.unboilExams(rows), nil
}

func (repo examRepository) SetExamsStatus(ctx context.Context, ids []int64, status exam.Status, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cnt, err := repo.execute(ctx, repo.getExec(exec),
		"UPDATE exams SET status = ?, updated_at = ? WHERE id IN (?)", string(status), time.Now().UTC(), ids)
	return cnt, errors.Wrap(err, "updating exams status")
}

func (repo examRepository) QueryResults(ctx context.Context, filter exam.ResultFilter, exec ...core.DBExecutor) ([]exam.Result, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ExamIDs != nil {
		if len(filter.ExamIDs) == 0 {
			return []exam.Result{}, nil
		}
		conds = append(conds, "exam_id IN (?)")
		args = append(args, filter.ExamIDs)
	}
	if filter.StudentID != 0 {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}

	query := "SELECT " + resultColumns + " FROM results"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var rows []*resultRow
	if err := repo.bind(ctx, repo.getExec(exec), &rows, query+" ORDER BY exam_id, id", args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	results := make([]exam.Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, repo.unboilResult(row))
	}
	return results, nil
}

func (repo examRepository) UpsertResults(ctx context.Context, results []exam.Result, exec ...core.DBExecutor) ([]exam.Result, error) {
	if len(results) == 0 {
		return []exam.Result{}, nil
	}
	rows := make([]resultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, repo.boilResult(r))
	}

	var saved []*resultRow
	err := repo.bindNamed(ctx, repo.getExec(exec), &saved,
		`INSERT INTO results (exam_id, student_id, marks, grade, created_at, updated_at)
		VALUES (:exam_id, :student_id, :marks, :grade, :created_at, :updated_at)
		ON CONFLICT (exam_id, student_id)
		DO UPDATE SET marks = EXCLUDED.marks, grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at
		RETURNING `+resultColumns, rows)
	if err != nil {
		return nil, errors.Wrap(err, "upserting results")
	}
	out := make([]exam.Result, 0, len(saved))
	for _, row := range saved {
		out = append(out, repo.unboilResult(row))
	}
	return out, nil
}

var sortedOrderingFields = func() []string {
	fields := append([]string(nil), exam.OrderingFields...)
	sort.Strings(fields)
	return fields
}()
