package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db}
}

func (repo *examRepository) GetClass(_ context.Context, id int64, _ ...core.DBExecutor) (exam.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.t.classes[id]; ok {
		return c, nil
	}
	return exam.Class{}, exam.ErrClassNotFound
}

func (repo *examRepository) GetSubject(_ context.Context, id int64, _ ...core.DBExecutor) (exam.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.t.subjects[id]; ok {
		return s, nil
	}
	return exam.Subject{}, exam.ErrSubjectNotFound
}

func (repo *examRepository) GetStudent(_ context.Context, id int64, _ ...core.DBExecutor) (exam.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.t.students[id]; ok {
		return repo.db.student(rec), nil
	}
	return exam.Student{}, exam.ErrStudentNotFound
}

func (repo *examRepository) QueryStudents(_ context.Context, filter exam.StudentFilter, _ ...core.DBExecutor) ([]exam.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := idSet(filter.IDs)
	students := make([]exam.Student, 0)
	for _, rec := range repo.db.t.students {
		if filter.ClassID != 0 && rec.ClassID != filter.ClassID {
			continue
		}
		if ids != nil && !ids[rec.ID] {
			continue
		}
		students = append(students, repo.db.student(rec))
	}
	sort.Slice(students, func(i, j int) bool {
		a, b := students[i], students[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return students, nil
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e.ID = repo.db.nextPK()
	repo.db.t.exams[e.ID] = e
	return e, nil
}

func (repo *examRepository) UpdateExam(_ context.Context, e exam.Exam, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.t.exams[e.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	// class, status and creation date are not editable
	e.ClassID = orig.ClassID
	e.Status = orig.Status
	e.CreatedAt = orig.CreatedAt
	repo.db.t.exams[e.ID] = e
	return e, nil
}

func (repo *examRepository) GetExam(_ context.Context, id int64, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.t.exams[id]; ok {
		return e, nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) QueryExams(_ context.Context, filter exam.Filter, _ ...core.DBExecutor) ([]exam.Exam, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := idSet(filter.IDs)
	exams := make([]exam.Exam, 0)
	for _, e := range repo.db.t.exams {
		if filter.ClassID != 0 && e.ClassID != filter.ClassID {
			continue
		}
		if filter.SubjectID != 0 && e.SubjectID != filter.SubjectID {
			continue
		}
		if filter.TermKey != "" && e.Term.Key() != filter.TermKey {
			continue
		}
		if ids != nil && !ids[e.ID] {
			continue
		}
		exams = append(exams, e)
	}
	sortExams(exams, filter.Ordering)
	return exams, nil
}

func (repo *examRepository) LockExams(ctx context.Context, scope exam.Scope, exec ...core.DBExecutor) ([]exam.Exam, error) {
	// the transactor already serializes transactions
	return repo.QueryExams(ctx, exam.Filter{ClassID: scope.ClassID, TermKey: scope.Term.Key()}, exec...)
}

func (repo *examRepository) SetExamsStatus(_ context.Context, ids []int64, status exam.Status, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var cnt int
	for _, id := range ids {
		if e, ok := repo.db.t.exams[id]; ok {
			e.Status = status
			repo.db.t.exams[id] = e
			cnt++
		}
	}
	return cnt, nil
}

func (repo *examRepository) QueryResults(_ context.Context, filter exam.ResultFilter, _ ...core.DBExecutor) ([]exam.Result, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	examIDs := idSet(filter.ExamIDs)
	results := make([]exam.Result, 0)
	for _, r := range repo.db.t.results {
		if examIDs != nil && !examIDs[r.ExamID] {
			continue
		}
		if filter.StudentID != 0 && r.StudentID != filter.StudentID {
			continue
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].ExamID != results[j].ExamID {
			return results[i].ExamID < results[j].ExamID
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (repo *examRepository) UpsertResults(_ context.Context, results []exam.Result, _ ...core.DBExecutor) ([]exam.Result, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	saved := make([]exam.Result, 0, len(results))
	for _, r := range results {
		if existing, ok := repo.findResult(r.ExamID, r.StudentID); ok {
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
		} else {
			r.ID = repo.db.nextPK()
		}
		repo.db.t.results[r.ID] = r
		saved = append(saved, r)
	}
	return saved, nil
}

func (repo *examRepository) findResult(examID, studentID int64) (exam.Result, bool) {
	for _, r := range repo.db.t.results {
		if r.ExamID == examID && r.StudentID == studentID {
			return r, true
		}
	}
	return exam.Result{}, false
}

// sortExams applies the known orderings, then the default exam date and ID order.
func sortExams(exams []exam.Exam, ordering []core.DBOrdering) {
	sort.SliceStable(exams, func(i, j int) bool {
		a, b := exams[i], exams[j]
		for _, ord := range ordering {
			c := compareExams(a, b, ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		if !a.ExamDate.Equal(b.ExamDate) {
			return a.ExamDate.Before(b.ExamDate)
		}
		return a.ID < b.ID
	})
}

func compareExams(a, b exam.Exam, field string) int {
	switch field {
	case "exam_date":
		return compareTimes(a.ExamDate.Unix(), b.ExamDate.Unix())
	case "created_at":
		return compareTimes(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "total_marks":
		switch {
		case a.TotalMarks < b.TotalMarks:
			return -1
		case a.TotalMarks > b.TotalMarks:
			return 1
		}
	}
	return 0
}

func compareTimes(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func idSet(ids []int64) map[int64]bool {
	if ids == nil {
		return nil
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
