// Package report aggregates exam results into per-subject, per-student and per-class reports.
package report

import (
	"sort"
	"time"

	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
)

type (
	ExamScore struct {
		ExamID     int64     `json:"exam_id"`
		Title      string    `json:"title"`
		ExamDate   time.Time `json:"exam_date"`
		Term       string    `json:"term"`
		Marks      float64   `json:"marks"`
		TotalMarks float64   `json:"total_marks"`
		Grade      string    `json:"grade"`
	}

	SubjectResult struct {
		SubjectID  int64       `json:"subject_id"`
		Subject    string      `json:"subject"`
		TotalMarks float64     `json:"totalMarks"`
		TotalFull  float64     `json:"totalFull"`
		Percent    float64     `json:"percent"`
		FinalGrade string      `json:"finalGrade"`
		Exams      []ExamScore `json:"exams"`
	}

	StudentResult struct {
		StudentID         int64           `json:"student_id"`
		FirstName         string          `json:"first_name"`
		LastName          string          `json:"last_name"`
		Subjects          []SubjectResult `json:"subjects"`
		OverallTotalMarks float64         `json:"overallTotalMarks"`
		OverallTotalFull  float64         `json:"overallTotalFull"`
		OverallPercent    float64         `json:"overallPercent"`
		OverallGrade      string          `json:"overallGrade"`
	}

	RankedStudent struct {
		Rank int `json:"rank"`
		StudentResult
	}

	Summary struct {
		TotalStudents  int     `json:"totalStudents"`
		AveragePercent float64 `json:"averagePercent"`
		HighestPercent float64 `json:"highestPercent"`
		LowestPercent  float64 `json:"lowestPercent"`
		PassCount      int     `json:"passCount"`
		FailCount      int     `json:"failCount"`
	}

	ClassReport struct {
		ClassID   int64           `json:"class_id"`
		ClassName string          `json:"class_name"`
		Term      string          `json:"term"`
		Students  []RankedStudent `json:"students"`
		Summary   Summary         `json:"summary"`
		Message   string          `json:"message,omitempty"`
	}

	StudentReport struct {
		StudentResult
		ClassID int64  `json:"class_id"`
		Term    string `json:"term,omitempty"`
		Message string `json:"message,omitempty"`
	}
)

// Aggregate groups the results of one student by subject.
// An exam only counts toward the subject full marks when the student has a result for it.
// Subjects are listed in the order their first result is met, walking exams in the given order.
func Aggregate(exams []exam.Exam, results []exam.Result, scale grading.Scale) []SubjectResult {
	byExam := make(map[int64]exam.Result, len(results))
	for _, r := range results {
		byExam[r.ExamID] = r
	}

	subjects := make([]SubjectResult, 0)
	index := make(map[int64]int) // subject ID -> position in subjects
	for _, e := range exams {
		r, ok := byExam[e.ID]
		if !ok {
			continue
		}
		pos, seen := index[e.SubjectID]
		if !seen {
			pos = len(subjects)
			index[e.SubjectID] = pos
			subjects = append(subjects, SubjectResult{
				SubjectID: e.SubjectID,
				Subject:   e.SubjectName,
				Exams:     make([]ExamScore, 0, 1),
			})
		}
		subj := &subjects[pos]
		subj.TotalMarks += r.Marks
		subj.TotalFull += e.TotalMarks
		subj.Exams = append(subj.Exams, ExamScore{
			ExamID:     e.ID,
			Title:      e.Title,
			ExamDate:   e.ExamDate,
			Term:       e.Term.Label(),
			Marks:      r.Marks,
			TotalMarks: e.TotalMarks,
			Grade:      r.Grade,
		})
	}

	for i := range subjects {
		subjects[i].Percent = grading.Percent(subjects[i].TotalMarks, subjects[i].TotalFull)
		subjects[i].FinalGrade = scale.Resolve(subjects[i].Percent)
	}
	return subjects
}

// Rollup sums the subject aggregates of a student into overall totals.
func Rollup(st exam.Student, subjects []SubjectResult, scale grading.Scale) StudentResult {
	res := StudentResult{
		StudentID: st.ID,
		FirstName: st.FirstName,
		LastName:  st.LastName,
		Subjects:  subjects,
	}
	if res.Subjects == nil {
		res.Subjects = make([]SubjectResult, 0)
	}
	for _, subj := range res.Subjects {
		res.OverallTotalMarks += subj.TotalMarks
		res.OverallTotalFull += subj.TotalFull
	}
	res.OverallPercent = grading.Percent(res.OverallTotalMarks, res.OverallTotalFull)
	res.OverallGrade = scale.Resolve(res.OverallPercent)
	return res
}

// Rank orders students by overall percent, best first. Ties keep their input order and
// still get distinct consecutive ranks: ranks are positions.
func Rank(students []StudentResult) []RankedStudent {
	sorted := make([]StudentResult, len(students))
	copy(sorted, students)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OverallPercent > sorted[j].OverallPercent })

	ranked := make([]RankedStudent, 0, len(sorted))
	for i, st := range sorted {
		ranked = append(ranked, RankedStudent{Rank: i + 1, StudentResult: st})
	}
	return ranked
}

// Summarize computes the class statistics of ranked students.
func Summarize(ranked []RankedStudent) Summary {
	sum := Summary{TotalStudents: len(ranked)}
	if len(ranked) == 0 {
		return sum
	}

	var total float64
	sum.HighestPercent = ranked[0].OverallPercent
	sum.LowestPercent = ranked[0].OverallPercent
	for _, st := range ranked {
		total += st.OverallPercent
		if st.OverallPercent > sum.HighestPercent {
			sum.HighestPercent = st.OverallPercent
		}
		if st.OverallPercent < sum.LowestPercent {
			sum.LowestPercent = st.OverallPercent
		}
		if grading.IsPass(st.OverallGrade) {
			sum.PassCount++
		} else {
			sum.FailCount++
		}
	}
	sum.AveragePercent = grading.Round1(total / float64(len(ranked)))
	return sum
}

// resultsByStudent splits results per student.
func resultsByStudent(results []exam.Result) map[int64][]exam.Result {
	grouped := make(map[int64][]exam.Result)
	for _, r := range results {
		grouped[r.StudentID] = append(grouped[r.StudentID], r)
	}
	return grouped
}
