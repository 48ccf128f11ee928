package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

func Test_examApi_create(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	otherClass := app.DB.AddClass("Grade 5")
	science := app.DB.AddSubject(otherClass.ID, "Science", "")
	adminToken := getToken(t, app, school.Admin)

	newExam := func(subjectID int64, total float64, term string) []byte {
		return marchallObj(t, map[string]interface{}{
			"title":       "Algebra",
			"exam_date":   "2026-03-02",
			"total_marks": total,
			"term":        term,
			"class_id":    school.Class.ID,
			"subject_id":  subjectID,
		})
	}

	runHTTPTests(t, srv, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/api/exams", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", method: http.MethodPost, path: "/api/exams", token: getToken(t, app, school.Teacher),
			body: newExam(school.Math.ID, 50, "first term"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Subject of another class", method: http.MethodPost, path: "/api/exams", token: adminToken,
			body: newExam(science.ID, 50, "first term"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": "subject is not taught in this class"}),
		},
		{
			name: "Unknown subject", method: http.MethodPost, path: "/api/exams", token: adminToken,
			body: newExam(9999, 50, "first term"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": "subject not found"}),
		},
		{
			name: "Blank term", method: http.MethodPost, path: "/api/exams", token: adminToken,
			body: newExam(school.Math.ID, 50, "   "), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"term": "this field cannot be blank"}),
		},
	})

	t.Run("Invalid total marks", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/exams", adminToken, newExam(school.Math.ID, 0, "first term"))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "total_marks")
	})

	t.Run("Created", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/exams", adminToken, newExam(school.Math.ID, 50, " First-Term  Exam "))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var e exam.Exam
		decode(t, rec, &e)
		assert.NotZero(t, e.ID)
		assert.Equal(t, "First Term", e.Term.Label())
		assert.Equal(t, "Mathematics", e.SubjectName)
		assert.Equal(t, school.Teacher.ID, e.TeacherID)
		assert.Equal(t, exam.StatusUpcoming, e.Status)
		assert.Equal(t, float64(50), e.TotalMarks)
	})
}

func Test_examApi_query(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	algebra := testutil.CreateExam(t, app, school.Math, "Algebra", "2020-02-10", 50, "First Term")
	essay := testutil.CreateExam(t, app, school.English, "Essay", "2020-02-03", 20, "first term exam")
	testutil.CreateExam(t, app, school.Math, "Geometry", "2020-06-01", 50, "Mid Term")

	path := func(query string) string {
		return fmt.Sprintf("/api/exams?class_id=%d&%s", school.Class.ID, query)
	}
	titles := func(t *testing.T, p string) []string {
		req, rec := newAuthRequest(http.MethodGet, p, getToken(t, app, school.Teacher))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var exams []exam.Exam
		decode(t, rec, &exams)
		out := make([]string, 0, len(exams))
		for _, e := range exams {
			assert.Equal(t, exam.StatusCompleted, e.Status) // dates are past
			out = append(out, e.Title)
		}
		return out
	}

	runHTTPTests(t, srv, []httpTest{
		{
			name: "Staff required", method: http.MethodGet, path: path(""), token: getToken(t, app, school.AliceUser),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Blank term", method: http.MethodGet, path: path("term=%20"), token: getToken(t, app, school.Admin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"term": exam.ErrBlankTerm.Error()}),
		},
	})

	t.Run("by class", func(t *testing.T) {
		assert.Equal(t, []string{essay.Title, algebra.Title, "Geometry"}, titles(t, path("")))
	})
	t.Run("by term", func(t *testing.T) {
		assert.Equal(t, []string{essay.Title, algebra.Title}, titles(t, path("term=FIRST+term")))
	})
	t.Run("by subject", func(t *testing.T) {
		assert.Equal(t, []string{algebra.Title, "Geometry"}, titles(t, path(fmt.Sprintf("subject_id=%d", school.Math.ID))))
	})
	t.Run("ordering", func(t *testing.T) {
		assert.Equal(t, []string{"Geometry", essay.Title, algebra.Title}, titles(t, path("ordering=-title")))
	})
}

func Test_examApi_update(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	algebra := testutil.CreateExam(t, app, school.Math, "Algebra", "2020-02-10", 50, "First Term")
	testutil.RecordResult(t, app, algebra, school.Alice, 40)
	adminToken := getToken(t, app, school.Admin)

	runHTTPTests(t, srv, []httpTest{
		{
			name: "Not found", method: http.MethodPut, path: "/api/exams/9999", token: adminToken,
			body: []byte(`{"title": "Algebra I"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Total below recorded marks", method: http.MethodPut, path: fmt.Sprintf("/api/exams/%d", algebra.ID), token: adminToken,
			body: []byte(`{"total_marks": 30}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"total_marks": "recorded marks (40) exceed the new total"}),
		},
	})

	t.Run("Regraded", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/api/exams/%d", algebra.ID), adminToken, []byte(`{"title": "Algebra I", "total_marks": 80}`))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var e exam.Exam
		decode(t, rec, &e)
		assert.Equal(t, "Algebra I", e.Title)
		assert.Equal(t, float64(80), e.TotalMarks)

		results, err := app.ExamSvc.Results(req.Context(), algebra.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "D", results[0].Grade) // 40/80 = 50%
	})
}

func Test_examApi_recordMarks(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	otherTeacher := testutil.CreateUser(t, app.UserRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	outsider := app.DB.AddStudent(testutil.CreateUser(t, app.UserRepo, "Out Sider", "outsider", "", "", []string{user.RoleStudent}, true),
		app.DB.AddClass("Grade 5").ID, "Out", "Sider", 0)
	algebra := testutil.CreateExam(t, app, school.Math, "Algebra", "2020-02-10", 50, "First Term")
	path := fmt.Sprintf("/api/exams/%d/results", algebra.ID)
	teacherToken := getToken(t, app, school.Teacher)

	marks := func(entries ...exam.MarkEntry) []byte {
		return marchallObj(t, exam.NewMarks{Marks: entries})
	}

	runHTTPTests(t, srv, []httpTest{
		{
			name: "Only the exam teacher", method: http.MethodPut, path: path, token: getToken(t, app, otherTeacher),
			body: marks(exam.MarkEntry{StudentID: school.Alice.ID, Marks: 40}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Marks above total", method: http.MethodPut, path: path, token: teacherToken,
			body:     marks(exam.MarkEntry{StudentID: school.Alice.ID, Marks: 51}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"marks[0].marks": "marks cannot exceed the exam total (50)"}),
		},
		{
			name: "Student of another class", method: http.MethodPut, path: path, token: teacherToken,
			body:     marks(exam.MarkEntry{StudentID: school.Alice.ID, Marks: 40}, exam.MarkEntry{StudentID: outsider.ID, Marks: 20}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"marks[1].student_id": "student is not enrolled in the exam class"}),
		},
		{
			name: "Empty marks", method: http.MethodPut, path: path, token: teacherToken,
			body: marks(), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"marks": "this field is required"}),
		},
	})

	t.Run("Recorded then corrected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, teacherToken,
			marks(exam.MarkEntry{StudentID: school.Alice.ID, Marks: 40}, exam.MarkEntry{StudentID: school.Bob.ID, Marks: 19}))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var results []exam.Result
		decode(t, rec, &results)
		require.Len(t, results, 2)
		assert.Equal(t, "A", results[0].Grade) // 80%
		assert.Equal(t, "F", results[1].Grade) // 38%

		// admins may correct marks
		req, rec = newAuthRequest(http.MethodPut, path, getToken(t, app, school.Admin), marks(exam.MarkEntry{StudentID: school.Bob.ID, Marks: 25}))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, path, teacherToken)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &results)
		require.Len(t, results, 2)
		assert.Equal(t, school.Bob.ID, results[1].StudentID)
		assert.Equal(t, float64(25), results[1].Marks)
		assert.Equal(t, "D", results[1].Grade) // 50%
	})
}
