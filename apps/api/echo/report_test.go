package echoapi_test

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/report"
	"github.com/trezcool/alama/tests"
)

func seedTerm(t *testing.T, app *testutil.App, school testutil.School) {
	algebra := testutil.CreateExam(t, app, school.Math, "Algebra", "2020-02-10", 50, "First Term")
	essay := testutil.CreateExam(t, app, school.English, "Essay", "2020-02-12", 20, "first term")
	testutil.RecordResult(t, app, algebra, school.Alice, 45)
	testutil.RecordResult(t, app, essay, school.Alice, 18)
	testutil.RecordResult(t, app, algebra, school.Bob, 21)
	testutil.RecordResult(t, app, essay, school.Bob, 8)
}

func Test_reportApi_classTerm(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	seedTerm(t, app, school)

	path := func(classID int64, term string) string {
		q := url.Values{}
		q.Set("class_id", fmt.Sprint(classID))
		if term != "" {
			q.Set("term", term)
		}
		return "/api/reports/class?" + q.Encode()
	}

	runHTTPTests(t, srv, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: path(school.Class.ID, "first term"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Staff required", method: http.MethodGet, path: path(school.Class.ID, "first term"), token: getToken(t, app, school.AliceUser),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Term required", method: http.MethodGet, path: path(school.Class.ID, ""), token: getToken(t, app, school.Teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"term": "this field is required"}),
		},
		{
			name: "Unknown class", method: http.MethodGet, path: path(9999, "first term"), token: getToken(t, app, school.Teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: exam.ErrClassNotFound.Error()}),
		},
	})

	t.Run("Ranked", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path(school.Class.ID, "FIRST  term"), getToken(t, app, school.Teacher))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep report.ClassReport
		decode(t, rec, &rep)
		assert.Equal(t, "Grade 6", rep.ClassName)
		assert.Equal(t, "First Term", rep.Term)
		require.Len(t, rep.Students, 2)

		alice, bob := rep.Students[0], rep.Students[1]
		assert.Equal(t, 1, alice.Rank)
		assert.Equal(t, school.Alice.ID, alice.StudentID)
		assert.Equal(t, float64(63), alice.OverallTotalMarks)
		assert.Equal(t, float64(70), alice.OverallTotalFull)
		assert.Equal(t, float64(90), alice.OverallPercent)
		assert.Equal(t, "A", alice.OverallGrade)
		require.Len(t, alice.Subjects, 2)
		assert.Equal(t, "Mathematics", alice.Subjects[0].Subject)
		assert.Equal(t, "English", alice.Subjects[1].Subject)

		assert.Equal(t, 2, bob.Rank)
		assert.Equal(t, 41.4, bob.OverallPercent)
		assert.Equal(t, "E", bob.OverallGrade)

		assert.Equal(t, 2, rep.Summary.TotalStudents)
		assert.Equal(t, 2, rep.Summary.PassCount)
		assert.Equal(t, 0, rep.Summary.FailCount)
		assert.Equal(t, float64(90), rep.Summary.HighestPercent)
		assert.Equal(t, 41.4, rep.Summary.LowestPercent)
		assert.InDelta(t, 65.7, rep.Summary.AveragePercent, 0.001)
	})

	t.Run("No exams in term", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path(school.Class.ID, "Final Term"), getToken(t, app, school.Admin))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep report.ClassReport
		decode(t, rec, &rep)
		assert.Empty(t, rep.Students)
		assert.Equal(t, 0, rep.Summary.TotalStudents)
		assert.Equal(t, "no exams found for this class and term", rep.Message)
	})
}

func Test_reportApi_student(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	seedTerm(t, app, school)
	midterm := testutil.CreateExam(t, app, school.Math, "Fractions", "2020-05-04", 50, "Mid Term")
	testutil.RecordResult(t, app, midterm, school.Alice, 25)

	alicePath := fmt.Sprintf("/api/reports/students/%d", school.Alice.ID)
	runHTTPTests(t, srv, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: alicePath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Other student", method: http.MethodGet, path: alicePath, token: getToken(t, app, school.BobUser),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Unknown student", method: http.MethodGet, path: "/api/reports/students/9999", token: getToken(t, app, school.BobUser),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Self", method: http.MethodGet, path: alicePath, token: getToken(t, app, school.AliceUser)},
		{name: "Parent", method: http.MethodGet, path: alicePath, token: getToken(t, app, school.ParentUser)},
		{name: "Teacher", method: http.MethodGet, path: alicePath, token: getToken(t, app, school.Teacher)},
	})

	get := func(t *testing.T, p string) report.StudentReport {
		req, rec := newAuthRequest(http.MethodGet, p, getToken(t, app, school.AliceUser))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rep report.StudentReport
		decode(t, rec, &rep)
		return rep
	}

	t.Run("All terms", func(t *testing.T) {
		rep := get(t, alicePath)
		assert.Equal(t, school.Class.ID, rep.ClassID)
		assert.Empty(t, rep.Term)
		require.Len(t, rep.Subjects, 2)
		assert.Equal(t, float64(70), rep.Subjects[0].TotalMarks) // 45 + 25
		assert.Equal(t, float64(100), rep.Subjects[0].TotalFull)
		assert.Len(t, rep.Subjects[0].Exams, 2)
		assert.Equal(t, float64(88), rep.OverallTotalMarks)
		assert.Equal(t, float64(120), rep.OverallTotalFull)
	})

	t.Run("One term", func(t *testing.T) {
		rep := get(t, alicePath+"?"+url.Values{"term": {"mid-term"}}.Encode())
		assert.Equal(t, "Mid Term", rep.Term)
		require.Len(t, rep.Subjects, 1)
		assert.Equal(t, float64(50), rep.OverallPercent)
		assert.Equal(t, "D", rep.OverallGrade)
	})

	t.Run("No results", func(t *testing.T) {
		rep := get(t, alicePath+"?"+url.Values{"term": {"Final Term"}}.Encode())
		assert.Empty(t, rep.Subjects)
		assert.Equal(t, float64(0), rep.OverallPercent)
		assert.Equal(t, "no results recorded for this student", rep.Message)
	})
}

func Test_reportApi_publish(t *testing.T) {
	app, srv := setup(t)
	school := testutil.SeedSchool(t, app)
	algebra := testutil.CreateExam(t, app, school.Math, "Algebra", "2020-02-10", 50, "First Term")
	testutil.RecordResult(t, app, algebra, school.Alice, 45)
	testutil.RecordResult(t, app, algebra, school.Bob, 21)
	adminToken := getToken(t, app, school.Admin)

	body := func(term string) []byte {
		return marchallObj(t, map[string]interface{}{"class_id": school.Class.ID, "term": term})
	}

	runHTTPTests(t, srv, []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/api/reports/publish", token: getToken(t, app, school.Teacher),
			body: body("first term"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Class required", method: http.MethodPost, path: "/api/reports/publish", token: adminToken,
			body: []byte(`{"term": "first term"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_id": "this field is required"}),
		},
		{
			name: "Nothing to publish", method: http.MethodPost, path: "/api/reports/publish", token: adminToken,
			body: body("Final Term"), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "no exams found for this class and term"}),
		},
	})

	t.Run("Published", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/reports/publish", adminToken, body("first term exam"))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.PublishResponse
		decode(t, rec, &resp)
		assert.Equal(t, "Results published successfully.", resp.Success)
		assert.Equal(t, "First Term", resp.Publication.Term)
		assert.Equal(t, 1, resp.Publication.ExamsCount)
		assert.Equal(t, 3, resp.Publication.NoticesCount)
		assert.Equal(t, 2, resp.Publication.StudentNotices)
		assert.Equal(t, 1, resp.Publication.ParentNotices)
		assert.Equal(t, school.Admin.ID, resp.Publication.PublishedBy)

		e, err := app.ExamSvc.Get(req.Context(), algebra.ID)
		require.NoError(t, err)
		assert.Equal(t, exam.StatusPublished, e.Status)

		// Bob has no email address
		sent := app.Mail.SentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, "alice@test.cd", sent[0].To[0].Address)
		assert.Equal(t, "mama@test.cd", sent[1].To[0].Address)
	})

	t.Run("Already published", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/reports/publish", adminToken, body("First Term"))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marchallObj(t, httpErr{Error: "results of this class and term are already published"}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("Notices", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/notices", getToken(t, app, school.ParentUser))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var notices []notice.Notice
		decode(t, rec, &notices)
		require.Len(t, notices, 1)
		assert.Equal(t, notice.TargetParent, notices[0].Target)
		assert.Equal(t, "Result Published: Algebra", notices[0].Title)
		assert.Contains(t, notices[0].Message, "Alice Moke")

		req, rec = newAuthRequest(http.MethodGet, "/api/notices", getToken(t, app, school.BobUser))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &notices)
		require.Len(t, notices, 1)
		assert.Equal(t, "Your First Term result for Mathematics (Algebra) has been published: 21/50.", notices[0].Message)

		req, rec = newAuthRequest(http.MethodGet, "/api/notices", getToken(t, app, school.Teacher))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &notices)
		assert.Empty(t, notices)
	})
}
