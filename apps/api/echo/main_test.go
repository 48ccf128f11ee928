package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func setup(t *testing.T) (*testutil.App, echoapi.Server) {
	app := testutil.NewApp(t)
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       app.Conf,
		Logger:     app.Logger,
		Validate:   app.Validate,
		Translator: app.Translator,
		UserSvc:    app.UserSvc,
		GradingSvc: app.GradingSvc,
		ExamSvc:    app.ExamSvc,
		ReportSvc:  app.ReportSvc,
		PublishSvc: app.PublishSvc,
		NoticeSvc:  app.NoticeSvc,
	})
	return app, srv
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, app *testutil.App, usr user.User) string {
	token, err := echoapi.GenerateToken(app.Conf, echoapi.GetUserClaims(app.Conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, srv echoapi.Server, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}
