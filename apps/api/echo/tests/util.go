package tests

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	throttlesvc "github.com/trezcool/academia/services/throttle"
	tokensvc "github.com/trezcool/academia/services/token"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

const pwd = "Str0ng!Passw0rd"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app        *echoapi.Server
	db         *dummydb.DB
	accRepo    account.Repository
	courseRepo course.Repository
	gradeRepo  grade.Repository
	codec      *tokensvc.JWTCodec
	validate   *validator.Validate
	conf       *core.Config
}

func setup(t *testing.T, opts ...dummydb.Option) env {
	t.Helper()
	return setupWith(t, nil, opts...)
}

// setupWith is setup with the grade repository the services see replaced by wrapGrades(repo).
func setupWith(t *testing.T, wrapGrades func(grade.Repository) grade.Repository, opts ...dummydb.Option) env {
	t.Helper()
	emailsvc.ClearSentMessages()

	conf := testutil.NewConfig()
	conf.Server.DisableReqLogs = true

	// set up DB & repos
	db := dummydb.Open(opts...)
	accRepo := dummydb.NewAccountRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	gradeRepo := dummydb.NewGradeRepository(db)
	svcGradeRepo := gradeRepo
	if wrapGrades != nil {
		svcGradeRepo = wrapGrades(gradeRepo)
	}

	// set up services
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	codec := tokensvc.NewJWTCodec(conf)
	accSvc := account.NewService(
		db,
		accRepo,
		codec,
		throttlesvc.NewMemoryThrottle(conf),
		emailsvc.NewConsoleServiceMock(conf, logger),
		conf,
	)

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AccountSvc: accSvc,
		CourseSvc:  course.NewService(courseRepo, accRepo),
		GradeSvc:   grade.NewService(svcGradeRepo, courseRepo, validate),
		Validate:   validate,
		Translator: translator,
	})

	return env{
		app:        app,
		db:         db,
		accRepo:    accRepo,
		courseRepo: courseRepo,
		gradeRepo:  gradeRepo,
		codec:      codec,
		validate:   validate,
		conf:       conf,
	}
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
	wantData []byte // only the status code is checked when nil
	extra    interface{}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// getToken signs an access token for acc, holding roles.
func (e env) getToken(t *testing.T, acc account.Account, roles ...string) string {
	token, err := e.codec.SignAccessToken(account.Claims{AccountID: acc.ID, Roles: roles}, time.Hour)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func itoa(i int) string { return strconv.Itoa(i) }

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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
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

func (e env) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
