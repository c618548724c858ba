package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/billing"
	"github.com/openstud/openstud/core/course"
	"github.com/openstud/openstud/core/pending"
	"github.com/openstud/openstud/core/tutor"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/core/workspace"
	"github.com/openstud/openstud/services/email"
	"github.com/openstud/openstud/services/tutor"
	"github.com/openstud/openstud/storage/database/inmem"
	"github.com/openstud/openstud/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app       Server
	conf      *core.Config
	logger    *testutil.Logger
	usrRepo   user.Repository
	wsRepo    workspace.Repository
	wsSvc     workspace.Service
	courseSvc course.Service
	mailSvc   *emailsvc.ConsoleServiceMock
	sessions  *pending.Registry
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := new(testutil.Logger)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	wsRepo := inmemdb.NewWorkspaceRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	wsSvc := workspace.NewService(wsRepo)
	courseSvc := course.NewService(courseRepo)
	sessions := pending.NewRegistry(conf.Pending.MaxSessions, conf.Pending.SessionTTL)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		WorkspaceSvc:   wsSvc,
		CourseSvc:      courseSvc,
		TutorSvc:       tutor.NewService(tutorsvc.NewEchoCompleter(), courseSvc),
		BillingSvc:     billing.NewService(),
		Pending:        sessions,
	})

	return &testEnv{
		app:       app,
		conf:      conf,
		logger:    logger,
		usrRepo:   usrRepo,
		wsRepo:    wsRepo,
		wsSvc:     wsSvc,
		courseSvc: courseSvc,
		mailSvc:   mailSvc,
		sessions:  sessions,
	}
}

func (env *testEnv) createStudent(t *testing.T, name, uname string) user.User {
	return testutil.CreateUser(t, env.usrRepo, name, uname, uname+"@test.cd", "pwd", []string{user.RoleStudent}, true)
}

// createTask creates a task in the personal workspace of usr.
func (env *testEnv) createTask(t *testing.T, usr user.User, title string) workspace.Task {
	t.Helper()

	ctx := context.Background()
	ws, err := env.wsSvc.PersonalWorkspace(ctx, usr)
	if err != nil {
		t.Fatalf("PersonalWorkspace() failed: %v", err)
	}
	p, err := env.wsSvc.CreateProject(ctx, usr, ws.ID, workspace.NewProject{Name: "Project of " + usr.Username})
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	task, err := env.wsSvc.CreateTask(ctx, usr, p.ID, workspace.NewTask{Title: title})
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return task
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := GenerateToken(env.conf, GetUserClaims(env.conf, usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
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
	wantData []byte // not checked when nil
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }
