package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core/pending"
)

func Test_pendingApi_add(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	bob := env.createStudent(t, "Bob", "bobby1")
	task := env.createTask(t, alice, "Read chapter 3")
	bobTask := env.createTask(t, bob, "Bob's essay")
	token := env.token(t, alice)

	path := "/v1/changes/" + task.ID

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPut, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "unknown task", method: http.MethodPut, path: "/v1/changes/lol", token: token,
			body: []byte(`{"completion_percentage": 10}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "task of another student", method: http.MethodPut, path: "/v1/changes/" + bobTask.ID, token: token,
			body: []byte(`{"completion_percentage": 10}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "unknown task with invalid payload", method: http.MethodPut, path: "/v1/changes/lol", token: token,
			body: []byte(`{"completion_percentage": 150}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"completion_percentage": "completion percentage must be between 0 and 100"}),
		},
		{
			name: "no fields", method: http.MethodPut, path: path, token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"fields": "at least one field must be set"}),
		},
		{
			name: "percentage out of range", method: http.MethodPut, path: path, token: token, body: []byte(`{"completion_percentage": 101}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"completion_percentage": "completion percentage must be between 0 and 100"}),
		},
		{
			name: "percentage", method: http.MethodPut, path: path, token: token, body: []byte(`{"completion_percentage": 40}`),
			wantCode: http.StatusOK, wantData: marchallObj(t, pending.Change{TaskID: task.ID, Fields: pending.Fields{CompletionPercentage: intPtr(40)}}),
		},
		{
			name: "merged with completed", method: http.MethodPut, path: path, token: token, body: []byte(`{"completed": false}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, pending.Change{TaskID: task.ID, Fields: pending.Fields{CompletionPercentage: intPtr(40), Completed: boolPtr(false)}}),
		},
		{
			name: "later edit wins", method: http.MethodPut, path: path, token: token, body: []byte(`{"completion_percentage": 60}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, pending.Change{TaskID: task.ID, Fields: pending.Fields{CompletionPercentage: intPtr(60), Completed: boolPtr(false)}}),
		},
	}
	env.run(t, tests)

	// nothing is persisted before a commit
	stored, err := env.wsRepo.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CompletionPercentage)
	assert.False(t, stored.Completed)

	store, ok := env.sessions.Peek(alice)
	require.True(t, ok)
	assert.Equal(t, 1, store.Len())
	_, ok = env.sessions.Peek(bob)
	assert.False(t, ok)
}

func Test_pendingApi_listAndRetrieve(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	task1 := env.createTask(t, alice, "Task 1")
	task2 := env.createTask(t, alice, "Task 2")
	token := env.token(t, alice)

	empty := ChangesResponse{Count: 0, Changes: []pending.Change{}}
	env.run(t, []httpTest{
		{name: "Auth required", path: "/v1/changes", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "empty", path: "/v1/changes", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, empty)},
	})

	store := env.sessions.Store(alice)
	require.NoError(t, store.Add(task2.ID, pending.Fields{Completed: boolPtr(true)}))
	require.NoError(t, store.Add(task1.ID, pending.Fields{CompletionPercentage: intPtr(25)}))

	change1 := pending.Change{TaskID: task1.ID, Fields: pending.Fields{CompletionPercentage: intPtr(25)}}
	change2 := pending.Change{TaskID: task2.ID, Fields: pending.Fields{Completed: boolPtr(true)}}

	env.run(t, []httpTest{
		{
			name: "list", path: "/v1/changes", token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, ChangesResponse{Count: 2, Changes: []pending.Change{change2, change1}}),
		},
		{name: "retrieve", path: "/v1/changes/" + task1.ID, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, change1)},
		{name: "retrieve (padded id)", path: "/v1/changes/%20" + task1.ID + "%20", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, change1)},
		{name: "retrieve (none)", path: "/v1/changes/lol", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})},
	})
}

func Test_pendingApi_commit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	alice := env.createStudent(t, "Alice", "alice1")
	task1 := env.createTask(t, alice, "Task 1")
	task2 := env.createTask(t, alice, "Task 2")
	token := env.token(t, alice)

	t.Run("nothing pending", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/changes/commit", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"saved": [], "superseded": [], "failed": []}`)}, rec)
	})

	t.Run("all saved", func(t *testing.T) {
		store := env.sessions.Store(alice)
		require.NoError(t, store.Add(task1.ID, pending.Fields{CompletionPercentage: intPtr(100)}))
		require.NoError(t, store.Add(task2.ID, pending.Fields{CompletionPercentage: intPtr(30)}))

		req, rec := newAuthRequest(http.MethodPost, "/v1/changes/commit", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, pending.Result{Saved: []string{task1.ID, task2.ID}, Superseded: []string{}, Failed: []pending.Failure{}}),
		}, rec)

		got1, err := env.wsRepo.GetTask(ctx, task1.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, got1.CompletionPercentage)
		assert.True(t, got1.Completed)

		got2, err := env.wsRepo.GetTask(ctx, task2.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, got2.CompletionPercentage)
		assert.False(t, got2.Completed)

		assert.Equal(t, 0, store.Len())
	})

	t.Run("partial failure", func(t *testing.T) {
		store := env.sessions.Store(alice)
		require.NoError(t, store.Add(task1.ID, pending.Fields{Completed: boolPtr(false)}))
		require.NoError(t, store.Add(task2.ID, pending.Fields{Completed: boolPtr(true)}))
		// the task disappears before the commit
		require.NoError(t, env.wsSvc.DeleteTask(ctx, alice, task2.ID))

		req, rec := newAuthRequest(http.MethodPost, "/v1/changes/commit", token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusMultiStatus, rec.Code)

		var res pending.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, []string{task1.ID}, res.Saved)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, task2.ID, res.Failed[0].TaskID)
		assert.NotEmpty(t, res.Failed[0].Error)

		got1, err := env.wsRepo.GetTask(ctx, task1.ID)
		require.NoError(t, err)
		assert.False(t, got1.Completed)
		assert.Equal(t, 0, got1.CompletionPercentage)

		// the failed change stays pending, unchanged
		fields, ok := store.Get(task2.ID)
		require.True(t, ok)
		assert.Equal(t, pending.Fields{Completed: boolPtr(true)}, fields)
		assert.Equal(t, 1, store.Len())
	})
}

func Test_pendingApi_discard(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	task := env.createTask(t, alice, "Task")
	token := env.token(t, alice)

	env.run(t, []httpTest{
		{name: "nothing pending", method: http.MethodDelete, path: "/v1/changes", token: token, wantCode: http.StatusNoContent},
	})
	_, ok := env.sessions.Peek(alice)
	assert.False(t, ok, "discarding must not create a session")

	store := env.sessions.Store(alice)
	require.NoError(t, store.Add(task.ID, pending.Fields{CompletionPercentage: intPtr(80)}))

	env.run(t, []httpTest{
		{name: "discard", method: http.MethodDelete, path: "/v1/changes", token: token, wantCode: http.StatusNoContent},
		{
			name: "list after discard", path: "/v1/changes", token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, ChangesResponse{Count: 0, Changes: []pending.Change{}}),
		},
	})

	got, err := env.wsRepo.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CompletionPercentage)
}
