package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core/course"
)

func Test_courseApi(t *testing.T) {
	env := setup(t)

	alice := env.createStudent(t, "Alice", "alice1")
	bob := env.createStudent(t, "Bob", "bobby1")
	token := env.token(t, alice)

	var c course.Course
	t.Run("create course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, []byte(`{"name": "Algebra", "code": "MATH101", "color": "#FF0000"}`))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
		assert.Equal(t, alice.ID, c.OwnerID)
		assert.Equal(t, "#ff0000", c.Color)
	})

	var n course.Note
	t.Run("create note", func(t *testing.T) {
		body := []byte(`{"title": "Groups", "content": "# Groups\n\nA **group** is a set with an operation."}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+c.ID+"/notes", token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
		assert.Equal(t, c.ID, n.CourseID)
	})

	t.Run("render note", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notes/"+n.ID+"/html", token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var rn course.RenderedNote
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rn))
		assert.Contains(t, rn.HTML, "<h1")
		assert.Contains(t, rn.HTML, "<strong>group</strong>")
	})

	notFound := marchallObj(t, httpErr{Error: "not found"})
	env.run(t, []httpTest{
		{name: "Auth required", path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list", path: "/v1/courses", token: token, wantCode: http.StatusOK, wantData: marchallList(t, c)},
		{name: "create (invalid color)", method: http.MethodPost, path: "/v1/courses", token: token, body: []byte(`{"name": "Art", "color": "red"}`), wantCode: http.StatusBadRequest},
		{name: "retrieve (another student)", path: "/v1/courses/" + c.ID, token: env.token(t, bob), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "notes", path: "/v1/courses/" + c.ID + "/notes", token: token, wantCode: http.StatusOK, wantData: marchallList(t, n)},
		{name: "notes (search)", path: "/v1/courses/" + c.ID + "/notes?search=GROUP", token: token, wantCode: http.StatusOK, wantData: marchallList(t, n)},
		{name: "note (another student)", path: "/v1/notes/" + n.ID, token: env.token(t, bob), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "delete note", method: http.MethodDelete, path: "/v1/notes/" + n.ID, token: token, wantCode: http.StatusNoContent},
		{name: "note (deleted)", path: "/v1/notes/" + n.ID, token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "delete course", method: http.MethodDelete, path: "/v1/courses/" + c.ID, token: token, wantCode: http.StatusNoContent},
	})
}
