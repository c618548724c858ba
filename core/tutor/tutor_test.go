package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/course"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/storage/database/inmem"
)

type completerMock struct {
	system   string
	messages []Message
	err      error
}

func (c *completerMock) Complete(_ context.Context, system string, messages []Message) (string, error) {
	c.system, c.messages = system, messages
	if c.err != nil {
		return "", c.err
	}
	return "  Let's start with the basics.\n", nil
}

func TestChatRequest_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{name: "no messages", req: ChatRequest{}, wantErr: true},
		{name: "unknown role", req: ChatRequest{Messages: []Message{{Role: "system", Content: "hi"}}}, wantErr: true},
		{name: "blank content", req: ChatRequest{Messages: []Message{{Role: RoleUser, Content: "  "}}}, wantErr: true},
		{
			name:    "ends with assistant",
			req:     ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}},
			wantErr: true,
		},
		{
			name: "valid",
			req: ChatRequest{Messages: []Message{
				{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}, {Role: RoleUser, Content: "explain osmosis"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Chat(t *testing.T) {
	ctx := context.Background()
	courseSvc := course.NewService(inmemdb.NewCourseRepository(inmemdb.Open()))
	alice, bob := user.User{ID: "alice"}, user.User{ID: "bob"}

	bio, err := courseSvc.CreateCourse(ctx, alice, course.NewCourse{Name: "Biology", Code: "BIO101"})
	require.NoError(t, err)
	_, err = courseSvc.CreateNote(ctx, alice, bio.ID, course.NewNote{Title: "Osmosis"})
	require.NoError(t, err)

	msgs := []Message{{Role: RoleUser, Content: "What is osmosis?"}}

	t.Run("without course", func(t *testing.T) {
		completer := &completerMock{}
		reply, err := NewService(completer, courseSvc).Chat(ctx, alice, ChatRequest{Messages: msgs})
		require.NoError(t, err)
		assert.Equal(t, Message{Role: RoleAssistant, Content: "Let's start with the basics."}, reply)
		assert.Equal(t, basePrompt, completer.system)
		assert.Equal(t, msgs, completer.messages)
	})

	t.Run("with course", func(t *testing.T) {
		completer := &completerMock{}
		_, err := NewService(completer, courseSvc).Chat(ctx, alice, ChatRequest{CourseID: bio.ID, Messages: msgs})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(completer.system, basePrompt))
		assert.Contains(t, completer.system, `"Biology" (BIO101)`)
		assert.Contains(t, completer.system, "- Osmosis")
	})

	t.Run("course of someone else", func(t *testing.T) {
		_, err := NewService(&completerMock{}, courseSvc).Chat(ctx, bob, ChatRequest{CourseID: bio.ID, Messages: msgs})
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("completer failure", func(t *testing.T) {
		boom := errors.New("throttled")
		_, err := NewService(&completerMock{err: boom}, courseSvc).Chat(ctx, alice, ChatRequest{Messages: msgs})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
	})
}
