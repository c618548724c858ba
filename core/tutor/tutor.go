// Package tutor runs AI tutor conversations, optionally grounded on one of the student's courses.
package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/course"
	"github.com/openstud/openstud/core/user"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	maxNoteTitles = 50

	basePrompt = "You are OpenStud's study tutor. Help the student understand their course material: " +
		"explain concepts step by step, ask short questions to check understanding and " +
		"never just hand out answers to graded work. Keep replies concise and use markdown."
)

var errLastMessage = errors.New("the conversation must end with a user message")

type (
	Message struct {
		Role    string `json:"role" validate:"required,oneof=user assistant"`
		Content string `json:"content" validate:"required,notblank,max=8000"`
	}

	ChatRequest struct {
		CourseID string    `json:"course_id"`
		Messages []Message `json:"messages" validate:"required,min=1,max=50,dive"`
	}

	// Completer produces the assistant's reply to a conversation.
	Completer interface {
		Complete(ctx context.Context, system string, messages []Message) (string, error)
	}

	Service interface {
		Chat(ctx context.Context, actor user.User, req ChatRequest) (Message, error)
	}

	service struct {
		completer Completer
		courseSvc course.Service
	}
)

func (req *ChatRequest) Validate(validate *validator.Validate) error {
	req.CourseID = core.CleanString(req.CourseID)
	if err := validate.Struct(req); err != nil {
		return err
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != RoleUser {
		return core.NewValidationError(errLastMessage, core.FieldError{Field: "messages", Error: errLastMessage.Error()})
	}
	return nil
}

func NewService(completer Completer, courseSvc course.Service) Service {
	return &service{completer: completer, courseSvc: courseSvc}
}

func (svc *service) Chat(ctx context.Context, actor user.User, req ChatRequest) (Message, error) {
	system, err := svc.systemPrompt(ctx, actor, req.CourseID)
	if err != nil {
		return Message{}, err
	}
	reply, err := svc.completer.Complete(ctx, system, req.Messages)
	if err != nil {
		return Message{}, errors.Wrap(err, "completing conversation")
	}
	return Message{Role: RoleAssistant, Content: strings.TrimSpace(reply)}, nil
}

func (svc *service) systemPrompt(ctx context.Context, actor user.User, courseID string) (string, error) {
	if courseID == "" {
		return basePrompt, nil
	}
	c, err := svc.courseSvc.Course(ctx, actor, courseID)
	if err != nil {
		return "", err
	}
	notes, err := svc.courseSvc.Notes(ctx, actor, c.ID, course.NoteFilter{})
	if err != nil {
		return "", errors.Wrap(err, "listing notes")
	}
	return BuildSystemPrompt(c, notes), nil
}

// BuildSystemPrompt appends the course and its note titles to the base tutor prompt.
func BuildSystemPrompt(c course.Course, notes []course.Note) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nThe student is studying the course ")
	b.WriteString(fmt.Sprintf("%q", c.Name))
	if c.Code != "" {
		b.WriteString(" (" + c.Code + ")")
	}
	b.WriteString(".")
	if len(notes) > 0 {
		b.WriteString("\nTheir notes for this course are titled:")
		for i, n := range notes {
			if i == maxNoteTitles {
				break
			}
			b.WriteString("\n- " + n.Title)
		}
	}
	return b.String()
}
