package tutorsvc

import (
	"context"
	"fmt"

	"github.com/openstud/openstud/core/tutor"
)

type echoCompleter struct{}

// NewEchoCompleter returns a Completer that needs no network: it restates the last question.
// Used in development & tests.
func NewEchoCompleter() tutor.Completer {
	return echoCompleter{}
}

func (echoCompleter) Complete(_ context.Context, _ string, messages []tutor.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	return fmt.Sprintf("You asked: %q. Let's work through it together.", messages[len(messages)-1].Content), nil
}
