// Package tutorsvc provides tutor.Completer implementations.
package tutorsvc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/tutor"
)

const anthropicVersion = "bedrock-2023-05-31"

type (
	modelInvoker interface {
		InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	}

	bedrockCompleter struct {
		client    modelInvoker
		modelID   string
		maxTokens int
	}

	claudeMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	claudeRequest struct {
		AnthropicVersion string          `json:"anthropic_version"`
		MaxTokens        int             `json:"max_tokens"`
		System           string          `json:"system,omitempty"`
		Messages         []claudeMessage `json:"messages"`
	}

	claudeResponse struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
)

var _ tutor.Completer = (*bedrockCompleter)(nil)

// NewBedrockCompleter talks to an Anthropic model hosted on AWS Bedrock.
// Credentials come from the default AWS chain (env, shared config, instance role).
func NewBedrockCompleter(ctx context.Context, conf *core.Config) (tutor.Completer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.Tutor.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return newBedrockCompleter(bedrockruntime.NewFromConfig(cfg), conf), nil
}

func newBedrockCompleter(client modelInvoker, conf *core.Config) *bedrockCompleter {
	maxTokens := conf.Tutor.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &bedrockCompleter{client: client, modelID: conf.Tutor.ModelID, maxTokens: maxTokens}
}

func (c *bedrockCompleter) Complete(ctx context.Context, system string, messages []tutor.Message) (string, error) {
	req := claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
		System:           system,
		Messages:         make([]claudeMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, claudeMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "encoding request")
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrap(err, "invoking model")
	}

	var resp claudeResponse
	if err = json.Unmarshal(out.Body, &resp); err != nil {
		return "", errors.Wrap(err, "decoding response")
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.Errorf("empty completion (stop reason: %s)", resp.StopReason)
	}
	return sb.String(), nil
}
