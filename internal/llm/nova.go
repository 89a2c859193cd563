package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/apresai/voicestudio/internal/observability"
)

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type NovaCompleter struct {
	model  string
	client ConverseAPI
}

func NewNovaCompleter(ctx context.Context, region, model string) (*NovaCompleter, error) {
	cfg, err := observability.LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return NewNovaCompleterWithClient(bedrockruntime.NewFromConfig(cfg), model), nil
}

func NewNovaCompleterWithClient(client ConverseAPI, model string) *NovaCompleter {
	if model == "" {
		model = DefaultModel("nova")
	}
	return &NovaCompleter{model: model, client: client}
}

func (n *NovaCompleter) Complete(ctx context.Context, req Request) (string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(n.model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.User},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokens(req))),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	resp, err := n.client.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("Bedrock Converse error: %w", err)
	}

	text := strings.TrimSpace(novaText(resp))
	if text == "" {
		return "", fmt.Errorf("Bedrock: %w", ErrEmptyResponse)
	}
	return text, nil
}

func novaText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
