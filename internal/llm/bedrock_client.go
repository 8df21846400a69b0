// In file: internal/llm/bedrock_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

// converseAPI is the slice of the Bedrock runtime client this package uses.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// AWSCredentials are explicit keys for Bedrock. When absent the default AWS
// credential chain applies (environment, shared profile, instance role).
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// BedrockClient calls Amazon Bedrock models through the Converse API.
type BedrockClient struct {
	api converseAPI
}

var _ ModelClient = (*BedrockClient)(nil)

// NewBedrockClient loads the AWS configuration for cfg.Region (us-east-1 by
// default) and builds a Converse client. The SDK's own retryer is limited to
// a single attempt; throttling is surfaced as RateLimited for the caller.
func NewBedrockClient(ctx context.Context, cfg *ModelConfig, creds *AWSCredentials) (*BedrockClient, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryMaxAttempts(1),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if creds != nil && creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &BedrockClient{api: client}, nil
}

func newBedrockClientWithAPI(client converseAPI) *BedrockClient {
	return &BedrockClient{api: client}
}

// Complete performs one Converse request.
func (c *BedrockClient) Complete(
	ctx context.Context,
	messages []Message,
	cfg *ModelConfig,
	availableTools []tools.Tool,
) (*Completion, error) {
	input, err := buildConverseInput(messages, cfg, availableTools)
	if err != nil {
		return nil, errorsx.Wrapf(err, errorsx.KindModelUnavailable, "failed to build bedrock request")
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, classifyBedrockError(err)
	}
	return parseConverseOutput(out)
}

func buildConverseInput(messages []Message, cfg *ModelConfig, availableTools []tools.Tool) (*bedrockruntime.ConverseInput, error) {
	if cfg == nil || cfg.Model == "" {
		return nil, errors.New("model id is required")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(cfg.Model),
		InferenceConfig: &types.InferenceConfiguration{},
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	input.InferenceConfig.MaxTokens = aws.Int32(int32(maxTokens))
	input.InferenceConfig.Temperature = cfg.Temperature
	input.InferenceConfig.TopP = cfg.TopP

	system, converted, err := toBedrockMessages(messages)
	if err != nil {
		return nil, err
	}
	input.System = system
	input.Messages = converted

	if len(availableTools) > 0 {
		toolConfig, err := toBedrockToolConfig(availableTools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = toolConfig
	}
	return input, nil
}

// toBedrockMessages converts the transcript. Bedrock requires roles to
// alternate, so consecutive messages that map to the same role are merged;
// this is how several tool results become one user turn.
func toBedrockMessages(messages []Message) ([]types.SystemContentBlock, []types.Message, error) {
	var system []types.SystemContentBlock
	var out []types.Message

	for _, msg := range messages {
		var role types.ConversationRole
		var blocks []types.ContentBlock

		switch msg.Role {
		case RoleSystem:
			system = append(system, &types.SystemContentBlockMemberText{Value: msg.Content})
			continue
		case RoleUser:
			role = types.ConversationRoleUser
			blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
		case RoleAssistant:
			role = types.ConversationRoleAssistant
			if msg.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args, err := tc.DecodeArguments()
				if err != nil {
					return nil, nil, fmt.Errorf("tool call %s: %w", tc.ID, err)
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Function.Name),
					Input:     document.NewLazyDocument(args),
				}})
			}
		case RoleTool:
			role = types.ConversationRoleUser
			status := types.ToolResultStatusSuccess
			if msg.IsError {
				status = types.ToolResultStatusError
			}
			blocks = append(blocks, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
				ToolUseId: aws.String(msg.ToolCallID),
				Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: msg.Content}},
				Status:    status,
			}})
		default:
			return nil, nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}

		if len(blocks) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, types.Message{Role: role, Content: blocks})
	}
	return system, out, nil
}

func toBedrockToolConfig(availableTools []tools.Tool) (*types.ToolConfiguration, error) {
	toolConfig := &types.ToolConfiguration{}
	for _, t := range availableTools {
		schema, err := t.Function.Parameters.ToMap()
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Function.Name, err)
		}
		toolConfig.Tools = append(toolConfig.Tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Function.Name),
			Description: aws.String(t.Function.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	return toolConfig, nil
}

func parseConverseOutput(out *bedrockruntime.ConverseOutput) (*Completion, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errorsx.New(errorsx.KindModelUnavailable, "bedrock returned no message (stop reason %q)", out.StopReason)
	}

	result := &Completion{StopReason: string(out.StopReason)}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			args := []byte("{}")
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, errorsx.Wrapf(err, errorsx.KindModelUnavailable, "failed to decode tool input for %s", aws.ToString(b.Value.Name))
				}
				if json.Valid(raw) && string(raw) != "null" {
					args = raw
				}
			}
			result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      aws.ToString(b.Value.Name),
					Arguments: string(args),
				},
			})
		}
	}
	result.Text = strings.TrimSpace(text.String())

	if u := out.Usage; u != nil {
		result.Usage = api.Usage{
			PromptTokens:     int(aws.ToInt32(u.InputTokens)),
			CompletionTokens: int(aws.ToInt32(u.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(u.TotalTokens)),
		}
	}

	switch out.StopReason {
	case types.StopReasonMaxTokens, "model_context_window_exceeded":
		if len(result.ToolCalls) == 0 {
			return nil, tokenLimitStop(ProviderBedrock, string(out.StopReason))
		}
	}
	return result, nil
}

// classifyBedrockError maps Bedrock service exceptions onto the agent error
// taxonomy.
func classifyBedrockError(err error) *errorsx.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &errorsx.Error{Kind: errorsx.KindCanceled, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
			var retryAfter string
			var respErr *smithyhttp.ResponseError
			if errors.As(err, &respErr) && respErr.Response != nil {
				retryAfter = respErr.Response.Header.Get("Retry-After")
			}
			return errorsx.RateLimited(parseRetryAfter(retryAfter, timeNow()), err)
		case "ValidationException":
			if mentionsTokenLimit(apiErr.ErrorMessage()) {
				return &errorsx.Error{Kind: errorsx.KindTokenLimitExceeded, Err: err}
			}
		}
	}
	return &errorsx.Error{Kind: errorsx.KindModelUnavailable, Err: err}
}
