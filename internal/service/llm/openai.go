// Package llm reaches a chat model through the OpenAI Responses API and
// returns its answer as a validated artifact.
package llm

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Taichi-iskw/yt-skip/internal/errors"
	"github.com/Taichi-iskw/yt-skip/internal/model"
	"github.com/Taichi-iskw/yt-skip/internal/service/prompt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const defaultModel = "gpt-4.1-mini"

// ResponsesAPI is the subset of the OpenAI client used here
type ResponsesAPI interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// Config configures the OpenAI analyzer
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *slog.Logger
}

// Analyzer asks the model for a video timeline with strict structured output
type Analyzer struct {
	api    ResponsesAPI
	model  string
	schema map[string]any
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer backed by the official client
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.CodeInvalidArg, "OpenAI API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return NewAnalyzerWithAPI(&client.Responses, cfg.Model, cfg.Logger)
}

// NewAnalyzerWithAPI creates an Analyzer over an existing responses API
func NewAnalyzerWithAPI(api ResponsesAPI, modelName string, logger *slog.Logger) (*Analyzer, error) {
	schema, err := generateSchema[wireTimeline]()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to build response schema")
	}
	if modelName == "" {
		modelName = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		api:    api,
		model:  modelName,
		schema: schema,
		logger: logger.With("component", "openai"),
	}, nil
}

// Analyze sends text to the model. modelName overrides the configured model when set.
func (a *Analyzer) Analyze(ctx context.Context, text, modelName string) (model.Artifact, error) {
	if modelName == "" {
		modelName = a.model
	}

	params := responses.ResponseNewParams{
		Model:        modelName,
		Instructions: openai.String("You label YouTube videos for an ad skipper. Answer only with the requested JSON."),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "VideoTimeline",
					Schema:      a.schema,
					Strict:      openai.Bool(true),
					Description: openai.String("Timed segments found in the video"),
					Type:        "json_schema",
				},
			},
		},
	}

	started := time.Now()
	resp, err := a.api.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, errors.CodeTimeout, "OpenAI request was cancelled")
		}
		if isClientError(err) {
			return nil, errors.Wrap(err, errors.CodeEngine, "OpenAI rejected the request")
		}
		return nil, errors.Wrap(err, errors.CodeTransport, "failed to reach OpenAI")
	}
	a.logger.Debug("response received", "model", modelName, "elapsed", time.Since(started))

	return decodeTimeline(resp.OutputText())
}

// decodeTimeline converts the model output into an artifact. Non-conforming
// output falls back to the free-text parser.
func decodeTimeline(output string) (model.Artifact, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, errors.New(errors.CodeMalformed, "OpenAI returned an empty response")
	}

	var timeline wireTimeline
	if err := json.Unmarshal([]byte(output), &timeline); err != nil {
		return prompt.ExtractArtifact(output)
	}

	artifact := make(model.Artifact, 0, len(timeline.Segments))
	for _, s := range timeline.Segments {
		seg := model.Segment{
			Category:    model.Category(s.Type),
			Start:       s.Start,
			Description: s.Description,
		}
		if seg.Category.Kind() == model.KindRanged {
			end := s.End
			seg.End = &end
		}
		artifact = append(artifact, seg)
	}

	if err := artifact.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformed, "OpenAI returned invalid segments")
	}
	return artifact, nil
}

func isClientError(err error) bool {
	var apiErr *openai.Error
	if !stderrors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != 429
}
