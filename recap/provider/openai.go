package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const defaultMaxOutputTokens = 2500

type responsesAPI interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// OpenAIGenerator is a Generator backed by the OpenAI Responses API with strict
// JSON-schema structured output.
type OpenAIGenerator struct {
	api     responsesAPI
	model   string
	enabled bool
}

// NewOpenAIGenerator returns a generator for model. An empty apiKey yields a generator
// that reports itself unavailable, which sends every pipeline down its template path.
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	apiKey = strings.TrimSpace(apiKey)
	g := &OpenAIGenerator{model: strings.TrimSpace(model), enabled: apiKey != ""}
	if g.enabled {
		client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
		g.api = &client.Responses
	}
	return g
}

// Disable turns the generator off without discarding its client.
func (g *OpenAIGenerator) Disable() {
	g.enabled = false
}

func (g *OpenAIGenerator) Available(ctx context.Context) bool {
	if g == nil || !g.enabled || g.api == nil || g.model == "" {
		return false
	}
	return ctx.Err() == nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if g == nil || g.api == nil {
		return "", errors.New("OpenAIGenerator: client is nil")
	}
	if g.model == "" {
		return "", errors.New("OpenAIGenerator: model is empty")
	}

	resp, err := g.api.New(ctx, buildResponseParams(g.model, req))
	if err != nil {
		return "", err
	}
	out := resp.OutputText()
	if strings.TrimSpace(out) == "" {
		return "", errors.New("OpenAIGenerator: empty output")
	}
	return out, nil
}

func buildResponseParams(model string, req Request) responses.ResponseNewParams {
	maxOut := req.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = defaultMaxOutputTokens
	}

	params := responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(maxOut),
		ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.Schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        req.Name,
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
					Description: openai.String(req.Name + " JSON"),
					Type:        "json_schema",
				},
			},
		}
	}
	return params
}
