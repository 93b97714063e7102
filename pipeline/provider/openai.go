// Package provider implements the pipeline's model-facing collaborators on
// the OpenAI API: structured-output completions and audio transcription.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"

	"github.com/Kevinaie18/intelligence/pipeline"
)

// Completer answers prompts with strict JSON-schema structured outputs. One
// Completer carries one output schema, so analysis and consolidation each
// get their own instance.
type Completer struct {
	client       *openai.Client
	model        string
	instructions string
	schemaName   string
	schema       map[string]interface{}
	maxTokens    int64
}

var analysisSchema = GenerateSchema[pipeline.Analysis]()
var consolidationSchema = GenerateSchema[pipeline.ConsolidatedAnalysis]()

// NewAnalysisCompleter builds the per-chunk hearing analysis completer.
func NewAnalysisCompleter(client *openai.Client, model string) *Completer {
	return &Completer{
		client:       client,
		model:        model,
		instructions: pipeline.AnalysisInstructions,
		schemaName:   "HearingAnalysis",
		schema:       analysisSchema,
		maxTokens:    4000,
	}
}

// NewConsolidationCompleter builds the cross-hearing report completer.
func NewConsolidationCompleter(client *openai.Client, model string) *Completer {
	return &Completer{
		client:       client,
		model:        model,
		instructions: pipeline.ConsolidationInstructions,
		schemaName:   "ConsolidatedReport",
		schema:       consolidationSchema,
		maxTokens:    6000,
	}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (pipeline.Completion, error) {
	if c.client == nil {
		return pipeline.Completion{}, errors.New("Completer: client is nil")
	}
	if c.model == "" {
		return pipeline.Completion{}, errors.New("Completer: model is empty")
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        c.schemaName,
			Schema:      c.schema,
			Strict:      openai.Bool(true),
			Description: openai.String(c.schemaName + " JSON"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxTokens),
		Instructions:    openai.String(c.instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return pipeline.Completion{}, err
	}
	return pipeline.Completion{
		Text:   resp.OutputText(),
		Tokens: int(resp.Usage.TotalTokens),
	}, nil
}

// ClipFunc cuts a window out of an audio file and returns the clip path plus
// a release callback.
type ClipFunc func(ctx context.Context, audio pipeline.AudioHandle, window pipeline.TimeWindow) (string, func(), error)

// Transcriber sends audio windows to the transcription API. Clip is used
// when a window covers less than the whole file; it may be nil when windows
// always span the full recording.
type Transcriber struct {
	client *openai.Client
	model  openai.AudioModel
	clip   ClipFunc
}

func NewTranscriber(client *openai.Client, model string, clip ClipFunc) *Transcriber {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &Transcriber{client: client, model: openai.AudioModel(model), clip: clip}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio pipeline.AudioHandle, window pipeline.TimeWindow) (string, error) {
	if t.client == nil {
		return "", errors.New("Transcriber: client is nil")
	}

	path := audio.Path
	release := func() {}
	if window.Start > 0 || window.End < audio.Duration {
		if t.clip == nil {
			return "", fmt.Errorf("Transcriber: partial window %d needs a clip function", window.Index)
		}
		var err error
		path, release, err = t.clip(ctx, audio, window)
		if err != nil {
			return "", fmt.Errorf("Transcriber: clip window %d: %w", window.Index, err)
		}
	}
	defer release()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("Transcriber: open audio: %w", err)
	}
	defer f.Close()

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: t.model,
		File:  f,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// IsRetryable classifies API errors for the retry policy: rate limits and
// server-side failures are worth retrying, everything else is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection")
}

// GenerateSchema reflects T into an OpenAI-compliant JSON schema.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	ensureOpenAICompliance(schemaObj)
	return schemaObj
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

func ensureOpenAICompliance(schema map[string]interface{}) {
	if schemaType, ok := schema[typeKey].(string); ok && schemaType == "object" {
		schema[additionalPropertiesKey] = false

		if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
			var requiredFields []string
			for propName := range properties {
				requiredFields = append(requiredFields, propName)
			}
			if len(requiredFields) > 0 {
				schema[requiredKey] = requiredFields
			}
		}
	}

	if properties, ok := schema[propertiesKey].(map[string]interface{}); ok {
		for _, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				ensureOpenAICompliance(propMap)
			}
		}
	}

	if items, ok := schema[itemsKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(items)
	}

	if additionalProps, ok := schema[additionalPropertiesKey].(map[string]interface{}); ok {
		ensureOpenAICompliance(additionalProps)
	}
}
