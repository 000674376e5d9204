package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	// KindModel — тип узла обращения к LLM.
	KindModel = "model"
)

// Ключи конфигурации model узла.
const (
	modelConfigOp          = "op"
	modelConfigModel       = "model"
	modelConfigPrompt      = "prompt"
	modelConfigSystem      = "system"
	modelConfigTemperature = "temperature"
	modelConfigMaxTokens   = "max_tokens"
	modelConfigSchema      = "schema"
	modelConfigSchemaName  = "schema_name"
	modelConfigSize        = "size"
	modelConfigVoice       = "voice"
)

// Операции model узла.
const (
	modelOpText       = "text"
	modelOpStructured = "structured"
	modelOpEmbedding  = "embedding"
	modelOpImage      = "image"
	modelOpAudio      = "audio"
)

// ModelExecutor — узел вызова моделей OpenAI-совместимого API.
//
// Операции:
//
//	text       — chat completion, output {"text", "finish_reason", "usage"}
//	structured — chat completion с JSON-схемой ответа, output
//	             {"data": <распарсенный объект>, "usage"}
//	embedding  — вектор для prompt, output {"embedding": [...], "dimensions"}
//	image      — генерация изображения, output {"b64": "...", "size"}
//	audio      — синтез речи, output {"b64": "...", "format": "mp3"}
//
// Конфигурация:
//
//	{
//	    "op": "structured",
//	    "model": "gpt-4o-mini",
//	    "prompt": "{assemble.prompt}",
//	    "schema": {"type": "object", "properties": {...}},
//	    "schema_name": "report"
//	}
type ModelExecutor struct {
	client openai.Client
}

// NewModelExecutor создаёт ModelExecutor.
// baseURL опционален — для OpenAI-совместимых API.
func NewModelExecutor(apiKey, baseURL string) *ModelExecutor {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	return &ModelExecutor{client: openai.NewClient(clientOpts...)}
}

// Kind возвращает тип узла.
func (e *ModelExecutor) Kind() string { return KindModel }

// Category возвращает категорию брокера.
func (e *ModelExecutor) Category() string { return CategoryModel }

// Execute выполняет обращение к модели.
func (e *ModelExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	model := GetConfigString(req.Config, modelConfigModel)
	if model == "" {
		return nil, fmt.Errorf("%w: %s: model is required", ErrInvalidConfig, KindModel)
	}
	prompt := GetConfigString(req.Config, modelConfigPrompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: %s: prompt is required", ErrInvalidConfig, KindModel)
	}

	op := GetConfigString(req.Config, modelConfigOp)
	if op == "" {
		op = modelOpText
	}

	switch op {
	case modelOpText:
		return e.completeText(ctx, req.Config, model, prompt, nil)
	case modelOpStructured:
		return e.completeStructured(ctx, req.Config, model, prompt)
	case modelOpEmbedding:
		return e.embed(ctx, model, prompt)
	case modelOpImage:
		return e.generateImage(ctx, req.Config, model, prompt)
	case modelOpAudio:
		return e.synthesizeSpeech(ctx, req.Config, model, prompt)
	default:
		return nil, fmt.Errorf("%w: %s: unknown op %q", ErrInvalidConfig, KindModel, op)
	}
}

// buildMessages собирает сообщения чата из system и prompt.
func (e *ModelExecutor) buildMessages(config map[string]any, prompt string) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if system := GetConfigString(config, modelConfigSystem); system != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(prompt),
			},
		},
	})
	return messages
}

// buildChatParams собирает параметры chat completion запроса.
func (e *ModelExecutor) buildChatParams(config map[string]any, model, prompt string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: e.buildMessages(config, prompt),
	}
	if temp, ok := config[modelConfigTemperature]; ok {
		if f, isNum := toFloat(temp); isNum {
			params.Temperature = openai.Float(f)
		}
	}
	if maxTokens := GetConfigInt(config, modelConfigMaxTokens); maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	return params
}

// completeText выполняет обычный chat completion.
func (e *ModelExecutor) completeText(ctx context.Context, config map[string]any, model, prompt string,
	responseFormat *openai.ChatCompletionNewParamsResponseFormatUnion) (*Response, error) {

	params := e.buildChatParams(config, model, prompt)
	if responseFormat != nil {
		params.ResponseFormat = *responseFormat
	}

	completion, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: chat completion: %v", ErrExecutionFailed, KindModel, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s: empty completion", ErrExecutionFailed, KindModel)
	}

	choice := completion.Choices[0]
	return NewResponse(map[string]any{
		"text":          choice.Message.Content,
		"finish_reason": choice.FinishReason,
		"usage": map[string]any{
			"prompt_tokens":     completion.Usage.PromptTokens,
			"completion_tokens": completion.Usage.CompletionTokens,
			"total_tokens":      completion.Usage.TotalTokens,
		},
	}), nil
}

// completeStructured выполняет completion с JSON-схемой ответа.
func (e *ModelExecutor) completeStructured(ctx context.Context, config map[string]any, model, prompt string) (*Response, error) {
	schema := GetConfigMap(config, modelConfigSchema)
	if schema == nil {
		return nil, fmt.Errorf("%w: %s: schema is required for structured op", ErrInvalidConfig, KindModel)
	}
	schemaName := GetConfigString(config, modelConfigSchemaName)
	if schemaName == "" {
		schemaName = "output"
	}

	responseFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   schemaName,
				Schema: schema,
				Strict: openai.Bool(true),
			},
		},
	}

	resp, err := e.completeText(ctx, config, model, prompt, &responseFormat)
	if err != nil {
		return nil, err
	}

	out, ok := resp.Output.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unexpected completion shape", ErrExecutionFailed, KindModel)
	}
	text, _ := out["text"].(string)

	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("%w: %s: model returned invalid JSON: %v", ErrExecutionFailed, KindModel, err)
	}
	return NewResponse(map[string]any{
		"data":  data,
		"usage": out["usage"],
	}), nil
}

// embed вычисляет embedding для текста.
func (e *ModelExecutor) embed(ctx context.Context, model, text string) (*Response, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: embedding: %v", ErrExecutionFailed, KindModel, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty embedding response", ErrExecutionFailed, KindModel)
	}

	embedding := resp.Data[0].Embedding
	vector := make([]any, len(embedding))
	for i, f := range embedding {
		vector[i] = f
	}
	return NewResponse(map[string]any{
		"embedding":  vector,
		"dimensions": len(vector),
	}), nil
}

// generateImage генерирует изображение по prompt.
func (e *ModelExecutor) generateImage(ctx context.Context, config map[string]any, model, prompt string) (*Response, error) {
	size := GetConfigString(config, modelConfigSize)
	if size == "" {
		size = "1024x1024"
	}

	resp, err := e.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: image generation: %v", ErrExecutionFailed, KindModel, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty image response", ErrExecutionFailed, KindModel)
	}

	return NewResponse(map[string]any{
		"b64":  resp.Data[0].B64JSON,
		"size": size,
	}), nil
}

// synthesizeSpeech синтезирует речь по prompt.
func (e *ModelExecutor) synthesizeSpeech(ctx context.Context, config map[string]any, model, prompt string) (*Response, error) {
	voice := GetConfigString(config, modelConfigVoice)
	if voice == "" {
		voice = "alloy"
	}

	resp, err := e.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModel(model),
		Input: prompt,
		Voice: openai.AudioSpeechNewParamsVoice(voice),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: speech synthesis: %v", ErrExecutionFailed, KindModel, err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read audio: %v", ErrExecutionFailed, KindModel, err)
	}
	return NewResponse(map[string]any{
		"b64":    base64.StdEncoding.EncodeToString(audio),
		"format": "mp3",
	}), nil
}
