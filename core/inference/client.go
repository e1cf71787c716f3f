// Package inference implements the model-backed ports (zero-shot
// classification, embeddings, place extraction) on the OpenAI API, plus the
// shared lazily-constructed resource the classification stages borrow.
package inference

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"crisislens_server/core/port/out"
	"crisislens_server/pkg/httputil"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

// Client wraps the OpenAI API for the pipeline's inference needs.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
}

// ClientConfig holds inference client configuration.
type ClientConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	HTTPClient     *http.Client
}

// NewClient creates a new inference client.
func NewClient(cfg ClientConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	embModel := openai.EmbeddingModel(cfg.EmbeddingModel)
	if cfg.EmbeddingModel == "" {
		embModel = openai.AdaEmbeddingV2
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	} else {
		apiCfg.HTTPClient = httputil.OpenAIClient()
	}
	return &Client{
		client:         openai.NewClientWithConfig(apiCfg),
		model:          model,
		embeddingModel: embModel,
	}
}

// Classify scores text against candidate labels via a JSON-mode completion
// and returns the labels ranked by descending score.
func (c *Client) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]out.LabelScore, error) {
	mode := "exactly one label fits; scores must sum to 1.0"
	if multiLabel {
		mode = "several labels may apply; score each independently between 0.0 and 1.0"
	}

	systemPrompt := fmt.Sprintf(`You are a zero-shot text classifier. Score how well each candidate label describes the text (%s).

Respond with this exact JSON format:
{
  "scores": {"<label>": 0.0-1.0, ...}
}
Include every candidate label exactly as given.`, mode)

	userPrompt := fmt.Sprintf("Candidate labels:\n- %s\n\nText:\n%s",
		strings.Join(labels, "\n- "), truncate(text, 2000))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	return parseLabelScores(resp.Choices[0].Message.Content, labels)
}

// ExtractPlaces finds place-name mentions in the text.
func (c *Client) ExtractPlaces(ctx context.Context, text string) ([]out.PlaceMention, error) {
	systemPrompt := `You are a multilingual named entity recognizer specialized in geographic locations. Extract every place name mentioned in the text: cities, districts, regions, countries, and facilities (hospitals, schools, bridges, camps).

Respond with this exact JSON format:
{
  "places": [
    {"text": "place name as written", "label": "LOC|FACILITY", "confidence": 0.0-1.0}
  ]
}
Preserve the order of appearance. Return an empty list if there are none. Do not include person or organization names.`

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: truncate(text, 2000)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	var parsed struct {
		Places []out.PlaceMention `json:"places"`
	}
	if err := json.Unmarshal([]byte(stripFence(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse place extraction response: %w", err)
	}
	return parsed.Places, nil
}

// Embed returns the embedding vector for a text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.embeddingModel,
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

// parseLabelScores decodes the JSON scores map and ranks the candidate
// labels by descending score. Labels the model omitted score zero.
func parseLabelScores(raw string, labels []string) ([]out.LabelScore, error) {
	var parsed struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}

	ranked := make([]out.LabelScore, 0, len(labels))
	for _, label := range labels {
		score := parsed.Scores[label]
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		ranked = append(ranked, out.LabelScore{Label: label, Score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
