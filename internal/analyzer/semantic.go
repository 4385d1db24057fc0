package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/keagan/shortforge/internal/config"
	"github.com/keagan/shortforge/internal/media"
)

const semanticPrompt = `Analyze this video frame for short-form content potential. Respond with only a JSON object, no other text:
{"score": <0-100 visual engagement score>, "description": "one sentence describing the frame", "content_type": "action|reaction|tutorial|entertainment|other", "mood": "one word", "viral_potential": "high|medium|low", "has_person": true, "has_text": false}`

// defaultSemanticScore is used when the model's reply cannot be
// parsed; an unreadable answer is treated as neutral, not as zero.
const defaultSemanticScore = 50

var viralBonus = map[string]float64{
	"high":   15,
	"medium": 5,
}

var contentBonus = map[string]float64{
	"action":        10,
	"reaction":      12,
	"tutorial":      8,
	"entertainment": 10,
}

// SemanticAnalyzer sends sampled frames to a vision model behind any
// OpenAI-compatible endpoint (Ollama's /v1 included) and scores each
// frame from the model's structured reply.
type SemanticAnalyzer struct {
	logger zerolog.Logger
	client openai.Client
	model  string
}

func NewSemanticAnalyzer(logger zerolog.Logger, cfg config.SemanticConfig) *SemanticAnalyzer {
	opts := []option.RequestOption{option.WithBaseURL(cfg.BaseURL)}
	if key := os.Getenv(cfg.APIKeyEnv); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	} else {
		// local endpoints ignore the key but the client requires one
		opts = append(opts, option.WithAPIKey("none"))
	}

	return &SemanticAnalyzer{
		logger: logger.With().Str("analyzer", "semantic").Logger(),
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (a *SemanticAnalyzer) Name() Signal { return SignalSemantic }

func (a *SemanticAnalyzer) Analyze(ctx context.Context, samples *media.Samples) (Series, error) {
	if len(samples.JPEG) == 0 {
		return nil, ErrUnavailable
	}
	if _, err := a.client.Models.List(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("vision endpoint unreachable")
		return nil, ErrUnavailable
	}

	series := make(Series, 0, len(samples.JPEG))
	for _, frame := range samples.JPEG {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, insight, err := a.scoreFrame(ctx, frame.Data)
		if err != nil {
			a.logger.Warn().Err(err).Float64("t", frame.T).Msg("frame analysis failed, using neutral score")
			score, insight = defaultSemanticScore, nil
		}
		series = append(series, Sample{
			T:       frame.T,
			Score:   clampScore(score),
			Insight: insight,
		})
	}

	a.logger.Info().Int("frames", len(series)).Msg("semantic analysis complete")
	return series, nil
}

func (a *SemanticAnalyzer) scoreFrame(ctx context.Context, jpeg []byte) (float64, *Insight, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(semanticPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(300),
	})
	if err != nil {
		return 0, nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, nil, fmt.Errorf("empty response from model")
	}

	insight, ok := parseInsight(resp.Choices[0].Message.Content)
	if !ok {
		return defaultSemanticScore, nil, nil
	}
	return scoreInsight(insight), insight, nil
}

// parseInsight pulls the JSON object out of a model reply, tolerating
// markdown fences and surrounding prose. A reply that omits the score
// field keeps the neutral default.
func parseInsight(reply string) (*Insight, bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	insight := Insight{Score: defaultSemanticScore}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &insight); err != nil {
		return nil, false
	}
	return &insight, true
}

func scoreInsight(in *Insight) float64 {
	base := float64(in.Score)
	if base < 0 {
		base = 0
	} else if base > 100 {
		base = 100
	}
	return base + viralBonus[strings.ToLower(in.ViralPotential)] + contentBonus[strings.ToLower(in.ContentType)]
}
