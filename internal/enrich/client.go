package enrich

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"go-insight-pipeline/internal/model"
)

// Config configures the model-backed enricher.
type Config struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int64   `mapstructure:"max_tokens"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Messenger sends one system+user prompt pair and returns the text reply.
type Messenger interface {
	CreateMessage(ctx context.Context, system, prompt string) (string, error)
}

// Client implements Enricher on top of a Messenger, rate limited.
type Client struct {
	messenger Messenger
	limiter   *rate.Limiter
}

// NewClient builds a Client backed by the Anthropic Messages API.
func NewClient(cfg Config) *Client {
	return NewClientWithMessenger(newSDKMessenger(cfg), cfg.RequestsPerSecond)
}

// NewClientWithMessenger wraps an arbitrary Messenger. A non-positive rps
// disables rate limiting.
func NewClientWithMessenger(m Messenger, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{messenger: m, limiter: rate.NewLimiter(limit, 1)}
}

const systemPrompt = `You are a data analyst. You receive a JSON profile of a tabular dataset.
Reply with a single JSON object and nothing else. Never invent column names.`

const insightsPrompt = `Summarize this dataset for a business reader.
Respond as {"summary": string, "key_insights": [string], "suggested_kpis": [string]}.

Dataset profile:
`

const blueprintPrompt = `Design a small dashboard for this dataset.
Use only numeric columns for KPIs and chart yKey, and only categorical columns for chart xKey.
Respond as {"kpis": [{"label": string, "column": string}], "charts": [{"type": "bar"|"line"|"pie", "title": string, "xKey": string, "yKey": string}]}.

Dataset profile:
`

// Insights asks the model for a narrative summary.
func (c *Client) Insights(ctx context.Context, summary *model.DataSummary) (*model.Insights, error) {
	text, err := c.ask(ctx, insightsPrompt, summary)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: insights")
	}
	var out model.Insights
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		return nil, eris.Wrap(err, "enrich: parse insights")
	}
	if out.Summary == "" {
		return nil, eris.New("enrich: empty insights")
	}
	return &out, nil
}

// Blueprint asks the model for a dashboard layout. References to unknown or
// wrongly typed columns are dropped; an empty result is an error so the caller
// can fall back.
func (c *Client) Blueprint(ctx context.Context, summary *model.DataSummary) (*model.Blueprint, error) {
	text, err := c.ask(ctx, blueprintPrompt, summary)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: blueprint")
	}
	var bp model.Blueprint
	if err := json.Unmarshal([]byte(cleanJSON(text)), &bp); err != nil {
		return nil, eris.Wrap(err, "enrich: parse blueprint")
	}
	bp = ValidateBlueprint(bp, summary.Columns)
	if len(bp.KPIs) == 0 && len(bp.Charts) == 0 {
		return nil, eris.New("enrich: blueprint references no usable columns")
	}
	return &bp, nil
}

func (c *Client) ask(ctx context.Context, prompt string, summary *model.DataSummary) (string, error) {
	body, err := json.Marshal(promptProfile(summary))
	if err != nil {
		return "", eris.Wrap(err, "marshal profile")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "rate limit")
	}
	return c.messenger.CreateMessage(ctx, systemPrompt, prompt+string(body))
}

// profile is the subset of a DataSummary sent to the model.
type profile struct {
	RowCount  int                     `json:"rowCount"`
	Columns   []model.ColumnMetadata  `json:"columns"`
	Sample    []model.Record          `json:"sample"`
	RootCause *model.RootCauseSummary `json:"rootCause,omitempty"`
	Issues    []model.Suggestion      `json:"issues,omitempty"`
}

func promptProfile(s *model.DataSummary) profile {
	return profile{
		RowCount:  s.RowCount,
		Columns:   s.Columns,
		Sample:    s.SampleData,
		RootCause: s.RootCause,
		Issues:    s.Suggestions,
	}
}

// ValidateBlueprint keeps only KPIs on numeric columns and charts whose xKey
// is categorical and yKey numeric.
func ValidateBlueprint(bp model.Blueprint, cols []model.ColumnMetadata) model.Blueprint {
	types := make(map[string]model.ColumnType, len(cols))
	for _, c := range cols {
		types[c.Name] = c.Type
	}

	out := model.Blueprint{KPIs: []model.KPIRef{}, Charts: []model.ChartSpec{}}
	for _, k := range bp.KPIs {
		if types[k.Column] == model.TypeNumeric {
			out.KPIs = append(out.KPIs, k)
		}
	}
	for _, ch := range bp.Charts {
		if types[ch.XKey] == model.TypeCategorical && types[ch.YKey] == model.TypeNumeric {
			if ch.Type == "" {
				ch.Type = "bar"
			}
			out.Charts = append(out.Charts, ch)
		}
	}
	return out
}

// cleanJSON extracts a JSON object from text that may be wrapped in markdown
// code fences or prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// sdkMessenger implements Messenger with the official anthropic-sdk-go.
type sdkMessenger struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

func newSDKMessenger(cfg Config) *sdkMessenger {
	return &sdkMessenger{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (m *sdkMessenger) CreateMessage(ctx context.Context, system, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.model),
		MaxTokens: m.maxTokens,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	zap.L().Debug("anthropic: message",
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
