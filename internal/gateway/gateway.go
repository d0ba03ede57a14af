// Package gateway issues prompts to the configured LLM provider and parses
// its answers. No operation returns an error: every failure degrades to a
// fixed default so callers never need defensive handling.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/llm"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/metrics"
)

// Fallback texts returned when a provider call fails.
const (
	CompanyInfoUnavailable     = "Could not fetch company information."
	StrategyUnavailable        = "Failed to generate strategic analysis."
	CompanyLocationUnavailable = "Could not find company location information."
)

// Call outcomes recorded in metrics.
const (
	outcomeOK        = "ok"
	outcomeFallback  = "fallback"
	outcomeHeuristic = "heuristic"
)

// Models names the model used for quick and deep requests.
type Models struct {
	Fast string
	Deep string
}

// modelsFor returns model names for a provider; empty names select the
// provider default.
func modelsFor(provider string) Models {
	if provider == string(llm.ProviderGemini) {
		return Models{Fast: "gemini-2.5-flash", Deep: "gemini-2.5-pro"}
	}
	return Models{}
}

// Gateway is the boundary to the text-generation provider. A Gateway with a
// nil client answers from deterministic heuristics.
type Gateway struct {
	client llm.Client
	models Models
	logger *logger.Logger
	tracer trace.Tracer
}

// New creates a gateway. client may be nil.
func New(client llm.Client, log *logger.Logger) *Gateway {
	g := &Gateway{
		client: client,
		logger: logger.OrGlobal(log).Named("gateway"),
		tracer: otel.Tracer("github.com/leadproton/server/internal/gateway"),
	}
	if client != nil {
		g.models = modelsFor(client.Name())
	}
	return g
}

// ProviderHeuristic is reported by Provider when no client is configured.
const ProviderHeuristic = "heuristic"

// Provider returns the provider name, or ProviderHeuristic without a client.
func (g *Gateway) Provider() string {
	if g.client == nil {
		return ProviderHeuristic
	}
	return g.client.Name()
}

// call runs one provider request inside a span and records its outcome.
func (g *Gateway) call(ctx context.Context, op string, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := g.tracer.Start(ctx, "gateway."+op,
		trace.WithAttributes(
			attribute.String("llm.provider", g.client.Name()),
			attribute.String("llm.model", req.Model),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
	)
	g.logger.Debug("provider call completed",
		zap.String("operation", op),
		zap.String("model", resp.Model),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

func (g *Gateway) record(op, outcome string, start time.Time) {
	metrics.RecordAICall(op, outcome, time.Since(start).Seconds())
}

func (g *Gateway) fail(op string, start time.Time, err error) {
	g.logger.Warn("AI call failed, using default",
		zap.String("operation", op),
		zap.Error(err),
	)
	g.record(op, outcomeFallback, start)
}

func singleTurn(prompt string) []llm.ChatMessage {
	return []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}}
}

// parseStringArray decodes a JSON array of strings, tolerating code fences.
func parseStringArray(text string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "```json", "")
	input = strings.ReplaceAll(input, "```", "")
	return strings.TrimSpace(input)
}

func toSources(in []llm.Source) []model.Source {
	out := make([]model.Source, 0, len(in))
	for _, s := range in {
		out = append(out, model.Source{URI: s.URI, Title: s.Title, Kind: s.Kind})
	}
	return out
}
