package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadproton/server/internal/llm"
	"github.com/leadproton/server/internal/model"
)

const strategyThinkingBudget = 32768

// EmailPatterns suggests likely addresses for a person at a domain. On
// failure it returns the single guess first.last@domain in lower case.
func (g *Gateway) EmailPatterns(ctx context.Context, firstName, lastName, domain string) []string {
	const op = "email_patterns"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return HeuristicPatterns(firstName, lastName, domain)
	}

	prompt := fmt.Sprintf(`Generate a list of common email patterns for a person named %s %s at the domain %s. Return only a JSON array of strings. For example: ["f.last@domain.com", "first.last@domain.com"].`,
		firstName, lastName, domain)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:    g.models.Fast,
		Messages: singleTurn(prompt),
		JSON:     true,
	})
	var patterns []string
	if err == nil {
		patterns, err = parseStringArray(resp.Content)
	}
	if err != nil {
		g.fail(op, start, err)
		return []string{strings.ToLower(firstName) + "." + strings.ToLower(lastName) + "@" + domain}
	}

	g.record(op, outcomeOK, start)
	return patterns
}

// SubjectLines suggests five subject lines for an email body, or none on
// failure.
func (g *Gateway) SubjectLines(ctx context.Context, body string) []string {
	const op = "subject_lines"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return []string{}
	}

	prompt := fmt.Sprintf("Based on the following email body, generate 5 compelling and professional B2B email subject lines designed to maximize open rates for lead generation. Return only a JSON array of strings.\n\nEmail Body:\n%q", body)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:    g.models.Fast,
		Messages: singleTurn(prompt),
		JSON:     true,
	})
	var lines []string
	if err == nil {
		lines, err = parseStringArray(resp.Content)
	}
	if err != nil {
		g.fail(op, start, err)
		return []string{}
	}

	g.record(op, outcomeOK, start)
	return lines
}

// CompanyInfo summarizes the company behind a domain using web search.
func (g *Gateway) CompanyInfo(ctx context.Context, domain string) model.GroundedText {
	const op = "company_info"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return model.GroundedText{Info: CompanySummary(domain), Sources: []model.Source{}}
	}

	prompt := fmt.Sprintf("Provide a concise summary of the company at the domain %s. Include its primary industry, a brief description, and its headquarters location.", domain)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:     g.models.Fast,
		Messages:  singleTurn(prompt),
		Grounding: llm.GroundingSearch,
	})
	if err != nil {
		g.fail(op, start, err)
		return model.GroundedText{Info: CompanyInfoUnavailable, Sources: []model.Source{}}
	}

	g.record(op, outcomeOK, start)
	return model.GroundedText{Info: resp.Content, Sources: toSources(resp.Sources)}
}

// StrategyInput describes the lead a strategy is written for.
type StrategyInput struct {
	FirstName   string
	LastName    string
	CompanyName string
	Role        string
}

// StrategicAnalysis writes a multi-point outreach plan using the deep model.
func (g *Gateway) StrategicAnalysis(ctx context.Context, in StrategyInput) string {
	const op = "strategy"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return StrategyOutline(in)
	}

	prompt := fmt.Sprintf(`Analyze the following lead and generate a detailed, multi-point outreach strategy.
- Lead Name: %s %s
- Company: %s
- Role: %s

The strategy should include:
1. Potential pain points for someone in this role at this type of company.
2. Customized value propositions that align our solution (a lead generation tool) with their needs.
3. A suggested 3-step email sequence outline (just the key message for each email, not the full text).
4. Conversation starters for a cold call.

Think deeply about this and provide actionable, specific advice.`,
		in.FirstName, in.LastName, in.CompanyName, in.Role)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:          g.models.Deep,
		Messages:       singleTurn(prompt),
		ThinkingBudget: strategyThinkingBudget,
	})
	if err != nil {
		g.fail(op, start, err)
		return StrategyUnavailable
	}

	g.record(op, outcomeOK, start)
	return resp.Content
}

// CompanyLocation finds a company's headquarters with map grounding biased
// toward the caller's position.
func (g *Gateway) CompanyLocation(ctx context.Context, companyName string, lat, lng float64) model.GroundedText {
	const op = "company_location"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return model.GroundedText{Info: CompanyLocationUnavailable, Sources: []model.Source{}}
	}

	prompt := fmt.Sprintf("Find the headquarters location for the company named %q. Provide the address and a link to its location on a map.", companyName)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:     g.models.Fast,
		Messages:  singleTurn(prompt),
		Grounding: llm.GroundingMaps,
		Location:  &llm.LatLng{Latitude: lat, Longitude: lng},
	})
	if err != nil {
		g.fail(op, start, err)
		return model.GroundedText{Info: CompanyLocationUnavailable, Sources: []model.Source{}}
	}

	g.record(op, outcomeOK, start)
	return model.GroundedText{Info: resp.Content, Sources: toSources(resp.Sources)}
}

// EmailBody drafts a template body with personalization placeholders, or
// returns "" on failure.
func (g *Gateway) EmailBody(ctx context.Context, userPrompt string) string {
	const op = "email_body"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return ""
	}

	prompt := fmt.Sprintf(`Based on the following prompt, generate a compelling and professional B2B email body for a lead generation campaign. The tone should be helpful and not overly "salesy".

Make sure to include placeholders like {firstName}, {lastName}, and {companyName} for personalization. The goal is to start a conversation.

User Prompt: %q

Generated Email Body:`, userPrompt)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:    g.models.Fast,
		Messages: singleTurn(prompt),
	})
	if err != nil {
		g.fail(op, start, err)
		return ""
	}

	g.record(op, outcomeOK, start)
	return strings.TrimSpace(resp.Content)
}

// PersonalizeEmail rewrites a base body for one lead, returning the base
// body unchanged on failure.
func (g *Gateway) PersonalizeEmail(ctx context.Context, lead model.Lead, baseBody string) string {
	const op = "personalize"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return baseBody
	}

	description := "Not available."
	if lead.CompanyInfo != nil && lead.CompanyInfo.Description != "" {
		description = lead.CompanyInfo.Description
	}

	prompt := fmt.Sprintf(`You are an expert B2B sales development representative. Your task is to personalize a given email template for a specific lead.

Lead Information:
- Name: %s %s
- Role: %s
- Company: %s
- Company Description: %s

Base Email Body (use this as a starting point):
---
%s
---

Instructions:
1. Rewrite the base email body to be highly personalized for the lead.
2. Reference their specific role and company.
3. If company information is available, connect our product's value proposition (a lead generation toolkit) to a potential pain point their company might face.
4. Maintain the original placeholders like {firstName}.
5. The tone should be professional, concise, and engaging.
6. Return ONLY the personalized email body text. Do not include any preamble or explanation.`,
		lead.FirstName, lead.LastName, lead.Role, lead.CompanyName, description, baseBody)

	resp, err := g.call(ctx, op, &llm.CompletionRequest{
		Model:    g.models.Fast,
		Messages: singleTurn(prompt),
	})
	if err != nil {
		g.fail(op, start, err)
		return baseBody
	}

	g.record(op, outcomeOK, start)
	return strings.TrimSpace(resp.Content)
}

// ChatSystemPrompt is the assistant's standing instruction.
const ChatSystemPrompt = "You are a helpful AI assistant for a lead generation application. Your role is to provide advice on sales, marketing, lead generation strategies, and how to use the app effectively. Be concise and encouraging."

// ErrNoProvider is returned by Chat when no provider is configured.
var ErrNoProvider = errors.New("no AI provider configured")

// Chat continues an assistant conversation. Unlike the single-shot
// operations it reports failure, so the caller can show an inline error
// turn. onToken may be nil; when set the reply is streamed through it.
func (g *Gateway) Chat(ctx context.Context, history []model.ChatMessage, onToken llm.StreamCallback) (string, error) {
	const op = "chat"
	start := time.Now()

	if g.client == nil {
		g.record(op, outcomeHeuristic, start)
		return "", ErrNoProvider
	}

	messages := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == model.ChatRoleModel {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: m.Text})
	}
	// Providers expect the conversation to open with a user turn; the
	// canned greeting is display-only.
	for len(messages) > 0 && messages[0].Role != llm.RoleUser {
		messages = messages[1:]
	}

	req := &llm.CompletionRequest{
		Model:    g.models.Fast,
		System:   ChatSystemPrompt,
		Messages: messages,
		Stream:   onToken != nil,
	}

	ctx, span := g.tracer.Start(ctx, "gateway."+op)
	defer span.End()

	var (
		resp *llm.CompletionResponse
		err  error
	)
	if onToken != nil {
		resp, err = g.client.CompleteStream(ctx, req, onToken)
	} else {
		resp, err = g.client.Complete(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		g.fail(op, start, err)
		return "", err
	}

	g.record(op, outcomeOK, start)
	return resp.Content, nil
}
