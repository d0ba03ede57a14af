package llm

import (
	"context"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewClient_RequiresKeys(t *testing.T) {
	ctx := context.Background()

	for _, p := range []Provider{ProviderGemini, ProviderAnthropic, ProviderOpenAI} {
		_, err := NewClient(ctx, p, Keys{})
		assert.Error(t, err, p)
	}

	_, err := NewClient(ctx, "mistral", Keys{Gemini: "k"})
	assert.ErrorContains(t, err, `unknown LLM provider "mistral"`)
}

func TestNewClient_OpenAI(t *testing.T) {
	c, err := NewClient(context.Background(), ProviderOpenAI, Keys{OpenAI: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())
	assert.Contains(t, c.Models(), DefaultOpenAIModel)
}

func TestWithSystem(t *testing.T) {
	msgs := []ChatMessage{
		{Role: RoleAssistant, Content: "Hello!"},
		{Role: RoleUser, Content: "Find leads"},
		{Role: RoleUser, Content: "More"},
	}

	got := withSystem("Be brief.", msgs)

	assert.Equal(t, "Be brief.\n\nFind leads", got[1].Content)
	assert.Equal(t, "More", got[2].Content)
	assert.Equal(t, "Find leads", msgs[1].Content, "input must not be mutated")
	assert.Equal(t, msgs, withSystem("", msgs))
}

func TestGeminiContents_MapsRoles(t *testing.T) {
	contents := geminiContents([]ChatMessage{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})

	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
}

func TestGeminiConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		cfg := geminiConfig(&CompletionRequest{System: "sys", JSON: true, MaxTokens: 256})
		assert.Equal(t, "application/json", cfg.ResponseMIMEType)
		assert.Equal(t, int32(256), cfg.MaxOutputTokens)
		require.NotNil(t, cfg.SystemInstruction)
		assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)
		assert.Nil(t, cfg.Tools)
	})

	t.Run("search grounding drops json", func(t *testing.T) {
		cfg := geminiConfig(&CompletionRequest{JSON: true, Grounding: GroundingSearch})
		assert.Empty(t, cfg.ResponseMIMEType)
		require.Len(t, cfg.Tools, 1)
		assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	})

	t.Run("maps with location", func(t *testing.T) {
		cfg := geminiConfig(&CompletionRequest{
			Grounding: GroundingMaps,
			Location:  &LatLng{Latitude: 37.42, Longitude: -122.08},
		})
		require.Len(t, cfg.Tools, 1)
		assert.NotNil(t, cfg.Tools[0].GoogleMaps)
		require.NotNil(t, cfg.ToolConfig)
		assert.Equal(t, 37.42, *cfg.ToolConfig.RetrievalConfig.LatLng.Latitude)
	})

	t.Run("thinking budget", func(t *testing.T) {
		cfg := geminiConfig(&CompletionRequest{ThinkingBudget: 32768})
		require.NotNil(t, cfg.ThinkingConfig)
		assert.Equal(t, int32(32768), *cfg.ThinkingConfig.ThinkingBudget)
	})
}

func TestGeminiSources(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://acme.io", Title: "Acme"}},
					nil,
					{Maps: &genai.GroundingChunkMaps{URI: "https://maps.google.com/?cid=1", Title: "Acme HQ"}},
				},
			},
		}},
	}

	assert.Equal(t, []Source{
		{URI: "https://acme.io", Title: "Acme", Kind: "web"},
		{URI: "https://maps.google.com/?cid=1", Title: "Acme HQ", Kind: "maps"},
	}, geminiSources(resp))

	assert.Nil(t, geminiSources(&genai.GenerateContentResponse{}))
}

func TestOpenAIMessages_PrependsSystem(t *testing.T) {
	msgs := openAIMessages(&CompletionRequest{
		System:   "sys",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestOpenAIRequest_Defaults(t *testing.T) {
	req := openAIRequest(&CompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}}, true)
	assert.Equal(t, DefaultOpenAIModel, req.Model)
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
	assert.True(t, req.Stream)

	req = openAIRequest(&CompletionRequest{Model: "gpt-4o-mini", MaxTokens: 64}, false)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 64, req.MaxTokens)
	assert.False(t, req.Stream)
}
