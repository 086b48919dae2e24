package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/keys"
)

const (
	defaultChatEndpoint = "https://api.cerebras.ai/v1/chat/completions"
	defaultChatModel    = "gpt-oss-120b"
	llmTimeout          = 60 * time.Second
)

const scriptSystemPrompt = `You are an expert social content strategist focused on timely, factual and highly engaging Facebook content.
Current date/time: %s
Niche: %s
Selected trending topic: %s
Create a 1-minute script based only on this topic and avoid generic filler.
Return strict JSON format: { "title": "", "script": "", "scenes": [{ "text": "", "imagePrompt": "" }], "caption": "", "hashtags": "" }
Rules:
- scenes must be 6-12 entries with punchy scene text and vivid imagePrompt.
- caption must be hook-style and policy-safe for Facebook.
- hashtags must contain exactly 5 viral hashtags related to the title/topic.`

const commentSystemPrompt = "Write one concise Facebook comment (35-75 words), factual and engaging, " +
	"tied to the provided topic and title. No markdown. No emojis spam. Do not include hashtags."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ScriptGenerator produces structured scripts and follow-up comments
// through the LLM provider, routed through credential failover.
type ScriptGenerator struct {
	keys     *keys.Service
	client   *http.Client
	endpoint string
	model    string
	now      func() time.Time
}

// NewScriptGenerator creates a ScriptGenerator against the default
// chat-completions endpoint. A nil client gets a default with timeout.
func NewScriptGenerator(keySvc *keys.Service, client *http.Client) *ScriptGenerator {
	if client == nil {
		client = &http.Client{Timeout: llmTimeout}
	}
	return &ScriptGenerator{
		keys:     keySvc,
		client:   client,
		endpoint: defaultChatEndpoint,
		model:    defaultChatModel,
		now:      time.Now,
	}
}

// WithEndpoint overrides the chat endpoint; used by tests.
func (g *ScriptGenerator) WithEndpoint(endpoint string) *ScriptGenerator {
	g.endpoint = endpoint
	return g
}

// complete sends one chat completion and returns the assistant content.
func (g *ScriptGenerator) complete(ctx context.Context, cred domain.Credential, messages []chatMessage) (string, error) {
	raw, err := doJSON(ctx, g.client, "chat completion", g.endpoint, chatRequest{
		Model:    g.model,
		Messages: messages,
	}, map[string]string{
		"Authorization": "Bearer " + cred.Key,
	})
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("chat completion: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateScript asks the LLM for a structured script for the topic.
func (g *ScriptGenerator) GenerateScript(ctx context.Context, niche, topic string) (domain.Script, error) {
	prompt := fmt.Sprintf(scriptSystemPrompt, g.now().UTC().Format(time.RFC3339), niche, topic)

	return keys.WithFailover(ctx, g.keys, domain.ProviderCerebras,
		func(ctx context.Context, cred domain.Credential) (domain.Script, error) {
			content, err := g.complete(ctx, cred, []chatMessage{
				{Role: "system", Content: prompt},
			})
			if err != nil {
				return domain.Script{}, err
			}

			var script domain.Script
			if err := json.Unmarshal([]byte(content), &script); err != nil {
				return domain.Script{}, fmt.Errorf("parse script JSON: %w", err)
			}
			return script, nil
		})
}

// GenerateComment asks the LLM for a short follow-up comment for a
// published post, appending the configured URL when present.
func (g *ScriptGenerator) GenerateComment(ctx context.Context, title, caption, topic, appendURL string) (string, error) {
	comment, err := keys.WithFailover(ctx, g.keys, domain.ProviderCerebras,
		func(ctx context.Context, cred domain.Credential) (string, error) {
			content, err := g.complete(ctx, cred, []chatMessage{
				{Role: "system", Content: commentSystemPrompt},
				{Role: "user", Content: fmt.Sprintf("Topic: %s\nTitle: %s\nCaption: %s", topic, title, caption)},
			})
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(content), nil
		})
	if err != nil {
		return "", err
	}

	if appendURL == "" {
		return comment, nil
	}
	return comment + "\n\n" + appendURL, nil
}
