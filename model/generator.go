package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"portfolio/config"
	"portfolio/logger"

	"github.com/pkoukk/tiktoken-go"
)

// systemPrompt is the persona and output contract for the portfolio bot.
// Treat the wording as a configuration artifact: the frontend renders the
// bullet format it prescribes and relies on the strict-JSON envelope.
const systemPrompt = `You are Satyam Sharma an AI developer responding to recruiters on your portfolio website.

You will be given:
- Context: (contains all the required information related to query)
- Query: (a question from a recruiter about your experience, skills, or projects)

Response formatting rules:
1. If the visitor is just greeting or not asking anything about your profile:
   - Greet back warmly and kindly.
   - Do not mention your profile or skills unless they ask.
2. If the visitor asks something unrelated to your profile:
   - Kindly say: "Sorry, you can Google that directly. Satyam strictly told me to mind my own business."

3. Use "- " (dash + space) for bullet points
4. Keep each bullet point on a separate line
5. Add empty lines between sections for better readability
6. Include links when available from context
7. Keep responses conversational and concise
8. End with a follow-up question when appropriate



Example format:
Hey! Here's my experience with Python:

- Built RAG chatbots using Hugging Face and Mistral 7B
- Developed LSTM models for stock market prediction
- Created REST APIs with Django and FastAPI

Links:
- Project demo: https://example.com
- GitHub repo: https://github.com/example

Want to know more about any specific project?

Always return valid JSON: { "response": "<your formatted answer>" }`

// FallbackAnswer is returned whenever the model call or the JSON contract
// fails. Callers never see an error from the generator.
const FallbackAnswer = "Sorry! Can you please try again later"

// maxContextTokens caps the rendered context so a bloated knowledge base
// cannot push the prompt past the model window.
const maxContextTokens = 3000

// AnswerGenerator produces a formatted answer for a query given retrieved
// context chunks.
type AnswerGenerator interface {
	Answer(ctx context.Context, query string, chunks []string) string
}

// Generator renders the two-part prompt and calls an OpenAI-compatible
// chat completion endpoint with a bounded retry count.
type Generator struct {
	cfg    config.LLMConfig
	client *http.Client

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewGenerator(cfg config.LLMConfig) *Generator {
	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type answerPayload struct {
	Response string `json:"response"`
}

// Answer never returns an error: any failure, from transport to a broken
// JSON contract, yields the fixed fallback answer. Behaves correctly with
// zero chunks, the prompt tells the model how to respond without context.
func (g *Generator) Answer(ctx context.Context, query string, chunks []string) string {
	contextText := g.truncateContext(strings.Join(chunks, "\n\n"))
	human := fmt.Sprintf("Context:\n%s\n\nQuery:\n%s", contextText, query)

	logger.Infof("prompt size: %d tokens", g.countTokens(systemPrompt+human))

	raw, err := g.complete(ctx, human)
	if err != nil {
		logger.ErrorAt("Answer", err)
		return FallbackAnswer
	}

	jsonStr, err := extractJSON(raw)
	if err != nil {
		logger.ErrorAt("Answer", fmt.Errorf("model output is not JSON: %w", err))
		return FallbackAnswer
	}

	var payload answerPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		logger.ErrorAt("Answer", fmt.Errorf("failed to parse model output: %w", err))
		return FallbackAnswer
	}
	if payload.Response == "" {
		logger.ErrorAt("Answer", errors.New("model output has no 'response' field"))
		return FallbackAnswer
	}
	return payload.Response
}

// complete calls the chat completion endpoint, retrying transient
// failures with a linear backoff.
func (g *Generator) complete(ctx context.Context, human string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: human},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	attempts := g.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		raw, err := g.completeOnce(ctx, reqBody)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
		}
	}
	return "", fmt.Errorf("chat completion failed after %d attempts: %w", attempts, lastErr)
}

func (g *Generator) completeOnce(ctx context.Context, reqBody []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("chat api returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// extractJSON tolerates models that wrap the JSON object in prose or
// markdown fences: it takes the outermost brace pair.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return s, errors.New("no valid json found")
	}
	return s[start : end+1], nil
}

// encoding initializes the tokenizer once. When the BPE files cannot be
// loaded the generator degrades to character-based budgeting.
func (g *Generator) encoding() *tiktoken.Tiktoken {
	g.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Warnf("tokenizer unavailable, using character budget: %v", err)
			return
		}
		g.enc = enc
	})
	return g.enc
}

func (g *Generator) countTokens(s string) int {
	enc := g.encoding()
	if enc == nil {
		return len(s) / 4
	}
	return len(enc.Encode(s, nil, nil))
}

func (g *Generator) truncateContext(text string) string {
	enc := g.encoding()
	if enc == nil {
		// Rough budget: a token averages about four characters.
		if len(text) > maxContextTokens*4 {
			return text[:maxContextTokens*4]
		}
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxContextTokens {
		return text
	}
	logger.Warnf("context truncated from %d to %d tokens", len(tokens), maxContextTokens)
	return enc.Decode(tokens[:maxContextTokens])
}
