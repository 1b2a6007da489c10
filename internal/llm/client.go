package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/typetalk-app/typetalk/internal/services"
)

// chatMessage is the wire shape of one turn for the Chat Completions endpoint.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for a streamed completion.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// streamChunk is one decoded server-sent event of a streamed completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int { return e.StatusCode }

// Client is a focused OpenAI-compatible client for streamed chat completions.
// It implements services.ChatClient.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSpace(baseURL) }
}

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: api key must not be empty")
	}
	c := &Client{
		baseURL:    "https://api.openai.com/v1",
		model:      "gpt-4o-mini",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ services.ChatClient = (*Client)(nil)

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// NewContext seeds a conversation with the respondent's typology and the
// prior decoded history. The returned conversation is not restartable: after
// a failed send a fresh context must be created.
func (c *Client) NewContext(p *services.Profile, r *services.TypologyResult, history []services.ChatMessage) (services.Conversation, error) {
	msgs := []chatMessage{{Role: "system", Content: systemPrompt(p, r)}}
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Text})
	}
	return &conversation{client: c, messages: msgs}, nil
}

type conversation struct {
	client   *Client
	messages []chatMessage
}

// Send posts the conversation with the new user turn and consumes the
// streamed reply, invoking onDelta for every content increment. The full
// reply is returned once the stream terminates.
func (v *conversation) Send(ctx context.Context, text string, onDelta func(string)) (string, error) {
	v.messages = append(v.messages, chatMessage{Role: "user", Content: text})

	body, err := json.Marshal(chatRequest{Model: v.client.model, Messages: v.messages, Stream: true})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}
	url := chatURL(v.client.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+v.client.apiKey)

	res, err := v.client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	reply, err := consumeStream(res.Body, onDelta)
	if err != nil {
		return "", err
	}
	v.messages = append(v.messages, chatMessage{Role: "assistant", Content: reply})
	return reply, nil
}

// consumeStream reads "data:" lines until the [DONE] sentinel, concatenating
// the content deltas. The sequence is finite and terminates with the reply.
func consumeStream(r io.Reader, onDelta func(string)) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return b.String(), nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("llm: decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("llm: read stream: %w", err)
	}
	return b.String(), nil
}

// systemPrompt seeds the assistant with the respondent's typology, name, age
// and interests so replies stay personalized.
func systemPrompt(p *services.Profile, r *services.TypologyResult) string {
	var b strings.Builder
	b.WriteString("Ты — дружелюбный собеседник-психолог в приложении опросника личности. ")
	b.WriteString("Отвечай кратко, тепло и по-русски.\n")
	if r != nil {
		fmt.Fprintf(&b, "Тип собеседника: %s (%s).\n", r.Code, services.TypeName(r.Code))
	}
	if p != nil {
		if p.FirstName != "" {
			fmt.Fprintf(&b, "Имя: %s.\n", p.FirstName)
		}
		if p.Age > 0 {
			fmt.Fprintf(&b, "Возраст: %d.\n", p.Age)
		}
		if len(p.Interests) > 0 {
			fmt.Fprintf(&b, "Интересы: %s.\n", strings.Join(p.Interests, ", "))
		}
	}
	return b.String()
}
