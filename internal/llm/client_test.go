package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/typetalk-app/typetalk/internal/services"
)

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}

func sseBody(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestConversationSend_Streams(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseBody("При", "вет", "!")))
	}))
	defer srv.Close()

	c, err := NewClient("sk-test", WithBaseURL(srv.URL), WithModel("test-model"))
	require.NoError(t, err)

	profile := &services.Profile{FirstName: "Аня", Age: 24, Interests: []string{"Кино"}}
	result := &services.TypologyResult{Code: "ENFP"}
	conv, err := c.NewContext(profile, result, []services.ChatMessage{
		{Role: services.RoleUser, Text: "прошлый вопрос"},
		{Role: services.RoleAssistant, Text: "прошлый ответ"},
	})
	require.NoError(t, err)

	var deltas []string
	reply, err := conv.Send(context.Background(), "привет", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	require.Equal(t, "Привет!", reply)
	require.Equal(t, []string{"При", "вет", "!"}, deltas)

	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "test-model", gotReq.Model)
	require.True(t, gotReq.Stream)
	// system prompt + 2 history turns + the new user turn
	require.Len(t, gotReq.Messages, 4)
	require.Equal(t, "system", gotReq.Messages[0].Role)
	require.Contains(t, gotReq.Messages[0].Content, "ENFP")
	require.Contains(t, gotReq.Messages[0].Content, "Аня")
	require.Contains(t, gotReq.Messages[0].Content, "Кино")
	require.Equal(t, "привет", gotReq.Messages[3].Content)
}

func TestConversationSend_KeepsTurns(t *testing.T) {
	var lastLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastLen = len(req.Messages)
		_, _ = w.Write([]byte(sseBody("ok")))
	}))
	defer srv.Close()

	c, err := NewClient("sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)
	conv, err := c.NewContext(nil, nil, nil)
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), "раз", nil)
	require.NoError(t, err)
	require.Equal(t, 2, lastLen) // system + user

	_, err = conv.Send(context.Background(), "два", nil)
	require.NoError(t, err)
	require.Equal(t, 4, lastLen) // system + user + assistant + user
}

func TestConversationSend_QuotaStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient("sk-test", WithBaseURL(srv.URL))
	require.NoError(t, err)
	conv, err := c.NewContext(nil, nil, nil)
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), "привет", nil)
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestConsumeStream_SkipsNonData(t *testing.T) {
	body := ": keep-alive comment\n\n" + sseBody("a", "b")
	got, err := consumeStream(strings.NewReader(body), nil)
	require.NoError(t, err)
	require.Equal(t, "ab", got)
}
