package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/typetalk-app/typetalk/internal/services"
)

type stubScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (s *stubScheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

func (s *stubScheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		fn()
	}
}

type stubConversation struct{ chunks []string }

func (c *stubConversation) Send(ctx context.Context, text string, onDelta func(string)) (string, error) {
	var b strings.Builder
	for _, ch := range c.chunks {
		if onDelta != nil {
			onDelta(ch)
		}
		b.WriteString(ch)
	}
	return b.String(), nil
}

type stubChatClient struct{ chunks []string }

func (c *stubChatClient) NewContext(p *services.Profile, r *services.TypologyResult, history []services.ChatMessage) (services.Conversation, error) {
	return &stubConversation{chunks: c.chunks}, nil
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if out != nil && res.StatusCode == http.StatusOK {
		defer res.Body.Close()
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return res
}

func TestRespondentJourney(t *testing.T) {
	store := NewMemoryStore()
	sched := &stubScheduler{}
	rt := NewRouter(store, &stubChatClient{chunks: []string{"Привет, ", "Аня!"}}, t.TempDir())
	rt.sessions.sched = sched
	mux := http.NewServeMux()
	rt.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// register lands on interests
	var reg struct {
		Token string        `json:"token"`
		Phone string        `json:"phone"`
		View  services.View `json:"view"`
	}
	res := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]any{
		"first_name": "Аня",
		"last_name":  "Иванова",
		"phone":      "8 915 123 45 67",
		"age":        24,
		"password":   "secret",
	}, &reg)
	if res.StatusCode != http.StatusOK || reg.Token == "" {
		t.Fatalf("register: status %d, %+v", res.StatusCode, reg)
	}
	if reg.Phone != "79151234567" || reg.View != services.ViewInterests {
		t.Fatalf("register response %+v", reg)
	}
	token := reg.Token

	// unauthenticated requests are rejected
	if res := doJSON(t, srv, http.MethodGet, "/api/flow/state", "", nil, nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token accepted: %d", res.StatusCode)
	}

	var interests struct {
		Interests []string `json:"interests"`
	}
	doJSON(t, srv, http.MethodPut, "/api/interests", token, map[string]any{
		"interests": []string{"Музыка / концерты", "Кино", "Музыка"},
	}, &interests)
	if len(interests.Interests) != 2 {
		t.Fatalf("interests not normalized: %v", interests.Interests)
	}

	for _, v := range []services.View{services.ViewTutorial, services.ViewQuiz} {
		var st services.FlowState
		res := doJSON(t, srv, http.MethodPost, "/api/flow/goto", token, map[string]any{"view": v}, &st)
		if res.StatusCode != http.StatusOK || st.View != v {
			t.Fatalf("goto %s: %d %+v", v, res.StatusCode, st)
		}
	}

	var quiz struct {
		Items []services.QuizItem `json:"items"`
	}
	doJSON(t, srv, http.MethodGet, "/api/quiz", token, nil, &quiz)
	if len(quiz.Items) != 32 {
		t.Fatalf("quiz has %d items", len(quiz.Items))
	}

	// answer everything with the neutral magnitude
	for range quiz.Items {
		var ans struct {
			Accepted bool               `json:"accepted"`
			State    services.FlowState `json:"state"`
		}
		doJSON(t, srv, http.MethodPost, "/api/quiz/answer", token, map[string]any{"value": 3}, &ans)
		if !ans.Accepted {
			t.Fatalf("answer rejected at %+v", ans.State)
		}
		sched.drain()
	}

	var st services.FlowState
	doJSON(t, srv, http.MethodGet, "/api/flow/state", token, nil, &st)
	if st.View != services.ViewResult || st.Finalizing {
		t.Fatalf("flow did not settle on result: %+v", st)
	}

	var result struct {
		Result services.TypologyResult `json:"result"`
		Name   string                  `json:"name"`
	}
	doJSON(t, srv, http.MethodGet, "/api/result", token, nil, &result)
	if result.Result.Code != "ISFJ" || result.Name == "" {
		t.Fatalf("result %+v", result)
	}

	// the commit goroutine upserts the remote row
	deadline := time.Now().Add(2 * time.Second)
	for {
		row, err := store.GetUser("79151234567")
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if row != nil && row.Result != nil {
			if row.Result.Code != "ISFJ" {
				t.Fatalf("persisted code %q", row.Result.Code)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("result never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if res := doJSON(t, srv, http.MethodPost, "/api/chat/open", token, nil, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("chat open: %d", res.StatusCode)
	}

	// send streams deltas then the final persisted message
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/chat/send", strings.NewReader(`{"text":"привет"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	sendRes, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("chat send: %v", err)
	}
	defer sendRes.Body.Close()
	raw, _ := io.ReadAll(sendRes.Body)
	body := string(raw)
	if !strings.Contains(body, `"delta":"Привет, "`) || !strings.Contains(body, `"done":true`) {
		t.Fatalf("stream body: %s", body)
	}

	var history struct {
		Messages []services.ChatMessage `json:"messages"`
	}
	doJSON(t, srv, http.MethodGet, "/api/chat/history", token, nil, &history)
	if len(history.Messages) != 2 {
		t.Fatalf("history %+v", history.Messages)
	}
	assistant := history.Messages[1]
	if assistant.Role != services.RoleAssistant || assistant.Text != "Привет, Аня!" {
		t.Fatalf("assistant turn %+v", assistant)
	}
	if strings.Contains(assistant.Text, "[TAG:") {
		t.Fatalf("tag leaked into display text")
	}

	// rate, then rate again with the same value: an idempotent toggle
	var rate struct {
		ID     string          `json:"id"`
		Rating services.Rating `json:"rating"`
	}
	doJSON(t, srv, http.MethodPost, "/api/chat/rate", token, map[string]any{
		"id": assistant.ID, "role": assistant.Role, "text": assistant.Text, "rating": "like",
	}, &rate)
	if rate.Rating != services.RatingLike {
		t.Fatalf("first rate: %+v", rate)
	}
	doJSON(t, srv, http.MethodPost, "/api/chat/rate", token, map[string]any{
		"id": assistant.ID, "role": assistant.Role, "text": assistant.Text, "rating": "like",
	}, &rate)
	if rate.Rating != services.RatingNone {
		t.Fatalf("second rate should toggle off: %+v", rate)
	}

	// wrong password is rejected, correct login resumes at result
	if res := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]any{
		"phone": "89151234567", "password": "wrong",
	}, nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", res.StatusCode)
	}
	var login struct {
		Token string        `json:"token"`
		View  services.View `json:"view"`
	}
	doJSON(t, srv, http.MethodPost, "/api/auth/login", "", map[string]any{
		"phone": "+7 (915) 123-45-67", "password": "secret",
	}, &login)
	if login.View != services.ViewResult {
		t.Fatalf("login should resume at result, got %+v", login)
	}
}

func TestRegisterValidationOverHTTP(t *testing.T) {
	rt := NewRouter(NewMemoryStore(), nil, t.TempDir())
	mux := http.NewServeMux()
	rt.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]any{
		"first_name": "", "last_name": "Иванова", "phone": "89151234567", "age": 24, "password": "pw",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("validation failure mapped to %d", res.StatusCode)
	}
}
