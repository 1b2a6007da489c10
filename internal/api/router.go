package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/typetalk-app/typetalk/internal/middleware"
	"github.com/typetalk-app/typetalk/internal/services"
)

const tokenTTL = 30 * 24 * time.Hour

type Router struct {
	store    Store
	profiles *services.ProfileService
	sessions *sessionRegistry
}

func NewRouter(store Store, client services.ChatClient, cacheDir string) *Router {
	return &Router{
		store:    store,
		profiles: services.NewProfileService(store),
		sessions: newSessionRegistry(store, client, cacheDir),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister) // POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)       // POST
	mux.Handle("/api/profile", rt.authed(rt.handleProfile))
	mux.Handle("/api/interests", rt.authed(rt.handleInterests))
	mux.Handle("/api/flow/state", rt.authed(rt.handleFlowState))
	mux.Handle("/api/flow/goto", rt.authed(rt.handleFlowGoto))
	mux.Handle("/api/quiz", rt.authed(rt.handleQuizItems))
	mux.Handle("/api/quiz/answer", rt.authed(rt.handleQuizAnswer))
	mux.Handle("/api/quiz/next", rt.authed(rt.handleQuizNext))
	mux.Handle("/api/quiz/back", rt.authed(rt.handleQuizBack))
	mux.Handle("/api/result", rt.authed(rt.handleResult))
	mux.Handle("/api/chat/open", rt.authed(rt.handleChatOpen))
	mux.Handle("/api/chat/history", rt.authed(rt.handleChatHistory))
	mux.Handle("/api/chat/send", rt.authed(rt.handleChatSend))
	mux.Handle("/api/chat/rate", rt.authed(rt.handleChatRate))
}

// authed wires the auth middleware around a phone-scoped handler.
func (rt *Router) authed(h func(http.ResponseWriter, *http.Request, *sessionHandle)) http.Handler {
	return middleware.WithAuth(middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		phone, ok := middleware.PhoneFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r, rt.sessions.get(phone))
	})))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusInternalServerError
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorBadGateway:
			status = http.StatusBadGateway
		case services.ErrorTooManyRequests:
			status = http.StatusTooManyRequests
		}
		http.Error(w, se.Message, status)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Age       int    `json:"age"`
		Password  string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := rt.profiles.Register(req.FirstName, req.LastName, req.Phone, req.Password, req.Age)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	token, err := middleware.SignToken(p.Phone, tokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rt.sessions.drop(p.Phone)
	h := rt.sessions.get(p.Phone)
	h.session.SetProfile(p)
	h.flow.Goto(services.ViewRegister)
	h.flow.Goto(services.ViewInterests)
	writeJSON(w, map[string]any{"token": token, "phone": p.Phone, "view": h.flow.State().View})
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	row, err := rt.profiles.Login(req.Phone, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	token, err := middleware.SignToken(row.Profile.Phone, tokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rt.sessions.drop(row.Profile.Phone)
	h := rt.sessions.get(row.Profile.Phone)
	profile := row.Profile
	h.session.SetProfile(&profile)
	if row.Result != nil {
		// a finished session resumes straight at the result view
		h.session.SetResult(row.Result)
		h.flow.Resume(*row.Result)
	} else {
		h.flow.Goto(services.ViewLogin)
		h.flow.Goto(services.ViewInterests)
	}
	writeJSON(w, map[string]any{"token": token, "phone": row.Profile.Phone, "view": h.flow.State().View})
}

// GET /api/profile
func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p := h.session.Profile()
	if p == nil {
		http.Error(w, "no profile", http.StatusNotFound)
		return
	}
	out := *p
	out.Password = ""
	writeJSON(w, out)
}

// PUT /api/interests
func (rt *Router) handleInterests(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Interests []string `json:"interests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := h.session.Profile()
	if p == nil {
		http.Error(w, "no profile", http.StatusNotFound)
		return
	}
	rt.profiles.SetInterests(p, req.Interests)
	writeJSON(w, map[string]any{"interests": p.Interests})
}

// GET /api/flow/state
func (rt *Router) handleFlowState(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	writeJSON(w, h.flow.State())
}

// POST /api/flow/goto
func (rt *Router) handleFlowGoto(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		View services.View `json:"view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.flow.Goto(req.View) {
		http.Error(w, "illegal transition", http.StatusConflict)
		return
	}
	writeJSON(w, h.flow.State())
}

// GET /api/quiz
func (rt *Router) handleQuizItems(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	writeJSON(w, map[string]any{"items": services.QuizItems})
}

// POST /api/quiz/answer
func (rt *Router) handleQuizAnswer(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Value int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	accepted := h.flow.Answer(req.Value)
	st := h.flow.State()
	writeJSON(w, map[string]any{"accepted": accepted, "state": st})
}

// POST /api/quiz/next
func (rt *Router) handleQuizNext(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accepted := h.flow.Next()
	writeJSON(w, map[string]any{"accepted": accepted, "state": h.flow.State()})
}

// POST /api/quiz/back
func (rt *Router) handleQuizBack(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accepted := h.flow.Back()
	writeJSON(w, map[string]any{"accepted": accepted, "state": h.flow.State()})
}

// GET /api/result
func (rt *Router) handleResult(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	res := h.flow.Result()
	if res == nil {
		res = h.session.Result()
	}
	if res == nil {
		http.Error(w, "no result yet", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"result": res, "name": services.TypeName(res.Code)})
}

// POST /api/chat/open
func (rt *Router) handleChatOpen(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.flow.OpenChat() {
		http.Error(w, "chat is reachable only from result", http.StatusConflict)
		return
	}
	writeJSON(w, h.flow.State())
}

// GET /api/chat/history
func (rt *Router) handleChatHistory(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	history, err := h.session.LoadHistory()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"messages": history})
}

// POST /api/chat/send. Replies as a server-sent event stream: one delta
// event per model chunk, then a final event with the persisted message.
func (rt *Router) handleChatSend(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	msg, err := h.session.Send(r.Context(), req.Text, func(delta string) {
		payload, _ := json.Marshal(map[string]string{"delta": delta})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	final, _ := json.Marshal(map[string]any{"done": true, "message": msg})
	fmt.Fprintf(w, "data: %s\n\n", final)
	flusher.Flush()
}

// POST /api/chat/rate
func (rt *Router) handleChatRate(w http.ResponseWriter, r *http.Request, h *sessionHandle) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID      string          `json:"id"`
		Role    string          `json:"role"`
		Text    string          `json:"text"`
		Current services.Rating `json:"current"`
		Rating  services.Rating `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = services.RoleAssistant
	}
	msg := services.ChatMessage{ID: req.ID, Role: req.Role, Text: req.Text, Rating: req.Current}
	if msg.ID != "" {
		// the durable rating decides the toggle, not what the client thinks
		if content, err := rt.store.GetChatContent(msg.ID); err == nil {
			_, msg.Rating = services.StripTag(content)
		}
	}
	if err := h.session.ToggleRating(&msg, req.Rating); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"id": msg.ID, "rating": msg.Rating})
}
