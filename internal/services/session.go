package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the in-memory, display form of one chat turn. Text never
// contains a tag fragment: tags exist only inside persisted content. ID is
// empty until the row has round-tripped from the store.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Rating    Rating    `json:"rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRow is the persisted form: content carries the tag, if any.
type ChatRow struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatStore interface {
	AppendChat(row *ChatRow) (string, error)
	GetChatContent(id string) (string, error)
	ListChat(phone string) ([]*ChatRow, error)
	ListRecentChat(phone, role string, limit int) ([]*ChatRow, error)
	UpdateChatContent(id, content string) error
}

// Conversation is one seeded context with the model. Sending streams the
// reply through onDelta until it is complete; a failed conversation is not
// restartable, the session must seed a fresh one.
type Conversation interface {
	Send(ctx context.Context, text string, onDelta func(string)) (string, error)
}

// ChatClient seeds a conversational context from the respondent's typology
// and prior decoded history.
type ChatClient interface {
	NewContext(p *Profile, r *TypologyResult, history []ChatMessage) (Conversation, error)
}

type httpStatusCoder interface{ HTTPStatusCode() int }

// how many recent rows per role the id-less rating lookup scans
const ratingLookupLimit = 10

// Fallback replies when the provider fails; the session stays usable for the
// next send.
const (
	fallbackQuotaReply   = "Мне нужно немного отдохнуть. Попробуйте написать чуть позже."
	fallbackGenericReply = "Что-то пошло не так. Давайте попробуем ещё раз."
)

// Session reconciles one respondent's optimistic local state with the remote
// store. All state is scoped to one canonical phone; nothing crosses session
// boundaries.
type Session struct {
	phone  string
	users  UserStore
	chats  ChatStore
	client ChatClient
	cache  *Cache

	profile *Profile
	result  *TypologyResult
	conv    Conversation
	now     func() time.Time
}

func NewSession(phone string, users UserStore, chats ChatStore, client ChatClient, cache *Cache) *Session {
	return &Session{
		phone:  phone,
		users:  users,
		chats:  chats,
		client: client,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Session) Phone() string     { return s.phone }
func (s *Session) Profile() *Profile { return s.profile }
func (s *Session) SetProfile(p *Profile) {
	s.profile = p
	if p != nil {
		s.phone = p.Phone
	}
}

func (s *Session) Result() *TypologyResult     { return s.result }
func (s *Session) SetResult(r *TypologyResult) { s.result = r }

// CommitResult computes the typology, writes the local cache synchronously,
// then attempts the remote upsert. A remote failure is returned for
// non-blocking display but the local commit stands.
func (s *Session) CommitResult(answers AnswerSet) (TypologyResult, error) {
	res := ComputeType(answers)
	s.result = &res

	if s.cache != nil {
		if err := s.cache.Save(&Snapshot{Phone: s.phone, Profile: s.profile, Result: &res}); err != nil {
			log.Printf("session: cache result for %s: %v", s.phone, err)
		}
	}
	if s.phone == AnonPhone {
		return res, nil
	}
	if err := s.users.UpsertResult(s.profile, &res); err != nil {
		log.Printf("session: persist result for %s: %v", s.phone, err)
		return res, NewBadGatewayError("результат сохранён локально, но не на сервере")
	}
	return res, nil
}

// AppendMessage persists one turn. Assistant turns always go through the tag
// codec with their current rating; user turns are stored raw. Anonymous
// traffic is never persisted.
func (s *Session) AppendMessage(role, text string, rating Rating) (ChatMessage, error) {
	msg := ChatMessage{Role: role, Text: text, Rating: rating, CreatedAt: s.now()}
	if s.phone == AnonPhone {
		return msg, nil
	}
	content := text
	if role == RoleAssistant {
		content = WithTag(text, rating)
	}
	id, err := s.chats.AppendChat(&ChatRow{Phone: s.phone, Role: role, Content: content, CreatedAt: msg.CreatedAt})
	if err != nil {
		return msg, err
	}
	msg.ID = id
	return msg, nil
}

// ToggleRating applies r to msg, or clears it when msg already carries r.
// When the message has no server id yet, the id is recovered by scanning the
// most recent rows for the same role and matching on exact decoded text; if
// nothing matches the mutation is dropped silently (the local toggle may
// show, it just is not durable). Matching can hit the wrong row when two
// recent same-role messages have identical text; that limitation is kept
// deliberately.
func (s *Session) ToggleRating(msg *ChatMessage, r Rating) error {
	next := r
	if msg.Rating == r {
		next = RatingNone
	}

	id := msg.ID
	if id == "" {
		rows, err := s.chats.ListRecentChat(s.phone, msg.Role, ratingLookupLimit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			text, _ := StripTag(row.Content)
			if text == msg.Text {
				id = row.ID
				break
			}
		}
		if id == "" {
			msg.Rating = next
			return nil
		}
		msg.ID = id
	}

	content, err := s.chats.GetChatContent(id)
	if err != nil {
		return err
	}
	text, _ := StripTag(content)
	if err := s.chats.UpdateChatContent(id, WithTag(text, next)); err != nil {
		return err
	}
	msg.Rating = next
	return nil
}

// LoadHistory returns the complete decoded log for the session's phone,
// oldest first. Callers need the whole thing: it both reconstructs the
// visible transcript and seeds new conversational contexts.
func (s *Session) LoadHistory() ([]ChatMessage, error) {
	if s.phone == AnonPhone {
		return nil, nil
	}
	rows, err := s.chats.ListChat(s.phone)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	out := make([]ChatMessage, 0, len(rows))
	for _, row := range rows {
		text, rating := StripTag(row.Content)
		out = append(out, ChatMessage{
			ID:        row.ID,
			Role:      row.Role,
			Text:      text,
			Rating:    rating,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Send persists the user turn, streams the assistant reply through onDelta,
// and persists the finished reply once the stream completes. Provider
// failures map to a fallback reply and leave the session usable; the broken
// context is discarded so the next send seeds a fresh one.
func (s *Session) Send(ctx context.Context, text string, onDelta func(string)) (ChatMessage, error) {
	if s.client == nil {
		return s.fallbackReply(errors.New("no chat provider configured"))
	}

	// seed the context before persisting the new turn so prior history does
	// not include the text about to be sent
	if s.conv == nil {
		history, err := s.LoadHistory()
		if err != nil {
			log.Printf("session: load history for %s: %v", s.phone, err)
		}
		conv, err := s.client.NewContext(s.profile, s.result, history)
		if err != nil {
			return s.fallbackReply(err)
		}
		s.conv = conv
	}

	if _, err := s.AppendMessage(RoleUser, text, RatingNone); err != nil {
		log.Printf("session: persist user turn for %s: %v", s.phone, err)
	}

	reply, err := s.conv.Send(ctx, text, onDelta)
	if err != nil {
		s.conv = nil
		return s.fallbackReply(err)
	}
	return s.AppendMessage(RoleAssistant, reply, RatingNone)
}

func (s *Session) fallbackReply(cause error) (ChatMessage, error) {
	log.Printf("session: chat provider for %s: %v", s.phone, cause)
	reply := fallbackGenericReply
	if sc, ok := cause.(httpStatusCoder); ok && sc.HTTPStatusCode() == 429 {
		reply = fallbackQuotaReply
	}
	return ChatMessage{Role: RoleAssistant, Text: reply, CreatedAt: s.now()}, nil
}
