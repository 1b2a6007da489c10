package services

import (
	"log"
	"strings"
	"time"
)

// Profile is the respondent's persisted identity. Phone is always the
// canonical form and is the primary key for every per-user record.
// The password is stored and compared as plain text: that is the observable
// behavior of the backing store this system talks to, not a recommendation.
type Profile struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Phone     string   `json:"phone"`
	Age       int      `json:"age"`
	Password  string   `json:"password"`
	Interests []string `json:"interests,omitempty"`
}

// UserRow is the remote store's row for one canonical phone: the profile
// plus the last committed typology result, if any.
type UserRow struct {
	Profile   Profile         `json:"profile"`
	Result    *TypologyResult `json:"result,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type UserStore interface {
	UpsertResult(p *Profile, r *TypologyResult) error
	UpsertProfile(p *Profile) error
	GetUser(phone string) (*UserRow, error)
}

type ProfileService struct {
	store UserStore
}

func NewProfileService(store UserStore) *ProfileService {
	return &ProfileService{store: store}
}

// Register validates the registration fields and upserts the profile row.
// Validation failures block only this transition and never touch committed
// state.
func (s *ProfileService) Register(firstName, lastName, rawPhone, password string, age int) (*Profile, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, NewInvalidError("имя и фамилия обязательны")
	}
	phone := CanonicalPhone(rawPhone)
	if phone == AnonPhone {
		return nil, NewInvalidError("введите номер телефона")
	}
	if age <= 0 || age > 120 {
		return nil, NewInvalidError("укажите возраст")
	}
	if strings.TrimSpace(password) == "" {
		return nil, NewInvalidError("пароль обязателен")
	}
	p := &Profile{FirstName: firstName, LastName: lastName, Phone: phone, Age: age, Password: password}
	if err := s.store.UpsertProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Login fetches the row for the canonical phone and compares the password
// byte for byte, reproducing the plain-text credential behavior of the store.
func (s *ProfileService) Login(rawPhone, password string) (*UserRow, error) {
	phone := CanonicalPhone(rawPhone)
	if phone == AnonPhone {
		return nil, NewInvalidError("введите номер телефона")
	}
	row, err := s.store.GetUser(phone)
	if err != nil {
		return nil, err
	}
	if row == nil || row.Profile.Password != password {
		return nil, NewUnauthorizedError("неверный номер или пароль")
	}
	return row, nil
}

// SetInterests replaces the profile's interest set with the normalized,
// deduplicated form of raw and persists fire-and-forget: a store error is
// logged, not returned, so the local profile stays the source of truth.
func (s *ProfileService) SetInterests(p *Profile, raw []string) {
	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n := NormalizeInterest(r)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	p.Interests = out
	if p.Phone == AnonPhone {
		return
	}
	if err := s.store.UpsertProfile(p); err != nil {
		log.Printf("profile: persist interests for %s: %v", p.Phone, err)
	}
}

// NormalizeInterest truncates free text at the first '/' and trims space.
// Two entries with the same normalized form are one interest.
func NormalizeInterest(s string) string {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
