package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/typetalk-app/typetalk/internal/api"
	"github.com/typetalk-app/typetalk/internal/services"
)

// SQLiteStore implements api.Store over a single sqlite database. Profile
// writes are upserts keyed by canonical phone.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) { return NewSQLiteStore(db) }

var _ api.Store = (*SQLiteStore)(nil)

func encodeJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (s *SQLiteStore) UpsertProfile(p *services.Profile) error {
	interests, err := encodeJSON(p.Interests)
	if err != nil {
		return fmt.Errorf("encode interests: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO users (phone, first_name, last_name, age, password, interests, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			age        = excluded.age,
			password   = excluded.password,
			interests  = excluded.interests,
			updated_at = excluded.updated_at`,
		p.Phone, p.FirstName, p.LastName, p.Age, p.Password, interests, time.Now().UTC())
	return err
}

func (s *SQLiteStore) UpsertResult(p *services.Profile, r *services.TypologyResult) error {
	if p == nil {
		return errors.New("nil profile")
	}
	if err := s.UpsertProfile(p); err != nil {
		return err
	}
	result, err := encodeJSON(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.Exec(`UPDATE users SET result = ?, updated_at = ? WHERE phone = ?`,
		result, time.Now().UTC(), p.Phone)
	return err
}

func (s *SQLiteStore) GetUser(phone string) (*services.UserRow, error) {
	row := s.db.QueryRow(`
		SELECT phone, first_name, last_name, age, password, interests, result, updated_at
		FROM users WHERE phone = ?`, phone)

	var (
		out               services.UserRow
		interests, result sql.NullString
	)
	err := row.Scan(&out.Profile.Phone, &out.Profile.FirstName, &out.Profile.LastName,
		&out.Profile.Age, &out.Profile.Password, &interests, &result, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if interests.Valid && strings.TrimSpace(interests.String) != "" {
		if err := json.Unmarshal([]byte(interests.String), &out.Profile.Interests); err != nil {
			return nil, fmt.Errorf("decode interests: %w", err)
		}
	}
	if result.Valid && strings.TrimSpace(result.String) != "" {
		var r services.TypologyResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out.Result = &r
	}
	return &out, nil
}

func (s *SQLiteStore) AppendChat(row *services.ChatRow) (string, error) {
	if row.ID == "" {
		row.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, phone, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		row.ID, row.Phone, row.Role, row.Content, row.CreatedAt)
	if err != nil {
		return "", err
	}
	return row.ID, nil
}

func (s *SQLiteStore) GetChatContent(id string) (string, error) {
	var content string
	err := s.db.QueryRow(`SELECT content FROM chat_messages WHERE id = ?`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", services.NewNotFoundError("chat row not found")
	}
	return content, err
}

func (s *SQLiteStore) ListChat(phone string) ([]*services.ChatRow, error) {
	rows, err := s.db.Query(`
		SELECT id, phone, role, content, created_at
		FROM chat_messages WHERE phone = ? ORDER BY created_at ASC`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatRows(rows)
}

func (s *SQLiteStore) ListRecentChat(phone, role string, limit int) ([]*services.ChatRow, error) {
	rows, err := s.db.Query(`
		SELECT id, phone, role, content, created_at
		FROM chat_messages WHERE phone = ? AND role = ?
		ORDER BY created_at DESC LIMIT ?`, phone, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChatRows(rows)
}

func (s *SQLiteStore) UpdateChatContent(id, content string) error {
	res, err := s.db.Exec(`UPDATE chat_messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.NewNotFoundError("chat row not found")
	}
	return nil
}

func scanChatRows(rows *sql.Rows) ([]*services.ChatRow, error) {
	var out []*services.ChatRow
	for rows.Next() {
		var r services.ChatRow
		if err := rows.Scan(&r.ID, &r.Phone, &r.Role, &r.Content, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
