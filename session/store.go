// Package session persists conversation logs as one JSON file per session.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spektasoft/spekta-cli/unifiedllm"
)

const (
	fileExt = ".json"
	tmpExt  = ".tmp"
)

// Session is the persisted form of one conversation.
type Session struct {
	ID        string               `json:"sessionId"`
	Messages  []unifiedllm.Message `json:"messages"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// PersistenceError reports a failed save. The previous file, if any, is
// left intact.
type PersistenceError struct {
	ID  string
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist session %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store reads and writes session files in a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the directory sessions are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the canonical file path for a session id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

// ErrInvalidID is returned for ids that are empty or contain a path
// separator.
var ErrInvalidID = errors.New("invalid session id")

// checkID keeps every session file directly inside the store directory.
func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w %q", ErrInvalidID, id)
	}
	return nil
}

// Save writes the log with a fresh timestamp to a sibling temporary file
// and renames it over the canonical file.
func (s *Store) Save(id string, messages []unifiedllm.Message) error {
	if err := checkID(id); err != nil {
		return &PersistenceError{ID: id, Op: "validate", Err: err}
	}
	if messages == nil {
		messages = []unifiedllm.Message{}
	}

	data, err := json.MarshalIndent(Session{ID: id, Messages: messages, UpdatedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return &PersistenceError{ID: id, Op: "encode", Err: err}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &PersistenceError{ID: id, Op: "mkdir", Err: err}
	}

	final := s.Path(id)
	tmp := final + tmpExt
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{ID: id, Op: "write", Err: err}
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return &PersistenceError{ID: id, Op: "rename", Err: err}
	}
	s.logger.Debug("session saved", "id", id, "messages", len(messages))
	return nil
}

// rawSession defers message decoding so a malformed messages field can be
// told apart from a malformed file.
type rawSession struct {
	ID        string          `json:"sessionId"`
	Messages  json.RawMessage `json:"messages"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

type rawMessage struct {
	Role      *string `json:"role"`
	Content   *string `json:"content"`
	Reasoning string  `json:"reasoning"`
}

// Load reads a session. It returns nil, nil when no file exists or when the
// messages field is not an array. Messages missing a role or content, or
// with an unknown role, are dropped and logged. A missing id or timestamp
// is backfilled; stored values are kept.
func (s *Store) Load(id string) (*Session, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	trimmed := bytes.TrimSpace(raw.Messages)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		s.logger.Warn("session messages field is not an array", "id", id)
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		s.logger.Warn("session messages field is not an array", "id", id, "error", err)
		return nil, nil
	}

	sess := &Session{ID: raw.ID, Messages: make([]unifiedllm.Message, 0, len(items))}
	for i, item := range items {
		var m rawMessage
		if err := json.Unmarshal(item, &m); err != nil {
			s.logger.Warn("dropping undecodable message", "id", id, "index", i, "error", err)
			continue
		}
		if m.Role == nil || m.Content == nil {
			s.logger.Warn("dropping message missing role or content", "id", id, "index", i)
			continue
		}
		role := unifiedllm.Role(*m.Role)
		if !role.Valid() {
			s.logger.Warn("dropping message with unknown role", "id", id, "index", i, "role", *m.Role)
			continue
		}
		sess.Messages = append(sess.Messages, unifiedllm.Message{Role: role, Content: *m.Content, Reasoning: m.Reasoning})
	}

	if sess.ID == "" {
		sess.ID = id
	}
	if raw.UpdatedAt != nil {
		sess.UpdatedAt = *raw.UpdatedAt
	} else {
		sess.UpdatedAt = s.now().UTC()
	}
	return sess, nil
}

// List returns the ids of all saved sessions, sorted. Temporary write
// artifacts are skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Summary describes a saved session for listings.
type Summary struct {
	ID        string
	UpdatedAt time.Time
	Messages  int
	Preview   string // first user message, shortened
}

// Summaries loads every listed session and returns them newest first.
// Unreadable files are logged and skipped.
func (s *Store) Summaries() ([]Summary, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Summary
	for _, id := range ids {
		sess, err := s.Load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable session", "id", id, "error", err)
			continue
		}
		if sess == nil {
			continue
		}
		sum := Summary{ID: sess.ID, UpdatedAt: sess.UpdatedAt, Messages: len(sess.Messages)}
		for _, m := range sess.Messages {
			if m.Role == unifiedllm.RoleUser {
				sum.Preview = preview(m.Content, 60)
				break
			}
		}
		out = append(out, sum)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
