package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrQueryNotFound covers both a missing query and one owned by someone
	// else. Callers must not be able to tell the two apart.
	ErrQueryNotFound = errors.New("query not found")
	// ErrShareTokenTaken is returned by repositories when a freshly minted
	// share token collides with an existing one.
	ErrShareTokenTaken = errors.New("share token already in use")
	ErrValidation      = errors.New("validation failed")
)

// ValidationError wraps ErrValidation with a client-facing message.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Query is a titled text snippet owned by a single user.
type Query struct {
	ID         string
	OwnerID    string
	Title      string
	Text       string
	Tags       []string
	IsPublic   bool
	ShareToken string // empty until the query is shared
	CreatedAt  time.Time
}

// PublicQuery is the read-only projection served to anonymous readers.
// It carries nothing that identifies the owner or the record.
type PublicQuery struct {
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns the anonymous projection of q.
func (q *Query) Public() *PublicQuery {
	tags := make([]string, len(q.Tags))
	copy(tags, q.Tags)
	return &PublicQuery{
		Title:     q.Title,
		Text:      q.Text,
		Tags:      tags,
		CreatedAt: q.CreatedAt,
	}
}

// NormalizeTags trims and lowercases every tag, drops empty entries and
// duplicates, and keeps the first-seen order. The result is never nil.
func NormalizeTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
