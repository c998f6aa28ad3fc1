// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/recall/internal/expiry"
)

// TimeLayout is the on-disk timestamp format: naive UTC, second precision.
// Lexicographic order of formatted values equals chronological order.
const TimeLayout = "2006-01-02 15:04:05"

// Memory represents a stored memory entry.
type Memory struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Text      string     `json:"text"`
	Tags      []string   `json:"tags,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Expired reports whether the memory's TTL has elapsed at now.
func (m Memory) Expired(now time.Time) bool {
	return expiry.IsExpired(m.ExpiresAt, now)
}

// Purgeable reports whether the memory is soft-deleted or expired at now.
func (m Memory) Purgeable(now time.Time) bool {
	return expiry.IsPurgeable(m.DeletedAt, m.ExpiresAt, now)
}

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatTimePtr is FormatTime for optional timestamps; nil stays nil.
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

// ParseTime parses a TimeLayout value as UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// EncodeTags returns the JSON column value for tags. A nil slice means
// "no tags" and maps to NULL; an empty non-nil slice is stored as [].
func EncodeTags(tags []string) (*string, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeTags is the inverse of EncodeTags.
func DecodeTags(raw *string) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	tags := []string{}
	if err := json.Unmarshal([]byte(*raw), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return tags, nil
}
