package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/recall/internal/expiry"
	"github.com/rcliao/recall/internal/model"
)

// Search finds the caller's visible memories matching the query. Ranked
// stores match through FTS5 and order by BM25; substring stores match with
// LIKE and order by recency. Both apply the same visibility predicate.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Memory, error) {
	limit := p.TopK
	if limit <= 0 || strings.TrimSpace(p.Query) == "" {
		return []model.Memory{}, nil
	}
	if limit > MaxTopK {
		limit = MaxTopK
	}

	where, args := s.visibility(p)

	var query string
	if s.mode == SearchRanked {
		query = fmt.Sprintf(`
			SELECT %s
			FROM memories_fts
			JOIN memories m ON m.id = memories_fts.rowid
			WHERE memories_fts MATCH ? AND %s
			ORDER BY bm25(memories_fts), m.id DESC
			LIMIT ?`, memoryColumns, where)
		args = append([]any{p.Query}, args...)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM memories m
			WHERE m.text LIKE ? ESCAPE '\' AND %s
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?`, memoryColumns, where)
		args = append([]any{"%" + escapeLike(p.Query) + "%"}, args...)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.mode, err)
	}
	return scanMemories(rows)
}

// visibility builds the ownership, soft-delete, expiry and tag filter shared
// by both search paths.
func (s *SQLiteStore) visibility(p SearchParams) (string, []any) {
	where := []string{"m.user_id = ?", expiry.ActiveSQL("m")}
	args := []any{p.UserID}

	if !p.IncludeExpired {
		where = append(where, expiry.NotExpiredSQL("m"))
		args = append(args, model.FormatTime(s.now()))
	}

	if len(p.TagAny) > 0 {
		tags := uniqueTags(p.TagAny)
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM json_each(m.tags) WHERE json_each.value IN (%s))`,
			placeholders(len(tags))))
		for _, t := range tags {
			args = append(args, t)
		}
	}

	return strings.Join(where, " AND "), args
}

// uniqueTags drops duplicate tags, keeping first-seen order. An empty
// string is a tag like any other.
func uniqueTags(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
