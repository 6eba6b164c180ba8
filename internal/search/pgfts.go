package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres the service is down anyway.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL over papers and users ranked by ts_rank. People
// also match on a display-name prefix so partial names find candidates. An
// empty text lists every record, as Meilisearch does for a placeholder query.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	subQueries, args := ftsSubqueries(text, q.FilterType, q.Exclude)
	if len(subQueries) == 0 {
		return nil, 0, nil
	}
	union := strings.Join(subQueries, " UNION ALL ")

	var total int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM (%s) sub", union), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT type, id, title, snippet, kind, status
		FROM (%s) sub
		ORDER BY rank DESC, id ASC
		LIMIT %d OFFSET %d`, union, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Kind, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PaperRecord, []PersonRecord, error) {
	paperRows, err := p.db.QueryContext(ctx, `SELECT id, title, abstract, kind, status, track_name FROM papers`)
	if err != nil {
		return nil, nil, fmt.Errorf("load papers: %w", err)
	}
	defer paperRows.Close()

	papers := make([]PaperRecord, 0)
	for paperRows.Next() {
		var r PaperRecord
		if err := paperRows.Scan(&r.ID, &r.Title, &r.Abstract, &r.Kind, &r.Status, &r.Track); err != nil {
			return nil, nil, fmt.Errorf("scan paper: %w", err)
		}
		papers = append(papers, r)
	}
	if err := paperRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate papers: %w", err)
	}

	personRows, err := p.db.QueryContext(ctx, `SELECT id, display_name, email, affiliation FROM users`)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}
	defer personRows.Close()

	people := make([]PersonRecord, 0)
	for personRows.Next() {
		var r PersonRecord
		if err := personRows.Scan(&r.ID, &r.DisplayName, &r.Email, &r.Affiliation); err != nil {
			return nil, nil, fmt.Errorf("scan user: %w", err)
		}
		people = append(people, r)
	}
	if err := personRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate users: %w", err)
	}
	return papers, people, nil
}

// ftsSubqueries builds the per-type selects for Search. The text is always
// bound as $1 when present.
func ftsSubqueries(text string, filter ResultType, exclude []int64) ([]string, []any) {
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if text != "" {
		bind(text)
	}

	var subQueries []string
	if filter == "" || filter == ResultPaper {
		if text == "" {
			subQueries = append(subQueries, `
			SELECT 'paper'::text AS type, p.id, p.title,
				left(coalesce(p.abstract, ''), 200) AS snippet,
				p.kind, p.status, 0::real AS rank
			FROM papers p`)
		} else {
			subQueries = append(subQueries, `
			SELECT 'paper'::text AS type, p.id, p.title,
				ts_headline('english', coalesce(p.abstract, ''), plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
				p.kind, p.status,
				ts_rank(p.fts, plainto_tsquery('english', $1)) AS rank
			FROM papers p
			WHERE p.fts @@ plainto_tsquery('english', $1)`)
		}
	}

	if filter == "" || filter == ResultPerson {
		var conds []string
		rank := "0::real"
		if text != "" {
			conds = append(conds, "(u.fts @@ plainto_tsquery('simple', $1) OR u.display_name ILIKE $1 || '%')")
			rank = "ts_rank(u.fts, plainto_tsquery('simple', $1))"
		}
		if len(exclude) > 0 {
			conds = append(conds, fmt.Sprintf("NOT (u.id = ANY(%s))", bind(exclude)))
		}
		where := ""
		if len(conds) > 0 {
			where = "WHERE " + strings.Join(conds, " AND ")
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'person'::text AS type, u.id, u.display_name AS title,
				coalesce(nullif(u.affiliation, ''), u.email) AS snippet,
				''::text AS kind, ''::text AS status,
				%s AS rank
			FROM users u
			%s`, rank, where))
	}
	return subQueries, args
}
