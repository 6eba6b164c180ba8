package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

type PostgresStore struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, types: pgtype.NewMap()}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// int64s adapts a *[]int64 destination so BIGINT[] columns scan through pgx.
func (s *PostgresStore) int64s(dst *[]int64) sql.Scanner {
	return s.types.SQLScanner(dst)
}

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, display_name, email, affiliation, role, created_at FROM users WHERE display_name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Affiliation, &user.Role, &user.CreatedAt)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	return s.InsertUser(ctx, User{
		DisplayName: name,
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@local.folio.dev",
		Role:        "author",
	})
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) (User, error) {
	if user.Role == "" {
		user.Role = "author"
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (display_name, email, affiliation, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, user.DisplayName, user.Email, user.Affiliation, user.Role).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, affiliation, role, created_at FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Affiliation, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, affiliation, role, created_at FROM users ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Affiliation, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

const paperColumns = `id, title, abstract, kind, status, track_name, author_order, reviewer_order, updated_by_name, updated_at`

func (s *PostgresStore) scanPaper(row interface{ Scan(...any) error }) (Paper, error) {
	var item Paper
	err := row.Scan(
		&item.ID, &item.Title, &item.Abstract, &item.Kind, &item.Status, &item.TrackName,
		s.int64s(&item.AuthorOrder), s.int64s(&item.ReviewerOrder),
		&item.UpdatedBy, &item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) ListPapers(ctx context.Context, kind, status string) ([]Paper, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paperColumns+`
		FROM papers
		WHERE ($1 = '' OR kind = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY updated_at DESC, id DESC
	`, kind, status)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	items := make([]Paper, 0)
	for rows.Next() {
		item, err := s.scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPaper(ctx context.Context, paperID int64) (Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id=$1`, paperID)
	item, err := s.scanPaper(row)
	if err != nil {
		return Paper{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertPaper(ctx context.Context, item Paper) (Paper, error) {
	if item.Status == "" {
		item.Status = StatusPendingSubmission
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO papers (title, abstract, kind, status, track_name, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, updated_at
	`, item.Title, item.Abstract, item.Kind, item.Status, item.TrackName, item.UpdatedBy).Scan(&item.ID, &item.UpdatedAt)
	if err != nil {
		return Paper{}, fmt.Errorf("insert paper: %w", err)
	}
	return item, nil
}

// ListAuthors returns the paper's authors in the order they were added.
func (s *PostgresStore) ListAuthors(ctx context.Context, paperID int64) ([]Member, error) {
	return s.listMembers(ctx, `
		SELECT u.id, u.display_name, u.email, u.affiliation, ''
		FROM paper_authors pa
		JOIN users u ON u.id = pa.user_id
		WHERE pa.paper_id = $1
		ORDER BY pa.added_at ASC, u.id ASC
	`, paperID)
}

// ListReviewers returns the paper's reviewers in assignment order.
func (s *PostgresStore) ListReviewers(ctx context.Context, paperID int64) ([]Member, error) {
	return s.listMembers(ctx, `
		SELECT u.id, u.display_name, u.email, u.affiliation, r.status
		FROM reviews r
		JOIN users u ON u.id = r.reviewer_id
		WHERE r.paper_id = $1
		ORDER BY r.assigned_at ASC, r.id ASC
	`, paperID)
}

func (s *PostgresStore) listMembers(ctx context.Context, query string, paperID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var item Member
		if err := rows.Scan(&item.UserID, &item.DisplayName, &item.Email, &item.Affiliation, &item.ReviewStatus); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) IsAuthor(ctx context.Context, paperID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM paper_authors WHERE paper_id=$1 AND user_id=$2)
	`, paperID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check author: %w", err)
	}
	return exists, nil
}

// ErrStatusChanged means the paper left the status the caller read before the
// write took the row lock.
var ErrStatusChanged = errors.New("paper status changed")

// StatusChangedError carries the status found under the row lock.
type StatusChangedError struct {
	PaperID int64
	Status  string
}

func (e *StatusChangedError) Error() string {
	return fmt.Sprintf("paper %d is now %s", e.PaperID, e.Status)
}

func (e *StatusChangedError) Unwrap() error {
	return ErrStatusChanged
}

// lockPaper takes the paper row lock and fails with *StatusChangedError when
// the row is no longer in expected.
func lockPaper(ctx context.Context, tx *sql.Tx, paperID int64, expected string) error {
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM papers WHERE id=$1 FOR UPDATE`, paperID).Scan(&status); err != nil {
		return err
	}
	if status != expected {
		return &StatusChangedError{PaperID: paperID, Status: status}
	}
	return nil
}

// UpdatePaperStatus moves the paper to status inside tx.
func (s *PostgresStore) UpdatePaperStatus(ctx context.Context, tx *sql.Tx, paperID int64, status, updatedBy string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE papers SET status=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
	`, paperID, status, updatedBy)
	if err != nil {
		return fmt.Errorf("update paper status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReplaceMembers sets the paper's member list for kind to userIDs and stores
// order as its order vector, appending an order event in the same transaction.
// The write only happens while the paper is still in fromStatus. Reviewers
// with a submitted review are never deleted.
func (s *PostgresStore) ReplaceMembers(ctx context.Context, paperID int64, kind ListKind, fromStatus string, userIDs, order []int64, actor string) error {
	// nil slices encode as NULL, which ANY() and the NOT NULL columns reject.
	if userIDs == nil {
		userIDs = []int64{}
	}
	if order == nil {
		order = []int64{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace members: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockPaper(ctx, tx, paperID, fromStatus); err != nil {
		return err
	}

	switch kind {
	case ListAuthors:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM paper_authors WHERE paper_id=$1 AND NOT (user_id = ANY($2))
		`, paperID, userIDs); err != nil {
			return fmt.Errorf("delete authors: %w", err)
		}
		for _, userID := range userIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO paper_authors (paper_id, user_id) VALUES ($1, $2)
				ON CONFLICT (paper_id, user_id) DO NOTHING
			`, paperID, userID); err != nil {
				return fmt.Errorf("insert author %d: %w", userID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE papers SET author_order=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
		`, paperID, order, actor); err != nil {
			return fmt.Errorf("update author order: %w", err)
		}
	case ListReviewers:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM reviews WHERE paper_id=$1 AND status <> 'SUBMITTED' AND NOT (reviewer_id = ANY($2))
		`, paperID, userIDs); err != nil {
			return fmt.Errorf("delete reviewers: %w", err)
		}
		for _, userID := range userIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reviews (paper_id, reviewer_id) VALUES ($1, $2)
				ON CONFLICT (paper_id, reviewer_id) DO NOTHING
			`, paperID, userID); err != nil {
				return fmt.Errorf("insert reviewer %d: %w", userID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE papers SET reviewer_order=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
		`, paperID, order, actor); err != nil {
			return fmt.Errorf("update reviewer order: %w", err)
		}
	default:
		return fmt.Errorf("replace members: unknown list %q", kind)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_events (paper_id, list_kind, order_vector, actor_name)
		VALUES ($1, $2, $3, $4)
	`, paperID, string(kind), order, actor); err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace members: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkReviewSubmitted(ctx context.Context, paperID, reviewerID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET status='SUBMITTED', submitted_at=NOW()
		WHERE paper_id=$1 AND reviewer_id=$2
	`, paperID, reviewerID)
	if err != nil {
		return fmt.Errorf("mark review submitted: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListOrderEvents(ctx context.Context, paperID int64, kind ListKind, limit int) ([]OrderEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paper_id, list_kind, order_vector, actor_name, created_at
		FROM order_events
		WHERE paper_id=$1 AND list_kind=$2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, paperID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	items := make([]OrderEvent, 0)
	for rows.Next() {
		var item OrderEvent
		var listKind string
		if err := rows.Scan(&item.ID, &item.PaperID, &listKind, s.int64s(&item.Order), &item.Actor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		item.ListKind = ListKind(listKind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}
	return items, nil
}

// InsertDecision records a decision and moves the paper from fromStatus to
// toStatus. A paper that already left fromStatus gets no decision.
func (s *PostgresStore) InsertDecision(ctx context.Context, decision Decision, fromStatus, toStatus string) (Decision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("begin insert decision: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockPaper(ctx, tx, decision.PaperID, fromStatus); err != nil {
		return Decision{}, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO paper_decisions (paper_id, outcome, rationale, decided_by_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, decided_at
	`, decision.PaperID, decision.Outcome, decision.Rationale, decision.DecidedBy).Scan(&decision.ID, &decision.DecidedAt)
	if err != nil {
		return Decision{}, fmt.Errorf("insert decision: %w", err)
	}
	if err := s.UpdatePaperStatus(ctx, tx, decision.PaperID, toStatus, decision.DecidedBy); err != nil {
		return Decision{}, err
	}
	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("commit decision: %w", err)
	}
	return decision, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, paperID int64) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, paper_id, outcome, rationale, decided_by_name, decided_at
		FROM paper_decisions
		WHERE paper_id=$1
		ORDER BY decided_at DESC, id DESC
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	items := make([]Decision, 0)
	for rows.Next() {
		var item Decision
		if err := rows.Scan(&item.ID, &item.PaperID, &item.Outcome, &item.Rationale, &item.DecidedBy, &item.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return items, nil
}
