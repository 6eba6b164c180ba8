package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"folio/api/internal/config"
	"folio/api/internal/draft"
	"folio/api/internal/search"
	"folio/api/internal/session"
	"folio/api/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fakeStore is an in-memory dataStore. Members are kept in insertion order,
// which plays the role of the database's fetch order.
type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]store.User
	papers    map[int64]store.Paper
	authors   map[int64][]store.Member
	reviewers map[int64][]store.Member
	events    []store.OrderEvent
	decisions []store.Decision
	nextID    int64

	pingFn func(context.Context) error
	// getPaperFn stands in for a read that raced with another writer.
	getPaperFn func(context.Context, int64) (store.Paper, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[int64]store.User{},
		papers:    map[int64]store.Paper{},
		authors:   map[int64][]store.Member{},
		reviewers: map[int64][]store.Member{},
		nextID:    1000,
	}
}

func (f *fakeStore) addUser(id int64, name, role string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := store.User{ID: id, DisplayName: name, Email: name + "@example.org", Role: role}
	f.users[id] = user
	return user
}

// addPaper stores paper with the given fetch-order members.
func (f *fakeStore) addPaper(paper store.Paper, authorIDs, reviewerIDs []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.papers[paper.ID] = paper
	for _, id := range authorIDs {
		f.authors[paper.ID] = append(f.authors[paper.ID], store.MemberFromUser(f.users[id]))
	}
	for _, id := range reviewerIDs {
		member := store.MemberFromUser(f.users[id])
		member.ReviewStatus = store.ReviewAssigned
		f.reviewers[paper.ID] = append(f.reviewers[paper.ID], member)
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) EnsureUserByName(_ context.Context, name string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.DisplayName == name {
			return user, nil
		}
	}
	f.nextID++
	user := store.User{ID: f.nextID, DisplayName: name, Role: "author"}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) InsertUser(_ context.Context, user store.User) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.User, 0, len(f.users))
	for _, user := range f.users {
		items = append(items, user)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) ListPapers(_ context.Context, kind, status string) ([]store.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Paper, 0, len(f.papers))
	for _, paper := range f.papers {
		if (kind == "" || paper.Kind == kind) && (status == "" || paper.Status == status) {
			items = append(items, paper)
		}
	}
	return items, nil
}

func (f *fakeStore) GetPaper(ctx context.Context, id int64) (store.Paper, error) {
	if f.getPaperFn != nil {
		return f.getPaperFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	paper, ok := f.papers[id]
	if !ok {
		return store.Paper{}, sql.ErrNoRows
	}
	return paper, nil
}

func (f *fakeStore) InsertPaper(_ context.Context, paper store.Paper) (store.Paper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	paper.ID = f.nextID
	f.papers[paper.ID] = paper
	return paper, nil
}

func (f *fakeStore) ListAuthors(_ context.Context, paperID int64) ([]store.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Member{}, f.authors[paperID]...), nil
}

func (f *fakeStore) ListReviewers(_ context.Context, paperID int64) ([]store.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Member{}, f.reviewers[paperID]...), nil
}

func (f *fakeStore) IsAuthor(_ context.Context, paperID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range f.authors[paperID] {
		if member.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ReplaceMembers(_ context.Context, paperID int64, kind store.ListKind, fromStatus string, userIDs, order []int64, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	paper, ok := f.papers[paperID]
	if !ok {
		return sql.ErrNoRows
	}
	if paper.Status != fromStatus {
		return &store.StatusChangedError{PaperID: paperID, Status: paper.Status}
	}
	lists := f.authors
	if kind == store.ListReviewers {
		lists = f.reviewers
	}

	keep := map[int64]bool{}
	for _, id := range userIDs {
		keep[id] = true
	}
	present := map[int64]bool{}
	next := make([]store.Member, 0, len(userIDs))
	for _, member := range lists[paperID] {
		if keep[member.UserID] || member.ReviewStatus == store.ReviewSubmitted {
			next = append(next, member)
			present[member.UserID] = true
		}
	}
	for _, id := range userIDs {
		if present[id] {
			continue
		}
		member := store.MemberFromUser(f.users[id])
		if kind == store.ListReviewers {
			member.ReviewStatus = store.ReviewAssigned
		}
		next = append(next, member)
	}
	lists[paperID] = next

	saved := append([]int64{}, order...)
	if kind == store.ListReviewers {
		paper.ReviewerOrder = saved
	} else {
		paper.AuthorOrder = saved
	}
	paper.UpdatedBy = actor
	f.papers[paperID] = paper
	f.nextID++
	f.events = append(f.events, store.OrderEvent{ID: f.nextID, PaperID: paperID, ListKind: kind, Order: saved, Actor: actor, CreatedAt: time.Now()})
	return nil
}

func (f *fakeStore) MarkReviewSubmitted(_ context.Context, paperID, reviewerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, member := range f.reviewers[paperID] {
		if member.UserID == reviewerID {
			f.reviewers[paperID][i].ReviewStatus = store.ReviewSubmitted
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) ListOrderEvents(_ context.Context, paperID int64, kind store.ListKind, limit int) ([]store.OrderEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.OrderEvent, 0)
	for i := len(f.events) - 1; i >= 0 && len(items) < limit; i-- {
		if f.events[i].PaperID == paperID && f.events[i].ListKind == kind {
			items = append(items, f.events[i])
		}
	}
	return items, nil
}

func (f *fakeStore) InsertDecision(_ context.Context, decision store.Decision, fromStatus, status string) (store.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	paper, ok := f.papers[decision.PaperID]
	if !ok {
		return store.Decision{}, sql.ErrNoRows
	}
	if paper.Status != fromStatus {
		return store.Decision{}, &store.StatusChangedError{PaperID: paper.ID, Status: paper.Status}
	}
	f.nextID++
	decision.ID = f.nextID
	decision.DecidedAt = time.Now()
	f.decisions = append(f.decisions, decision)
	paper.Status = status
	f.papers[paper.ID] = paper
	return decision, nil
}

func (f *fakeStore) ListDecisions(_ context.Context, paperID int64) ([]store.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Decision, 0)
	for _, decision := range f.decisions {
		if decision.PaperID == paperID {
			items = append(items, decision)
		}
	}
	return items, nil
}

type fakeSearch struct {
	mu         sync.Mutex
	results    []search.Result
	queries    []search.Query
	excludes   [][]int64
	papers     []search.PaperRecord
	people     []search.PersonRecord
	candidates []search.Result
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	results := f.results
	if results == nil {
		results = []search.Result{}
	}
	return search.Response{Results: results, Total: len(results), Query: q.Text}
}

func (f *fakeSearch) Candidates(_ context.Context, _ string, exclude []int64, _ int) []search.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.excludes = append(f.excludes, exclude)
	if f.candidates == nil {
		return []search.Result{}
	}
	return f.candidates
}

func (f *fakeSearch) IndexPaper(p search.PaperRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.papers = append(f.papers, p)
}

func (f *fakeSearch) IndexPerson(p search.PersonRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.people = append(f.people, p)
}

func newTestService(t *testing.T, fs *fakeStore) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fs,
		sessions: session.NewRedisStore(client),
		drafts:   draft.NewRedisStore(client, time.Hour),
		search:   &fakeSearch{},
		logger:   zap.NewNop(),
	}, mr
}

// seedEditorial sets up users 1..6, paper 10 (authors, pending), paper 20
// (reviewers, under review) and paper 30 (revision requested).
func seedEditorial(fs *fakeStore) {
	fs.addUser(1, "Ada", "author")
	fs.addUser(2, "Grace", "author")
	fs.addUser(3, "Edsger", "author")
	fs.addUser(4, "Barbara", "reviewer")
	fs.addUser(5, "Avery", "editor")
	fs.addUser(6, "Donald", "reviewer")
	fs.addPaper(store.Paper{ID: 10, Title: "Order Vectors", Kind: store.KindConference, Status: store.StatusPendingSubmission, AuthorOrder: []int64{3, 1}}, []int64{1, 2, 3}, nil)
	fs.addPaper(store.Paper{ID: 20, Title: "Structured Review", Kind: store.KindJournal, Status: store.StatusUnderReview, ReviewerOrder: []int64{6, 4}}, []int64{1}, []int64{4, 6})
	fs.addPaper(store.Paper{ID: 30, Title: "Revised Proofs", Kind: store.KindJournal, Status: store.StatusRevisionRequested}, []int64{2}, []int64{4})
}

func editorSession(fs *fakeStore) Session {
	user := fs.users[5]
	return Session{UserID: user.ID, UserName: user.DisplayName, Role: user.Role}
}

func TestGetMembersReconcilesSavedOrder(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	svc, _ := newTestService(t, fs)

	payload, err := svc.GetMembers(context.Background(), editorSession(fs), 10, store.ListAuthors)
	if err != nil {
		t.Fatalf("GetMembers() error = %v", err)
	}
	if diff := cmp.Diff([]int64{3, 1, 2}, payload["order"]); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if payload["editable"] != true {
		t.Fatalf("expected pending author list to be editable")
	}
}

func TestSaveMembersNormalisesOrder(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	svc, _ := newTestService(t, fs)

	payload, err := svc.SaveMembers(context.Background(), editorSession(fs), 10, store.ListAuthors, []int64{1, 2, 2, 3}, []int64{3, 99, 1})
	if err != nil {
		t.Fatalf("SaveMembers() error = %v", err)
	}
	if diff := cmp.Diff([]int64{3, 1, 2}, payload["order"]); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{3, 1, 2}, fs.papers[10].AuthorOrder); diff != "" {
		t.Fatalf("persisted order mismatch (-want +got):\n%s", diff)
	}
	if len(fs.events) != 1 || fs.events[0].Actor != "Avery" {
		t.Fatalf("expected one order event by Avery, got %+v", fs.events)
	}
}

func TestSaveMembersRejections(t *testing.T) {
	cases := []struct {
		name     string
		session  func(*fakeStore) Session
		paperID  int64
		kind     store.ListKind
		ids      []int64
		wantCode string
	}{
		{name: "locked author list", session: editorSession, paperID: 20, kind: store.ListAuthors, ids: []int64{1}, wantCode: "PAPER_LOCKED"},
		{name: "empty author list", session: editorSession, paperID: 10, kind: store.ListAuthors, ids: nil, wantCode: "MIN_MEMBERS"},
		{name: "reviewers cannot drop to zero", session: editorSession, paperID: 20, kind: store.ListReviewers, ids: []int64{}, wantCode: "MIN_MEMBERS"},
		{name: "unknown user", session: editorSession, paperID: 10, kind: store.ListAuthors, ids: []int64{1, 77}, wantCode: "UNKNOWN_USER"},
		{name: "reviewer is author", session: editorSession, paperID: 20, kind: store.ListReviewers, ids: []int64{4, 6, 1}, wantCode: "REVIEWER_IS_AUTHOR"},
		{name: "author is reviewer", session: editorSession, paperID: 30, kind: store.ListAuthors, ids: []int64{2, 4}, wantCode: "AUTHOR_IS_REVIEWER"},
		{
			name:     "author of another paper",
			session:  func(fs *fakeStore) Session { return Session{UserID: 4, UserName: "Barbara", Role: "author"} },
			paperID:  10,
			kind:     store.ListAuthors,
			ids:      []int64{1},
			wantCode: "FORBIDDEN",
		},
		{
			name:     "author assigning reviewers",
			session:  func(fs *fakeStore) Session { return Session{UserID: 1, UserName: "Ada", Role: "author"} },
			paperID:  20,
			kind:     store.ListReviewers,
			ids:      []int64{4},
			wantCode: "FORBIDDEN",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeStore()
			seedEditorial(fs)
			svc, _ := newTestService(t, fs)
			_, err := svc.SaveMembers(context.Background(), tc.session(fs), tc.paperID, tc.kind, tc.ids, tc.ids)
			var domainErr *DomainError
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected DomainError, got %v", err)
			}
			if domainErr.Code != tc.wantCode {
				t.Fatalf("code = %s, want %s", domainErr.Code, tc.wantCode)
			}
			if len(fs.events) != 0 {
				t.Fatalf("rejected save must not persist, got %d events", len(fs.events))
			}
		})
	}
}

func TestSaveMembersAuthorEditsOwnPaper(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	svc, _ := newTestService(t, fs)

	ada := Session{UserID: 1, UserName: "Ada", Role: "author"}
	payload, err := svc.SaveMembers(context.Background(), ada, 10, store.ListAuthors, []int64{1, 2, 3}, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("SaveMembers() error = %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, payload["order"]); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMembersKeepsSubmittedReviewer(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	if err := fs.MarkReviewSubmitted(context.Background(), 20, 4); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}
	svc, _ := newTestService(t, fs)

	_, err := svc.SaveMembers(context.Background(), editorSession(fs), 20, store.ListReviewers, []int64{6}, []int64{6})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "REVIEW_SUBMITTED" {
		t.Fatalf("expected REVIEW_SUBMITTED, got %v", err)
	}
	if domainErr.Status != http.StatusConflict {
		t.Fatalf("status = %d, want 409", domainErr.Status)
	}
}

func TestReviewerCandidatesExcludesMembersAndAuthors(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	svc, _ := newTestService(t, fs)
	searcher := svc.search.(*fakeSearch)

	if _, err := svc.ReviewerCandidates(context.Background(), editorSession(fs), 20, "ba", 10); err != nil {
		t.Fatalf("ReviewerCandidates() error = %v", err)
	}
	if len(searcher.excludes) != 1 {
		t.Fatalf("expected one candidates call, got %d", len(searcher.excludes))
	}
	if diff := cmp.Diff([]int64{4, 6, 1}, searcher.excludes[0]); diff != "" {
		t.Fatalf("exclude mismatch (-want +got):\n%s", diff)
	}

	_, err := svc.ReviewerCandidates(context.Background(), Session{UserID: 1, Role: "author"}, 20, "ba", 10)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN for author, got %v", err)
	}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name       string
		role       string
		paperID    int64
		outcome    string
		rationale  string
		wantCode   string
		wantStatus string
	}{
		{name: "accept", role: "editor", paperID: 20, outcome: "ACCEPT", rationale: "Sound.", wantStatus: store.StatusAccepted},
		{name: "minor revision", role: "chair", paperID: 20, outcome: "minor_revision", rationale: "Typos.", wantStatus: store.StatusRevisionRequested},
		{name: "reject", role: "admin", paperID: 20, outcome: "REJECT", rationale: "Out of scope.", wantStatus: store.StatusRejected},
		{name: "missing rationale", role: "editor", paperID: 20, outcome: "ACCEPT", rationale: "  ", wantCode: "VALIDATION_ERROR"},
		{name: "unknown outcome", role: "editor", paperID: 20, outcome: "MAYBE", rationale: "?", wantCode: "VALIDATION_ERROR"},
		{name: "pending paper", role: "editor", paperID: 10, outcome: "ACCEPT", rationale: "Early.", wantCode: "DECISION_NOT_ALLOWED"},
		{name: "reviewer cannot decide", role: "reviewer", paperID: 20, outcome: "ACCEPT", rationale: "Sound.", wantCode: "FORBIDDEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeStore()
			seedEditorial(fs)
			svc, _ := newTestService(t, fs)

			payload, err := svc.Decide(context.Background(), Session{UserID: 5, UserName: "Avery", Role: tc.role}, tc.paperID, tc.outcome, tc.rationale)
			if tc.wantCode != "" {
				var domainErr *DomainError
				if !errors.As(err, &domainErr) || domainErr.Code != tc.wantCode {
					t.Fatalf("expected %s, got %v", tc.wantCode, err)
				}
				if len(fs.decisions) != 0 {
					t.Fatalf("rejected decision must not persist")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if payload["status"] != tc.wantStatus {
				t.Fatalf("status = %v, want %s", payload["status"], tc.wantStatus)
			}
			if fs.papers[tc.paperID].Status != tc.wantStatus {
				t.Fatalf("paper status = %s, want %s", fs.papers[tc.paperID].Status, tc.wantStatus)
			}
		})
	}
}

func TestBootstrapSeedsOnce(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newTestService(t, fs)
	ctx := context.Background()

	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	papers := len(fs.papers)
	if papers == 0 {
		t.Fatal("expected seeded papers")
	}
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("second Bootstrap() error = %v", err)
	}
	if len(fs.papers) != papers {
		t.Fatalf("second bootstrap added papers: %d -> %d", papers, len(fs.papers))
	}

	searcher := svc.search.(*fakeSearch)
	if len(searcher.papers) != papers || len(searcher.people) != len(fs.users) {
		t.Fatalf("expected seeded records to be indexed, got papers=%d people=%d", len(searcher.papers), len(searcher.people))
	}
}

// staleRead makes GetPaper return the paper as it looked before another
// writer moved it to the stored status.
func staleRead(fs *fakeStore, paperID int64, status string) {
	stale := fs.papers[paperID]
	stale.Status = status
	fs.getPaperFn = func(_ context.Context, id int64) (store.Paper, error) {
		if id == paperID {
			return stale, nil
		}
		fs.mu.Lock()
		defer fs.mu.Unlock()
		paper, ok := fs.papers[id]
		if !ok {
			return store.Paper{}, sql.ErrNoRows
		}
		return paper, nil
	}
}

func TestSaveMembersRechecksStatusAtWrite(t *testing.T) {
	cases := []struct {
		name     string
		paperID  int64
		kind     store.ListKind
		readAs   string
		storedAs string
		ids      []int64
		wantCode string
	}{
		{name: "accepted while saving authors", paperID: 30, kind: store.ListAuthors, readAs: store.StatusRevisionRequested, storedAs: store.StatusAccepted, ids: []int64{2}, wantCode: "PAPER_LOCKED"},
		{name: "status moved but list still editable", paperID: 20, kind: store.ListReviewers, readAs: store.StatusUnderReview, storedAs: store.StatusRevisionRequested, ids: []int64{6, 4}, wantCode: "PAPER_CHANGED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeStore()
			seedEditorial(fs)
			paper := fs.papers[tc.paperID]
			paper.Status = tc.storedAs
			fs.papers[tc.paperID] = paper
			staleRead(fs, tc.paperID, tc.readAs)
			svc, _ := newTestService(t, fs)

			_, err := svc.SaveMembers(context.Background(), editorSession(fs), tc.paperID, tc.kind, tc.ids, tc.ids)
			var domainErr *DomainError
			if !errors.As(err, &domainErr) || domainErr.Code != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
			if domainErr.Status != http.StatusConflict {
				t.Fatalf("status = %d, want 409", domainErr.Status)
			}
			if len(fs.events) != 0 {
				t.Fatalf("save on a moved paper must not persist, got %d events", len(fs.events))
			}
		})
	}
}

func TestDecideRechecksStatusAtWrite(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	paper := fs.papers[20]
	paper.Status = store.StatusAccepted
	fs.papers[20] = paper
	staleRead(fs, 20, store.StatusUnderReview)
	svc, _ := newTestService(t, fs)

	_, err := svc.Decide(context.Background(), editorSession(fs), 20, "REJECT", "Second opinion.")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "DECISION_NOT_ALLOWED" {
		t.Fatalf("expected DECISION_NOT_ALLOWED, got %v", err)
	}
	if len(fs.decisions) != 0 {
		t.Fatalf("expected no decision recorded, got %+v", fs.decisions)
	}
	if fs.papers[20].Status != store.StatusAccepted {
		t.Fatalf("status = %s, want %s", fs.papers[20].Status, store.StatusAccepted)
	}
}

func TestReviewersHiddenFromPaperAuthors(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	svc, _ := newTestService(t, fs)
	ctx := context.Background()
	ada := Session{UserID: 1, UserName: "Ada", Role: "author"}

	_, err := svc.GetMembers(ctx, ada, 20, store.ListReviewers)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("GetMembers(reviewers) as author: expected FORBIDDEN, got %v", err)
	}
	if _, err := svc.OrderHistory(ctx, ada, 20, store.ListReviewers, 10); !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("OrderHistory(reviewers) as author: expected FORBIDDEN, got %v", err)
	}
	if _, err := svc.GetMembers(ctx, ada, 20, store.ListAuthors); err != nil {
		t.Fatalf("GetMembers(authors) as author: %v", err)
	}

	payload, err := svc.GetPaper(ctx, ada, 20)
	if err != nil {
		t.Fatalf("GetPaper() as author: %v", err)
	}
	if payload["reviewersHidden"] != true {
		t.Fatalf("expected reviewers hidden from author")
	}
	if reviewers := payload["reviewers"].([]store.Member); len(reviewers) != 0 {
		t.Fatalf("expected no reviewers for author, got %+v", reviewers)
	}

	for _, viewer := range []Session{editorSession(fs), {UserID: 4, UserName: "Barbara", Role: "reviewer"}} {
		payload, err := svc.GetMembers(ctx, viewer, 20, store.ListReviewers)
		if err != nil {
			t.Fatalf("GetMembers(reviewers) as %s: %v", viewer.Role, err)
		}
		if diff := cmp.Diff([]int64{6, 4}, payload["order"]); diff != "" {
			t.Fatalf("order mismatch for %s (-want +got):\n%s", viewer.Role, diff)
		}
	}
}

func TestReviewerCandidatesEmptyQueryListsUsers(t *testing.T) {
	fs := newFakeStore()
	seedEditorial(fs)
	svc, _ := newTestService(t, fs)
	searcher := svc.search.(*fakeSearch)

	payload, err := svc.ReviewerCandidates(context.Background(), editorSession(fs), 20, "  ", 2)
	if err != nil {
		t.Fatalf("ReviewerCandidates() error = %v", err)
	}
	if len(searcher.excludes) != 0 {
		t.Fatalf("empty query should not hit the search backend")
	}
	candidates := payload["candidates"].([]search.Result)
	got := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		got = append(got, c.ID)
	}
	if diff := cmp.Diff([]int64{2, 3}, got); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}
