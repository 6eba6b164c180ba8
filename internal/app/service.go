package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"folio/api/internal/auth"
	"folio/api/internal/config"
	"folio/api/internal/draft"
	"folio/api/internal/ordering"
	"folio/api/internal/rbac"
	"folio/api/internal/search"
	"folio/api/internal/session"
	"folio/api/internal/store"
	"folio/api/internal/util"
	"go.uber.org/zap"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(context.Context) error
	EnsureUserByName(context.Context, string) (store.User, error)
	InsertUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, int64) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	ListPapers(context.Context, string, string) ([]store.Paper, error)
	GetPaper(context.Context, int64) (store.Paper, error)
	InsertPaper(context.Context, store.Paper) (store.Paper, error)
	ListAuthors(context.Context, int64) ([]store.Member, error)
	ListReviewers(context.Context, int64) ([]store.Member, error)
	IsAuthor(context.Context, int64, int64) (bool, error)
	ReplaceMembers(context.Context, int64, store.ListKind, string, []int64, []int64, string) error
	MarkReviewSubmitted(context.Context, int64, int64) error
	ListOrderEvents(context.Context, int64, store.ListKind, int) ([]store.OrderEvent, error)
	InsertDecision(context.Context, store.Decision, string, string) (store.Decision, error)
	ListDecisions(context.Context, int64) ([]store.Decision, error)
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, store.User, time.Time) error
	ConsumeRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(context.Context) error
}

type draftStore interface {
	Create(context.Context, draft.Draft) error
	Get(context.Context, string) (draft.Draft, error)
	Update(context.Context, string, func(*draft.Draft) error) (draft.Draft, error)
	Delete(context.Context, string) error
}

type searchService interface {
	Search(context.Context, search.Query) search.Response
	Candidates(context.Context, string, []int64, int) []search.Result
	IndexPaper(search.PaperRecord)
	IndexPerson(search.PersonRecord)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	drafts   draftStore
	search   searchService
	logger   *zap.Logger
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, drafts *draft.RedisStore, searchSvc *search.Service, logger *zap.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		drafts:   drafts,
		search:   searchSvc,
		logger:   logger,
	}
}

// Bootstrap seeds a small editorial workspace when the database is empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	papers, err := s.store.ListPapers(ctx, "", "")
	if err != nil {
		return err
	}
	if len(papers) > 0 {
		return nil
	}

	userSeeds := []store.User{
		{DisplayName: "Avery", Email: "avery@folio.dev", Affiliation: "Folio Press", Role: string(rbac.RoleEditor)},
		{DisplayName: "Ada Lovelace", Email: "ada@analytical.org", Affiliation: "Analytical Society", Role: string(rbac.RoleAuthor)},
		{DisplayName: "Grace Hopper", Email: "grace@navy.mil", Affiliation: "US Navy", Role: string(rbac.RoleAuthor)},
		{DisplayName: "Edsger Dijkstra", Email: "ewd@utexas.edu", Affiliation: "UT Austin", Role: string(rbac.RoleReviewer)},
		{DisplayName: "Barbara Liskov", Email: "liskov@mit.edu", Affiliation: "MIT", Role: string(rbac.RoleReviewer)},
		{DisplayName: "Donald Knuth", Email: "knuth@stanford.edu", Affiliation: "Stanford", Role: string(rbac.RoleChair)},
	}
	users := make(map[string]store.User, len(userSeeds))
	for _, seed := range userSeeds {
		user, err := s.store.InsertUser(ctx, seed)
		if err != nil {
			return err
		}
		users[user.DisplayName] = user
		s.indexPerson(user)
	}
	owner := users["Avery"].DisplayName

	paperSeeds := []struct {
		paper     store.Paper
		authors   []string
		reviewers []string
		submitted []string
	}{
		{
			paper: store.Paper{
				Title:     "Order Vectors for Collaborative Lists",
				Abstract:  "Persisting user-defined order for author lists alongside an unordered membership relation.",
				Kind:      store.KindConference,
				Status:    store.StatusPendingSubmission,
				TrackName: "Systems",
			},
			authors: []string{"Grace Hopper", "Ada Lovelace"},
		},
		{
			paper: store.Paper{
				Title:     "Notes on Structured Review",
				Abstract:  "A study of reviewer assignment and decision workflows in small journals.",
				Kind:      store.KindJournal,
				Status:    store.StatusUnderReview,
				TrackName: "Editorial Practice",
			},
			authors:   []string{"Ada Lovelace"},
			reviewers: []string{"Barbara Liskov", "Edsger Dijkstra"},
			submitted: []string{"Edsger Dijkstra"},
		},
		{
			paper: store.Paper{
				Title:     "Compiling for Humans",
				Abstract:  "Readable intermediate forms and their effect on review latency.",
				Kind:      store.KindJournal,
				Status:    store.StatusSubmitted,
				TrackName: "Languages",
			},
			authors: []string{"Grace Hopper"},
		},
	}

	for _, seed := range paperSeeds {
		seed.paper.UpdatedBy = owner
		paper, err := s.store.InsertPaper(ctx, seed.paper)
		if err != nil {
			return err
		}
		if err := s.store.ReplaceMembers(ctx, paper.ID, store.ListAuthors, paper.Status, seedIDs(users, seed.authors), seedIDs(users, seed.authors), owner); err != nil {
			return err
		}
		if len(seed.reviewers) > 0 {
			if err := s.store.ReplaceMembers(ctx, paper.ID, store.ListReviewers, paper.Status, seedIDs(users, seed.reviewers), seedIDs(users, seed.reviewers), owner); err != nil {
				return err
			}
		}
		for _, name := range seed.submitted {
			if err := s.store.MarkReviewSubmitted(ctx, paper.ID, users[name].ID); err != nil {
				return err
			}
		}
		s.indexPaper(paper)
	}
	s.logger.Info("seeded editorial workspace", zap.Int("users", len(users)), zap.Int("papers", len(paperSeeds)))
	return nil
}

func seedIDs(users map[string]store.User, names []string) []int64 {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		ids = append(ids, users[name].ID)
	}
	return ids
}

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}
	s.indexPerson(user)

	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	user, err := s.sessions.ConsumeRefreshSession(ctx, auth.HashToken(refreshToken))
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")
	role := string(rbac.Normalize(user.Role))

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, role, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, auth.ErrInvalidToken
		}
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      string(rbac.Normalize(user.Role)),
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			s.logger.Warn("revoke access token", zap.String("jti", session.JTI), zap.Error(err))
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			s.logger.Warn("revoke refresh session", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) ListPapers(ctx context.Context, session Session, kind, status string) ([]map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionRead) {
		return nil, errForbidden()
	}
	kind = strings.TrimSpace(kind)
	if kind != "" && kind != store.KindConference && kind != store.KindJournal {
		return nil, errValidation("kind must be conference or journal")
	}
	papers, err := s.store.ListPapers(ctx, kind, strings.TrimSpace(status))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(papers))
	for _, paper := range papers {
		items = append(items, paperPayload(paper))
	}
	return items, nil
}

func (s *Service) GetPaper(ctx context.Context, session Session, paperID int64) (map[string]any, error) {
	paper, err := s.readablePaper(ctx, session, paperID)
	if err != nil {
		return nil, err
	}
	authors, err := s.reconciledMembers(ctx, paper, store.ListAuthors)
	if err != nil {
		return nil, err
	}
	visible, err := s.reviewersVisible(ctx, session, paper.ID)
	if err != nil {
		return nil, err
	}
	reviewers := []store.Member{}
	if visible {
		reviewers, err = s.reconciledMembers(ctx, paper, store.ListReviewers)
		if err != nil {
			return nil, err
		}
	}
	payload := paperPayload(paper)
	payload["authors"] = authors
	payload["reviewers"] = reviewers
	payload["reviewersHidden"] = !visible
	return payload, nil
}

// readablePaper loads paperID for a session allowed to read papers.
func (s *Service) readablePaper(ctx context.Context, session Session, paperID int64) (store.Paper, error) {
	if !s.Can(session.Role, rbac.ActionRead) {
		return store.Paper{}, errForbidden()
	}
	return s.store.GetPaper(ctx, paperID)
}

// reviewersVisible reports whether session may see who reviews paperID.
// Authors of the paper without an editorial role may not.
func (s *Service) reviewersVisible(ctx context.Context, session Session, paperID int64) (bool, error) {
	if rbac.Elevated(rbac.Normalize(session.Role)) {
		return true, nil
	}
	isAuthor, err := s.store.IsAuthor(ctx, paperID, session.UserID)
	if err != nil {
		return false, err
	}
	return !isAuthor, nil
}

// readableList is readablePaper plus the reviewer visibility rule for kind.
func (s *Service) readableList(ctx context.Context, session Session, paperID int64, kind store.ListKind) (store.Paper, error) {
	paper, err := s.readablePaper(ctx, session, paperID)
	if err != nil {
		return store.Paper{}, err
	}
	if kind != store.ListReviewers {
		return paper, nil
	}
	visible, err := s.reviewersVisible(ctx, session, paper.ID)
	if err != nil {
		return store.Paper{}, err
	}
	if !visible {
		return store.Paper{}, errForbidden()
	}
	return paper, nil
}

func paperPayload(paper store.Paper) map[string]any {
	return map[string]any{
		"id":                paper.ID,
		"title":             paper.Title,
		"abstract":          paper.Abstract,
		"kind":              paper.Kind,
		"status":            paper.Status,
		"trackName":         paper.TrackName,
		"authorsEditable":   listEditable(store.ListAuthors, paper.Status),
		"reviewersEditable": listEditable(store.ListReviewers, paper.Status),
		"updatedBy":         paper.UpdatedBy,
		"updatedAt":         paper.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) loadMembers(ctx context.Context, paperID int64, kind store.ListKind) ([]store.Member, error) {
	switch kind {
	case store.ListAuthors:
		return s.store.ListAuthors(ctx, paperID)
	case store.ListReviewers:
		return s.store.ListReviewers(ctx, paperID)
	default:
		return nil, errValidation("list must be authors or reviewers")
	}
}

// reconciledMembers fetches the members of kind and arranges them by the
// paper's persisted order vector.
func (s *Service) reconciledMembers(ctx context.Context, paper store.Paper, kind store.ListKind) ([]store.Member, error) {
	members, err := s.loadMembers(ctx, paper.ID, kind)
	if err != nil {
		return nil, err
	}
	order := paper.Order(kind)
	if stale := ordering.Stale(order, members, store.MemberID); len(stale) > 0 {
		s.logger.Debug("order vector references missing members",
			zap.Int64("paper_id", paper.ID),
			zap.String("list", string(kind)),
			zap.Int64s("stale_ids", stale),
		)
	}
	return ordering.Reconcile(order, members, store.MemberID), nil
}

// GetMembers is the fetch step: the list of kind in the user's saved order.
func (s *Service) GetMembers(ctx context.Context, session Session, paperID int64, kind store.ListKind) (map[string]any, error) {
	paper, err := s.readableList(ctx, session, paperID, kind)
	if err != nil {
		return nil, err
	}
	members, err := s.reconciledMembers(ctx, paper, kind)
	if err != nil {
		return nil, err
	}
	return membersPayload(paper, kind, members), nil
}

func membersPayload(paper store.Paper, kind store.ListKind, members []store.Member) map[string]any {
	return map[string]any{
		"paperId":  paper.ID,
		"list":     kind,
		"status":   paper.Status,
		"editable": listEditable(kind, paper.Status),
		"order":    ordering.IDs(members, store.MemberID),
		"members":  members,
	}
}

// authorizeList checks that the session may edit kind on paper. Authors may
// edit the author list of their own papers.
func (s *Service) authorizeList(ctx context.Context, session Session, paper store.Paper, kind store.ListKind) error {
	switch kind {
	case store.ListAuthors:
		if s.Can(session.Role, rbac.ActionEditAuthors) {
			return nil
		}
		owns, err := s.store.IsAuthor(ctx, paper.ID, session.UserID)
		if err != nil {
			return err
		}
		if owns {
			return nil
		}
	case store.ListReviewers:
		if s.Can(session.Role, rbac.ActionAssignReviewers) {
			return nil
		}
	}
	return errForbidden()
}

// editablePaper loads the paper and runs the permission and lock checks shared
// by every list mutation.
func (s *Service) editablePaper(ctx context.Context, session Session, paperID int64, kind store.ListKind) (store.Paper, error) {
	paper, err := s.store.GetPaper(ctx, paperID)
	if err != nil {
		return store.Paper{}, err
	}
	if err := s.authorizeList(ctx, session, paper, kind); err != nil {
		return store.Paper{}, err
	}
	if !listEditable(kind, paper.Status) {
		return store.Paper{}, errPaperLocked(paper.Status, string(kind))
	}
	return paper, nil
}

// SaveMembers is the save step. entityIDs is the new membership; order is
// normalised against it so stale ids are dropped and missing ids appended.
func (s *Service) SaveMembers(ctx context.Context, session Session, paperID int64, kind store.ListKind, entityIDs, order []int64) (map[string]any, error) {
	paper, err := s.editablePaper(ctx, session, paperID, kind)
	if err != nil {
		return nil, err
	}

	ids := dedupeIDs(entityIDs)
	normalized := ordering.Reconcile(order, ids, ordering.Identity)

	current, err := s.loadMembers(ctx, paper.ID, kind)
	if err != nil {
		return nil, err
	}
	if min := minMembers(kind, len(current)); len(normalized) < min {
		return nil, errMinMembers(string(kind), min)
	}
	if kind == store.ListReviewers {
		if blocked := submittedRemovals(current, normalized); len(blocked) > 0 {
			return nil, errReviewSubmitted(blocked)
		}
	}

	known := make(map[int64]struct{}, len(current))
	for _, member := range current {
		known[member.UserID] = struct{}{}
	}
	for _, id := range normalized {
		if _, ok := known[id]; ok {
			continue
		}
		if err := s.checkNewMember(ctx, paper.ID, kind, id); err != nil {
			return nil, err
		}
	}

	if err := s.store.ReplaceMembers(ctx, paper.ID, kind, paper.Status, normalized, normalized, session.UserName); err != nil {
		var changed *store.StatusChangedError
		if errors.As(err, &changed) {
			if !listEditable(kind, changed.Status) {
				return nil, errPaperLocked(changed.Status, string(kind))
			}
			return nil, errPaperChanged(changed.Status)
		}
		return nil, err
	}
	s.logger.Info("saved member order",
		zap.Int64("paper_id", paper.ID),
		zap.String("list", string(kind)),
		zap.Int64s("order", normalized),
		zap.String("actor", session.UserName),
	)
	return s.GetMembers(ctx, session, paper.ID, kind)
}

// checkNewMember verifies userID exists and sits on at most one side of the
// paper: reviewers may not be authors and authors may not be reviewers.
func (s *Service) checkNewMember(ctx context.Context, paperID int64, kind store.ListKind, userID int64) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errUnknownUser(userID)
		}
		return err
	}
	switch kind {
	case store.ListReviewers:
		isAuthor, err := s.store.IsAuthor(ctx, paperID, userID)
		if err != nil {
			return err
		}
		if isAuthor {
			return errConflictOfInterest("REVIEWER_IS_AUTHOR", "An author cannot review their own paper", userID)
		}
	case store.ListAuthors:
		reviewers, err := s.store.ListReviewers(ctx, paperID)
		if err != nil {
			return err
		}
		for _, reviewer := range reviewers {
			if reviewer.UserID == userID {
				return errConflictOfInterest("AUTHOR_IS_REVIEWER", "A reviewer of the paper cannot be added as an author", userID)
			}
		}
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Service) StartDraft(ctx context.Context, session Session, paperID int64, kind store.ListKind) (map[string]any, error) {
	paper, err := s.editablePaper(ctx, session, paperID, kind)
	if err != nil {
		return nil, err
	}
	members, err := s.reconciledMembers(ctx, paper, kind)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := draft.Draft{
		ID:        util.NewID("drf"),
		PaperID:   paper.ID,
		List:      kind,
		OwnerID:   session.UserID,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	return draftPayload(d), nil
}

func (s *Service) GetDraft(ctx context.Context, session Session, draftID string) (map[string]any, error) {
	d, err := s.ownedDraft(ctx, session, draftID)
	if err != nil {
		return nil, err
	}
	return draftPayload(d), nil
}

func (s *Service) ownedDraft(ctx context.Context, session Session, draftID string) (draft.Draft, error) {
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return draft.Draft{}, err
	}
	if d.OwnerID != session.UserID {
		return draft.Draft{}, draft.ErrNotFound
	}
	return d, nil
}

// editDraft applies fn to the caller's draft under the store's optimistic lock.
func (s *Service) editDraft(ctx context.Context, session Session, draftID string, fn func(*draft.Draft) error) (map[string]any, error) {
	d, err := s.drafts.Update(ctx, draftID, func(d *draft.Draft) error {
		if d.OwnerID != session.UserID {
			return draft.ErrNotFound
		}
		return fn(d)
	})
	if err != nil {
		return nil, err
	}
	return draftPayload(d), nil
}

func (s *Service) DraftAdd(ctx context.Context, session Session, draftID string, userID int64) (map[string]any, error) {
	current, err := s.ownedDraft(ctx, session, draftID)
	if err != nil {
		return nil, err
	}
	if err := s.checkNewMember(ctx, current.PaperID, current.List, userID); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	member := store.MemberFromUser(user)
	if current.List == store.ListReviewers {
		member.ReviewStatus = store.ReviewAssigned
	}
	return s.editDraft(ctx, session, draftID, func(d *draft.Draft) error {
		return d.Edit(func(list *ordering.List[store.Member]) error {
			return list.Add(member)
		})
	})
}

func (s *Service) DraftRemove(ctx context.Context, session Session, draftID string, index int) (map[string]any, error) {
	current, err := s.ownedDraft(ctx, session, draftID)
	if err != nil {
		return nil, err
	}
	persisted, err := s.loadMembers(ctx, current.PaperID, current.List)
	if err != nil {
		return nil, err
	}
	min := minMembers(current.List, len(persisted))

	return s.editDraft(ctx, session, draftID, func(d *draft.Draft) error {
		return d.Edit(func(list *ordering.List[store.Member]) error {
			if index >= 0 && index < list.Len() {
				if list.Len()-1 < min {
					return errMinMembers(string(d.List), min)
				}
				if member := list.Items()[index]; member.ReviewStatus == store.ReviewSubmitted {
					return errReviewSubmitted([]int64{member.UserID})
				}
			}
			_, err := list.RemoveAt(index)
			return err
		})
	})
}

func (s *Service) DraftMove(ctx context.Context, session Session, draftID string, from, to int) (map[string]any, error) {
	return s.editDraft(ctx, session, draftID, func(d *draft.Draft) error {
		return d.Edit(func(list *ordering.List[store.Member]) error {
			return list.Move(from, to)
		})
	})
}

// CommitDraft saves the draft's order vector through the save step and
// discards the draft.
func (s *Service) CommitDraft(ctx context.Context, session Session, draftID string) (map[string]any, error) {
	d, err := s.ownedDraft(ctx, session, draftID)
	if err != nil {
		return nil, err
	}
	order := d.OrderVector()
	payload, err := s.SaveMembers(ctx, session, d.PaperID, d.List, order, order)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil && !errors.Is(err, draft.ErrNotFound) {
		s.logger.Warn("delete committed draft", zap.String("draft_id", draftID), zap.Error(err))
	}
	return payload, nil
}

func (s *Service) DiscardDraft(ctx context.Context, session Session, draftID string) error {
	if _, err := s.ownedDraft(ctx, session, draftID); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draftID)
}

func draftPayload(d draft.Draft) map[string]any {
	members := d.Members
	if members == nil {
		members = []store.Member{}
	}
	return map[string]any{
		"id":        d.ID,
		"paperId":   d.PaperID,
		"list":      d.List,
		"version":   d.Version,
		"order":     d.OrderVector(),
		"members":   members,
		"createdAt": d.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ReviewerCandidates searches people who could be assigned to paperID,
// excluding current reviewers and the paper's authors.
func (s *Service) ReviewerCandidates(ctx context.Context, session Session, paperID int64, query string, limit int) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionAssignReviewers) {
		return nil, errForbidden()
	}
	paper, err := s.store.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	authors, err := s.store.ListAuthors(ctx, paper.ID)
	if err != nil {
		return nil, err
	}
	reviewers, err := s.store.ListReviewers(ctx, paper.ID)
	if err != nil {
		return nil, err
	}
	exclude := append(ordering.IDs(reviewers, store.MemberID), ordering.IDs(authors, store.MemberID)...)
	query = strings.TrimSpace(query)
	var candidates []search.Result
	if query == "" {
		candidates, err = s.browseCandidates(ctx, exclude, limit)
		if err != nil {
			return nil, err
		}
	} else {
		candidates = s.search.Candidates(ctx, query, exclude, limit)
	}
	return map[string]any{
		"paperId":    paper.ID,
		"query":      query,
		"candidates": candidates,
	}, nil
}

// browseCandidates lists users outside exclude straight from the store, so an
// empty query gives the same answer whichever search backend is up.
func (s *Service) browseCandidates(ctx context.Context, exclude []int64, limit int) ([]search.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	results := make([]search.Result, 0, limit)
	for _, user := range users {
		if len(results) == limit {
			break
		}
		if _, ok := skip[user.ID]; ok {
			continue
		}
		snippet := user.Affiliation
		if snippet == "" {
			snippet = user.Email
		}
		results = append(results, search.Result{Type: search.ResultPerson, ID: user.ID, Title: user.DisplayName, Snippet: snippet})
	}
	return results, nil
}

func (s *Service) Decide(ctx context.Context, session Session, paperID int64, outcome, rationale string) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionDecide) {
		return nil, errForbidden()
	}
	status, ok := decisionStatus(outcome)
	if !ok {
		return nil, errValidation("outcome must be ACCEPT, MINOR_REVISION, MAJOR_REVISION or REJECT")
	}
	rationale = strings.TrimSpace(rationale)
	if rationale == "" {
		return nil, errValidation("rationale is required")
	}
	paper, err := s.store.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if !decisionAllowed(paper.Status) {
		return nil, errDecisionNotAllowed(paper.Status)
	}

	decision, err := s.store.InsertDecision(ctx, store.Decision{
		PaperID:   paper.ID,
		Outcome:   strings.ToUpper(strings.TrimSpace(outcome)),
		Rationale: rationale,
		DecidedBy: session.UserName,
	}, paper.Status, status)
	if err != nil {
		var changed *store.StatusChangedError
		if errors.As(err, &changed) {
			return nil, errDecisionNotAllowed(changed.Status)
		}
		return nil, err
	}
	paper.Status = status
	paper.UpdatedBy = session.UserName
	s.indexPaper(paper)
	s.logger.Info("recorded decision",
		zap.Int64("paper_id", paper.ID),
		zap.String("outcome", decision.Outcome),
		zap.String("status", status),
	)
	return map[string]any{
		"decision": decisionPayload(decision),
		"status":   status,
	}, nil
}

func (s *Service) ListDecisions(ctx context.Context, session Session, paperID int64) (map[string]any, error) {
	if _, err := s.readablePaper(ctx, session, paperID); err != nil {
		return nil, err
	}
	decisions, err := s.store.ListDecisions(ctx, paperID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(decisions))
	for _, decision := range decisions {
		items = append(items, decisionPayload(decision))
	}
	return map[string]any{"paperId": paperID, "decisions": items}, nil
}

func decisionPayload(decision store.Decision) map[string]any {
	return map[string]any{
		"id":        decision.ID,
		"paperId":   decision.PaperID,
		"outcome":   decision.Outcome,
		"rationale": decision.Rationale,
		"decidedBy": decision.DecidedBy,
		"decidedAt": decision.DecidedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) OrderHistory(ctx context.Context, session Session, paperID int64, kind store.ListKind, limit int) (map[string]any, error) {
	if _, err := s.readableList(ctx, session, paperID, kind); err != nil {
		return nil, err
	}
	events, err := s.store.ListOrderEvents(ctx, paperID, kind, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		order := event.Order
		if order == nil {
			order = []int64{}
		}
		items = append(items, map[string]any{
			"id":        event.ID,
			"list":      event.ListKind,
			"order":     order,
			"actor":     event.Actor,
			"createdAt": event.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{"paperId": paperID, "list": kind, "events": items}, nil
}

func (s *Service) Search(ctx context.Context, query, filterType string, limit, offset int) (search.Response, error) {
	resultType := search.ResultType(strings.TrimSpace(filterType))
	if resultType != "" && resultType != search.ResultPaper && resultType != search.ResultPerson {
		return search.Response{}, errValidation("type must be paper or person")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(ctx, search.Query{
		Text:       strings.TrimSpace(query),
		FilterType: resultType,
		Limit:      limit,
		Offset:     offset,
	}), nil
}

func (s *Service) indexPaper(paper store.Paper) {
	if s.search == nil {
		return
	}
	s.search.IndexPaper(search.PaperRecord{
		ID:       paper.ID,
		Title:    paper.Title,
		Abstract: paper.Abstract,
		Kind:     paper.Kind,
		Status:   paper.Status,
		Track:    paper.TrackName,
	})
}

func (s *Service) indexPerson(user store.User) {
	if s.search == nil {
		return
	}
	s.search.IndexPerson(search.PersonRecord{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Affiliation: user.Affiliation,
	})
}
