package store

import "time"

const (
	StatusPendingSubmission = "Pending Submission"
	StatusSubmitted         = "Submitted"
	StatusUnderReview       = "Under Review"
	StatusRevisionRequested = "Revision Requested"
	StatusAccepted          = "Accepted"
	StatusRejected          = "Rejected"
)

const (
	KindConference = "conference"
	KindJournal    = "journal"
)

// ListKind names one of the two ordered member lists a paper carries.
type ListKind string

const (
	ListAuthors   ListKind = "authors"
	ListReviewers ListKind = "reviewers"
)

func (k ListKind) Valid() bool {
	return k == ListAuthors || k == ListReviewers
}

const (
	ReviewAssigned  = "ASSIGNED"
	ReviewSubmitted = "SUBMITTED"
)

type User struct {
	ID          int64
	DisplayName string
	Email       string
	Affiliation string
	Role        string
	CreatedAt   time.Time
}

type Paper struct {
	ID            int64
	Title         string
	Abstract      string
	Kind          string
	Status        string
	TrackName     string
	AuthorOrder   []int64
	ReviewerOrder []int64
	UpdatedBy     string
	UpdatedAt     time.Time
}

// Order returns the persisted order vector for kind.
func (p Paper) Order(kind ListKind) []int64 {
	if kind == ListReviewers {
		return p.ReviewerOrder
	}
	return p.AuthorOrder
}

// Member is one entry of an author or reviewer list. Identity is UserID.
type Member struct {
	UserID       int64  `json:"userId"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	Affiliation  string `json:"affiliation,omitempty"`
	ReviewStatus string `json:"reviewStatus,omitempty"`
}

// MemberID is the identity function used with the ordering package.
func MemberID(m Member) int64 { return m.UserID }

func MemberFromUser(u User) Member {
	return Member{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Affiliation: u.Affiliation,
	}
}

type Decision struct {
	ID        int64
	PaperID   int64
	Outcome   string
	Rationale string
	DecidedBy string
	DecidedAt time.Time
}

// OrderEvent records one saved order vector for audit.
type OrderEvent struct {
	ID        int64
	PaperID   int64
	ListKind  ListKind
	Order     []int64
	Actor     string
	CreatedAt time.Time
}
