package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPaper  ResultType = "paper"
	ResultPerson ResultType = "person"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Kind    string     `json:"kind,omitempty"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request. Exclude drops people by user id.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Exclude    []int64
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPapers(papers []PaperRecord) error
	IndexPeople(people []PersonRecord) error
}

// PaperRecord is the data we index for a paper.
type PaperRecord struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Track    string `json:"track"`
}

// PersonRecord is the data we index for a prospective author or reviewer.
type PersonRecord struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Affiliation string `json:"affiliation"`
}
