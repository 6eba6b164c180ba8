package search

import (
	"context"

	"go.uber.org/zap"
)

// Service tries Meilisearch first and falls back to Postgres full-text search.
type Service struct {
	primary  Searcher
	index    Indexer
	fallback Searcher
	loader   recordLoader
	logger   *zap.Logger
}

type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]PaperRecord, []PersonRecord, error)
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	s := &Service{logger: logger}
	if meili != nil {
		s.primary = meili
		s.index = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts
	}
	return s
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: excludePeople(nonNil(results), q.Exclude), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch failed, falling back to postgres", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("postgres search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: excludePeople(nonNil(results), q.Exclude), Total: total, Query: q.Text}
}

// Candidates returns people matching text who are not in exclude.
func (s *Service) Candidates(ctx context.Context, text string, exclude []int64, limit int) []Result {
	if limit <= 0 {
		limit = 20
	}
	resp := s.Search(ctx, Query{Text: text, FilterType: ResultPerson, Exclude: exclude, Limit: limit})
	if len(resp.Results) > limit {
		return resp.Results[:limit]
	}
	return resp.Results
}

// IndexPaper indexes a paper (fire-and-forget to Meilisearch).
func (s *Service) IndexPaper(p PaperRecord) {
	if s.index == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.index.IndexPapers([]PaperRecord{p}); err != nil {
			s.logger.Warn("index paper failed", zap.Int64("paper_id", p.ID), zap.Error(err))
		}
	}()
}

// IndexPerson indexes a user (fire-and-forget to Meilisearch).
func (s *Service) IndexPerson(p PersonRecord) {
	if s.index == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := s.index.IndexPeople([]PersonRecord{p}); err != nil {
			s.logger.Warn("index person failed", zap.Int64("user_id", p.ID), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every paper and user from Postgres into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.index == nil || !s.primary.Healthy() || s.loader == nil {
		return
	}
	papers, people, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if len(papers) > 0 {
		if err := s.index.IndexPapers(papers); err != nil {
			s.logger.Warn("reindex papers failed", zap.Error(err))
		}
	}
	if len(people) > 0 {
		if err := s.index.IndexPeople(people); err != nil {
			s.logger.Warn("reindex people failed", zap.Error(err))
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

func excludePeople(results []Result, exclude []int64) []Result {
	if len(exclude) == 0 {
		return results
	}
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if result.Type == ResultPerson {
			if _, ok := skip[result.ID]; ok {
				continue
			}
		}
		filtered = append(filtered, result)
	}
	return filtered
}
