package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"omnitak.com/support-hub/internal/store"
	"omnitak.com/support-hub/internal/utils"
)

const (
	DefaultSearchLimit = 5
	excerptLength      = 200
	minTermLength      = 2 // Terms of this length or shorter are dropped
	maxSearchTerms     = 5

	titleMatchScore = 2.0
	bodyMatchScore  = 1.0
)

// ArticleFinder is the article search backend: any article whose title or
// body contains one of the terms.
type ArticleFinder interface {
	FindArticles(ctx context.Context, terms []string) ([]store.Article, error)
}

type ArticleSummary struct {
	ArticleID    int64     `json:"article_id"`
	Title        string    `json:"title"`
	Excerpt      string    `json:"excerpt"`
	CategoryName string    `json:"category_name"`
	Score        float64   `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
}

type KnowledgeSearcher struct {
	finder ArticleFinder
}

func NewKnowledgeSearcher(finder ArticleFinder) *KnowledgeSearcher {
	return &KnowledgeSearcher{finder: finder}
}

// Search returns up to limit articles for the query, title matches first and
// newest first within a score.
func (s *KnowledgeSearcher) Search(ctx context.Context, query string, limit int) ([]ArticleSummary, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	terms := utils.SearchTerms(query, minTermLength, maxSearchTerms)
	if len(terms) == 0 {
		return []ArticleSummary{}, nil
	}

	articles, err := s.finder.FindArticles(ctx, terms)
	if err != nil {
		return nil, fmt.Errorf("finding articles for %q: %w", query, err)
	}

	summaries := make([]ArticleSummary, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, ArticleSummary{
			ArticleID:    a.ID,
			Title:        a.Title,
			Excerpt:      utils.Excerpt(utils.PlainText(a.Body), excerptLength),
			CategoryName: a.CategoryName,
			Score:        scoreArticle(a, terms),
			CreatedAt:    a.CreatedAt,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Score != summaries[j].Score {
			return summaries[i].Score > summaries[j].Score
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func scoreArticle(a store.Article, terms []string) float64 {
	title := strings.ToLower(a.Title)
	for _, t := range terms {
		if strings.Contains(title, t) {
			return titleMatchScore
		}
	}
	return bodyMatchScore
}
