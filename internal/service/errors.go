package service

import "errors"

var (
	ErrEmptyQuery      = errors.New("search query is empty")
	ErrEmbeddingFailed = errors.New("query embedding failed")
	ErrRetrievalFailed = errors.New("knowledge retrieval failed")
	ErrInvalidArticle  = errors.New("invalid knowledge article")
)

// Stage names the step of a search that failed, for logs.
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrEmbeddingFailed):
		return "embedding"
	case errors.Is(err, ErrRetrievalFailed):
		return "retrieval"
	case errors.Is(err, ErrEmptyQuery):
		return "validation"
	default:
		return "unknown"
	}
}
