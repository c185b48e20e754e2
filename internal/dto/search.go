package dto

// NoMatchMessage is shown when no article clears the relevance threshold.
const NoMatchMessage = "We couldn't find a confident answer in our knowledge base. Please contact one of our agronomy advisors and a human will help you."

type SearchResult struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Source     *string `json:"source"`
	Similarity float64 `json:"similarity"`
}

type SearchResponse struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	HasResults bool           `json:"hasResults"`
	Message    *string        `json:"message"`
}

// NewSearchResponse wraps results; message is set only when results is empty.
func NewSearchResponse(query string, results []SearchResult) SearchResponse {
	if results == nil {
		results = []SearchResult{}
	}

	resp := SearchResponse{
		Query:      query,
		Results:    results,
		HasResults: len(results) > 0,
	}
	if !resp.HasResults {
		msg := NoMatchMessage
		resp.Message = &msg
	}
	return resp
}

type ErrorResponse struct {
	Error string `json:"error"`
}
