package dto

type CreateArticleRequest struct {
	Title    string  `json:"title" yaml:"title"`
	Content  string  `json:"content" yaml:"content"`
	Category string  `json:"category" yaml:"category"`
	Source   *string `json:"source,omitempty" yaml:"source"`
}

type ArticleResponse struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	Category     string  `json:"category"`
	Source       *string `json:"source"`
	HasEmbedding bool    `json:"hasEmbedding"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

type ReembedResponse struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}
