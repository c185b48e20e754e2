package models

import (
	"time"
)

type Category string

const (
	CategorySoil           Category = "soil"
	CategoryPlanting       Category = "planting"
	CategoryWater          Category = "water"
	CategoryPestDisease    Category = "pest_disease"
	CategoryHarvestStorage Category = "harvest_storage"
	CategoryMarket         Category = "market"
	CategorySeedProducts   Category = "seed_products"
)

// Categories lists every topic tag in display order.
var Categories = []Category{
	CategorySoil,
	CategoryPlanting,
	CategoryWater,
	CategoryPestDisease,
	CategoryHarvestStorage,
	CategoryMarket,
	CategorySeedProducts,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type KnowledgeArticle struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Category  Category  `db:"category"`
	Source    *string   `db:"source"`
	Embedding []float32 `db:"embedding"` // nil until embedded
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ScoredArticle is a search hit with its cosine similarity to the query.
type ScoredArticle struct {
	ID         int64
	Title      string
	Content    string
	Category   Category
	Source     *string
	Similarity float64
}
