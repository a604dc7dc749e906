package model

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	Base
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`
	SortOrder   int    `json:"sort_order" db:"sort_order"`
}

type Article struct {
	Base
	Title       string     `json:"title" db:"title"`
	Slug        string     `json:"slug" db:"slug"`
	Summary     string     `json:"summary" db:"summary"`
	Body        string     `json:"body" db:"body"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty" db:"category_id"`
	ImageURL    string     `json:"image_url" db:"image_url"`
	Published   bool       `json:"published" db:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
}
