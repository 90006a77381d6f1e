// Package blog manages blog posts whose content lives in object storage.
package blog

import (
	"context"
	"errors"
	"time"

	"educbt.org/internal/paging"
)

var (
	ErrNotFound     = errors.New("blog: not found")
	ErrConflict     = errors.New("blog: already exists")
	ErrInvalidInput = errors.New("blog: invalid input")
)

type Author struct {
	ID    int64   `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Image *string `db:"image" json:"image"`
}

// Blog is a post. JSONURL points at the draft content object.
type Blog struct {
	ID           int64      `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Description  *string    `db:"description" json:"description"`
	Slug         string     `db:"slug" json:"slug"`
	JSONURL      string     `db:"json_url" json:"jsonUrl"`
	ThumbnailURL *string    `db:"thumbnail_url" json:"thumbnailUrl"`
	WordCount    int        `db:"word_count" json:"wordCount"`
	IsPublished  bool       `db:"is_published" json:"isPublished"`
	PublishedAt  *time.Time `db:"published_at" json:"publishedAt"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	Authors      []Author   `db:"-" json:"authors"`
}

// Input creates a post. Content is the editor document as JSON text.
type Input struct {
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Content      string  `json:"content"`
	WordCount    int     `json:"wordCount"`
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// Patch updates a post; nil fields are unchanged.
type Patch struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Content      *string `json:"content"`
	WordCount    *int    `json:"wordCount"`
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// Filter narrows listings. Search matches the title or an author name.
type Filter struct {
	Page      paging.Params
	Search    string
	Published *bool
}

// Store persists blog rows and authorship.
type Store interface {
	Create(ctx context.Context, b Blog) (Blog, error)
	Get(ctx context.Context, id int64) (Blog, error)
	GetBySlug(ctx context.Context, slug string) (Blog, error)
	List(ctx context.Context, f Filter) ([]Blog, int, error)
	Update(ctx context.Context, id int64, p Patch, at time.Time) (Blog, error)
	// SetPublished toggles the flag; published_at is only set the first
	// time a post is published.
	SetPublished(ctx context.Context, id int64, published bool, at time.Time) (Blog, error)
	Delete(ctx context.Context, id int64) error

	AddAuthor(ctx context.Context, blogID, userID int64) error
	Authors(ctx context.Context, blogIDs []int64) (map[int64][]Author, error)

	WithinTx(ctx context.Context, fn func(Store) error) error
}
