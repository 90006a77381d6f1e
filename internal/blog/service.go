package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"educbt.org/internal/apperr"
	"educbt.org/internal/blob"
	"educbt.org/internal/obs"
	"educbt.org/internal/paging"
)

const contentType = "application/json"

// Service coordinates blog rows with their content objects. Object writes
// cannot join a database transaction, so Create deletes the uploaded object
// when the row insert fails.
type Service struct {
	store  Store
	bucket blob.Bucket
	env    string
	now    func() time.Time
}

type Option func(*Service)

func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService builds the service. production selects the "prod" object
// folder instead of "dev".
func NewService(store Store, bucket blob.Bucket, production bool, opts ...Option) *Service {
	s := &Service{store: store, bucket: bucket, env: "dev", now: time.Now}
	if production {
		s.env = "prod"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContentKey is the object key of a post's draft content.
func (s *Service) ContentKey(slug string) string {
	return fmt.Sprintf("blog/%s/%s.json", s.env, slug)
}

// PublishedKey is the object key of a post's published content.
func (s *Service) PublishedKey(slug string) string {
	return fmt.Sprintf("blog/%s/%s.published.json", s.env, slug)
}

func notFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Blog not found")
	}
	return err
}

// List returns published posts, newest first.
func (s *Service) List(ctx context.Context, p paging.Params, search string) (paging.Page[Blog], error) {
	return s.list(ctx, Filter{Page: p, Search: strings.TrimSpace(search), Published: lo.ToPtr(true)})
}

// AdminList returns posts regardless of state unless published is set.
func (s *Service) AdminList(ctx context.Context, f Filter) (paging.Page[Blog], error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f Filter) (paging.Page[Blog], error) {
	blogs, total, err := s.store.List(ctx, f)
	if err != nil {
		return paging.Page[Blog]{}, err
	}
	if err := s.withAuthors(ctx, blogs); err != nil {
		return paging.Page[Blog]{}, err
	}
	return paging.New(blogs, total, f.Page), nil
}

func (s *Service) withAuthors(ctx context.Context, blogs []Blog) error {
	if len(blogs) == 0 {
		return nil
	}
	authors, err := s.store.Authors(ctx, lo.Map(blogs, func(b Blog, _ int) int64 { return b.ID }))
	if err != nil {
		return err
	}
	for i := range blogs {
		blogs[i].Authors = authors[blogs[i].ID]
		if blogs[i].Authors == nil {
			blogs[i].Authors = []Author{}
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Blog, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return Blog{}, notFound(err)
	}
	out := []Blog{b}
	err = s.withAuthors(ctx, out)
	return out[0], err
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (Blog, error) {
	b, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return Blog{}, notFound(err)
	}
	out := []Blog{b}
	err = s.withAuthors(ctx, out)
	return out[0], err
}

// Create stores the row and authorship, uploading the content before the
// transaction commits.
func (s *Service) Create(ctx context.Context, authorID int64, in Input) (Blog, error) {
	in.Title = strings.TrimSpace(in.Title)
	slug := Slugify(in.Title)
	if slug == "" {
		return Blog{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.WordCount < 0 {
		return Blog{}, fmt.Errorf("%w: wordCount must not be negative", ErrInvalidInput)
	}
	if _, err := s.store.GetBySlug(ctx, slug); err == nil {
		return Blog{}, slugTaken(slug)
	} else if !errors.Is(err, ErrNotFound) {
		return Blog{}, err
	}

	key := s.ContentKey(slug)
	var (
		created  Blog
		uploaded bool
	)
	err := s.store.WithinTx(ctx, func(tx Store) error {
		b, err := tx.Create(ctx, Blog{
			Title:        in.Title,
			Description:  in.Description,
			Slug:         slug,
			JSONURL:      s.bucket.URL(key),
			ThumbnailURL: in.ThumbnailURL,
			WordCount:    in.WordCount,
		})
		if err != nil {
			return err
		}
		if err := tx.AddAuthor(ctx, b.ID, authorID); err != nil {
			return err
		}
		// Upload only once the slug row is claimed.
		if _, err := s.bucket.Put(ctx, key, []byte(in.Content), contentType); err != nil {
			return err
		}
		uploaded = true
		created = b
		return nil
	})
	if err != nil {
		if uploaded {
			s.compensate(key, err)
		}
		if errors.Is(err, ErrConflict) {
			return Blog{}, slugTaken(slug)
		}
		return Blog{}, err
	}
	return s.Get(ctx, created.ID)
}

// compensate removes an orphaned upload. It runs on a fresh context so a
// cancelled request still cleans up.
func (s *Service) compensate(key string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.bucket.Delete(ctx, key); err != nil {
		obs.Logger().Error("blog upload compensation failed", "key", key, "cause", cause.Error(), "error", err)
	}
}

func slugTaken(slug string) error {
	return apperr.BadRequest(fmt.Sprintf("Blog with slug %s is already exist", slug))
}

// Update rewrites the content object when content changes and records the
// editor as an author.
func (s *Service) Update(ctx context.Context, editorID, id int64, p Patch) (Blog, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Blog{}, notFound(err)
	}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return Blog{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		p.Title = &title
	}
	if p.Content != nil {
		if _, err := s.bucket.Put(ctx, s.ContentKey(current.Slug), []byte(*p.Content), contentType); err != nil {
			return Blog{}, err
		}
	}
	err = s.store.WithinTx(ctx, func(tx Store) error {
		if _, err := tx.Update(ctx, id, p, s.now().UTC()); err != nil {
			return err
		}
		return tx.AddAuthor(ctx, id, editorID)
	})
	if err != nil {
		return Blog{}, notFound(err)
	}
	return s.Get(ctx, id)
}

// Publish copies the draft to the published object when publishing and
// flips the flag.
func (s *Service) Publish(ctx context.Context, id int64, published bool) (Blog, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Blog{}, notFound(err)
	}
	if published {
		if _, err := s.bucket.Copy(ctx, s.ContentKey(current.Slug), s.PublishedKey(current.Slug)); err != nil {
			return Blog{}, err
		}
	}
	if _, err := s.store.SetPublished(ctx, id, published, s.now().UTC()); err != nil {
		return Blog{}, notFound(err)
	}
	return s.Get(ctx, id)
}

// Delete removes the row, then both content objects.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return notFound(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	for _, key := range []string{s.ContentKey(current.Slug), s.PublishedKey(current.Slug)} {
		if err := s.bucket.Delete(ctx, key); err != nil {
			obs.Logger().Warn("blog object delete failed", "key", key, "error", err)
		}
	}
	return nil
}
