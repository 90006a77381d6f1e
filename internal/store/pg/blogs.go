package pg

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"educbt.org/internal/blog"
)

// Blogs returns the blog store bound to the same handle.
func (s *Store) Blogs() blog.Store { return blogStore{s} }

type blogStore struct{ s *Store }

func blogErr(err error) error { return translate(err, blog.ErrNotFound, blog.ErrConflict) }

const blogColumns = `b.id, b.title, b.description, b.slug, b.json_url, b.thumbnail_url, b.word_count,
	b.is_published, b.published_at, b.created_at, b.updated_at`

// blogMatch filters on $1 (published, nullable) and $2 (ilike pattern).
const blogMatch = `
	($1::boolean is null or b.is_published = $1)
	and ($2 = '' or b.title ilike $2 or exists (
		select 1 from authors_to_blogs ab
		join users u on u.id = ab.user_id
		where ab.blog_id = b.id and u.name ilike $2
	))`

func (b blogStore) WithinTx(ctx context.Context, fn func(blog.Store) error) error {
	return b.s.inTx(ctx, func(tx *Store) error { return fn(blogStore{tx}) })
}

func (b blogStore) Create(ctx context.Context, in blog.Blog) (blog.Blog, error) {
	var out blog.Blog
	err := b.s.q.GetContext(ctx, &out, `
		insert into blogs as b (title, description, slug, json_url, thumbnail_url, word_count)
		values ($1, $2, $3, $4, $5, $6)
		returning `+blogColumns,
		in.Title, in.Description, in.Slug, in.JSONURL, in.ThumbnailURL, in.WordCount)
	return out, blogErr(err)
}

func (b blogStore) Get(ctx context.Context, id int64) (blog.Blog, error) {
	var out blog.Blog
	err := b.s.q.GetContext(ctx, &out, `select `+blogColumns+` from blogs b where b.id = $1`, id)
	return out, blogErr(err)
}

func (b blogStore) GetBySlug(ctx context.Context, slug string) (blog.Blog, error) {
	var out blog.Blog
	err := b.s.q.GetContext(ctx, &out, `select `+blogColumns+` from blogs b where b.slug = $1`, slug)
	return out, blogErr(err)
}

func (b blogStore) List(ctx context.Context, f blog.Filter) ([]blog.Blog, int, error) {
	pattern := likePattern(f.Search)
	var total int
	if err := b.s.q.GetContext(ctx, &total, `select count(*) from blogs b where`+blogMatch, f.Published, pattern); err != nil {
		return nil, 0, err
	}
	var blogs []blog.Blog
	err := b.s.q.SelectContext(ctx, &blogs, `
		select `+blogColumns+`
		from blogs b
		where`+blogMatch+`
		order by b.published_at desc nulls last, b.id desc
		limit $3 offset $4
	`, f.Published, pattern, f.Page.Limit(), f.Page.Offset())
	return blogs, total, err
}

func (b blogStore) Update(ctx context.Context, id int64, p blog.Patch, at time.Time) (blog.Blog, error) {
	var out blog.Blog
	err := b.s.q.GetContext(ctx, &out, `
		update blogs as b set
			title = coalesce($2, b.title),
			description = coalesce($3, b.description),
			word_count = coalesce($4, b.word_count),
			thumbnail_url = coalesce($5, b.thumbnail_url),
			updated_at = $6
		where b.id = $1
		returning `+blogColumns,
		id, p.Title, p.Description, p.WordCount, p.ThumbnailURL, at)
	return out, blogErr(err)
}

func (b blogStore) SetPublished(ctx context.Context, id int64, published bool, at time.Time) (blog.Blog, error) {
	var out blog.Blog
	err := b.s.q.GetContext(ctx, &out, `
		update blogs as b set
			is_published = $2,
			published_at = case when $2 and b.published_at is null then $3 else b.published_at end,
			updated_at = $3
		where b.id = $1
		returning `+blogColumns,
		id, published, at)
	return out, blogErr(err)
}

func (b blogStore) Delete(ctx context.Context, id int64) error {
	res, err := b.s.q.ExecContext(ctx, `delete from blogs where id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res, blog.ErrNotFound)
}

func (b blogStore) AddAuthor(ctx context.Context, blogID, userID int64) error {
	_, err := b.s.q.ExecContext(ctx, `
		insert into authors_to_blogs (user_id, blog_id) values ($1, $2)
		on conflict do nothing
	`, userID, blogID)
	return blogErr(err)
}

type authorRow struct {
	BlogID int64 `db:"blog_id"`
	blog.Author
}

func (b blogStore) Authors(ctx context.Context, blogIDs []int64) (map[int64][]blog.Author, error) {
	if len(blogIDs) == 0 {
		return map[int64][]blog.Author{}, nil
	}
	query, args, err := sqlx.In(`
		select ab.blog_id, u.id, u.name, u.image
		from authors_to_blogs ab
		join users u on u.id = ab.user_id
		where ab.blog_id in (?)
		order by ab.blog_id, u.id
	`, blogIDs)
	if err != nil {
		return nil, err
	}
	var rows []authorRow
	if err := b.s.q.SelectContext(ctx, &rows, b.s.q.Rebind(query), args...); err != nil {
		return nil, err
	}
	grouped := lo.GroupBy(rows, func(r authorRow) int64 { return r.BlogID })
	return lo.MapValues(grouped, func(rs []authorRow, _ int64) []blog.Author {
		return lo.Map(rs, func(r authorRow, _ int) blog.Author { return r.Author })
	}), nil
}
