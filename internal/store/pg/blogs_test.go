package pg

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"educbt.org/internal/blog"
	"educbt.org/internal/paging"
)

var blogCols = []string{"id", "title", "description", "slug", "json_url", "thumbnail_url", "word_count",
	"is_published", "published_at", "created_at", "updated_at"}

func TestBlogCreateSlugConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into blogs").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "blogs_slug_unique"})

	_, err := store.Blogs().Create(context.Background(), blog.Blog{Title: "Hi", Slug: "hi", JSONURL: "u"})
	if !errors.Is(err, blog.ErrConflict) || !strings.Contains(err.Error(), "slug") {
		t.Fatalf("expected slug conflict, got %v", err)
	}
}

func TestBlogListFiltersAndPages(t *testing.T) {
	store, mock := newMock(t)
	published := true
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`select count\(\*\) from blogs b`).
		WithArgs(true, "%go%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(`order by b.published_at desc nulls last`).
		WithArgs(true, "%go%", 10, 10).
		WillReturnRows(sqlmock.NewRows(blogCols).
			AddRow(7, "Go tips", nil, "go-tips", "u", nil, 120, true, now, now, now))

	blogs, total, err := store.Blogs().List(context.Background(), blog.Filter{
		Page:      paging.Params{Page: 2, Size: 10},
		Search:    "go",
		Published: &published,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 11 || len(blogs) != 1 || blogs[0].Slug != "go-tips" {
		t.Fatalf("unexpected result %d %+v", total, blogs)
	}
}

func TestBlogAuthorsGroupedByBlog(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(`from authors_to_blogs ab`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"blog_id", "id", "name", "image"}).
			AddRow(1, 10, "Alice", nil).
			AddRow(1, 11, "Bob", nil).
			AddRow(2, 10, "Alice", nil))

	got, err := store.Blogs().Authors(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("authors: %v", err)
	}
	if len(got[1]) != 2 || len(got[2]) != 1 || got[2][0].Name != "Alice" {
		t.Fatalf("unexpected grouping %+v", got)
	}
}

func TestBlogDeleteMissing(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("delete from blogs").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Blogs().Delete(context.Background(), 5); !errors.Is(err, blog.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
