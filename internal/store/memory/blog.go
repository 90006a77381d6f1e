package memory

import (
	"context"
	"maps"
	"sort"
	"time"

	"educbt.org/internal/blog"
)

type blogData struct {
	blogs   map[int64]blog.Blog
	authors map[pair]struct{} // blog, user
}

func newBlogData() blogData {
	return blogData{blogs: map[int64]blog.Blog{}, authors: map[pair]struct{}{}}
}

func (b blogData) clone() blogData {
	return blogData{blogs: maps.Clone(b.blogs), authors: maps.Clone(b.authors)}
}

// Blogs returns the blog store view.
func (s *Store) Blogs() blog.Store { return blogStore{s} }

type blogStore struct{ s *Store }

var _ blog.Store = blogStore{}

func (b blogStore) Create(_ context.Context, in blog.Blog) (blog.Blog, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	for _, existing := range b.s.d.blog.blogs {
		if existing.Slug == in.Slug {
			return blog.Blog{}, blog.ErrConflict
		}
	}
	now := b.s.now().UTC()
	in.ID = b.s.id()
	in.IsPublished = false
	in.PublishedAt = nil
	in.CreatedAt, in.UpdatedAt = now, now
	in.Authors = nil
	b.s.d.blog.blogs[in.ID] = in
	return in, nil
}

func (b blogStore) Get(_ context.Context, id int64) (blog.Blog, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out, ok := b.s.d.blog.blogs[id]
	if !ok {
		return blog.Blog{}, blog.ErrNotFound
	}
	return out, nil
}

func (b blogStore) GetBySlug(_ context.Context, slug string) (blog.Blog, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	for _, out := range b.s.d.blog.blogs {
		if out.Slug == slug {
			return out, nil
		}
	}
	return blog.Blog{}, blog.ErrNotFound
}

func (b blogStore) List(_ context.Context, f blog.Filter) ([]blog.Blog, int, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	var matched []blog.Blog
	for _, item := range b.s.d.blog.blogs {
		if f.Published != nil && item.IsPublished != *f.Published {
			continue
		}
		if f.Search != "" && !contains(item.Title, f.Search) && !b.authorMatches(item.ID, f.Search) {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		pi, pj := matched[i].PublishedAt, matched[j].PublishedAt
		switch {
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.After(*pj)
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return matched[i].ID > matched[j].ID
	})
	return window(matched, f.Page), len(matched), nil
}

func (b blogStore) authorMatches(blogID int64, search string) bool {
	for k := range b.s.d.blog.authors {
		if k[0] != blogID {
			continue
		}
		if u, ok := b.s.d.users[k[1]]; ok && contains(u.Name, search) {
			return true
		}
	}
	return false
}

func (b blogStore) Update(_ context.Context, id int64, p blog.Patch, at time.Time) (blog.Blog, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out, ok := b.s.d.blog.blogs[id]
	if !ok {
		return blog.Blog{}, blog.ErrNotFound
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = p.Description
	}
	if p.WordCount != nil {
		out.WordCount = *p.WordCount
	}
	if p.ThumbnailURL != nil {
		out.ThumbnailURL = p.ThumbnailURL
	}
	out.UpdatedAt = at
	b.s.d.blog.blogs[id] = out
	return out, nil
}

func (b blogStore) SetPublished(_ context.Context, id int64, published bool, at time.Time) (blog.Blog, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out, ok := b.s.d.blog.blogs[id]
	if !ok {
		return blog.Blog{}, blog.ErrNotFound
	}
	out.IsPublished = published
	if published && out.PublishedAt == nil {
		out.PublishedAt = &at
	}
	out.UpdatedAt = at
	b.s.d.blog.blogs[id] = out
	return out, nil
}

func (b blogStore) Delete(_ context.Context, id int64) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.d.blog.blogs[id]; !ok {
		return blog.ErrNotFound
	}
	delete(b.s.d.blog.blogs, id)
	for k := range b.s.d.blog.authors {
		if k[0] == id {
			delete(b.s.d.blog.authors, k)
		}
	}
	return nil
}

func (b blogStore) AddAuthor(_ context.Context, blogID, userID int64) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.d.blog.blogs[blogID]; !ok {
		return blog.ErrNotFound
	}
	if _, ok := b.s.d.users[userID]; !ok {
		return blog.ErrNotFound
	}
	b.s.d.blog.authors[pair{blogID, userID}] = struct{}{}
	return nil
}

func (b blogStore) Authors(_ context.Context, blogIDs []int64) (map[int64][]blog.Author, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	out := make(map[int64][]blog.Author, len(blogIDs))
	for _, id := range blogIDs {
		for k := range b.s.d.blog.authors {
			if k[0] != id {
				continue
			}
			if u, ok := b.s.d.users[k[1]]; ok {
				out[id] = append(out[id], blog.Author{ID: u.ID, Name: u.Name, Image: u.Image})
			}
		}
		sort.Slice(out[id], func(i, j int) bool { return out[id][i].ID < out[id][j].ID })
	}
	return out, nil
}

func (b blogStore) WithinTx(_ context.Context, fn func(blog.Store) error) error {
	return b.s.atomically(func() error { return fn(b) })
}
