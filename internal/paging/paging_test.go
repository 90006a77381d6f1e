package paging

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDefaults(t *testing.T) {
	p := Parse(url.Values{})
	assert.Equal(t, Params{Page: 1, Size: DefaultSize}, p)
	assert.Equal(t, 0, p.Offset())
}

func TestParseClamps(t *testing.T) {
	p := Parse(url.Values{"page": {"0"}, "size": {"1000"}})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxSize, p.Size)

	p = Parse(url.Values{"page": {"3"}, "size": {"abc"}})
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, DefaultSize, p.Size)
	assert.Equal(t, 20, p.Offset())
}

func TestNewPage(t *testing.T) {
	page := New([]string{"a", "b"}, 21, Params{Page: 1, Size: 10})
	assert.Equal(t, 3, page.PageCount)
	assert.Equal(t, 21, page.TotalCount)

	empty := New[string](nil, 0, Params{Page: 1, Size: 10})
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 0, empty.PageCount)
}
