package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewListMeta(t *testing.T) {
	meta := newListMeta(25, 2, 10)

	assert.Equal(t, 25, meta.Total)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, 3, meta.Pages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
}

func TestNewListMeta_SinglePage(t *testing.T) {
	meta := newListMeta(3, 1, 10)

	assert.Equal(t, 1, meta.Pages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}

func TestNewListMeta_Empty(t *testing.T) {
	meta := newListMeta(0, 1, 10)

	assert.Equal(t, 0, meta.Pages)
	assert.False(t, meta.HasNext)
}

func TestNewListMeta_NormalizesBadInput(t *testing.T) {
	meta := newListMeta(10, 0, 0)

	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 1, meta.Limit)
	assert.Equal(t, 10, meta.Pages)
}
