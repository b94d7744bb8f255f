package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "42", cursor.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestBuildCursorPageInfoTrimsLookahead(t *testing.T) {
	a, b, c := 1, 2, 3
	items, info := BuildCursorPageInfo([]*int{&a, &b, &c}, 2, func(v *int) string {
		if *v == 2 {
			return "two"
		}
		return "other"
	})
	assert.Len(t, items, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "two", info.NextPageToken)

	items, info = BuildCursorPageInfo([]*int{&a}, 2, func(*int) string { return "x" })
	assert.Len(t, items, 1)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
