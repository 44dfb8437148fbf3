package commenteval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int) *int { return &v }

func TestCommentDistance_BothNullOnEitherSideIsUndefined(t *testing.T) {
	_, ok := commentDistance(lineRange{}, lineRange{From: ptr(1), To: ptr(2)})
	assert.False(t, ok)

	_, ok = commentDistance(lineRange{From: ptr(1), To: ptr(2)}, lineRange{})
	assert.False(t, ok)
}

func TestCommentDistance_OverlapAtExactlyOnePointIsZero(t *testing.T) {
	d, ok := commentDistance(
		lineRange{From: ptr(5), To: ptr(10)},
		lineRange{From: ptr(10), To: ptr(15)},
	)
	assert.True(t, ok)
	assert.Equal(t, 0, d)
}

func TestCommentDistance_FullOverlapIsZero(t *testing.T) {
	d, ok := commentDistance(
		lineRange{From: ptr(5), To: ptr(10)},
		lineRange{From: ptr(6), To: ptr(8)},
	)
	assert.True(t, ok)
	assert.Equal(t, 0, d)
}

func TestCommentDistance_OneNullEndpointEachSideCollapsesToSingleLine(t *testing.T) {
	// submission collapses to line 20, reference collapses to line 25.
	d, ok := commentDistance(
		lineRange{From: ptr(20), To: nil},
		lineRange{From: nil, To: ptr(25)},
	)
	assert.True(t, ok)
	assert.Equal(t, 5, d)
}

func TestCommentDistance_SubmissionBeforeReference(t *testing.T) {
	d, ok := commentDistance(
		lineRange{From: ptr(1), To: ptr(3)},
		lineRange{From: ptr(10), To: ptr(12)},
	)
	assert.True(t, ok)
	assert.Equal(t, 7, d)
}

func TestCommentDistance_SubmissionAfterReference(t *testing.T) {
	d, ok := commentDistance(
		lineRange{From: ptr(20), To: ptr(25)},
		lineRange{From: ptr(10), To: ptr(12)},
	)
	assert.True(t, ok)
	assert.Equal(t, 8, d)
}

func TestCollapse_SwapsInvertedRange(t *testing.T) {
	start, end, ok := collapse(lineRange{From: ptr(10), To: ptr(5)})
	assert.True(t, ok)
	assert.Equal(t, 5, start)
	assert.Equal(t, 10, end)
}
