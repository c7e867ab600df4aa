package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromQuery_Defaults(t *testing.T) {
	page, err := FromQuery(url.Values{}, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Skip: 0, Limit: 100}, page)
}

func TestFromQuery_Values(t *testing.T) {
	page, err := FromQuery(url.Values{"skip": {"20"}, "limit": {"10"}}, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Skip: 20, Limit: 10}, page)
}

func TestFromQuery_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   error
	}{
		{"negative skip", url.Values{"skip": {"-1"}}, ErrInvalidSkip},
		{"non numeric skip", url.Values{"skip": {"abc"}}, ErrInvalidSkip},
		{"zero limit", url.Values{"limit": {"0"}}, ErrInvalidLimit},
		{"non numeric limit", url.Values{"limit": {"x"}}, ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromQuery(tt.values, 100)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPage_Values(t *testing.T) {
	v := Page{Skip: 5, Limit: 50}.Values()
	assert.Equal(t, "5", v.Get("skip"))
	assert.Equal(t, "50", v.Get("limit"))

	page, err := FromQuery(v, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Skip: 5, Limit: 50}, page)
}

func TestNewPageResult(t *testing.T) {
	r := NewPageResult([]int{1, 2}, 5, 0, 2)
	assert.True(t, r.HasMore)

	r = NewPageResult([]int{5}, 5, 4, 2)
	assert.False(t, r.HasMore)

	empty := NewPageResult[int](nil, 0, 0, 10)
	assert.NotNil(t, empty.Items)
	assert.False(t, empty.HasMore)
}
