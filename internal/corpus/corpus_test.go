package corpus

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SmallCorpus(t *testing.T) {
	c, err := Build(4, []int{4, 5}, []string{"A", "B", "C"})
	require.NoError(t, err)

	require.Len(t, c.Events, 4)
	ids := make([]int, 0, 4)
	authors := make([]string, 0, 4)
	for _, e := range c.Events {
		ids = append(ids, e.ID)
		authors = append(authors, e.Author)
	}
	assert.Equal(t, []int{4, 5, 4, 5}, ids)
	assert.Equal(t, []string{"A", "B", "C", "A"}, authors)
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, c.Order)
}

func TestBuild_OrderIsBijection(t *testing.T) {
	for _, n := range []int{1, 2, 7, 50, 2400} {
		c, err := Build(n, []int{4, 5}, []string{"Ankur", "Brian", "David"})
		require.NoError(t, err)
		require.Len(t, c.Order, n)

		seen := make([]bool, n)
		for _, idx := range c.Order {
			require.True(t, idx >= 0 && idx < n, "index %d out of range for n=%d", idx, n)
			require.False(t, seen[idx], "index %d appears twice for n=%d", idx, n)
			seen[idx] = true
		}
	}
}

func TestBuild_EventsIndependentOfShuffle(t *testing.T) {
	ids := []int{4, 5}
	authors := []string{"Ankur", "Brian", "David"}

	a, err := Build(300, ids, authors, WithSeed(1))
	require.NoError(t, err)
	b, err := Build(300, ids, authors, WithSeed(2))
	require.NoError(t, err)

	assert.Equal(t, a.Events, b.Events)
	assert.NotEqual(t, a.Order, b.Order)
	for i, e := range a.Events {
		assert.Equal(t, ids[i%2], e.ID)
		assert.Equal(t, authors[i%3], e.Author)
	}
}

func TestBuild_SeedIsReproducible(t *testing.T) {
	a, err := Build(100, []int{1}, []string{"x"}, WithSeed(42))
	require.NoError(t, err)
	b, err := Build(100, []int{1}, []string{"x"}, WithSeed(42))
	require.NoError(t, err)
	assert.Equal(t, a.Order, b.Order)
}

func TestBuild_InvalidConfiguration(t *testing.T) {
	tests := map[string]struct {
		n       int
		ids     []int
		authors []string
	}{
		"zero count":     {n: 0, ids: []int{1}, authors: []string{"a"}},
		"negative count": {n: -3, ids: []int{1}, authors: []string{"a"}},
		"no ids":         {n: 3, ids: nil, authors: []string{"a"}},
		"no authors":     {n: 3, ids: []int{1}, authors: []string{}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := Build(tc.n, tc.ids, tc.authors)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestBuild_Placeholders(t *testing.T) {
	c, err := Build(1, []int{9}, []string{"z"}, WithPlaceholders("hi", "body"))
	require.NoError(t, err)
	assert.Equal(t, Event{ID: 9, Greeting: "hi", Message: "body", Author: "z"}, c.Events[0])
}

func TestEvent_Marshal(t *testing.T) {
	payload, err := Event{ID: 4, Greeting: "hello", Message: "tbd", Author: "Ankur"}.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":4,"greeting":"hello","message":"tbd","author":"Ankur"}`, string(payload))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "Ankur", decoded["author"])
}

func TestCorpus_At(t *testing.T) {
	c, err := Build(10, []int{4, 5}, []string{"A", "B", "C"}, WithSeed(7))
	require.NoError(t, err)
	for pos := 0; pos < c.Len(); pos++ {
		idx, e := c.At(pos)
		assert.Equal(t, c.Order[pos], idx)
		assert.Equal(t, c.Events[idx], e)
	}
}
