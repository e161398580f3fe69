package matching_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ridemediator/internal/ride/domain"
	"github.com/example/ridemediator/internal/ride/matching"
)

func makeDrivers(n int) []*domain.Driver {
	out := make([]*domain.Driver, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.NewDriver(fmt.Sprintf("Driver %d", i), nil))
	}
	return out
}

func TestRandomRankerIsPermutation(t *testing.T) {
	pool := makeDrivers(6)
	ranked := matching.RandomRanker(42)("anywhere", pool)
	require.ElementsMatch(t, pool, ranked)
}

func TestRandomRankerDoesNotMutatePool(t *testing.T) {
	pool := makeDrivers(5)
	orig := append([]*domain.Driver(nil), pool...)
	matching.RandomRanker(1)("anywhere", pool)
	require.Equal(t, orig, pool)
}

func TestRandomRankerSpreadsFirstPlace(t *testing.T) {
	pool := makeDrivers(4)
	rank := matching.RandomRanker(7)
	counts := make(map[*domain.Driver]int, len(pool))
	const runs = 2000
	for i := 0; i < runs; i++ {
		counts[rank("x", pool)[0]]++
	}
	expected := runs / len(pool)
	for _, d := range pool {
		require.InDelta(t, expected, counts[d], float64(expected)*0.4, "driver %s", d.Name)
	}
}

func TestRandomRankerConcurrentUse(t *testing.T) {
	pool := makeDrivers(10)
	rank := matching.RandomRanker(3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Len(t, rank("x", pool), len(pool))
		}()
	}
	wg.Wait()
}

func TestNameRanker(t *testing.T) {
	b := domain.NewDriver("b", nil)
	a := domain.NewDriver("a", nil)
	c := domain.NewDriver("c", nil)
	require.Equal(t, []*domain.Driver{a, b, c}, matching.NameRanker()("x", []*domain.Driver{b, c, a}))
}

func TestTopK(t *testing.T) {
	pool := makeDrivers(6)

	tests := []struct {
		name string
		k    int
		want int
	}{
		{name: "limit", k: 4, want: 4},
		{name: "fewer than k", k: 10, want: 6},
		{name: "zero", k: 0, want: 0},
		{name: "negative", k: -1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matching.TopK(pool, tt.k)
			require.Len(t, got, tt.want)
			require.NotNil(t, got)
		})
	}
	require.Empty(t, matching.TopK(nil, 4))
}

func TestCandidatesKeepOrder(t *testing.T) {
	pool := makeDrivers(3)
	got := matching.Candidates(pool)
	require.Len(t, got, 3)
	for i, d := range pool {
		require.Equal(t, domain.Candidate{ID: d.ID, Name: d.Name}, got[i])
	}
}
