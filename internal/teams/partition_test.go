package teams

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceSource replays a fixed list of draws, one per Intn call.
type sequenceSource struct {
	t     *testing.T
	draws []int
}

func (s *sequenceSource) Intn(n int) int {
	s.t.Helper()
	require.NotEmpty(s.t, s.draws, "sequence exhausted")

	j := s.draws[0]
	s.draws = s.draws[1:]
	require.Less(s.t, j, n, "draw out of range")

	return j
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("P%02d", i)
	}
	return out
}

func flatten(a Assignment) []string {
	var out []string
	for _, t := range a.Teams {
		out = append(out, t...)
	}
	return append(out, a.Waiting...)
}

func TestDraw_Scenarios(t *testing.T) {
	cases := []struct {
		name        string
		roster      []string
		draws       []int
		wantTeams   []Team
		wantWaiting []string
	}{
		{
			name:        "four players make two pairs",
			roster:      []string{"A", "B", "C", "D"},
			draws:       []int{1, 1, 0}, // permutation C, A, D, B
			wantTeams:   []Team{{"C", "A"}, {"D", "B"}},
			wantWaiting: []string{},
		},
		{
			name:        "three players leave one waiting",
			roster:      []string{"A", "B", "C"},
			draws:       []int{0, 0}, // permutation B, C, A
			wantTeams:   []Team{{"B", "C"}},
			wantWaiting: []string{"A"},
		},
		{
			name:        "single player cannot form a team",
			roster:      []string{"A"},
			wantTeams:   []Team{},
			wantWaiting: []string{"A"},
		},
		{
			name:        "empty roster",
			roster:      []string{},
			wantTeams:   []Team{},
			wantWaiting: []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Draw(tc.roster, DefaultTeamSize, &sequenceSource{t: t, draws: tc.draws})
			require.NoError(t, err)
			assert.Equal(t, tc.wantTeams, got.Teams)
			assert.Equal(t, tc.wantWaiting, got.Waiting)
		})
	}
}

func TestDraw_PreservesEveryNameOnce(t *testing.T) {
	rng := NewSeededSource(42)

	for size := 0; size <= 13; size++ {
		for k := 1; k <= 4; k++ {
			roster := names(size)

			a, err := Draw(roster, k, rng)
			require.NoError(t, err)

			assert.Len(t, a.Teams, size/k, "size=%d k=%d", size, k)
			assert.Len(t, a.Waiting, size%k, "size=%d k=%d", size, k)
			for _, team := range a.Teams {
				assert.Len(t, team, k)
			}

			got := flatten(a)
			slices.Sort(got)
			assert.Equal(t, roster, got, "size=%d k=%d", size, k)
			assert.Equal(t, size, a.Size())
		}
	}
}

func TestDraw_DoesNotModifyInput(t *testing.T) {
	roster := []string{"A", "B", "C", "D", "E"}
	before := slices.Clone(roster)

	_, err := Draw(roster, 2, NewSeededSource(7))
	require.NoError(t, err)
	assert.Equal(t, before, roster)
}

func TestDraw_RejectsInvalidTeamSize(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := Draw([]string{"A", "B"}, k, NewSeededSource(1))
		assert.ErrorIs(t, err, ErrInvalidTeamSize)
	}
}

func TestDraw_SameSeedSameAssignment(t *testing.T) {
	roster := names(9)

	first, err := Draw(roster, 2, NewSeededSource(2024))
	require.NoError(t, err)
	second, err := Draw(roster, 2, NewSeededSource(2024))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestShuffle_IsPermutation(t *testing.T) {
	rng := NewSeededSource(99)
	roster := names(10)

	for _i := 0; _i < 50; _i++ {
		got := Shuffle(roster, rng)
		require.Len(t, got, len(roster))
		slices.Sort(got)
		assert.Equal(t, roster, got)
	}
}

func TestShuffle_UniformPositions(t *testing.T) {
	const trials = 24000
	roster := []string{"A", "B", "C", "D"}
	rng := NewSeededSource(12345)

	counts := map[string][]int{}
	for _, n := range roster {
		counts[n] = make([]int, len(roster))
	}
	for _i := 0; _i < trials; _i++ {
		for pos, n := range Shuffle(roster, rng) {
			counts[n][pos]++
		}
	}

	expected := float64(trials) / float64(len(roster))
	chi := 0.0
	for _, perPos := range counts {
		for _, observed := range perPos {
			d := float64(observed) - expected
			chi += d * d / expected
		}
	}

	// 9 degrees of freedom; 27.88 is the p=0.001 critical value.
	assert.Less(t, chi, 27.88, "chi-square %.2f", chi)
}

func TestCryptoSource_InRange(t *testing.T) {
	rng := NewCryptoSource()
	for n := 1; n <= 10; n++ {
		for _i := 0; _i < 20; _i++ {
			v := rng.Intn(n)
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, n)
		}
	}
}
