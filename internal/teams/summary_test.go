package teams

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	cases := []struct {
		name string
		in   Assignment
		want string
	}{
		{
			name: "teams and waiting",
			in: Assignment{
				Teams:   []Team{{"C", "A"}, {"D", "B"}},
				Waiting: []string{"E"},
			},
			want: "Foosball teams:\nTeam 1: C + A\nTeam 2: D + B\nWaiting: E",
		},
		{
			name: "no waiting line when everyone plays",
			in:   Assignment{Teams: []Team{{"B", "C"}}, Waiting: []string{}},
			want: "Foosball teams:\nTeam 1: B + C",
		},
		{
			name: "nobody plays",
			in:   Assignment{Waiting: []string{"A"}},
			want: "Foosball teams:\nWaiting: A",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Summary(tc.in))
		})
	}
}
