/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package teams splits a roster into randomly drawn teams.
package teams

import (
	"errors"
)

// DefaultTeamSize is the size of a foosball team.
const DefaultTeamSize = 2

var ErrInvalidTeamSize = errors.New("team size must be at least 1")

// Team is an ordered tuple of exactly k names.
type Team []string

// Assignment is the result of one draw. It is never mutated after Draw
// returns; a new draw produces a new Assignment.
type Assignment struct {
	Teams   []Team   `json:"teams"`
	Waiting []string `json:"waiting"`
}

// Size returns the number of names held by the assignment.
func (a Assignment) Size() int {
	n := len(a.Waiting)
	for _, t := range a.Teams {
		n += len(t)
	}
	return n
}

// Shuffle returns a uniformly permuted copy of names (Fisher-Yates).
func Shuffle(names []string, rng RandomSource) []string {
	out := make([]string, len(names))
	copy(out, names)

	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}

// Draw shuffles roster and cuts it into teams of k, in permutation order.
// Names that do not fill a complete team end up in Waiting. A roster shorter
// than k is not an error: it simply yields no teams.
func Draw(roster []string, k int, rng RandomSource) (Assignment, error) {
	if k < 1 {
		return Assignment{}, ErrInvalidTeamSize
	}

	order := Shuffle(roster, rng)
	full := len(order) / k * k

	a := Assignment{
		Teams:   make([]Team, 0, len(order)/k),
		Waiting: append([]string{}, order[full:]...),
	}
	for i := 0; i < full; i += k {
		a.Teams = append(a.Teams, Team(order[i:i+k:i+k]))
	}

	return a, nil
}
