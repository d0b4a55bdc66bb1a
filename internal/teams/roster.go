/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package teams

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrEmptyName     = errors.New("name is empty")
	ErrDuplicateName = errors.New("name is already on the roster")
	ErrUnknownName   = errors.New("name is not on the roster")
)

// DefaultPlayers is the roster a fresh table starts with.
var DefaultPlayers = []string{"Joachim", "Edis", "Amalie", "Åshild"}

// Roster is an ordered list of unique participant names. Names are trimmed,
// and compared case-insensitively.
type Roster struct {
	names    []string
	defaults []string
}

// NewRoster returns a roster holding defaults, which RestoreDefaults returns
// to later. A nil defaults uses DefaultPlayers.
func NewRoster(defaults []string) *Roster {
	if defaults == nil {
		defaults = DefaultPlayers
	}

	r := &Roster{}
	for _, name := range defaults {
		if r.Add(name) == nil {
			r.defaults = append(r.defaults, strings.TrimSpace(name))
		}
	}

	return r
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Add appends name unless it is blank or already present.
func (r *Roster) Add(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}
	if r.Contains(trimmed) {
		return ErrDuplicateName
	}

	r.names = append(r.names, trimmed)
	return nil
}

// Remove drops name from the roster.
func (r *Roster) Remove(name string) error {
	i := slices.IndexFunc(r.names, func(n string) bool { return sameName(n, name) })
	if i < 0 {
		return ErrUnknownName
	}

	r.names = slices.Delete(r.names, i, i+1)
	return nil
}

func (r *Roster) Contains(name string) bool {
	return slices.ContainsFunc(r.names, func(n string) bool { return sameName(n, name) })
}

func (r *Roster) Clear() {
	r.names = nil
}

func (r *Roster) RestoreDefaults() {
	r.names = slices.Clone(r.defaults)
}

// Replace swaps the whole roster for names, skipping blanks and duplicates.
func (r *Roster) Replace(names []string) {
	r.names = nil
	for _, name := range names {
		_ = r.Add(name)
	}
}

// Shuffle reorders the roster itself.
func (r *Roster) Shuffle(rng RandomSource) {
	r.names = Shuffle(r.names, rng)
}

// Names returns a copy of the roster, safe to hand to Draw.
func (r *Roster) Names() []string {
	return slices.Clone(r.names)
}

func (r *Roster) Len() int {
	return len(r.names)
}
