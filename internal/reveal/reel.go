package reveal

import (
	"encoding/binary"
	"hash/fnv"
	"time"

	"github.com/Seednode/foosball/internal/teams"
)

const (
	// SpinCadence is how often a spinning slot shows a new name.
	SpinCadence = 80 * time.Millisecond

	// Placeholder stands in for a name when there is nothing to show yet.
	Placeholder = "—"

	firstSlotDelay = 100 * time.Millisecond
	slotDelayStep  = 160 * time.Millisecond
)

// SlotDelay staggers slots within a team so they do not spin in lockstep.
func SlotDelay(index int) time.Duration {
	return firstSlotDelay + time.Duration(index)*slotDelayStep
}

// Slot is the position of one name: team t, member s.
type Slot struct {
	Team  int `json:"team"`
	Index int `json:"index"`
}

// Reel projects what each slot displays at a given instant. It holds no
// timers: the same inputs always give the same name.
type Reel struct {
	Assignment teams.Assignment
	Pool       []string // names to cycle through while spinning
	Seed       uint64
}

// Display returns the name slot shows at now during st.
func (r Reel) Display(slot Slot, st State, now time.Time) string {
	if slot.Team < 0 || slot.Team >= len(r.Assignment.Teams) {
		return Placeholder
	}
	team := r.Assignment.Teams[slot.Team]
	if slot.Index < 0 || slot.Index >= len(team) {
		return Placeholder
	}

	if st.Revealed(slot.Team) {
		return team[slot.Index]
	}

	if len(r.Pool) == 0 {
		return Placeholder
	}

	frame := (now.Sub(st.StartedAt) - SlotDelay(slot.Index)) / SpinCadence
	if frame < 1 {
		return Placeholder
	}

	return r.Pool[r.pick(slot, uint64(frame))%uint64(len(r.Pool))]
}

// Board evaluates every slot of every team.
func (r Reel) Board(st State, now time.Time) [][]string {
	board := make([][]string, len(r.Assignment.Teams))
	for t, team := range r.Assignment.Teams {
		board[t] = make([]string, len(team))
		for s := range team {
			board[t][s] = r.Display(Slot{Team: t, Index: s}, st, now)
		}
	}
	return board
}

func (r Reel) pick(slot Slot, frame uint64) uint64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], r.Seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(slot.Team))
	binary.LittleEndian.PutUint64(buf[16:], uint64(slot.Index))
	binary.LittleEndian.PutUint64(buf[24:], frame)

	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
