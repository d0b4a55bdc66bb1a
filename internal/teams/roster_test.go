package teams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoster_Add(t *testing.T) {
	r := NewRoster([]string{})

	require.NoError(t, r.Add("  Edis "))
	assert.Equal(t, []string{"Edis"}, r.Names())

	assert.ErrorIs(t, r.Add("edis"), ErrDuplicateName)
	assert.ErrorIs(t, r.Add(" EDIS"), ErrDuplicateName)
	assert.ErrorIs(t, r.Add("   "), ErrEmptyName)

	require.NoError(t, r.Add("Åshild"))
	assert.Equal(t, []string{"Edis", "Åshild"}, r.Names())
}

func TestRoster_Remove(t *testing.T) {
	r := NewRoster(nil)

	require.NoError(t, r.Remove("amalie"))
	assert.Equal(t, []string{"Joachim", "Edis", "Åshild"}, r.Names())
	assert.ErrorIs(t, r.Remove("Amalie"), ErrUnknownName)
}

func TestRoster_ClearAndRestore(t *testing.T) {
	r := NewRoster([]string{"A", "B", " a ", ""})
	assert.Equal(t, []string{"A", "B"}, r.Names())

	r.Clear()
	assert.Zero(t, r.Len())

	r.RestoreDefaults()
	assert.Equal(t, []string{"A", "B"}, r.Names())
}

func TestRoster_Replace(t *testing.T) {
	r := NewRoster(nil)
	r.Replace([]string{"A", "B", "b", "C"})
	assert.Equal(t, []string{"A", "B", "C"}, r.Names())
}

func TestRoster_NamesIsACopy(t *testing.T) {
	r := NewRoster([]string{"A", "B"})
	snapshot := r.Names()
	snapshot[0] = "Z"

	assert.Equal(t, []string{"A", "B"}, r.Names())
}

func TestRoster_Shuffle(t *testing.T) {
	r := NewRoster(nil)
	// i=3 swaps with 0; i=2 and i=1 stay put.
	r.Shuffle(&sequenceSource{t: t, draws: []int{0, 2, 1}})

	assert.Equal(t, []string{"Åshild", "Edis", "Amalie", "Joachim"}, r.Names())
}
