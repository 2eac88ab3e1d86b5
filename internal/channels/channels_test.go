package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChannels() []Channel {
	return []Channel{
		{UID: 3, Number: 3, Name: "Three", SID: 103},
		{UID: 1, Number: 1, Name: "One", SID: 101},
		{UID: 2, Number: 2, Name: "Two", SID: 102, Radio: true},
		{UID: 4, Number: 4, Name: "Invalid", SID: 0},
	}
}

func TestList_Load_SortsByNumber(t *testing.T) {
	l := NewList()
	l.Load(sampleChannels())

	tv := l.All(false)
	require.Len(t, tv, 2)
	assert.Equal(t, "One", tv[0].Name)
	assert.Equal(t, "Three", tv[1].Name)
}

func TestList_All_SkipsInvalidAndWrongKind(t *testing.T) {
	l := NewList()
	l.Load(sampleChannels())

	radio := l.All(true)
	require.Len(t, radio, 1)
	assert.Equal(t, "Two", radio[0].Name)
}

func TestList_Count(t *testing.T) {
	l := NewList()
	l.Load(sampleChannels())

	assert.Equal(t, 2, l.Count(false))
	assert.Equal(t, 1, l.Count(true))
}

func TestList_ByUID(t *testing.T) {
	l := NewList()
	l.Load(sampleChannels())

	ch, ok := l.ByUID(2)
	require.True(t, ok)
	assert.Equal(t, "Two", ch.Name)

	_, ok = l.ByUID(999)
	assert.False(t, ok)
}

func TestList_Reorder_RenumbersInRequestedOrder(t *testing.T) {
	l := NewList()
	l.Load(sampleChannels())

	require.NoError(t, l.Reorder([]uint32{3, 1}))

	ch3, _ := l.ByUID(3)
	ch1, _ := l.ByUID(1)
	ch2, _ := l.ByUID(2)
	assert.Equal(t, 1, ch3.Number)
	assert.Equal(t, 2, ch1.Number)
	assert.Equal(t, 3, ch2.Number) // unmentioned UIDs appended, relative order kept
}

func TestList_Reorder_UnknownUID(t *testing.T) {
	l := NewList()
	l.Load(sampleChannels())

	err := l.Reorder([]uint32{999})
	assert.ErrorIs(t, err, ErrUnknownUID)
}
