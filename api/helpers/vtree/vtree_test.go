package vtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorsMatchKind(t *testing.T) {
	s := NewString("hci0")
	text, ok := s.Text()
	require.True(t, ok)
	assert.Equal(t, "hci0", text)

	_, ok = s.Bool()
	assert.False(t, ok)

	p := NewObjectPath("/org/bluez/hci0")
	text, ok = p.Text()
	require.True(t, ok)
	assert.Equal(t, "/org/bluez/hci0", text)
	assert.Equal(t, ObjectPath, p.Kind())

	b, ok := NewBool(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = NewBool(true).Entries()
	assert.False(t, ok)

	var zero Value
	assert.Equal(t, Invalid, zero.Kind())
	_, ok = zero.Inner()
	assert.False(t, ok)
}

func TestVariantEntries(t *testing.T) {
	m := NewMap(
		E(NewString("Alias"), NewVariant(NewString("Headset"))),
		E(NewString("RSSI"), NewVariant(NewInt(-40))),
	)

	entries, ok := m.Entries()
	require.True(t, ok)
	require.Len(t, entries, 2)

	key, _ := entries[0].Key.Text()
	assert.Equal(t, "Alias", key)

	inner, ok := entries[0].Value.Inner()
	require.True(t, ok)
	alias, _ := inner.Text()
	assert.Equal(t, "Headset", alias)

	_, ok = entries[1].Value.Text()
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	m := NewMap(
		E(NewObjectPath("/a"), NewArray(NewBool(false), NewUint(3))),
	)

	assert.Equal(t, `{"/a": [false, 3]}`, m.String())
	assert.Equal(t, "<-1>", NewVariant(NewInt(-1)).String())
}
