// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSetGetDelete(t *testing.T) {
	m := NewWithKeyring(keyring.NewArrayKeyring(nil))

	_, err := m.Get("DATABASE_URL")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set("DATABASE_URL", "postgresql://u:p@localhost:5432/app"))
	got, err := m.Get("DATABASE_URL")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p@localhost:5432/app", got)

	require.NoError(t, m.Set("DATABASE_URL", "postgresql://u:p2@localhost:5432/app"))
	got, err = m.Get("DATABASE_URL")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p2@localhost:5432/app", got)

	require.NoError(t, m.Delete("DATABASE_URL"))
	_, err = m.Get("DATABASE_URL")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Delete("DATABASE_URL"))
}

func TestManagerNamespacesKeys(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "DATABASE_URL", Data: []byte("unrelated")}})
	m := NewWithKeyring(ring)

	_, err := m.Get("DATABASE_URL")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set("DATABASE_URL", "file:./dev.db"))
	keys, err := ring.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DATABASE_URL", "env:DATABASE_URL"}, keys)
}

func TestManagerRejectsEmptyName(t *testing.T) {
	m := NewWithKeyring(keyring.NewArrayKeyring(nil))
	assert.Error(t, m.Set(" ", "x"))
	_, err := m.Get("")
	assert.Error(t, err)
	assert.Error(t, m.Delete(""))
}

func TestLookup(t *testing.T) {
	m := NewWithKeyring(keyring.NewArrayKeyring(nil))
	require.NoError(t, m.Set("SHADOW_URL", "mysql://root@localhost/shadow"))

	lookup := m.Lookup(nil)
	v, ok := lookup("SHADOW_URL")
	assert.True(t, ok)
	assert.Equal(t, "mysql://root@localhost/shadow", v)

	_, ok = lookup("MISSING")
	assert.False(t, ok)
}
