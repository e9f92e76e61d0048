// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "password:admin@localhost:1984", Key("admin", "localhost", "1984"))
	assert.Equal(t, "password:admin@[::1]:1984", Key("admin", "::1", "1984"))
}

func TestManager_PasswordLifecycle(t *testing.T) {
	m := NewManagerWithRing(keyring.NewArrayKeyring(nil))

	_, err := m.LoadPassword("admin", "localhost", "1984")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SavePassword("admin", "localhost", "1984", "s3cret"))
	require.NoError(t, m.SavePassword("admin", "remote", "1984", "other"))

	pw, err := m.LoadPassword("admin", "localhost", "1984")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	require.NoError(t, m.SavePassword("admin", "localhost", "1984", "rotated"))
	pw, err = m.LoadPassword("admin", "localhost", "1984")
	require.NoError(t, err)
	assert.Equal(t, "rotated", pw)

	require.NoError(t, m.DeletePassword("admin", "localhost", "1984"))
	require.NoError(t, m.DeletePassword("admin", "localhost", "1984"))
	_, err = m.LoadPassword("admin", "localhost", "1984")
	assert.ErrorIs(t, err, ErrNotFound)

	pw, err = m.LoadPassword("admin", "remote", "1984")
	require.NoError(t, err)
	assert.Equal(t, "other", pw)
}
