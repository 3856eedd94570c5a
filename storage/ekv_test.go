////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
)

func TestEkvStore_RoundTrip(t *testing.T) {
	secure, nonSecure := NewMemstores()

	// Unwritten stores read back empty without error.
	data, err := secure.Get()
	require.NoError(t, err)
	require.Empty(t, data)

	require.NoError(t, secure.Set([]byte("registry-v1")))
	data, err = secure.Get()
	require.NoError(t, err)
	require.Equal(t, []byte("registry-v1"), data)

	// The two kinds are distinct blobs even over the same ekv.
	data, err = nonSecure.Get()
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestEkvStore_Clear(t *testing.T) {
	kv := ekv.MakeMemstore()
	s := NewEkvStore(kv, Secure)

	require.NoError(t, s.Set([]byte("x")))
	require.NoError(t, s.Clear())

	data, err := s.Get()
	require.NoError(t, err)
	require.Empty(t, data)

	// Clearing an already empty store is not an error.
	require.NoError(t, s.Clear())
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "secure", Secure.String())
	require.Equal(t, "nonsecure", NonSecure.String())
}
