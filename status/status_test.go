////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package status

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// Equality is on the code only; the message never participates.
func TestStatus_Is(t *testing.T) {
	s := New(NetworkError, "connect to %s refused", "10.0.0.1")
	require.True(t, s.Is(NetworkError))
	require.False(t, s.Is(HTTPServerError))
	require.False(t, s.IsOK())

	// Same code, different messages, still "equal".
	require.True(t, New(NetworkError, "a").Is(NetworkError))
	require.True(t, New(NetworkError, "b").Is(NetworkError))
}

func TestStatus_ZeroValueIsOK(t *testing.T) {
	var s Status
	require.True(t, s.IsOK())
	require.Equal(t, "OK", s.String())
}

func TestFromError(t *testing.T) {
	s := FromError(StorageError, errors.New("disk full"))
	require.True(t, s.Is(StorageError))
	require.Equal(t, "disk full", s.Message)

	// A nil error is a success no matter the code passed in.
	require.True(t, FromError(StorageError, nil).IsOK())
}

func TestCode_String(t *testing.T) {
	require.Equal(t, "UNTRUSTED_DOMAIN_ERROR", UntrustedDomainError.String())
	require.Equal(t, "CLIENT_SECRET_EXPIRED", ClientSecretExpired.String())
	require.Equal(t, "UNKNOWN_STATUS_999", Code(999).String())
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "INCORRECT_PIN: bad pin",
		New(IncorrectPin, "bad pin").String())
}
