////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A short PIN is zero-padded on the left, so "042" and "0042" are the
// same PIN at length 4.
func TestMultiFactor_ToInt_Padding(t *testing.T) {
	short, err := NewMultiFactor("042").ToInt(4)
	require.NoError(t, err)
	long, err := NewMultiFactor("0042").ToInt(4)
	require.NoError(t, err)
	require.Equal(t, long, short)
	require.Equal(t, []int{42}, short)
}

func TestMultiFactor_ToInt_Rejections(t *testing.T) {
	_, err := NewMultiFactor("12345").ToInt(4)
	require.Error(t, err, "over-length PIN")

	_, err = NewMultiFactor("12a4").ToInt(4)
	require.Error(t, err, "non-numeric PIN")

	_, err = MultiFactor{}.ToInt(4)
	require.Error(t, err, "no factors")
}

func TestMultiFactor_ToInt_ExtraFactors(t *testing.T) {
	a, err := MultiFactor{"1234", "fingerprint-tag"}.ToInt(4)
	require.NoError(t, err)
	b, err := MultiFactor{"1234", "fingerprint-tag"}.ToInt(4)
	require.NoError(t, err)
	require.Equal(t, a, b, "hashed factors must be stable")
	require.Len(t, a, 2)
	require.GreaterOrEqual(t, a[1], 0)

	c, err := MultiFactor{"1234", "77"}.ToInt(4)
	require.NoError(t, err)
	require.Equal(t, 77, c[1], "numeric extra factors pass through")
}

func TestMultiFactor_IsEmpty(t *testing.T) {
	require.True(t, MultiFactor{}.IsEmpty())
	require.True(t, NewMultiFactor("").IsEmpty())
	require.False(t, NewMultiFactor("0000").IsEmpty())
}
