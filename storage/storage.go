////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package storage declares the blob store contract the SDK persists
// through. Two instances back the SDK: a secure store for secret-bearing
// records and a non-secure store for the mirrored user registry.
package storage

// Kind selects which of the two stores a component wants.
type Kind int

const (
	Secure Kind = iota
	NonSecure
)

// String is the tag used in log lines and storage keys.
func (k Kind) String() string {
	if k == Secure {
		return "secure"
	}
	return "nonsecure"
}

// Store holds a single opaque blob. Get on a store that was never written
// returns an empty slice and no error, so first-run loads are not failures.
type Store interface {
	Set(data []byte) error
	Get() ([]byte, error)
	Clear() error
}
