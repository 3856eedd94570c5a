////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MultiFactor is the ordered list of authentication factors. The first
// entry is always the PIN; further entries are extra factors such as
// biometric tags or device secrets.
type MultiFactor []string

// NewMultiFactor builds a single-factor list holding just the PIN.
func NewMultiFactor(pin string) MultiFactor {
	return MultiFactor{pin}
}

// IsEmpty reports whether no usable factor is present. An empty list or a
// blank PIN both count as the user cancelling PIN entry.
func (m MultiFactor) IsEmpty() bool {
	return len(m) == 0 || m[0] == ""
}

// ToInt converts the factors to the integer form the crypto engine folds
// into the token. The PIN is interpreted as a fixed-width decimal of
// pinLength digits, so "042" and "0042" are the same PIN at length 4.
// Non-numeric extra factors are reduced through SHA-256 to a stable
// non-negative integer.
func (m MultiFactor) ToInt(pinLength int) ([]int, error) {
	if m.IsEmpty() {
		return nil, errors.New("no factors provided")
	}

	out := make([]int, 0, len(m))
	for i, factor := range m {
		if i == 0 {
			if len(factor) > pinLength {
				return nil, errors.Errorf(
					"pin has %d digits, maximum is %d",
					len(factor), pinLength)
			}
			factor = strings.Repeat("0", pinLength-len(factor)) + factor
			n, err := strconv.Atoi(factor)
			if err != nil {
				return nil, errors.Wrap(err, "pin is not numeric")
			}
			out = append(out, n)
			continue
		}

		if n, err := strconv.Atoi(factor); err == nil {
			out = append(out, n)
			continue
		}
		digest := sha256.Sum256([]byte(factor))
		n := int(binary.BigEndian.Uint32(digest[:4]) & 0x7fffffff)
		out = append(out, n)
	}
	return out, nil
}
