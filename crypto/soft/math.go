////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package soft

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/hyperledger/fabric-amcl/amcl"
	"github.com/hyperledger/fabric-amcl/amcl/FP256BN"
	"github.com/pkg/errors"
)

// CurveName is the curve every identity produced by this engine is bound
// to. The backend must issue shares on the same curve.
const CurveName = "BN254CX"

// GenG2 is a generator of group G2, used for DVS public keys.
var genG2 = FP256BN.NewECP2fp2s(
	FP256BN.NewFP2bigs(FP256BN.NewBIGints(FP256BN.CURVE_Pxa), FP256BN.NewBIGints(FP256BN.CURVE_Pxb)),
	FP256BN.NewFP2bigs(FP256BN.NewBIGints(FP256BN.CURVE_Pya), FP256BN.NewBIGints(FP256BN.CURVE_Pyb)))

// groupOrder is the order of G1/G2.
var groupOrder = FP256BN.NewBIGints(FP256BN.CURVE_Order)

// fieldBytes is the byte length of a group order element.
var fieldBytes = int(FP256BN.MODBYTES)

// newRand returns an amcl RNG with a fresh OS-sourced seed.
func newRand() (*amcl.RAND, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, errors.Wrap(err, "error getting randomness for seed")
	}
	rng := amcl.NewRAND()
	rng.Clean()
	rng.Seed(len(seed), seed)
	return rng, nil
}

// randModOrder returns a random element in 0, ..., groupOrder-1.
func randModOrder(rng *amcl.RAND) *FP256BN.BIG {
	return FP256BN.Randomnum(FP256BN.NewBIGints(FP256BN.CURVE_Order), rng)
}

// hashModOrder hashes data into 0, ..., groupOrder-1.
func hashModOrder(data []byte) *FP256BN.BIG {
	digest := sha256.Sum256(data)
	digestBig := FP256BN.FromBytes(digest[:])
	digestBig.Mod(groupOrder)
	return digestBig
}

// hashToPoint maps arbitrary data onto G1.
func hashToPoint(data []byte) *FP256BN.ECP {
	digest := sha256.Sum256(data)
	return FP256BN.ECP_mapit(digest[:])
}

// hashDatePoint maps (date, id) onto G1 for the time permit leg.
func hashDatePoint(date int, id []byte) *FP256BN.ECP {
	buf := make([]byte, 4+len(id))
	binary.BigEndian.PutUint32(buf, uint32(date))
	copy(buf[4:], id)
	return hashToPoint(buf)
}

// modAdd returns a+b modulo m.
func modAdd(a, b, m *FP256BN.BIG) *FP256BN.BIG {
	c := a.Plus(b)
	c.Mod(m)
	return c
}

// factorsToBIG folds the integer factor vector into a single scalar.
func factorsToBIG(factors []int) *FP256BN.BIG {
	sum := FP256BN.NewBIGint(0)
	for _, f := range factors {
		sum = modAdd(sum, FP256BN.NewBIGint(f), groupOrder)
	}
	return sum
}

// bigToBytes fixes a BIG into its fieldBytes representation.
func bigToBytes(b *FP256BN.BIG) []byte {
	ret := make([]byte, fieldBytes)
	b.ToBytes(ret)
	return ret
}

// bigFromHex decodes a hex scalar, left-padding short input.
func bigFromHex(s string) (*FP256BN.BIG, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid scalar hex %q", s)
	}
	if len(raw) > fieldBytes {
		return nil, errors.Errorf("scalar too long: %d bytes", len(raw))
	}
	buf := make([]byte, fieldBytes)
	copy(buf[fieldBytes-len(raw):], raw)
	b := FP256BN.FromBytes(buf)
	b.Mod(groupOrder)
	return b, nil
}

// ecpToHex serializes an uncompressed G1 point to hex.
func ecpToHex(p *FP256BN.ECP) string {
	buf := make([]byte, 2*fieldBytes+1)
	p.ToBytes(buf, false)
	return hex.EncodeToString(buf)
}

// ecpFromHex decodes a hex G1 point, rejecting off-curve input.
func ecpFromHex(s string) (*FP256BN.ECP, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid point hex %q", s)
	}
	if len(raw) != 2*fieldBytes+1 {
		return nil, errors.Errorf("invalid point length %d", len(raw))
	}
	p := FP256BN.ECP_fromBytes(raw)
	if p.Is_infinity() {
		return nil, errors.New("point not on curve")
	}
	return p, nil
}

// ecp2ToHex serializes a G2 point to hex.
func ecp2ToHex(p *FP256BN.ECP2) string {
	buf := make([]byte, 4*fieldBytes)
	p.ToBytes(buf)
	return hex.EncodeToString(buf)
}
