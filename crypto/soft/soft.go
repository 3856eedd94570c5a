////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package soft is the software (non-TEE) crypto engine. It performs the
// M-Pin client-side math on the BN254CX pairing curve via fabric-amcl and
// keeps its token registry and in-flight registration tokens in an
// encrypted key-value store. Secret material never leaves this package.
package soft

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/hyperledger/fabric-amcl/amcl"
	"github.com/hyperledger/fabric-amcl/amcl/FP256BN"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/mfactor/client/crypto"
)

// storage keys inside the engine-owned kv
const (
	tokensStorageKey  = "mpinCryptoTokens"
	regOTTsStorageKey = "mpinCryptoRegOTTs"
)

// tokenRecord is what the engine persists per enrolled mpinId. PrivateKey
// is only set for signing sub-identities and never crosses the package
// boundary.
type tokenRecord struct {
	Token      string `json:"token"`
	PrivateKey string `json:"privateKey,omitempty"`
	DVS        bool   `json:"dvs,omitempty"`
}

// regOTTRecord persists an in-flight registration one-time token.
type regOTTRecord struct {
	RegOTT     string `json:"regOTT"`
	AccessCode string `json:"accessCode"`
}

// rawBlob adapts a plain byte slice to the ekv Marshaler/Unmarshaler pair.
type rawBlob struct {
	data []byte
}

func (b *rawBlob) Marshal() []byte { return b.data }

func (b *rawBlob) Unmarshal(data []byte) error {
	b.data = data
	return nil
}

// passState is the round state carried from pass one to pass two.
type passState struct {
	mpinID string
	x      *FP256BN.BIG
	secret *FP256BN.ECP
}

// Engine implements crypto.Engine in software.
type Engine struct {
	kv     ekv.KeyValue
	rng    *amcl.RAND
	open   bool
	tokens map[string]tokenRecord
	staged *struct {
		mpinID string
		rec    tokenRecord
	}
	pass *passState
}

// NewEngine builds a software engine over the given key-value store. The
// store should be an encrypted one in production; tests pass a Memstore.
func NewEngine(kv ekv.KeyValue) *Engine {
	return &Engine{kv: kv}
}

var _ crypto.Engine = (*Engine)(nil)

func (e *Engine) OpenSession() error {
	if e.open {
		return nil
	}
	rng, err := newRand()
	if err != nil {
		return err
	}
	tokens, err := e.loadTokens()
	if err != nil {
		return err
	}
	e.rng = rng
	e.tokens = tokens
	e.open = true
	return nil
}

func (e *Engine) CloseSession() {
	e.pass = nil
	e.staged = nil
	e.tokens = nil
	e.rng = nil
	e.open = false
}

func (e *Engine) checkOpen() error {
	if !e.open {
		return errors.New("crypto session not open")
	}
	return nil
}

// computeToken recombines the two secret shares and strips the factor
// contribution so only the factor-less token is ever stored.
func (e *Engine) computeToken(id crypto.Identity, factors []int) (*FP256BN.ECP, []byte, error) {
	mpinID, err := hex.DecodeString(id.MPinID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid mpinId hex")
	}
	cs1, err := ecpFromHex(id.ClientSecret1)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "bad client secret share 1")
	}
	cs2, err := ecpFromHex(id.ClientSecret2)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "bad client secret share 2")
	}

	// Recombine in G1, then subtract factors*H(mpinId).
	cs1.Add(cs2)
	cs1.Sub(FP256BN.G1mul(hashToPoint(mpinID), factorsToBIG(factors)))
	return cs1, mpinID, nil
}

func (e *Engine) register(id crypto.Identity, factors []int, rec tokenRecord, tmp bool) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	token, _, err := e.computeToken(id, factors)
	if err != nil {
		return err
	}
	if rec.PrivateKey != "" {
		// Fold the DVS private key into the stored token so signing
		// reconstructs the full secret from token plus factors alone.
		sk, err := bigFromHex(rec.PrivateKey)
		if err != nil {
			return errors.WithMessage(err, "bad DVS private key")
		}
		mpinID, _ := hex.DecodeString(id.MPinID)
		token.Add(FP256BN.G1mul(hashToPoint(mpinID), sk))
	}
	rec.Token = ecpToHex(token)

	if tmp {
		e.staged = &struct {
			mpinID string
			rec    tokenRecord
		}{mpinID: id.MPinID, rec: rec}
		return nil
	}
	return e.storeToken(id.MPinID, rec)
}

func (e *Engine) Register(id crypto.Identity, factors []int) error {
	return e.register(id, factors, tokenRecord{}, false)
}

func (e *Engine) RegisterTmp(id crypto.Identity, factors []int) error {
	return e.register(id, factors, tokenRecord{}, true)
}

func (e *Engine) PersistTmpRegistration() bool {
	if e.staged == nil {
		return false
	}
	err := e.storeToken(e.staged.mpinID, e.staged.rec)
	e.staged = nil
	if err != nil {
		jww.ERROR.Printf("failed to persist staged registration: %+v", err)
		return false
	}
	return true
}

func (e *Engine) DiscardTmpRegistration() {
	e.staged = nil
}

func (e *Engine) RegisterDVS(id crypto.Identity, privateKey string, factors []int) error {
	return e.register(id, factors,
		tokenRecord{PrivateKey: privateKey, DVS: true}, false)
}

func (e *Engine) RegisterDVSTmp(id crypto.Identity, privateKey string, factors []int) error {
	return e.register(id, factors,
		tokenRecord{PrivateKey: privateKey, DVS: true}, true)
}

func (e *Engine) AuthenticatePass1(id crypto.Identity, factors []int, date int,
	timePermitShares []string, dvs bool) (string, string, error) {
	if err := e.checkOpen(); err != nil {
		return "", "", err
	}
	rec, ok := e.tokens[id.MPinID]
	if !ok {
		return "", "", errors.Errorf("no token stored for mpinId %s", id.MPinID)
	}
	token, err := ecpFromHex(rec.Token)
	if err != nil {
		return "", "", errors.WithMessage(err, "stored token is corrupt")
	}
	mpinID, err := hex.DecodeString(id.MPinID)
	if err != nil {
		return "", "", errors.Wrap(err, "invalid mpinId hex")
	}

	hid := hashToPoint(mpinID)

	// Rebuild the full secret: token + factors*H(mpinId), plus the
	// recombined time permit when a date participates.
	secret := FP256BN.G1mul(hid, factorsToBIG(factors))
	secret.Add(token)

	x := randModOrder(e.rng)
	commitmentU := ecpToHex(FP256BN.G1mul(hid, x))

	commitmentUT := ""
	if date != 0 {
		if len(timePermitShares) != 2 {
			return "", "", errors.Errorf(
				"expected 2 time permit shares, got %d", len(timePermitShares))
		}
		permit, err := ecpFromHex(timePermitShares[0])
		if err != nil {
			return "", "", errors.WithMessage(err, "bad time permit share 1")
		}
		permit2, err := ecpFromHex(timePermitShares[1])
		if err != nil {
			return "", "", errors.WithMessage(err, "bad time permit share 2")
		}
		permit.Add(permit2)
		secret.Add(permit)

		hdate := hashDatePoint(date, mpinID)
		hdate.Add(hid)
		commitmentUT = ecpToHex(FP256BN.G1mul(hdate, x))
	}

	e.pass = &passState{mpinID: id.MPinID, x: x, secret: secret}
	return commitmentU, commitmentUT, nil
}

func (e *Engine) AuthenticatePass2(id crypto.Identity, challenge string, dvs bool) (string, error) {
	if err := e.checkOpen(); err != nil {
		return "", err
	}
	if e.pass == nil || e.pass.mpinID != id.MPinID {
		return "", errors.New("no pass one state for this identity")
	}
	y, err := bigFromHex(challenge)
	if err != nil {
		return "", errors.WithMessage(err, "bad challenge")
	}

	// V = -(x+y) * secret
	v := FP256BN.G1mul(e.pass.secret,
		FP256BN.Modneg(modAdd(e.pass.x, y, groupOrder), groupOrder))
	e.pass = nil
	return ecpToHex(v), nil
}

func (e *Engine) GenerateSignKeypair() (string, string, error) {
	if err := e.checkOpen(); err != nil {
		return "", "", err
	}
	sk := randModOrder(e.rng)
	pub := FP256BN.G2mul(genG2, sk)
	return ecp2ToHex(pub), hex.EncodeToString(bigToBytes(sk)), nil
}

func (e *Engine) Sign(id crypto.Identity, factors []int, documentHash string,
	epochTime int) (string, string, error) {
	if err := e.checkOpen(); err != nil {
		return "", "", err
	}
	rec, ok := e.tokens[id.MPinID]
	if !ok || !rec.DVS {
		return "", "", errors.Errorf("no signing token stored for mpinId %s",
			id.MPinID)
	}
	token, err := ecpFromHex(rec.Token)
	if err != nil {
		return "", "", errors.WithMessage(err, "stored signing token is corrupt")
	}
	hash, err := hex.DecodeString(documentHash)
	if err != nil {
		return "", "", errors.Wrap(err, "document hash is not hex")
	}
	mpinID, err := hex.DecodeString(id.MPinID)
	if err != nil {
		return "", "", errors.Wrap(err, "invalid mpinId hex")
	}

	hid := hashToPoint(mpinID)
	secret := FP256BN.G1mul(hid, factorsToBIG(factors))
	secret.Add(token)

	x := randModOrder(e.rng)
	u := FP256BN.G1mul(hid, x)

	// y binds the commitment, the document hash and the signing time.
	yInput := make([]byte, 0, len(hash)+4+2*fieldBytes+1)
	yInput = append(yInput, hash...)
	epochBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(epochBuf, uint32(epochTime))
	yInput = append(yInput, epochBuf...)
	uBuf := make([]byte, 2*fieldBytes+1)
	u.ToBytes(uBuf, false)
	yInput = append(yInput, uBuf...)
	y := hashModOrder(yInput)

	v := FP256BN.G1mul(secret,
		FP256BN.Modneg(modAdd(x, y, groupOrder), groupOrder))
	return ecpToHex(u), ecpToHex(v), nil
}

func (e *Engine) DvsHash(id string) string {
	digest := sha256.Sum256([]byte(id))
	return hex.EncodeToString(digest[:])
}

func (e *Engine) DeleteToken(mpinID string) {
	if e.tokens == nil {
		return
	}
	delete(e.tokens, mpinID)
	if err := e.saveTokens(); err != nil {
		jww.ERROR.Printf("failed to delete token for %s: %+v", mpinID, err)
	}
}

func (e *Engine) ClearTokens() {
	e.tokens = map[string]tokenRecord{}
	if err := e.saveTokens(); err != nil {
		jww.ERROR.Printf("failed to clear tokens: %+v", err)
	}
}

func (e *Engine) storeToken(mpinID string, rec tokenRecord) error {
	if e.tokens == nil {
		e.tokens = map[string]tokenRecord{}
	}
	e.tokens[mpinID] = rec
	return e.saveTokens()
}

func (e *Engine) loadTokens() (map[string]tokenRecord, error) {
	tokens := map[string]tokenRecord{}
	blob := &rawBlob{}
	if err := e.kv.Get(tokensStorageKey, blob); err != nil {
		if !ekv.Exists(err) {
			return tokens, nil
		}
		return nil, errors.WithMessage(err, "failed to load token registry")
	}
	if err := json.Unmarshal(blob.data, &tokens); err != nil {
		return nil, errors.Wrap(err, "token registry is corrupt")
	}
	return tokens, nil
}

func (e *Engine) saveTokens() error {
	data, err := json.Marshal(e.tokens)
	if err != nil {
		return errors.Wrap(err, "failed to marshal token registry")
	}
	if err = e.kv.Set(tokensStorageKey, &rawBlob{data: data}); err != nil {
		return errors.WithMessage(err, "failed to store token registry")
	}
	return nil
}
