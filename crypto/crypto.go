////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package crypto declares the zero-knowledge engine contract the SDK
// drives. Implementations hold all secret material: the SDK hands them
// share pairs and factor vectors and receives opaque hex-encoded group
// elements back, never a recombined secret.
package crypto

// Identity is the engine-facing view of one enrolled identity: the derived
// identity string plus the two server-issued client secret shares. For the
// signing sub-identity the same shape is used with the sign-specific
// fields.
type Identity struct {
	// MPinID is the hex-encoded derived identity.
	MPinID string

	// ClientSecret1 and ClientSecret2 are the hex-encoded secret shares
	// fetched from the two trust authorities. They are only ever combined
	// inside the engine.
	ClientSecret1 string
	ClientSecret2 string
}

// Engine is the zero-knowledge crypto capability. All methods are
// synchronous; implementations are not required to be safe for concurrent
// use. Factor vectors arrive already reduced to integers (PIN first).
type Engine interface {
	// OpenSession and CloseSession bracket a unit of work during which
	// secret material may be held in memory. CloseSession wipes any
	// in-flight authentication state.
	OpenSession() error
	CloseSession()

	// Register extracts the multi-factor token from the identity's secret
	// shares and stores it under the identity's mpinId. RegisterTmp writes
	// to a staging slot instead; the caller promotes it with
	// PersistTmpRegistration or drops it with DiscardTmpRegistration once
	// it knows whether the surrounding protocol step committed.
	Register(id Identity, factors []int) error
	RegisterTmp(id Identity, factors []int) error
	PersistTmpRegistration() bool
	DiscardTmpRegistration()

	// AuthenticatePass1 produces the commitments for the first pass of the
	// zero-knowledge exchange. date is the permit day (0 when no time
	// permit participates, as in DVS flows); timePermitShares are the two
	// hex share strings to recombine. The engine retains the round state
	// needed by pass two.
	AuthenticatePass1(id Identity, factors []int, date int,
		timePermitShares []string, dvs bool) (commitmentU, commitmentUT string, err error)

	// AuthenticatePass2 answers the server challenge with the validator.
	AuthenticatePass2(id Identity, challenge string, dvs bool) (validator string, err error)

	// GenerateSignKeypair creates the DVS keypair. The private key is
	// returned to the caller only so it can be threaded into RegisterDVS;
	// it must never be persisted outside the engine.
	GenerateSignKeypair() (publicKey, privateKey string, err error)

	// RegisterDVS extracts and stores the signing token for the signing
	// sub-identity, folding the DVS private key into the stored token.
	// The Tmp variant stages exactly like RegisterTmp.
	RegisterDVS(id Identity, privateKey string, factors []int) error
	RegisterDVSTmp(id Identity, privateKey string, factors []int) error

	// Sign produces the designated-verifier signature pair (U, V) over the
	// document hash at the given epoch time.
	Sign(id Identity, factors []int, documentHash string, epochTime int) (u, v string, err error)

	// DvsHash hashes an identity string the way the DVS sub-protocol
	// expects, returning hex.
	DvsHash(id string) string

	// DeleteToken erases the stored token for one mpinId; ClearTokens
	// erases all of them.
	DeleteToken(mpinID string)
	ClearTokens()

	// SaveRegOTT, LoadRegOTT and DeleteRegOTT persist the in-flight
	// registration one-time token across process restarts; registration
	// may span an external verification step of arbitrary duration.
	// LoadRegOTT returns empty strings when nothing is stored.
	SaveRegOTT(mpinID, regOTT, accessCode string) error
	LoadRegOTT(mpinID string) (regOTT, accessCode string, err error)
	DeleteRegOTT(mpinID string) error
}
