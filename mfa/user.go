////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"fmt"
	"strings"
)

// State is a user's position in the registration lifecycle.
type State int

const (
	// StateInvalid is the creation state: the user exists locally only.
	StateInvalid State = iota

	// StateStartedRegistration means the backend accepted the registration
	// request and issued a one-time token; external verification is
	// pending.
	StateStartedRegistration

	// StateActivated means the identity passed external verification.
	StateActivated

	// StateRegistered means the client secret is derived and stored; the
	// user can authenticate.
	StateRegistered

	// StateBlocked is terminal: the backend revoked the identity. Only a
	// fresh registration under a new identity key recovers.
	StateBlocked
)

// String returns the storage tag for the state.
func (s State) String() string {
	switch s {
	case StateInvalid:
		return "INVALID"
	case StateStartedRegistration:
		return "STARTED_REGISTRATION"
	case StateActivated:
		return "ACTIVATED"
	case StateRegistered:
		return "REGISTERED"
	case StateBlocked:
		return "BLOCKED"
	default:
		return fmt.Sprintf("UNKNOWN_STATE_%d", int(s))
	}
}

func stateFromString(tag string) State {
	switch tag {
	case "STARTED_REGISTRATION":
		return StateStartedRegistration
	case "ACTIVATED":
		return StateActivated
	case "REGISTERED":
		return StateRegistered
	case "BLOCKED":
		return StateBlocked
	default:
		return StateInvalid
	}
}

// Verification types reported by the backend at registration.
const (
	VerificationTypeEmail       = "email"
	VerificationTypeCustom      = "custom"
	VerificationTypeRegCode     = "regCode"
	VerificationTypeDVSRegToken = "dvsRegToken"
)

// Expiration describes when the in-flight registration token lapses, in
// server time.
type Expiration struct {
	ExpireTimeSeconds int64
	NowTimeSeconds    int64
}

// RegOTT is the registration one-time token, held as the two halves it is
// transported in. It is secret material: Clear overwrites before
// releasing.
type RegOTT struct {
	first  string
	second string
}

// splitRegOTT cuts a full token into its two transport halves.
func splitRegOTT(full string) RegOTT {
	half := len(full) / 2
	return RegOTT{first: full[:half], second: full[half:]}
}

// Recombine reassembles the full token from its halves.
func (r RegOTT) Recombine() string {
	return r.first + r.second
}

// IsEmpty reports whether no token is held.
func (r RegOTT) IsEmpty() bool {
	return r.first == "" && r.second == ""
}

// Clear overwrites both halves before dropping them.
func (r *RegOTT) Clear() {
	r.first = strings.Repeat("\x00", len(r.first))
	r.second = strings.Repeat("\x00", len(r.second))
	r.first = ""
	r.second = ""
}

// TimePermitCache holds the certivox time permit share for the day it was
// fetched; a cached share whose day is not today is treated as absent.
type TimePermitCache struct {
	permit string
	date   int
}

// Permit returns the cached share.
func (c *TimePermitCache) Permit() string { return c.permit }

// Date returns the epoch day the share is valid for.
func (c *TimePermitCache) Date() int { return c.date }

func (c *TimePermitCache) set(permit string, date int) {
	c.permit = permit
	c.date = date
}

func (c *TimePermitCache) invalidate() {
	c.permit = ""
	c.date = 0
}

// valid reports whether the cache may serve the given day.
func (c *TimePermitCache) valid(date int) bool {
	return c.permit != "" && c.date == date
}

// User is one identity enrolled against one backend. Callers hold the
// pointer as an opaque handle; all mutation happens inside the SDK through
// the unexported transition methods, and every read goes through the
// exported accessors.
type User struct {
	id         string
	backend    string
	customerID string
	appID      string
	deviceName string

	state            State
	mpinID           string
	curve            string
	dtas             string
	regOTT           RegOTT
	regExpiration    Expiration
	regToken         string
	accessCode       string
	cs2URL           string
	clientSecret1    string
	clientSecret2    string
	timePermitShare1 string
	timePermitCache  TimePermitCache
	pinLength        int
	verificationType string

	// signing sub-identity; private key transits memory only between the
	// DVS start and finish steps and is never persisted here
	canSign           bool
	signRegStarted    bool
	signPublicKey     string
	signPrivateKey    string
	signMPinID        string
	signCurve         string
	signDTAs          string
	signCS2URL        string
	signClientSecret1 string
	signClientSecret2 string
}

// ID returns the identity string the user registered under.
func (u *User) ID() string { return u.id }

// Backend returns the backend URL the user is bound to.
func (u *User) Backend() string { return u.backend }

// CustomerID returns the owning customer identifier.
func (u *User) CustomerID() string { return u.customerID }

// AppID returns the owning application identifier.
func (u *User) AppID() string { return u.appID }

// MPinID returns the derived identity used in protocol messages.
func (u *User) MPinID() string { return u.mpinID }

// State returns the lifecycle state.
func (u *User) State() State { return u.state }

// RegistrationExpiration returns the in-flight token expiry.
func (u *User) RegistrationExpiration() Expiration { return u.regExpiration }

// CanSign reports whether the signing sub-identity is provisioned.
func (u *User) CanSign() bool { return u.canSign }

// PinLength returns the PIN length the backend configured for this
// identity.
func (u *User) PinLength() int { return u.pinLength }

// VerificationType returns how the identity was verified.
func (u *User) VerificationType() string { return u.verificationType }

// key is the composite registry key.
func (u *User) key() string {
	return makeUserKey(u.id, u.backend, u.customerID, u.appID)
}

func makeUserKey(id, backend, customerID, appID string) string {
	return strings.Join([]string{id, backend, customerID, appID}, "\x1f")
}

// setStartedRegistration records the backend's issued registration state
// and moves the user to StateStartedRegistration.
func (u *User) setStartedRegistration(mpinID string, regOTT RegOTT,
	accessCode, customerID, appID, curve, dtas string, pinLength int,
	verificationType string, exp Expiration) {

	u.mpinID = mpinID
	u.regOTT = regOTT
	u.accessCode = accessCode
	u.customerID = customerID
	u.appID = appID
	u.curve = curve
	u.dtas = dtas
	u.pinLength = pinLength
	u.verificationType = verificationType
	u.regExpiration = exp
	u.regToken = ""
	u.state = StateStartedRegistration
}

func (u *User) setActivated() {
	u.state = StateActivated
}

func (u *User) setRegistered() {
	u.state = StateRegistered
}

// block is terminal; no transition method leads out of it.
func (u *User) block() {
	u.state = StateBlocked
}

func (u *User) cacheTimePermit(permit string, date int) {
	u.timePermitCache.set(permit, date)
}

// invalidate resets the user to its creation state, dropping any issued
// identity. The registration must start over.
func (u *User) invalidate() {
	u.state = StateInvalid
	u.mpinID = ""
	u.curve = ""
	u.dtas = ""
	u.regOTT.Clear()
	u.accessCode = ""
	u.cs2URL = ""
	u.clientSecret1 = ""
	u.clientSecret2 = ""
	u.timePermitShare1 = ""
	u.timePermitCache.invalidate()
}
