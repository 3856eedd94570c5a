////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"encoding/json"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/mfactor/client/crypto"
	"gitlab.com/mfactor/client/rps"
	"gitlab.com/mfactor/client/status"
)

// authType selects which variant of the authentication transcript runs;
// the backend sees it as the requested scope.
type authType int

const (
	authNormal authType = iota
	authOTP
	authRegCode
	authDVSReg
	authDVSSign
)

func (a authType) scope() []string {
	switch a {
	case authOTP:
		return []string{"otp"}
	case authRegCode:
		return []string{"reg-code"}
	case authDVSReg:
		return []string{"dvs-reg"}
	case authDVSSign:
		return []string{"dvs-auth"}
	default:
		return []string{"oidc"}
	}
}

// accessNumberLength is the length of numeric access numbers that carry a
// trailing checksum digit.
const accessNumberLength = 7

// StartAuthentication prepares a registered user for authentication
// against a browser session: it acquires the day's time permit shares,
// reusing the cached certivox share while the day matches.
func (s *SDK) StartAuthentication(user *User, accessCode string) status.Status {
	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	if user.state != StateRegistered {
		return status.New(status.FlowError,
			"user %q is in state %s, cannot authenticate", user.id,
			user.state)
	}
	if st = s.validateAccessCode(accessCode); !st.IsOK() {
		return st
	}

	if st = s.acquireTimePermits(user); !st.IsOK() {
		return st
	}
	user.accessCode = accessCode
	return s.writeUsers()
}

// StartAuthenticationOTP prepares an OTP retrieval; no browser session is
// involved.
func (s *SDK) StartAuthenticationOTP(user *User) status.Status {
	return s.StartAuthentication(user, "")
}

// StartAuthenticationRegCode prepares retrieval of a registration code for
// enrolling another device.
func (s *SDK) StartAuthenticationRegCode(user *User) status.Status {
	return s.StartAuthentication(user, "")
}

// acquireTimePermits refreshes the user's time permit shares for today.
// The customer share is fetched every time since it also reports
// revocation; the certivox share is cached per day. Backends without a
// time permit service skip the mechanism entirely.
func (s *SDK) acquireTimePermits(user *User) status.Status {
	if s.settings.TimePermitsURL == "" {
		return status.Ok()
	}

	reply, st := s.client.GetTimePermitShare1(s.settings.TimePermitsURL,
		user.mpinID)
	if !st.IsOK() {
		if st.Is(status.Revoked) {
			s.blockUser(user)
		}
		return st
	}
	user.timePermitShare1 = reply.TimePermit

	date := reply.Date
	if date == 0 {
		date = todayEpochDays()
	}
	if user.timePermitCache.valid(date) {
		return status.Ok()
	}

	reply2, st := s.client.GetTimePermitShare2(s.settings.CertivoxURL,
		hashMPinID(user.mpinID))
	if !st.IsOK() {
		if st.Is(status.Revoked) {
			s.blockUser(user)
		}
		return st
	}
	user.cacheTimePermit(reply2.TimePermit, date)
	return status.Ok()
}

// validateAccessCode checks the trailing checksum digit of numeric access
// numbers before any network traffic, when the backend says they carry
// one.
func (s *SDK) validateAccessCode(code string) status.Status {
	if code == "" || !s.settings.AccessNumberUseCheckSum ||
		len(code) != accessNumberLength {
		return status.Ok()
	}
	sum := 0
	for i := 0; i < len(code)-1; i++ {
		d := int(code[i] - '0')
		if d < 0 || d > 9 {
			return status.Ok() // not a numeric access number
		}
		sum += d * (len(code) - 1 - i)
	}
	if sum%10 != int(code[len(code)-1]-'0') {
		return status.New(status.IncorrectAccessNumber,
			"access number checksum mismatch")
	}
	return status.Ok()
}

// FinishAuthentication runs the two-pass zero-knowledge transcript with
// the user's factors, bound to the optional browser session access code.
func (s *SDK) FinishAuthentication(user *User, factors MultiFactor,
	accessCode string) status.Status {

	_, st := s.authenticate(user, factors, accessCode, authNormal, false)
	return st
}

// FinishAuthenticationAuthCode authenticates and returns the backend's
// authorization code for an OIDC-style token exchange by the relying
// party.
func (s *SDK) FinishAuthenticationAuthCode(user *User, factors MultiFactor,
	accessCode string) (string, status.Status) {

	reply, st := s.authenticate(user, factors, accessCode, authNormal, true)
	if !st.IsOK() {
		return "", st
	}
	return reply.AuthCode, st
}

// FinishAuthenticationOTP authenticates and retrieves a one-time
// passcode. The OTP carries its own embedded status; authentication may
// succeed while the backend declines to issue a code.
func (s *SDK) FinishAuthenticationOTP(user *User, factors MultiFactor) (*OTP, status.Status) {
	reply, st := s.authenticate(user, factors, "", authOTP, false)
	if !st.IsOK() {
		return nil, st
	}
	var otp OTP
	otp.extractFrom(reply)
	return &otp, st
}

// FinishAuthenticationRegCode authenticates and retrieves a registration
// code usable to enroll another device for the same identity.
func (s *SDK) FinishAuthenticationRegCode(user *User, factors MultiFactor) (*RegCode, status.Status) {
	reply, st := s.authenticate(user, factors, "", authRegCode, false)
	if !st.IsOK() {
		return nil, st
	}
	var rc RegCode
	rc.extractFrom(reply)
	return &rc, st
}

// authenticate is the shared transcript driver. It reports the verdict
// without mutating user state except for the two cases the protocol
// demands: revocation blocks the user, and an expired client secret is
// renewed in place and the transcript retried once.
func (s *SDK) authenticate(user *User, factors MultiFactor, accessCode string,
	at authType, authzRequest bool) (*rps.AuthenticateReply, status.Status) {

	if st := s.checkBackendSet(); !st.IsOK() {
		return nil, st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return nil, st
	}
	if user.state != StateRegistered {
		return nil, status.New(status.FlowError,
			"user %q is in state %s, cannot authenticate", user.id,
			user.state)
	}
	if factors.IsEmpty() {
		return nil, status.New(status.PinInputCanceled, "no PIN was entered")
	}
	factorsInt, err := factors.ToInt(user.pinLength)
	if err != nil {
		return nil, status.FromError(status.FlowError, err)
	}

	reply, st := s.runTranscript(user, factorsInt, accessCode, at,
		authzRequest)

	if st.Is(status.ClientSecretExpired) {
		if renewSt := s.renewSecret(user, factorsInt, reply, at,
			factors); renewSt.IsOK() {
			jww.INFO.Printf("mfa: client secret renewed for %s, retrying",
				user.id)
			reply, st = s.runTranscript(user, factorsInt, accessCode, at,
				authzRequest)
		}
	}

	switch {
	case st.Is(status.Revoked):
		s.blockUser(user)
	case st.IsOK():
		s.recordLogoutData(user, at, reply)
	}
	return reply, st
}

// runTranscript executes pass1, pass2 and the final authenticate call
// once.
func (s *SDK) runTranscript(user *User, factorsInt []int, accessCode string,
	at authType, authzRequest bool) (*rps.AuthenticateReply, status.Status) {

	id, dtas, pubKey, dvs := user.authIdentity(at)

	// The permit day is whatever the backend stamped on the shares at
	// StartAuthentication time, which may differ from the local clock.
	date := 0
	var permits []string
	if at != authDVSSign && user.timePermitShare1 != "" &&
		user.timePermitCache.permit != "" {
		date = user.timePermitCache.date
		permits = []string{user.timePermitShare1, user.timePermitCache.permit}
	}

	u, ut, err := s.crypto.AuthenticatePass1(id, factorsInt, date, permits,
		dvs)
	if err != nil {
		return nil, status.FromError(status.CryptoError, err)
	}

	scope := at.scope()
	if authzRequest {
		scope = append(scope, "authz")
	}
	pass1, st := s.client.AuthenticatePass1(s.settings.MPinAuthServerURL,
		&rps.Pass1Request{
			MPinID: id.MPinID,
			DTAs:   dtas,
			U:      u,
			UT:     ut,
			Pass:   1,
			Scope:  scope,
			PubKey: pubKey,
		})
	if !st.IsOK() {
		return nil, st
	}

	v, err := s.crypto.AuthenticatePass2(id, pass1.Y, dvs)
	if err != nil {
		return nil, status.FromError(status.CryptoError, err)
	}
	pass2, st := s.client.AuthenticatePass2(s.settings.MPinAuthServerURL,
		&rps.Pass2Request{
			MPinID:     id.MPinID,
			AccessCode: accessCode,
			V:          v,
			Pass:       2,
			OTP:        at == authOTP || at == authRegCode,
		})
	if !st.IsOK() {
		return nil, st
	}

	return s.client.Authenticate(s.settings.AuthenticateURL,
		&rps.AuthenticateRequest{AuthOTT: pass2.AuthOTT})
}

// authIdentity selects the primary or signing identity for the transcript.
func (u *User) authIdentity(at authType) (id crypto.Identity, dtas,
	pubKey string, dvs bool) {

	if at == authDVSSign {
		return crypto.Identity{
			MPinID:        u.signMPinID,
			ClientSecret1: u.signClientSecret1,
			ClientSecret2: u.signClientSecret2,
		}, u.signDTAs, u.signPublicKey, true
	}
	return crypto.Identity{
		MPinID:        u.mpinID,
		ClientSecret1: u.clientSecret1,
		ClientSecret2: u.clientSecret2,
	}, u.dtas, "", false
}

// renewSecret re-derives the stored token from a renewal envelope after
// the server master secret rotated. The primary identity renews from the
// in-band envelope; the signing sub-identity is re-provisioned from
// scratch since its private key only ever existed folded into the old
// token.
func (s *SDK) renewSecret(user *User, factorsInt []int,
	reply *rps.AuthenticateReply, at authType, factors MultiFactor) status.Status {

	if reply == nil {
		return status.New(status.ClientSecretExpired, "no renewal envelope")
	}

	if at == authDVSSign {
		if reply.DVSRegister == nil {
			return status.New(status.ClientSecretExpired,
				"no DVS renewal token")
		}
		return s.provisionDVS(user, factors, reply.DVSRegister)
	}

	renew := reply.RenewSecret
	if renew == nil {
		return status.New(status.ClientSecretExpired, "no renewal envelope")
	}

	cs2, st := s.client.GetClientSecretShare2(renew.CS2URL)
	if !st.IsOK() {
		return st
	}

	user.clientSecret1 = renew.ClientSecretShare
	user.clientSecret2 = cs2.ClientSecret
	if renew.Curve != "" {
		user.curve = renew.Curve
	}
	if renew.DTAs != "" {
		user.dtas = renew.DTAs
	}

	err := s.crypto.RegisterTmp(crypto.Identity{
		MPinID:        user.mpinID,
		ClientSecret1: user.clientSecret1,
		ClientSecret2: user.clientSecret2,
	}, factorsInt)
	if err != nil {
		return status.FromError(status.CryptoError, err)
	}
	if !s.crypto.PersistTmpRegistration() {
		s.crypto.DiscardTmpRegistration()
		return status.New(status.CryptoError,
			"cannot persist the renewed token for %q", user.id)
	}
	return s.writeUsers()
}

// blockUser is the terminal revocation transition.
func (s *SDK) blockUser(user *User) {
	jww.WARN.Printf("mfa: user %s was revoked by the backend", user.id)
	user.block()
	s.crypto.DeleteToken(user.mpinID)
	if user.signMPinID != "" {
		s.crypto.DeleteToken(user.signMPinID)
		user.canSign = false
	}
	if st := s.writeUsers(); !st.IsOK() {
		jww.ERROR.Printf("mfa: persisting block of %s: %s", user.id, st)
	}
}

// recordLogoutData keeps the backend's logout payload so Logout can end
// the bound browser session later.
func (s *SDK) recordLogoutData(user *User, at authType,
	reply *rps.AuthenticateReply) {

	if at != authNormal || reply == nil || reply.LogoutURL == "" {
		return
	}
	var data []byte
	if reply.LogoutData != nil {
		data = []byte(*reply.LogoutData)
	} else {
		data, _ = json.Marshal(map[string]string{})
	}
	s.logoutData[user.key()] = &logoutData{
		data:      data,
		logoutURL: reply.LogoutURL,
	}
}
