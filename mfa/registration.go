////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/mfactor/client/crypto"
	"gitlab.com/mfactor/client/rps"
	"gitlab.com/mfactor/client/status"
)

// StartRegistration asks the backend to enroll the identity. On success
// the user holds a server-issued mpinId and a one-time token and waits for
// external verification; the token is persisted through the crypto
// engine's store so the wait may span process restarts.
//
// accessCode binds the registration to a browser session, pushToken
// enrolls the device for push notifications and regCode carries a
// registration code issued by an already-registered device. All three may
// be empty.
func (s *SDK) StartRegistration(user *User, accessCode, pushToken,
	regCode string) status.Status {

	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	if user.state != StateInvalid && user.state != StateStartedRegistration {
		return status.New(status.FlowError,
			"user %q is in state %s, cannot start registration",
			user.id, user.state)
	}

	return s.requestRegistration(user, accessCode, pushToken, regCode)
}

// RestartRegistration re-requests enrollment for a user whose verification
// never arrived, voiding the previous one-time token.
func (s *SDK) RestartRegistration(user *User) status.Status {
	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	if user.state != StateStartedRegistration {
		return status.New(status.FlowError,
			"user %q is in state %s, cannot restart registration",
			user.id, user.state)
	}

	return s.requestRegistration(user, user.accessCode, "", "")
}

func (s *SDK) requestRegistration(user *User, accessCode, pushToken,
	regCode string) status.Status {

	reply, st := s.client.RegisterUser(s.settings.RegisterURL,
		&rps.RegisterRequest{
			UserID:     user.id,
			DeviceName: user.deviceName,
			RegCode:    regCode,
			PushToken:  pushToken,
			AccessCode: accessCode,
		})
	if !st.IsOK() {
		return st
	}
	if reply.MPinID == "" || reply.RegOTT == "" {
		return status.New(status.ResponseParseError,
			"registration reply is missing mpinId or regOTT")
	}

	// The user may be re-registering under a new key: retire the old one.
	oldKey := user.key()
	if user.mpinID != "" && user.mpinID != reply.MPinID {
		s.crypto.DeleteToken(user.mpinID)
		_ = s.crypto.DeleteRegOTT(user.mpinID)
	}

	pinLength := reply.PinLength
	if pinLength == 0 {
		pinLength = s.settings.PinLength
	}
	user.setStartedRegistration(reply.MPinID, splitRegOTT(reply.RegOTT),
		accessCode, reply.CustomerID, reply.AppID, reply.Curve, reply.DTAs,
		pinLength, reply.VerificationType, Expiration{
			ExpireTimeSeconds: reply.ExpireTime,
			NowTimeSeconds:    reply.NowTime,
		})
	if reply.Active {
		// Backend-side verification is disabled; skip straight to the
		// activated state.
		user.setActivated()
	}

	// Re-key the registry entry: customer and app scope arrive with the
	// reply.
	delete(s.users, oldKey)
	s.users[user.key()] = user

	if err := s.crypto.SaveRegOTT(user.mpinID, user.regOTT.Recombine(),
		accessCode); err != nil {
		return status.FromError(status.StorageError, err)
	}
	if st = s.writeUsers(); !st.IsOK() {
		return st
	}
	jww.INFO.Printf("mfa: registration started for %s (state %s)", user.id,
		user.state)
	return status.Ok()
}

// SetRegistrationToken supplies an out-of-band activation token for
// identities whose verification type requires one. It is sent alongside
// the one-time token when the secret shares are fetched.
func (s *SDK) SetRegistrationToken(user *User, regToken string) status.Status {
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	if user.state != StateStartedRegistration {
		return status.New(status.FlowError,
			"user %q is in state %s, cannot set a registration token",
			user.id, user.state)
	}
	user.regToken = regToken
	return s.writeUsers()
}

// IsRegistrationTokenSet reports whether an activation token was supplied.
func (s *SDK) IsRegistrationTokenSet(user *User) bool {
	u, st := s.lookup(user)
	if !st.IsOK() {
		return false
	}
	return u.regToken != ""
}

// ConfirmRegistration polls whether the identity passed verification. The
// probe is the fetch of the first client secret share: while verification
// is pending it fails with IdentityNotVerified and the caller simply tries
// again later. On success the share is cached and the user is activated.
func (s *SDK) ConfirmRegistration(user *User) status.Status {
	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	switch user.state {
	case StateStartedRegistration:
	case StateActivated:
		return status.Ok()
	default:
		return status.New(status.FlowError,
			"user %q is in state %s, cannot confirm registration",
			user.id, user.state)
	}

	reply, st := s.client.GetClientSecretShare1(s.settings.SignatureURL,
		user.mpinID, user.regOTT.Recombine(), user.regToken)
	if !st.IsOK() {
		return st
	}

	user.clientSecret1 = reply.ClientSecretShare
	user.cs2URL = reply.CS2URL
	if reply.Curve != "" {
		user.curve = reply.Curve
	}
	if reply.DTAs != "" {
		user.dtas = reply.DTAs
	}
	user.setActivated()
	if st = s.writeUsers(); !st.IsOK() {
		return st
	}
	jww.INFO.Printf("mfa: registration confirmed for %s", user.id)
	return status.Ok()
}

// FinishRegistration fetches the second secret share, derives the
// multi-factor token inside the crypto engine and retires the one-time
// token. An empty factor list means the user cancelled PIN entry; nothing
// changes in that case.
func (s *SDK) FinishRegistration(user *User, factors MultiFactor) status.Status {
	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	if user.state != StateActivated {
		return status.New(status.FlowError,
			"user %q is in state %s, cannot finish registration",
			user.id, user.state)
	}
	if factors.IsEmpty() {
		return status.New(status.PinInputCanceled, "no PIN was entered")
	}

	factorsInt, err := factors.ToInt(user.pinLength)
	if err != nil {
		return status.FromError(status.FlowError, err)
	}

	reply, st := s.client.GetClientSecretShare2(user.cs2URL)
	if !st.IsOK() {
		return st
	}
	user.clientSecret2 = reply.ClientSecret

	err = s.crypto.RegisterTmp(crypto.Identity{
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
			"cannot persist the derived token for %q", user.id)
	}

	user.regOTT.Clear()
	if err = s.crypto.DeleteRegOTT(user.mpinID); err != nil {
		jww.WARN.Printf("mfa: deleting spent regOTT for %s: %+v", user.id,
			err)
	}
	user.regToken = ""
	user.setRegistered()
	if st = s.writeUsers(); !st.IsOK() {
		// Without a persisted REGISTERED state the stored token is
		// unreachable; take it back out.
		s.crypto.DeleteToken(user.mpinID)
		user.setActivated()
		return st
	}
	jww.INFO.Printf("mfa: registration finished for %s", user.id)
	return status.Ok()
}
