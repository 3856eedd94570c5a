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

// StartRegistrationDVS provisions a signing sub-identity for a registered
// user. The user first proves PIN possession through a dvs-reg scoped
// authentication; the returned token authorizes issuing the sub-identity.
// The fresh signing private key stays in memory until
// FinishRegistrationDVS folds it into the stored signing token.
func (s *SDK) StartRegistrationDVS(user *User, factors MultiFactor) status.Status {
	reply, st := s.authenticate(user, factors, "", authDVSReg, false)
	if !st.IsOK() {
		return st
	}
	user, lst := s.lookup(user)
	if !lst.IsOK() {
		return lst
	}
	if reply.DVSRegister == nil || reply.DVSRegister.Token == "" {
		return status.New(status.ResponseParseError,
			"backend did not return a DVS registration token")
	}

	pub, priv, err := s.crypto.GenerateSignKeypair()
	if err != nil {
		return status.FromError(status.CryptoError, err)
	}

	dvsReply, st := s.client.RegisterDVS(s.settings.DVSRegURL,
		&rps.DVSRegisterRequest{
			PublicKey:        pub,
			DeviceName:       user.deviceName,
			DVSRegisterToken: reply.DVSRegister.Token,
		})
	if !st.IsOK() {
		return st
	}

	cs1, st := s.client.GetClientSecretShare1(s.settings.SignatureURL,
		dvsReply.MPinID, reply.DVSRegister.Token, "")
	if !st.IsOK() {
		return st
	}

	user.signPublicKey = pub
	user.signPrivateKey = priv
	user.signMPinID = dvsReply.MPinID
	user.signCurve = dvsReply.Curve
	user.signDTAs = dvsReply.DTAs
	user.signClientSecret1 = cs1.ClientSecretShare
	user.signCS2URL = cs1.CS2URL
	user.signRegStarted = true
	user.canSign = false

	if st = s.writeUsers(); !st.IsOK() {
		return st
	}
	jww.INFO.Printf("mfa: DVS registration started for %s", user.id)
	return status.Ok()
}

// FinishRegistrationDVS derives and stores the signing token. The signing
// private key only exists between the start and finish steps; if the
// process restarted in between, the DVS registration must start over.
func (s *SDK) FinishRegistrationDVS(user *User, factors MultiFactor) status.Status {
	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	user, st := s.lookup(user)
	if !st.IsOK() {
		return st
	}
	if !user.signRegStarted || user.signPrivateKey == "" {
		return status.New(status.FlowError,
			"no DVS registration is in progress for %q", user.id)
	}
	if factors.IsEmpty() {
		return status.New(status.PinInputCanceled, "no PIN was entered")
	}
	factorsInt, err := factors.ToInt(user.pinLength)
	if err != nil {
		return status.FromError(status.FlowError, err)
	}

	cs2, st := s.client.GetClientSecretShare2(user.signCS2URL)
	if !st.IsOK() {
		return st
	}
	user.signClientSecret2 = cs2.ClientSecret

	err = s.crypto.RegisterDVSTmp(crypto.Identity{
		MPinID:        user.signMPinID,
		ClientSecret1: user.signClientSecret1,
		ClientSecret2: user.signClientSecret2,
	}, user.signPrivateKey, factorsInt)
	if err != nil {
		return status.FromError(status.CryptoError, err)
	}
	if !s.crypto.PersistTmpRegistration() {
		s.crypto.DiscardTmpRegistration()
		return status.New(status.CryptoError,
			"cannot persist the signing token for %q", user.id)
	}

	user.signPrivateKey = ""
	user.signRegStarted = false
	user.canSign = true
	if st = s.writeUsers(); !st.IsOK() {
		return st
	}
	jww.INFO.Printf("mfa: DVS registration finished for %s", user.id)
	return status.Ok()
}

// provisionDVS re-issues the signing sub-identity in one shot, used when
// the signing secret expired mid-authentication. The old private key is
// unrecoverable, so a fresh keypair is provisioned under the renewal
// token.
func (s *SDK) provisionDVS(user *User, factors MultiFactor,
	token *rps.DVSRegister) status.Status {

	factorsInt, err := factors.ToInt(user.pinLength)
	if err != nil {
		return status.FromError(status.FlowError, err)
	}

	pub, priv, err := s.crypto.GenerateSignKeypair()
	if err != nil {
		return status.FromError(status.CryptoError, err)
	}
	dvsReply, st := s.client.RegisterDVS(s.settings.DVSRegURL,
		&rps.DVSRegisterRequest{
			PublicKey:        pub,
			DeviceName:       user.deviceName,
			DVSRegisterToken: token.Token,
		})
	if !st.IsOK() {
		return st
	}
	cs1, st := s.client.GetClientSecretShare1(s.settings.SignatureURL,
		dvsReply.MPinID, token.Token, "")
	if !st.IsOK() {
		return st
	}
	cs2, st := s.client.GetClientSecretShare2(cs1.CS2URL)
	if !st.IsOK() {
		return st
	}

	err = s.crypto.RegisterDVSTmp(crypto.Identity{
		MPinID:        dvsReply.MPinID,
		ClientSecret1: cs1.ClientSecretShare,
		ClientSecret2: cs2.ClientSecret,
	}, priv, factorsInt)
	if err != nil {
		return status.FromError(status.CryptoError, err)
	}
	if !s.crypto.PersistTmpRegistration() {
		s.crypto.DiscardTmpRegistration()
		return status.New(status.CryptoError,
			"cannot persist the renewed signing token for %q", user.id)
	}

	if user.signMPinID != "" && user.signMPinID != dvsReply.MPinID {
		s.crypto.DeleteToken(user.signMPinID)
	}
	user.signPublicKey = pub
	user.signMPinID = dvsReply.MPinID
	user.signCurve = dvsReply.Curve
	user.signDTAs = dvsReply.DTAs
	user.signClientSecret1 = cs1.ClientSecretShare
	user.signClientSecret2 = cs2.ClientSecret
	user.signCS2URL = cs1.CS2URL
	user.canSign = true
	return s.writeUsers()
}

// Sign authenticates the signing sub-identity with the user's factors and
// produces a designated-verifier signature over the document hash.
func (s *SDK) Sign(user *User, documentHash string, factors MultiFactor,
	epochTime int) (*Signature, status.Status) {

	u, lst := s.lookup(user)
	if lst.IsOK() {
		user = u
	}
	if user == nil || !user.canSign {
		return nil, status.New(status.FlowError,
			"user has no signing identity")
	}

	// The transcript proves the factors are right before any signature
	// leaves the device; a wrong PIN surfaces here, not as a bad
	// signature.
	if _, st := s.authenticate(user, factors, "", authDVSSign, false); !st.IsOK() {
		return nil, st
	}

	factorsInt, err := factors.ToInt(user.pinLength)
	if err != nil {
		return nil, status.FromError(status.FlowError, err)
	}
	id, _, _, _ := user.authIdentity(authDVSSign)
	sigU, sigV, err := s.crypto.Sign(id, factorsInt, documentHash, epochTime)
	if err != nil {
		return nil, status.FromError(status.CryptoError, err)
	}

	return &Signature{
		Hash:      documentHash,
		MPinID:    user.signMPinID,
		U:         sigU,
		V:         sigV,
		PublicKey: user.signPublicKey,
		DTAs:      user.signDTAs,
	}, status.Ok()
}

// HashDocument reduces a document to the hash the signing protocol
// operates on.
func (s *SDK) HashDocument(document string) string {
	return s.crypto.DvsHash(document)
}
