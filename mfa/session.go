////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/mfactor/client/status"
)

// GetServiceDetails resolves a scanned service URL into the backend it
// belongs to. It only needs an initialized SDK, not a bound backend; the
// result typically feeds SetBackend.
func (s *SDK) GetServiceDetails(serviceURL string) (*ServiceDetails, status.Status) {
	if st := s.checkInitialized(); !st.IsOK() {
		return nil, st
	}
	reply, st := s.client.GetServiceDetails(serviceURL)
	if !st.IsOK() {
		return nil, st
	}
	return &ServiceDetails{
		Name:       reply.Name,
		BackendURL: reply.BackendURL,
		RPSPrefix:  reply.RPSPrefix,
		LogoURL:    reply.LogoURL,
	}, status.Ok()
}

// GetSessionDetails describes the browser session behind an access code,
// so the app can show what the user is about to log in to.
func (s *SDK) GetSessionDetails(accessCode string) (*SessionDetails, status.Status) {
	if st := s.checkBackendSet(); !st.IsOK() {
		return nil, st
	}
	reply, st := s.client.GetSessionDetails(s.settings.CodeStatusURL,
		accessCode)
	if !st.IsOK() {
		return nil, st
	}
	return &SessionDetails{
		PrerollID:       reply.PrerollID,
		AppName:         reply.AppName,
		AppIconURL:      reply.AppIconURL,
		CustomerID:      reply.CustomerID,
		CustomerName:    reply.CustomerName,
		CustomerIconURL: reply.CustomerIconURL,
		RegisterOnly:    reply.RegisterOnly,
	}, status.Ok()
}

// AbortSession tells the backend the user walked away from the session
// bound to the access code.
func (s *SDK) AbortSession(accessCode string) status.Status {
	if st := s.checkBackendSet(); !st.IsOK() {
		return st
	}
	return s.client.AbortSession(s.settings.CodeStatusURL, accessCode)
}

// GetAccessCode requests a fresh access code from the relying party's
// authorization endpoint, for flows where the app drives the session
// itself instead of scanning one.
func (s *SDK) GetAccessCode(authzURL string) (string, status.Status) {
	if st := s.checkInitialized(); !st.IsOK() {
		return "", st
	}
	return s.client.GetAccessCode(authzURL)
}

// CanLogout reports whether the last authentication of this user left a
// server-side session that Logout can end.
func (s *SDK) CanLogout(user *User) bool {
	u, st := s.lookup(user)
	if !st.IsOK() {
		return false
	}
	ld := s.logoutData[u.key()]
	return ld != nil && ld.logoutURL != ""
}

// Logout ends the browser session bound to the user's last
// authentication. The user's registration state is untouched; only the
// cached session artifacts go away. Returns false when there is nothing
// to log out of or the backend refused.
func (s *SDK) Logout(user *User) bool {
	u, st := s.lookup(user)
	if !st.IsOK() {
		return false
	}
	ld := s.logoutData[u.key()]
	if ld == nil || ld.logoutURL == "" {
		return false
	}
	delete(s.logoutData, u.key())

	if st := s.client.Logout(ld.logoutURL, ld.data); !st.IsOK() {
		jww.WARN.Printf("mfa: logout of %s failed: %s", u.id, st)
		return false
	}
	return true
}
