////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/mfactor/client/status"
)

// storedUser is the persisted form of a User. The registration one-time
// token is not part of it: that lives with the crypto engine's protected
// store and is re-joined at load time.
type storedUser struct {
	ID               string `json:"id"`
	Backend          string `json:"backend"`
	CustomerID       string `json:"customerId"`
	AppID            string `json:"appId"`
	DeviceName       string `json:"deviceName"`
	State            string `json:"state"`
	MPinID           string `json:"mpinId"`
	Curve            string `json:"curve"`
	DTAs             string `json:"dtas"`
	ExpireTime       int64  `json:"expireTime"`
	NowTime          int64  `json:"nowTime"`
	RegToken         string `json:"regToken,omitempty"`
	CS2URL           string `json:"cs2url,omitempty"`
	ClientSecret1    string `json:"cs1,omitempty"`
	ClientSecret2    string `json:"cs2,omitempty"`
	TimePermitShare1 string `json:"timePermitShare1,omitempty"`
	TimePermit       string `json:"timePermit,omitempty"`
	TimePermitDate   int    `json:"timePermitDate,omitempty"`
	PinLength        int    `json:"pinLength"`
	VerificationType string `json:"verificationType,omitempty"`

	CanSign           bool   `json:"canSign,omitempty"`
	SignPublicKey     string `json:"signPublicKey,omitempty"`
	SignMPinID        string `json:"signMpinId,omitempty"`
	SignCurve         string `json:"signCurve,omitempty"`
	SignDTAs          string `json:"signDtas,omitempty"`
	SignCS2URL        string `json:"signCs2url,omitempty"`
	SignClientSecret1 string `json:"signCs1,omitempty"`
	SignClientSecret2 string `json:"signCs2,omitempty"`
}

type userBlob struct {
	Version int          `json:"version"`
	Users   []storedUser `json:"users"`
}

const userBlobVersion = 1

func (u *User) toStored() storedUser {
	return storedUser{
		ID:               u.id,
		Backend:          u.backend,
		CustomerID:       u.customerID,
		AppID:            u.appID,
		DeviceName:       u.deviceName,
		State:            u.state.String(),
		MPinID:           u.mpinID,
		Curve:            u.curve,
		DTAs:             u.dtas,
		ExpireTime:       u.regExpiration.ExpireTimeSeconds,
		NowTime:          u.regExpiration.NowTimeSeconds,
		RegToken:         u.regToken,
		CS2URL:           u.cs2URL,
		ClientSecret1:    u.clientSecret1,
		ClientSecret2:    u.clientSecret2,
		TimePermitShare1: u.timePermitShare1,
		TimePermit:       u.timePermitCache.permit,
		TimePermitDate:   u.timePermitCache.date,
		PinLength:        u.pinLength,
		VerificationType: u.verificationType,

		CanSign:           u.canSign,
		SignPublicKey:     u.signPublicKey,
		SignMPinID:        u.signMPinID,
		SignCurve:         u.signCurve,
		SignDTAs:          u.signDTAs,
		SignCS2URL:        u.signCS2URL,
		SignClientSecret1: u.signClientSecret1,
		SignClientSecret2: u.signClientSecret2,
	}
}

func userFromStored(su storedUser) *User {
	return &User{
		id:         su.ID,
		backend:    su.Backend,
		customerID: su.CustomerID,
		appID:      su.AppID,
		deviceName: su.DeviceName,
		state:      stateFromString(su.State),
		mpinID:     su.MPinID,
		curve:      su.Curve,
		dtas:       su.DTAs,
		regExpiration: Expiration{
			ExpireTimeSeconds: su.ExpireTime,
			NowTimeSeconds:    su.NowTime,
		},
		regToken:         su.RegToken,
		cs2URL:           su.CS2URL,
		clientSecret1:    su.ClientSecret1,
		clientSecret2:    su.ClientSecret2,
		timePermitShare1: su.TimePermitShare1,
		timePermitCache: TimePermitCache{
			permit: su.TimePermit,
			date:   su.TimePermitDate,
		},
		pinLength:        su.PinLength,
		verificationType: su.VerificationType,

		canSign:           su.CanSign,
		signPublicKey:     su.SignPublicKey,
		signMPinID:        su.SignMPinID,
		signCurve:         su.SignCurve,
		signDTAs:          su.SignDTAs,
		signCS2URL:        su.SignCS2URL,
		signClientSecret1: su.SignClientSecret1,
		signClientSecret2: su.SignClientSecret2,
	}
}

// writeUsers persists the registry to both storage tiers. The secure tier
// is authoritative; the non-secure copy keeps the registry readable on
// platforms where the secure store can be wiped out from under the app.
func (s *SDK) writeUsers() status.Status {
	blob := userBlob{Version: userBlobVersion}
	for _, u := range s.users {
		blob.Users = append(blob.Users, u.toStored())
	}
	sort.Slice(blob.Users, func(i, j int) bool {
		return blob.Users[i].ID < blob.Users[j].ID
	})

	data, err := json.Marshal(&blob)
	if err != nil {
		return status.FromError(status.StorageError, err)
	}
	if err = s.secure.Set(data); err != nil {
		return status.FromError(status.StorageError, err)
	}
	if err = s.nonSecure.Set(data); err != nil {
		return status.FromError(status.StorageError, err)
	}
	return status.Ok()
}

// loadUsers restores the registry, preferring the secure tier. Users left
// mid-registration get their one-time token re-joined from the crypto
// engine's store.
func (s *SDK) loadUsers() status.Status {
	data, err := s.secure.Get()
	if err != nil {
		return status.FromError(status.StorageError, err)
	}
	if len(data) == 0 {
		if data, err = s.nonSecure.Get(); err != nil {
			return status.FromError(status.StorageError, err)
		}
	}
	if len(data) == 0 {
		return status.Ok()
	}

	var blob userBlob
	if err = json.Unmarshal(data, &blob); err != nil {
		return status.FromError(status.StorageError, err)
	}

	s.users = map[string]*User{}
	for _, su := range blob.Users {
		u := userFromStored(su)
		if u.state == StateStartedRegistration || u.state == StateActivated {
			regOTT, accessCode, loadErr := s.crypto.LoadRegOTT(u.mpinID)
			if loadErr != nil {
				jww.WARN.Printf("mfa: cannot restore regOTT for %s: %+v",
					u.id, loadErr)
			} else if regOTT != "" {
				u.regOTT = splitRegOTT(regOTT)
				u.accessCode = accessCode
			}
		}
		s.users[u.key()] = u
	}
	return status.Ok()
}

// MakeNewUser creates a user handle for the current backend and places it
// in the registry in its creation state. No network traffic happens; the
// identity exists only locally until StartRegistration.
func (s *SDK) MakeNewUser(id, deviceName string) *User {
	if deviceName == "" {
		deviceName = "go-client-" + uuid.NewString()[:8]
	}
	u := &User{
		id:         id,
		backend:    s.backend,
		deviceName: deviceName,
		state:      StateInvalid,
	}
	s.users[u.key()] = u
	return u
}

// IsUserExisting reports whether an identity is enrolled against the
// current backend for the given customer and app scope.
func (s *SDK) IsUserExisting(id, customerID, appID string) bool {
	_, ok := s.users[makeUserKey(id, s.backend, customerID, appID)]
	return ok
}

// ListUsers returns the registered users for the current backend, ordered
// by identity for stable display.
func (s *SDK) ListUsers() []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		if s.backend == "" || u.backend == s.backend {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// DeleteUser removes a user and every secret attached to it: the stored
// token, any staged one-time token and the registry entry.
func (s *SDK) DeleteUser(user *User) {
	if user == nil {
		return
	}
	if user.mpinID != "" {
		s.crypto.DeleteToken(user.mpinID)
		if err := s.crypto.DeleteRegOTT(user.mpinID); err != nil {
			jww.WARN.Printf("mfa: delete regOTT for %s: %+v", user.id, err)
		}
	}
	if user.signMPinID != "" {
		s.crypto.DeleteToken(user.signMPinID)
	}
	delete(s.users, user.key())
	delete(s.logoutData, user.key())
	user.invalidate()
	if st := s.writeUsers(); !st.IsOK() {
		jww.ERROR.Printf("mfa: persisting user delete: %s", st)
	}
}

// ClearUsers wipes the whole registry and all crypto tokens.
func (s *SDK) ClearUsers() {
	for _, u := range s.users {
		if u.mpinID != "" {
			_ = s.crypto.DeleteRegOTT(u.mpinID)
		}
		u.invalidate()
	}
	s.crypto.ClearTokens()
	s.users = map[string]*User{}
	s.logoutData = map[string]*logoutData{}
	if st := s.writeUsers(); !st.IsOK() {
		jww.ERROR.Printf("mfa: persisting user clear: %s", st)
	}
}

// lookup returns the registry's instance for the handle, guarding against
// stale pointers from before a Destroy/Init cycle.
func (s *SDK) lookup(user *User) (*User, status.Status) {
	if user == nil {
		return nil, status.New(status.FlowError, "nil user")
	}
	u, ok := s.users[user.key()]
	if !ok {
		return nil, status.New(status.FlowError, "unknown user %q", user.id)
	}
	return u, status.Ok()
}
