////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rps

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ClientSettings is the backend configuration document fetched by
// SetBackend. URLs may arrive relative to the backend; Normalize resolves
// them before anything else reads the struct.
type ClientSettings struct {
	RegisterURL             string `json:"registerURL"`
	SignatureURL            string `json:"signatureURL"`
	CertivoxURL             string `json:"certivoxURL"`
	TimePermitsURL          string `json:"timePermitsURL"`
	AuthenticateURL         string `json:"authenticateURL"`
	MPinAuthServerURL       string `json:"mpinAuthServerURL"`
	DVSRegURL               string `json:"dvsRegURL"`
	CodeStatusURL           string `json:"codeStatusURL"`
	AccessNumberUseCheckSum bool   `json:"accessNumberUseCheckSum"`
	AppID                   string `json:"appID"`
	PinLength               int    `json:"pinLength"`

	// raw keeps every settings key for GetClientParam lookups.
	raw map[string]json.RawMessage
}

// UnmarshalJSON decodes the typed fields and retains the raw document.
func (s *ClientSettings) UnmarshalJSON(data []byte) error {
	type alias ClientSettings
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = ClientSettings(a)
	return json.Unmarshal(data, &s.raw)
}

// Param returns the raw string value of any settings key, or empty when
// absent.
func (s *ClientSettings) Param(key string) string {
	raw, ok := s.raw[key]
	if !ok {
		return ""
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return str
	}
	return strings.Trim(string(raw), `"`)
}

// Validate rejects settings documents that lack the endpoints every flow
// needs. SetBackend must leave SDK state untouched on malformed settings.
func (s *ClientSettings) Validate() error {
	switch {
	case s.RegisterURL == "":
		return errors.New("client settings missing registerURL")
	case s.SignatureURL == "":
		return errors.New("client settings missing signatureURL")
	case s.MPinAuthServerURL == "":
		return errors.New("client settings missing mpinAuthServerURL")
	case s.AuthenticateURL == "":
		return errors.New("client settings missing authenticateURL")
	}
	return nil
}

// Normalize resolves relative endpoint URLs against the backend base.
func (s *ClientSettings) Normalize(backend string) {
	base := strings.TrimSuffix(backend, "/")
	fix := func(u string) string {
		if u == "" || strings.Contains(u, "://") {
			return u
		}
		return base + "/" + strings.TrimPrefix(u, "/")
	}
	s.RegisterURL = fix(s.RegisterURL)
	s.SignatureURL = fix(s.SignatureURL)
	s.CertivoxURL = fix(s.CertivoxURL)
	s.TimePermitsURL = fix(s.TimePermitsURL)
	s.AuthenticateURL = fix(s.AuthenticateURL)
	s.MPinAuthServerURL = fix(s.MPinAuthServerURL)
	s.DVSRegURL = fix(s.DVSRegURL)
	s.CodeStatusURL = fix(s.CodeStatusURL)
	if s.CodeStatusURL == "" {
		s.CodeStatusURL = strings.TrimSuffix(s.MPinAuthServerURL, "/") +
			"/codeStatus"
	}
}

// ServiceDetails describes a backend discovered from a scanned service
// URL.
type ServiceDetails struct {
	Name       string `json:"name"`
	BackendURL string `json:"url"`
	RPSPrefix  string `json:"rps_prefix"`
	LogoURL    string `json:"logo_url"`
}

// SessionDetailsReply describes the session bound to an access code.
type SessionDetailsReply struct {
	PrerollID       string `json:"prerollId"`
	AppName         string `json:"appName"`
	AppIconURL      string `json:"appLogoURL"`
	CustomerID      string `json:"customerId"`
	CustomerName    string `json:"customerName"`
	CustomerIconURL string `json:"customerIconURL"`
	RegisterOnly    bool   `json:"registerOnly"`
}

// RegisterRequest starts or restarts a registration.
type RegisterRequest struct {
	UserID       string `json:"userId"`
	DeviceName   string `json:"deviceName,omitempty"`
	ActivateCode string `json:"activateCode,omitempty"`
	RegCode      string `json:"regCode,omitempty"`
	PushToken    string `json:"pushToken,omitempty"`
	AccessCode   string `json:"wid,omitempty"`
}

// RegisterReply is the server's issued registration state.
type RegisterReply struct {
	MPinID           string `json:"mpinId"`
	RegOTT           string `json:"regOTT"`
	ExpireTime       int64  `json:"expireTime"`
	NowTime          int64  `json:"nowTime"`
	Active           bool   `json:"active"`
	CustomerID       string `json:"customerId"`
	AppID            string `json:"appId"`
	Curve            string `json:"curve"`
	DTAs             string `json:"dtas"`
	PinLength        int    `json:"pinLength"`
	VerificationType string `json:"verificationType"`
}

// SecretShare1Reply carries the first client secret share plus the
// location of the second.
type SecretShare1Reply struct {
	ClientSecretShare string `json:"clientSecretShare"`
	CS2URL            string `json:"cs2url"`
	Curve             string `json:"curve"`
	DTAs              string `json:"dtas"`
}

// SecretShare2Reply carries the second client secret share.
type SecretShare2Reply struct {
	ClientSecret string `json:"clientSecret"`
}

// TimePermit1Reply is the customer time permit share.
type TimePermit1Reply struct {
	TimePermit string `json:"timePermit"`
	Date       int    `json:"date"`
	Signature  string `json:"signature"`
}

// TimePermit2Reply is the certivox time permit share.
type TimePermit2Reply struct {
	TimePermit string `json:"timePermit"`
}

// Pass1Request carries the identity commitments.
type Pass1Request struct {
	MPinID string   `json:"mpinId"`
	DTAs   string   `json:"dtas,omitempty"`
	U      string   `json:"U"`
	UT     string   `json:"UT,omitempty"`
	Pass   int      `json:"pass"`
	Scope  []string `json:"scope,omitempty"`
	PubKey string   `json:"publicKey,omitempty"`
}

// Pass1Reply carries the server challenge.
type Pass1Reply struct {
	Y string `json:"y"`
}

// Pass2Request carries the validator.
type Pass2Request struct {
	MPinID     string `json:"mpinId"`
	AccessCode string `json:"WID,omitempty"`
	V          string `json:"V"`
	Pass       int    `json:"pass"`
	OTP        bool   `json:"otp,omitempty"`
}

// Pass2Reply carries the one-time authentication token for the final
// authenticate call.
type Pass2Reply struct {
	AuthOTT string `json:"authOTT"`
}

// AuthenticateRequest finalizes an authentication transcript.
type AuthenticateRequest struct {
	AuthOTT string `json:"authOTT"`
	WAM     string `json:"wam,omitempty"`
}

// AuthenticateReply is the final verdict plus any artifacts bound to the
// transcript: OTP payloads, an authorization code, a secret renewal
// envelope or a DVS registration token.
type AuthenticateReply struct {
	Message     string           `json:"message"`
	AuthCode    string           `json:"code"`
	OTP         string           `json:"otp"`
	ExpireTime  int64            `json:"expireTime"`
	TTLSeconds  int              `json:"ttlSeconds"`
	NowTime     int64            `json:"nowTime"`
	LogoutData  *json.RawMessage `json:"logoutData"`
	LogoutURL   string           `json:"logoutURL"`
	RenewSecret *RenewSecret     `json:"renewSecret"`
	DVSRegister *DVSRegister     `json:"dvsRegister"`
}

// RenewSecret is the in-band re-issue envelope sent when the server master
// secret rotated; it lets the client re-derive its secret without a fresh
// registration.
type RenewSecret struct {
	ClientSecretShare string `json:"clientSecretShare"`
	CS2URL            string `json:"cs2url"`
	Curve             string `json:"curve"`
	DTAs              string `json:"dtas"`
}

// DVSRegister is the token authorizing a signing sub-registration.
type DVSRegister struct {
	Token string `json:"token"`
	Curve string `json:"curve"`
}

// DVSRegisterRequest provisions the signing sub-identity.
type DVSRegisterRequest struct {
	PublicKey        string `json:"publicKey"`
	DeviceName       string `json:"deviceName,omitempty"`
	DVSRegisterToken string `json:"dvsRegisterToken"`
}

// DVSRegisterReply is the signing sub-identity issued by the server.
type DVSRegisterReply struct {
	MPinID string `json:"mpinId"`
	Curve  string `json:"curve"`
	DTAs   string `json:"dtas"`
}

// AccessCodeReply carries a server-issued access code.
type AccessCodeReply struct {
	Code string `json:"code"`
}
