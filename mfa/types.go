////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"gitlab.com/mfactor/client/rps"
	"gitlab.com/mfactor/client/status"
)

// OTP is a server-issued one-time passcode together with its validity
// window. Status records whether the backend actually returned a code;
// authentication itself may succeed while OTP issuing is disabled for the
// app, so the two outcomes are reported separately.
type OTP struct {
	OTP        string
	ExpireTime int64
	TTLSeconds int
	NowTime    int64
	Status     status.Status
}

func (o *OTP) extractFrom(reply *rps.AuthenticateReply) {
	o.OTP = reply.OTP
	o.ExpireTime = reply.ExpireTime
	o.TTLSeconds = reply.TTLSeconds
	o.NowTime = reply.NowTime
	if o.OTP == "" {
		o.Status = status.New(status.FlowError,
			"backend did not issue an OTP")
		return
	}
	o.Status = status.Ok()
}

// RegCode is a registration code: an OTP whose purpose is to enroll a
// further device for the same identity.
type RegCode struct {
	OTP
}

// Signature is the output of signing a document hash with the DVS
// sub-identity. All fields the verifier needs travel with it.
type Signature struct {
	Hash      string
	MPinID    string
	U         string
	V         string
	PublicKey string
	DTAs      string
}

// ServiceDetails describes a backend discovered from a service URL.
type ServiceDetails struct {
	Name       string
	BackendURL string
	RPSPrefix  string
	LogoURL    string
}

// SessionDetails describes the browser session bound to an access code.
type SessionDetails struct {
	PrerollID       string
	AppName         string
	AppIconURL      string
	CustomerID      string
	CustomerName    string
	CustomerIconURL string
	RegisterOnly    bool
}

// logoutData is what the backend handed over at authentication time for a
// later remote logout.
type logoutData struct {
	data      []byte
	logoutURL string
}
