////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rps

// ReqContext tags which protocol step produced a response; the status
// translation table keys off it.
type ReqContext int

const (
	CtxGetServiceDetails ReqContext = iota
	CtxGetClientSettings
	CtxRegister
	CtxRegisterDVS
	CtxGetClientSecret1
	CtxGetClientSecret2
	CtxGetTimePermit1
	CtxGetTimePermit2
	CtxAuthenticatePass1
	CtxAuthenticatePass2
	CtxAuthenticate
	CtxGetSessionDetails
	CtxAbortSession
	CtxGetAccessCode
	CtxLogout
)

func (c ReqContext) String() string {
	switch c {
	case CtxGetServiceDetails:
		return "GetServiceDetails"
	case CtxGetClientSettings:
		return "GetClientSettings"
	case CtxRegister:
		return "Register"
	case CtxRegisterDVS:
		return "RegisterDVS"
	case CtxGetClientSecret1:
		return "GetClientSecret1"
	case CtxGetClientSecret2:
		return "GetClientSecret2"
	case CtxGetTimePermit1:
		return "GetTimePermit1"
	case CtxGetTimePermit2:
		return "GetTimePermit2"
	case CtxAuthenticatePass1:
		return "AuthenticatePass1"
	case CtxAuthenticatePass2:
		return "AuthenticatePass2"
	case CtxAuthenticate:
		return "Authenticate"
	case CtxGetSessionDetails:
		return "GetSessionDetails"
	case CtxAbortSession:
		return "AbortSession"
	case CtxGetAccessCode:
		return "GetAccessCode"
	case CtxLogout:
		return "Logout"
	default:
		return "Unknown"
	}
}
