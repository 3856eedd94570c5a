////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rps

import (
	"encoding/json"
	"net/http"

	"gitlab.com/mfactor/client/status"
)

// Response wraps one protocol round trip outcome. A Response always
// exists, even for transport failures, so callers translate uniformly.
type Response struct {
	Ctx        ReqContext
	HTTPStatus int
	Body       []byte
	Headers    map[string]string

	// local holds a pre-computed status for failures that never produced
	// an HTTP exchange (untrusted domain, transport error).
	local *status.Status
}

// errorBody is the error envelope RPS backends attach to rejections.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// bodyErrorCodes maps server-supplied error tags to statuses; these take
// precedence over the plain HTTP code mapping.
var bodyErrorCodes = map[string]status.Code{
	"INVALID_USERAGENT":          status.BadUserAgent,
	"UNSUPPORTED_CLIENT_VERSION": status.BadClientVersion,
	"CLIENT_SECRET_EXPIRED":      status.ClientSecretExpired,
	"EXPIRED_MPINID":             status.ClientSecretExpired,
	"USER_REVOKED":               status.Revoked,
	"IDENTITY_NOT_VERIFIED":      status.IdentityNotVerified,
	"EXPIRED_REQUEST":            status.RequestExpired,
	"INVALID_ACCESS_NUMBER":      status.IncorrectAccessNumber,
	"OPERATION_NOT_ALLOWED":      status.OperationNotAllowed,
}

// OK reports whether the round trip succeeded at the HTTP level.
func (r *Response) OK() bool {
	return r.local == nil &&
		r.HTTPStatus >= http.StatusOK && r.HTTPStatus < 300
}

// Decode parses the JSON body into out, reducing malformed bodies to
// ResponseParseError.
func (r *Response) Decode(out interface{}) status.Status {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return status.New(status.ResponseParseError,
			"%s: cannot parse response: %s", r.Ctx, err)
	}
	return status.Ok()
}

// Status translates the response into the SDK taxonomy using the fixed
// table keyed on the request context and the HTTP status code, honoring a
// server-supplied error body when one is present.
func (r *Response) Status() status.Status {
	if r.local != nil {
		return *r.local
	}
	if r.OK() {
		return status.Ok()
	}

	msg := ""
	var body errorBody
	if json.Unmarshal(r.Body, &body) == nil {
		if code, ok := bodyErrorCodes[body.ErrorCode]; ok {
			return status.New(code, "%s: %s", r.Ctx, body.ErrorCode)
		}
		if body.Error != "" {
			msg = body.Error
		} else if body.Message != "" {
			msg = body.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(r.HTTPStatus)
	}

	return status.New(translate(r.Ctx, r.HTTPStatus), "%s: HTTP %d: %s",
		r.Ctx, r.HTTPStatus, msg)
}

// translate is the fixed HTTP-code-to-status table.
func translate(ctx ReqContext, httpStatus int) status.Code {
	// Context-specific rows first.
	switch ctx {
	case CtxRegister, CtxRegisterDVS:
		switch httpStatus {
		case http.StatusForbidden:
			return status.IdentityNotAuthorized
		case http.StatusConflict:
			return status.OperationNotAllowed
		case http.StatusGone:
			return status.RegistrationExpired
		}
	case CtxGetClientSecret1, CtxGetClientSecret2:
		switch httpStatus {
		case http.StatusUnauthorized:
			return status.IdentityNotVerified
		case http.StatusForbidden:
			return status.IdentityNotAuthorized
		case http.StatusGone:
			return status.RegistrationExpired
		}
	case CtxGetTimePermit1, CtxGetTimePermit2:
		switch httpStatus {
		case http.StatusForbidden, http.StatusGone:
			return status.Revoked
		}
	case CtxAuthenticatePass1, CtxAuthenticatePass2, CtxAuthenticate:
		switch httpStatus {
		case http.StatusUnauthorized:
			return status.IncorrectPin
		case http.StatusForbidden:
			return status.IdentityNotAuthorized
		case http.StatusGone:
			return status.Revoked
		case http.StatusPreconditionFailed:
			return status.IncorrectAccessNumber
		}
	case CtxGetSessionDetails, CtxAbortSession, CtxGetAccessCode:
		if httpStatus == http.StatusPreconditionFailed {
			return status.IncorrectAccessNumber
		}
	}

	// Generic rows.
	switch {
	case httpStatus == http.StatusNotAcceptable:
		return status.BadUserAgent
	case httpStatus == http.StatusRequestTimeout:
		return status.RequestExpired
	case httpStatus >= 500:
		return status.HTTPServerError
	default:
		return status.HTTPRequestError
	}
}
