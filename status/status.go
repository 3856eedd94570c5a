////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package status defines the single error taxonomy every SDK operation
// reports through. A Status is a value, never a panic; two statuses are
// considered equal when their codes match, regardless of the attached
// message.
package status

import "fmt"

// Code enumerates every way an SDK operation can conclude.
type Code int

const (
	// OK reports success.
	OK Code = iota

	// PinInputCanceled is a local status reported when the caller abandons
	// PIN entry. No network call is made and no user state changes.
	PinInputCanceled

	// CryptoError is a local failure inside the crypto engine.
	CryptoError

	// StorageError is a local persistent storage failure.
	StorageError

	// NetworkError is a local transport failure: the remote server could
	// not be reached at all (DNS, connect, timeout).
	NetworkError

	// ResponseParseError is a local failure to parse a server response
	// (invalid JSON or unexpected structure).
	ResponseParseError

	// FlowError reports an illegal call for the current SDK or user state.
	FlowError

	// IdentityNotAuthorized means the server refused registration or
	// authentication for this identity.
	IdentityNotAuthorized

	// IdentityNotVerified means registration cannot be confirmed because
	// the identity has not completed external verification yet.
	IdentityNotVerified

	// RequestExpired means the registration or authentication request
	// expired server side.
	RequestExpired

	// Revoked means the identity can no longer authenticate; time permits
	// are refused for it.
	Revoked

	// IncorrectPin means the entered PIN (or factor set) was wrong.
	IncorrectPin

	// IncorrectAccessNumber means the access number/code failed its
	// checksum or was rejected by the server.
	IncorrectAccessNumber

	// HTTPServerError is any 5xx response not reduced to a more specific
	// code.
	HTTPServerError

	// HTTPRequestError is any 4xx response not reduced to a more specific
	// code.
	HTTPRequestError

	// BadUserAgent means the server refused this client's user agent.
	BadUserAgent

	// ClientSecretExpired means the server master secret rotated and the
	// client secret must be re-derived.
	ClientSecretExpired

	// BadClientVersion means the server refused this client version.
	BadClientVersion

	// UntrustedDomainError is a local refusal to send a request to a
	// domain outside the trusted list.
	UntrustedDomainError

	// RegistrationExpired means the registration one-time token expired.
	RegistrationExpired

	// OperationNotAllowed means the server forbids the operation for this
	// identity, e.g. generating a registration code from an identity that
	// was itself registered with one.
	OperationNotAllowed
)

// String returns the wire/storage tag for the code.
func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case PinInputCanceled:
		return "PIN_INPUT_CANCELED"
	case CryptoError:
		return "CRYPTO_ERROR"
	case StorageError:
		return "STORAGE_ERROR"
	case NetworkError:
		return "NETWORK_ERROR"
	case ResponseParseError:
		return "RESPONSE_PARSE_ERROR"
	case FlowError:
		return "FLOW_ERROR"
	case IdentityNotAuthorized:
		return "IDENTITY_NOT_AUTHORIZED"
	case IdentityNotVerified:
		return "IDENTITY_NOT_VERIFIED"
	case RequestExpired:
		return "REQUEST_EXPIRED"
	case Revoked:
		return "REVOKED"
	case IncorrectPin:
		return "INCORRECT_PIN"
	case IncorrectAccessNumber:
		return "INCORRECT_ACCESS_NUMBER"
	case HTTPServerError:
		return "HTTP_SERVER_ERROR"
	case HTTPRequestError:
		return "HTTP_REQUEST_ERROR"
	case BadUserAgent:
		return "BAD_USER_AGENT"
	case ClientSecretExpired:
		return "CLIENT_SECRET_EXPIRED"
	case BadClientVersion:
		return "BAD_CLIENT_VERSION"
	case UntrustedDomainError:
		return "UNTRUSTED_DOMAIN_ERROR"
	case RegistrationExpired:
		return "REGISTRATION_EXPIRED"
	case OperationNotAllowed:
		return "OPERATION_NOT_ALLOWED"
	default:
		return fmt.Sprintf("UNKNOWN_STATUS_%d", int(c))
	}
}

// Status carries an outcome code and an optional human-readable message.
// The zero value is OK.
type Status struct {
	Code    Code
	Message string
}

// Ok returns a success status.
func Ok() Status {
	return Status{Code: OK}
}

// New builds a status from a code and a formatted message.
func New(code Code, format string, args ...interface{}) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FromError builds a status from a code and an underlying error. A nil
// error yields OK regardless of the code.
func FromError(code Code, err error) Status {
	if err == nil {
		return Ok()
	}
	return Status{Code: code, Message: err.Error()}
}

// Is reports whether the status carries the given code. Messages do not
// participate in equality.
func (s Status) Is(c Code) bool {
	return s.Code == c
}

// IsOK reports success.
func (s Status) IsOK() bool {
	return s.Code == OK
}

// String renders the code tag and, when present, the message.
func (s Status) String() string {
	if s.Message == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}
