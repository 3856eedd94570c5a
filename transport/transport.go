////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package transport declares the HTTP transport contract the SDK consumes
// and provides the default net/http implementation. The SDK never touches
// net/http directly; tests substitute their own Transport.
package transport

import "time"

// Header and content type constants shared by every request the SDK makes.
const (
	ContentTypeHeader    = "Content-Type"
	AcceptHeader         = "Accept"
	JSONContentType      = "application/json"
	TextPlainContentType = "text/plain"
)

// DefaultTimeout bounds a request when the caller does not set one.
const DefaultTimeout = 30 * time.Second

// Request describes one HTTP exchange. Headers and QueryParams may be nil.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        []byte
	Timeout     time.Duration
}

// Response carries the remote leg's outcome. It is only produced when the
// exchange completed at the HTTP level; transport failures surface as an
// error from Execute instead.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Transport executes a single blocking HTTP exchange. A returned error
// means the server was never reached or the connection broke; any reply
// from the server, including 4xx/5xx, is a Response with a nil error.
type Transport interface {
	Execute(req *Request) (*Response, error)
}
