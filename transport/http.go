////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package transport

import (
	"bytes"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// maxResponseBytes caps how much of a reply is read into memory. Backend
// payloads are small JSON documents; anything larger is malformed.
const maxResponseBytes = 1 << 20

// HTTPTransport is the production Transport over net/http. The zero value
// is usable; Client may be overridden for proxies or TLS pinning.
type HTTPTransport struct {
	Client http.Client
}

// NewHTTPTransport returns a transport with default settings.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{}
}

// Execute performs the request synchronously, honoring the per-request
// timeout. The error return is reserved for transport-level failures.
func (t *HTTPTransport) Execute(req *Request) (*Response, error) {
	fullURL, err := buildURL(req.URL, req.QueryParams)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid request url %q", req.URL)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequest(req.Method, fullURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := t.Client
	client.Timeout = req.Timeout
	if client.Timeout == 0 {
		client.Timeout = DefaultTimeout
	}

	jww.DEBUG.Printf("transport: %s %s", req.Method, fullURL)
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", req.Method, req.URL)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}

func buildURL(rawURL string, queryParams map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
