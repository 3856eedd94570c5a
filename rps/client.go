////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package rps is the backend protocol client: it turns each protocol step
// into JSON HTTP round trips over an abstract transport and reduces every
// outcome to the SDK status taxonomy.
package rps

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/mfactor/client/status"
	"gitlab.com/mfactor/client/transport"
)

// DefaultRPSPrefix is the path prefix of the relying-party service when
// the configuration does not name one.
const DefaultRPSPrefix = "rps"

// osClassHeader identifies the client platform to the backend.
const (
	osClassHeader      = "X-MIRACL-OS-Class"
	osClassValue       = "go"
	cidHeader          = "X-MIRACL-CID"
	clientSettingsPath = "clientSettings"
)

// Client executes the M-Pin wire protocol. It is not safe for concurrent
// use; the SDK serializes access.
type Client struct {
	tr             transport.Transport
	timeout        time.Duration
	customHeaders  map[string]string
	trustedDomains []string
}

// New builds a protocol client over the given transport.
func New(tr transport.Transport) *Client {
	return &Client{
		tr:            tr,
		timeout:       transport.DefaultTimeout,
		customHeaders: map[string]string{},
	}
}

// SetRequestTimeout bounds every subsequent round trip.
func (c *Client) SetRequestTimeout(d time.Duration) {
	c.timeout = d
}

// AddCustomHeaders merges headers applied to all subsequent requests.
func (c *Client) AddCustomHeaders(headers map[string]string) {
	for k, v := range headers {
		c.customHeaders[k] = v
	}
}

// ClearCustomHeaders drops all custom headers, including a CID.
func (c *Client) ClearCustomHeaders() {
	c.customHeaders = map[string]string{}
}

// SetCID pins the customer id header on all subsequent requests.
func (c *Client) SetCID(cid string) {
	c.customHeaders[cidHeader] = cid
}

// AddTrustedDomain appends to the allow-list. While the list is empty all
// domains are trusted.
func (c *Client) AddTrustedDomain(domain string) {
	c.trustedDomains = append(c.trustedDomains, strings.ToLower(domain))
}

// ClearTrustedDomains empties the allow-list.
func (c *Client) ClearTrustedDomains() {
	c.trustedDomains = nil
}

// CheckURL enforces the trusted-domain allow-list on absolute URLs. It
// runs before any request so secret-bearing payloads can never be coaxed
// toward an attacker-controlled host.
func (c *Client) CheckURL(rawURL string) status.Status {
	if len(c.trustedDomains) == 0 {
		return status.Ok()
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return status.New(status.UntrustedDomainError,
			"cannot determine domain of %q", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range c.trustedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return status.Ok()
		}
	}
	return status.New(status.UntrustedDomainError,
		"domain %q is not trusted", host)
}

// do executes one JSON round trip. All failures are captured inside the
// returned Response; callers read Response.Status().
func (c *Client) do(ctx ReqContext, method, reqURL string, body interface{},
	query map[string]string) *Response {

	if st := c.CheckURL(reqURL); !st.IsOK() {
		jww.WARN.Printf("rps: %s: refusing untrusted url %s", ctx, reqURL)
		return &Response{Ctx: ctx, local: &st}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			st := status.New(status.NetworkError,
				"%s: cannot marshal request: %s", ctx, err)
			return &Response{Ctx: ctx, local: &st}
		}
	}

	headers := map[string]string{
		transport.ContentTypeHeader: transport.JSONContentType,
		transport.AcceptHeader:      transport.JSONContentType,
		osClassHeader:               osClassValue,
	}
	for k, v := range c.customHeaders {
		headers[k] = v
	}

	resp, err := c.tr.Execute(&transport.Request{
		Method:      method,
		URL:         reqURL,
		Headers:     headers,
		QueryParams: query,
		Body:        payload,
		Timeout:     c.timeout,
	})
	if err != nil {
		jww.WARN.Printf("rps: %s: transport failure: %+v", ctx, err)
		st := status.New(status.NetworkError, "%s: %s", ctx, err)
		return &Response{Ctx: ctx, local: &st}
	}

	jww.DEBUG.Printf("rps: %s: %s %s -> %d", ctx, method, reqURL,
		resp.StatusCode)
	return &Response{
		Ctx:        ctx,
		HTTPStatus: resp.StatusCode,
		Body:       resp.Body,
		Headers:    resp.Headers,
	}
}

// request runs do and decodes a successful reply into out (skipped when
// out is nil).
func (c *Client) request(ctx ReqContext, method, reqURL string,
	body interface{}, query map[string]string, out interface{}) status.Status {

	resp := c.do(ctx, method, reqURL, body, query)
	if st := resp.Status(); !st.IsOK() {
		return st
	}
	if out == nil {
		return status.Ok()
	}
	return resp.Decode(out)
}

// SettingsURL joins the backend base, RPS prefix and client settings
// document path.
func SettingsURL(backend, rpsPrefix string) string {
	if rpsPrefix == "" {
		rpsPrefix = DefaultRPSPrefix
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(backend, "/"),
		strings.Trim(rpsPrefix, "/"), clientSettingsPath)
}

// GetClientSettings fetches and normalizes the backend configuration.
func (c *Client) GetClientSettings(backend, rpsPrefix string) (*ClientSettings, status.Status) {
	var settings ClientSettings
	st := c.request(CtxGetClientSettings, http.MethodGet,
		SettingsURL(backend, rpsPrefix), nil, nil, &settings)
	if !st.IsOK() {
		return nil, st
	}
	settings.Normalize(backend)
	return &settings, status.Ok()
}

// GetServiceDetails resolves a scanned service URL into backend details.
func (c *Client) GetServiceDetails(serviceURL string) (*ServiceDetails, status.Status) {
	var details ServiceDetails
	st := c.request(CtxGetServiceDetails, http.MethodGet, serviceURL, nil,
		nil, &details)
	if !st.IsOK() {
		return nil, st
	}
	return &details, status.Ok()
}

// GetSessionDetails queries the session bound to an access code.
func (c *Client) GetSessionDetails(codeStatusURL, accessCode string) (*SessionDetailsReply, status.Status) {
	var details SessionDetailsReply
	st := c.request(CtxGetSessionDetails, http.MethodPost, codeStatusURL,
		map[string]string{"status": "wid", "wid": accessCode}, nil, &details)
	if !st.IsOK() {
		return nil, st
	}
	return &details, status.Ok()
}

// AbortSession tells the backend the access-code session was abandoned.
func (c *Client) AbortSession(codeStatusURL, accessCode string) status.Status {
	return c.request(CtxAbortSession, http.MethodPost, codeStatusURL,
		map[string]string{"status": "abort", "wid": accessCode}, nil, nil)
}

// GetAccessCode requests a fresh access code from an authorization URL.
func (c *Client) GetAccessCode(authzURL string) (string, status.Status) {
	var reply AccessCodeReply
	st := c.request(CtxGetAccessCode, http.MethodPost, authzURL, nil, nil,
		&reply)
	if !st.IsOK() {
		return "", st
	}
	return reply.Code, status.Ok()
}

// RegisterUser asks the backend to start (or restart) a registration.
func (c *Client) RegisterUser(registerURL string, req *RegisterRequest) (*RegisterReply, status.Status) {
	var reply RegisterReply
	st := c.request(CtxRegister, http.MethodPut, registerURL, req, nil,
		&reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// GetClientSecretShare1 fetches the first secret share from the RPS. This
// doubles as the registration confirmation poll: while the identity is
// still unverified the server answers 401, which the table reduces to
// IdentityNotVerified.
func (c *Client) GetClientSecretShare1(signatureURL, mpinID, regOTT,
	regToken string) (*SecretShare1Reply, status.Status) {

	query := map[string]string{"regOTT": regOTT}
	if regToken != "" {
		query["activationToken"] = regToken
	}
	var reply SecretShare1Reply
	st := c.request(CtxGetClientSecret1, http.MethodGet,
		fmt.Sprintf("%s/%s", signatureURL, mpinID), nil, query, &reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// GetClientSecretShare2 fetches the second share from the URL named by the
// first share's reply; the two come from different trust authorities.
func (c *Client) GetClientSecretShare2(cs2URL string) (*SecretShare2Reply, status.Status) {
	var reply SecretShare2Reply
	st := c.request(CtxGetClientSecret2, http.MethodGet, cs2URL, nil, nil,
		&reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// GetTimePermitShare1 fetches the customer time permit share.
func (c *Client) GetTimePermitShare1(timePermitsURL, mpinID string) (*TimePermit1Reply, status.Status) {
	var reply TimePermit1Reply
	st := c.request(CtxGetTimePermit1, http.MethodGet,
		fmt.Sprintf("%s/%s", timePermitsURL, mpinID), nil, nil, &reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// GetTimePermitShare2 fetches the certivox time permit share, keyed by the
// hash of the mpinId.
func (c *Client) GetTimePermitShare2(certivoxURL, hashMPinID string) (*TimePermit2Reply, status.Status) {
	var reply TimePermit2Reply
	st := c.request(CtxGetTimePermit2, http.MethodGet,
		fmt.Sprintf("%s/timePermit", strings.TrimSuffix(certivoxURL, "/")),
		nil, map[string]string{"hash": hashMPinID}, &reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// AuthenticatePass1 sends the commitments and returns the challenge.
func (c *Client) AuthenticatePass1(authServerURL string, req *Pass1Request) (*Pass1Reply, status.Status) {
	var reply Pass1Reply
	st := c.request(CtxAuthenticatePass1, http.MethodPost,
		fmt.Sprintf("%s/pass1", strings.TrimSuffix(authServerURL, "/")),
		req, nil, &reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// AuthenticatePass2 sends the validator and returns the one-time
// authentication token.
func (c *Client) AuthenticatePass2(authServerURL string, req *Pass2Request) (*Pass2Reply, status.Status) {
	var reply Pass2Reply
	st := c.request(CtxAuthenticatePass2, http.MethodPost,
		fmt.Sprintf("%s/pass2", strings.TrimSuffix(authServerURL, "/")),
		req, nil, &reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}

// Authenticate finalizes the transcript. The reply is returned even on
// failure statuses because it may carry a renewal envelope or DVS token
// alongside the verdict.
func (c *Client) Authenticate(authenticateURL string, req *AuthenticateRequest) (*AuthenticateReply, status.Status) {
	resp := c.do(CtxAuthenticate, http.MethodPost, authenticateURL, req, nil)
	st := resp.Status()

	var reply AuthenticateReply
	if len(resp.Body) > 0 {
		// Tolerate undecodable bodies on failures; the status stands on
		// its own.
		if decodeSt := resp.Decode(&reply); !decodeSt.IsOK() && st.IsOK() {
			return nil, decodeSt
		}
	}
	return &reply, st
}

// Logout posts the stored logout payload back to the backend so the bound
// browser session ends too.
func (c *Client) Logout(logoutURL string, data []byte) status.Status {
	var body interface{}
	if len(data) > 0 {
		body = json.RawMessage(data)
	}
	return c.request(CtxLogout, http.MethodPost, logoutURL, body, nil, nil)
}

// RegisterDVS provisions the signing sub-identity.
func (c *Client) RegisterDVS(dvsRegURL string, req *DVSRegisterRequest) (*DVSRegisterReply, status.Status) {
	var reply DVSRegisterReply
	st := c.request(CtxRegisterDVS, http.MethodPost, dvsRegURL, req, nil,
		&reply)
	if !st.IsOK() {
		return nil, st
	}
	return &reply, status.Ok()
}
