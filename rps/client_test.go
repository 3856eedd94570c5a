////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package rps

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/mfactor/client/status"
	"gitlab.com/mfactor/client/transport"
)

// mockTransport replays canned responses and records requests.
type mockTransport struct {
	requests  []*transport.Request
	responses []*transport.Response
	err       error
}

func (m *mockTransport) Execute(req *transport.Request) (*transport.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func jsonResp(code int, body string) *transport.Response {
	return &transport.Response{StatusCode: code, Body: []byte(body)}
}

func TestClient_UntrustedDomainSendsNothing(t *testing.T) {
	mock := &mockTransport{}
	c := New(mock)
	c.AddTrustedDomain("example.com")

	_, st := c.GetClientSettings("https://evil.test", "")
	require.True(t, st.Is(status.UntrustedDomainError))
	require.Empty(t, mock.requests, "no request may leave the client")

	// Subdomains of a trusted domain are trusted.
	require.True(t, c.CheckURL("https://api.example.com/x").IsOK())
	require.True(t, c.CheckURL("https://example.com/x").IsOK())
	require.False(t, c.CheckURL("https://notexample.com/x").IsOK())

	// An empty allow-list trusts everything.
	c.ClearTrustedDomains()
	require.True(t, c.CheckURL("https://anything.test").IsOK())
}

func TestClient_NetworkError(t *testing.T) {
	c := New(&mockTransport{err: errors.New("connection refused")})
	_, st := c.GetClientSettings("https://api.test", "")
	require.True(t, st.Is(status.NetworkError))
}

func TestClient_ParseError(t *testing.T) {
	c := New(&mockTransport{responses: []*transport.Response{
		jsonResp(200, "not json at all")}})
	_, st := c.GetClientSettings("https://api.test", "")
	require.True(t, st.Is(status.ResponseParseError))
}

func TestClient_GetClientSettings(t *testing.T) {
	mock := &mockTransport{responses: []*transport.Response{jsonResp(200, `{
		"registerURL": "/rps/user",
		"signatureURL": "/rps/signature",
		"mpinAuthServerURL": "https://auth.test/rps",
		"authenticateURL": "/rps/authenticate",
		"timePermitsURL": "/rps/timePermit",
		"certivoxURL": "https://dta.test/",
		"appID": "app-1",
		"pinLength": 4,
		"customKey": "customValue"
	}`)}}
	c := New(mock)

	settings, st := c.GetClientSettings("https://api.test/", "rps")
	require.True(t, st.IsOK(), st.String())

	require.Equal(t, "https://api.test/rps/clientSettings",
		mock.requests[0].URL)
	require.Equal(t, osClassValue, mock.requests[0].Headers[osClassHeader])

	// Relative URLs resolve against the backend; absolute ones survive.
	require.Equal(t, "https://api.test/rps/user", settings.RegisterURL)
	require.Equal(t, "https://auth.test/rps", settings.MPinAuthServerURL)
	require.Equal(t, "customValue", settings.Param("customKey"))
	require.Equal(t, "", settings.Param("missing"))
	require.NoError(t, settings.Validate())
}

func TestClientSettings_Validate(t *testing.T) {
	s := &ClientSettings{}
	require.Error(t, s.Validate())
	s.RegisterURL = "x"
	s.SignatureURL = "x"
	s.MPinAuthServerURL = "x"
	require.Error(t, s.Validate())
	s.AuthenticateURL = "x"
	require.NoError(t, s.Validate())
}

func TestClient_CustomHeadersAndCID(t *testing.T) {
	mock := &mockTransport{responses: []*transport.Response{
		jsonResp(200, `{}`)}}
	c := New(mock)
	c.AddCustomHeaders(map[string]string{"X-Trace": "t1"})
	c.SetCID("customer-7")

	c.GetServiceDetails("https://api.test/service")
	require.Equal(t, "t1", mock.requests[0].Headers["X-Trace"])
	require.Equal(t, "customer-7", mock.requests[0].Headers[cidHeader])

	c.ClearCustomHeaders()
	c.GetServiceDetails("https://api.test/service")
	require.Empty(t, mock.requests[1].Headers["X-Trace"])
	require.Empty(t, mock.requests[1].Headers[cidHeader])
}

func TestTranslate_Table(t *testing.T) {
	cases := []struct {
		ctx  ReqContext
		http int
		want status.Code
	}{
		{CtxRegister, http.StatusForbidden, status.IdentityNotAuthorized},
		{CtxRegister, http.StatusConflict, status.OperationNotAllowed},
		{CtxRegister, http.StatusGone, status.RegistrationExpired},
		{CtxGetClientSecret1, http.StatusUnauthorized, status.IdentityNotVerified},
		{CtxGetClientSecret2, http.StatusGone, status.RegistrationExpired},
		{CtxGetTimePermit1, http.StatusForbidden, status.Revoked},
		{CtxGetTimePermit2, http.StatusGone, status.Revoked},
		{CtxAuthenticate, http.StatusUnauthorized, status.IncorrectPin},
		{CtxAuthenticate, http.StatusGone, status.Revoked},
		{CtxAuthenticate, http.StatusPreconditionFailed, status.IncorrectAccessNumber},
		{CtxAuthenticatePass2, http.StatusUnauthorized, status.IncorrectPin},
		{CtxGetSessionDetails, http.StatusPreconditionFailed, status.IncorrectAccessNumber},
		{CtxGetClientSettings, http.StatusNotAcceptable, status.BadUserAgent},
		{CtxGetClientSettings, http.StatusRequestTimeout, status.RequestExpired},
		{CtxGetClientSettings, http.StatusBadGateway, status.HTTPServerError},
		{CtxGetClientSettings, http.StatusNotFound, status.HTTPRequestError},
	}
	for _, tc := range cases {
		got := translate(tc.ctx, tc.http)
		require.Equalf(t, tc.want, got, "%s HTTP %d", tc.ctx, tc.http)
	}
}

func TestResponse_BodyErrorCodeOverridesTable(t *testing.T) {
	r := &Response{
		Ctx:        CtxAuthenticate,
		HTTPStatus: http.StatusForbidden,
		Body:       []byte(`{"errorCode":"CLIENT_SECRET_EXPIRED"}`),
	}
	require.True(t, r.Status().Is(status.ClientSecretExpired))

	// Unknown body codes fall back to the table.
	r.Body = []byte(`{"errorCode":"SOMETHING_ELSE","error":"nope"}`)
	st := r.Status()
	require.True(t, st.Is(status.IdentityNotAuthorized))
	require.Contains(t, st.Message, "nope")
}

func TestClient_AuthenticateCarriesReplyOnFailure(t *testing.T) {
	mock := &mockTransport{responses: []*transport.Response{jsonResp(403,
		`{"errorCode":"CLIENT_SECRET_EXPIRED",
		  "renewSecret":{"clientSecretShare":"aa","cs2url":"https://dta.test/cs2"}}`)}}
	c := New(mock)

	reply, st := c.Authenticate("https://api.test/rps/authenticate",
		&AuthenticateRequest{AuthOTT: "ott"})
	require.True(t, st.Is(status.ClientSecretExpired))
	require.NotNil(t, reply.RenewSecret)
	require.Equal(t, "aa", reply.RenewSecret.ClientSecretShare)
}

func TestClient_PassFlow(t *testing.T) {
	mock := &mockTransport{responses: []*transport.Response{
		jsonResp(200, `{"y":"0badc0de"}`),
	}}
	c := New(mock)

	reply, st := c.AuthenticatePass1("https://auth.test/rps/", &Pass1Request{
		MPinID: "aa", U: "bb", Pass: 1})
	require.True(t, st.IsOK())
	require.Equal(t, "0badc0de", reply.Y)
	require.Equal(t, "https://auth.test/rps/pass1", mock.requests[0].URL)

	mock.responses = []*transport.Response{jsonResp(200, `{"authOTT":"z9"}`)}
	pass2, st := c.AuthenticatePass2("https://auth.test/rps", &Pass2Request{
		MPinID: "aa", V: "cc", Pass: 2})
	require.True(t, st.IsOK())
	require.Equal(t, "z9", pass2.AuthOTT)
}

func TestSettingsURL(t *testing.T) {
	require.Equal(t, "https://api.test/rps/clientSettings",
		SettingsURL("https://api.test/", ""))
	require.Equal(t, "https://api.test/custom/clientSettings",
		SettingsURL("https://api.test", "/custom/"))
}
