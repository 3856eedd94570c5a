////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/mfactor/client/crypto"
	"gitlab.com/mfactor/client/storage"
	"gitlab.com/mfactor/client/transport"
)

const (
	testBackend  = "https://api.test"
	testSettings = `{
		"registerURL": "https://api.test/rps/user",
		"signatureURL": "https://api.test/rps/signature",
		"certivoxURL": "https://api.test/certivox",
		"timePermitsURL": "https://api.test/rps/timePermit",
		"authenticateURL": "https://api.test/rps/authenticate",
		"mpinAuthServerURL": "https://api.test/rps/auth",
		"dvsRegURL": "https://api.test/rps/dvsregister",
		"appID": "app-1",
		"pinLength": 4
	}`
)

// canned is one scripted backend response.
type canned struct {
	code int
	body string
}

// mockTransport routes requests by "METHOD URL" against a scripted table
// and records everything it sees.
type mockTransport struct {
	routes   map[string]canned
	requests []*transport.Request
	err      error

	// hook, when set, runs before each request is routed; tests use it to
	// reshape the script mid-flow.
	hook func(req *transport.Request)
}

func newMockTransport() *mockTransport {
	return &mockTransport{routes: map[string]canned{
		"GET https://api.test/rps/clientSettings": {http.StatusOK, testSettings},
	}}
}

func (m *mockTransport) set(method, url string, code int, body string) {
	m.routes[method+" "+url] = canned{code, body}
}

func (m *mockTransport) Execute(req *transport.Request) (*transport.Response, error) {
	m.requests = append(m.requests, req)
	if m.hook != nil {
		m.hook(req)
	}
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.routes[req.Method+" "+req.URL]
	if !ok {
		return &transport.Response{StatusCode: http.StatusNotFound,
			Body: []byte(`{"error":"no such route"}`)}, nil
	}
	return &transport.Response{
		StatusCode: c.code,
		Headers:    map[string]string{transport.ContentTypeHeader: transport.JSONContentType},
		Body:       []byte(c.body),
	}, nil
}

// last returns the most recent request, failing when none was made.
func (m *mockTransport) last(t *testing.T) *transport.Request {
	t.Helper()
	require.NotEmpty(t, m.requests)
	return m.requests[len(m.requests)-1]
}

// mockCrypto is a scriptable crypto engine that records what the SDK asks
// of it.
type mockCrypto struct {
	open bool

	tokens    map[string][]int
	dvsKeys   map[string]string
	regOTTs   map[string][2]string
	stagedID  string
	stagedVec []int
	stagedKey string
	staged    bool

	persistFail bool
	pass1Err    error

	pass1Calls  int
	pass1Date   int
	pass1Shares []string
	pass2Calls  int
	signCalls   int
}

func newMockCrypto() *mockCrypto {
	return &mockCrypto{
		tokens:  map[string][]int{},
		dvsKeys: map[string]string{},
		regOTTs: map[string][2]string{},
	}
}

func (m *mockCrypto) OpenSession() error { m.open = true; return nil }
func (m *mockCrypto) CloseSession()      { m.open = false }

func (m *mockCrypto) Register(id crypto.Identity, factors []int) error {
	m.tokens[id.MPinID] = factors
	return nil
}

func (m *mockCrypto) RegisterTmp(id crypto.Identity, factors []int) error {
	m.stagedID, m.stagedVec, m.stagedKey, m.staged = id.MPinID, factors, "", true
	return nil
}

func (m *mockCrypto) PersistTmpRegistration() bool {
	if m.persistFail || !m.staged {
		return false
	}
	m.tokens[m.stagedID] = m.stagedVec
	if m.stagedKey != "" {
		m.dvsKeys[m.stagedID] = m.stagedKey
	}
	m.staged = false
	return true
}

func (m *mockCrypto) DiscardTmpRegistration() { m.staged = false }

func (m *mockCrypto) AuthenticatePass1(id crypto.Identity, factors []int,
	date int, timePermitShares []string, dvs bool) (string, string, error) {
	m.pass1Calls++
	m.pass1Date = date
	m.pass1Shares = timePermitShares
	if m.pass1Err != nil {
		return "", "", m.pass1Err
	}
	if _, ok := m.tokens[id.MPinID]; !ok {
		return "", "", errors.Errorf("no token for %s", id.MPinID)
	}
	if date != 0 && len(timePermitShares) != 2 {
		return "", "", errors.New("time permit shares missing")
	}
	return "mock-u", "mock-ut", nil
}

func (m *mockCrypto) AuthenticatePass2(id crypto.Identity, challenge string,
	dvs bool) (string, error) {
	m.pass2Calls++
	return "mock-v-" + challenge, nil
}

func (m *mockCrypto) GenerateSignKeypair() (string, string, error) {
	return "mock-pub", "mock-priv", nil
}

func (m *mockCrypto) RegisterDVS(id crypto.Identity, privateKey string,
	factors []int) error {
	m.tokens[id.MPinID] = factors
	m.dvsKeys[id.MPinID] = privateKey
	return nil
}

func (m *mockCrypto) RegisterDVSTmp(id crypto.Identity, privateKey string,
	factors []int) error {
	m.stagedID, m.stagedVec, m.stagedKey, m.staged = id.MPinID, factors,
		privateKey, true
	return nil
}

func (m *mockCrypto) Sign(id crypto.Identity, factors []int,
	documentHash string, epochTime int) (string, string, error) {
	m.signCalls++
	if _, ok := m.dvsKeys[id.MPinID]; !ok {
		return "", "", errors.Errorf("no signing token for %s", id.MPinID)
	}
	return "sig-u", "sig-v", nil
}

func (m *mockCrypto) DvsHash(id string) string {
	digest := sha256.Sum256([]byte(id))
	return hex.EncodeToString(digest[:])
}

func (m *mockCrypto) DeleteToken(mpinID string) {
	delete(m.tokens, mpinID)
	delete(m.dvsKeys, mpinID)
}

func (m *mockCrypto) ClearTokens() {
	m.tokens = map[string][]int{}
	m.dvsKeys = map[string]string{}
}

func (m *mockCrypto) SaveRegOTT(mpinID, regOTT, accessCode string) error {
	m.regOTTs[mpinID] = [2]string{regOTT, accessCode}
	return nil
}

func (m *mockCrypto) LoadRegOTT(mpinID string) (string, string, error) {
	rec := m.regOTTs[mpinID]
	return rec[0], rec[1], nil
}

func (m *mockCrypto) DeleteRegOTT(mpinID string) error {
	delete(m.regOTTs, mpinID)
	return nil
}

// testEnv bundles an initialized SDK with its mocks and shared stores, so
// a test can rebuild the SDK over the same storage to model a restart.
type testEnv struct {
	sdk       *SDK
	tr        *mockTransport
	eng       *mockCrypto
	secure    storage.Store
	nonSecure storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	secure, nonSecure := storage.NewMemstores()
	env := &testEnv{
		tr:        newMockTransport(),
		eng:       newMockCrypto(),
		secure:    secure,
		nonSecure: nonSecure,
	}
	env.sdk = New(NewContext(env.tr, env.secure, env.nonSecure, env.eng))
	require.True(t, env.sdk.Init(nil).IsOK())
	return env
}

func newTestEnvWithBackend(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	require.True(t, env.sdk.SetBackend(testBackend, "").IsOK())
	return env
}

// restart rebuilds the SDK over the same stores and crypto engine.
func (env *testEnv) restart(t *testing.T) {
	t.Helper()
	env.sdk.Destroy()
	env.sdk = New(NewContext(env.tr, env.secure, env.nonSecure, env.eng))
	require.True(t, env.sdk.Init(nil).IsOK())
	require.True(t, env.sdk.SetBackend(testBackend, "").IsOK())
}

// registerUser drives a user through the whole registration flow.
func (env *testEnv) registerUser(t *testing.T, id, pin string) *User {
	t.Helper()
	mpinID := hex.EncodeToString([]byte("mpin-" + id))
	env.scriptRegistration(id, mpinID)

	user := env.sdk.MakeNewUser(id, "test-device")
	require.True(t, env.sdk.StartRegistration(user, "", "", "").IsOK())
	require.True(t, env.sdk.ConfirmRegistration(user).IsOK())
	require.True(t, env.sdk.FinishRegistration(user, NewMultiFactor(pin)).IsOK())
	require.Equal(t, StateRegistered, user.State())
	return user
}

// scriptRegistration installs the canned backend responses registration
// needs for one identity.
func (env *testEnv) scriptRegistration(id, mpinID string) {
	env.tr.set(http.MethodPut, "https://api.test/rps/user", http.StatusOK,
		fmt.Sprintf(`{"mpinId":%q,"regOTT":"aabbccdd","active":false,
			"customerId":"cust-1","appId":"app-1","expireTime":2000,
			"nowTime":1000,"curve":"BN254CX","dtas":"dta-token"}`, mpinID))
	env.tr.set(http.MethodGet, "https://api.test/rps/signature/"+mpinID,
		http.StatusOK,
		`{"clientSecretShare":"0a0b","cs2url":"https://api.test/certivox/clientSecret","curve":"BN254CX","dtas":"dta-token"}`)
	env.tr.set(http.MethodGet, "https://api.test/certivox/clientSecret",
		http.StatusOK, `{"clientSecret":"0c0d"}`)
}

// scriptAuthentication installs the canned responses a successful
// authentication transcript needs, with the final body supplied by the
// caller.
func (env *testEnv) scriptAuthentication(mpinID string, finalCode int,
	finalBody string) {
	env.tr.set(http.MethodGet, "https://api.test/rps/timePermit/"+mpinID,
		http.StatusOK,
		fmt.Sprintf(`{"timePermit":"1a1b","date":%d}`, todayEpochDays()))
	env.tr.set(http.MethodGet, "https://api.test/certivox/timePermit",
		http.StatusOK, `{"timePermit":"2a2b"}`)
	env.tr.set(http.MethodPost, "https://api.test/rps/auth/pass1",
		http.StatusOK, `{"y":"0e0f"}`)
	env.tr.set(http.MethodPost, "https://api.test/rps/auth/pass2",
		http.StatusOK, `{"authOTT":"ott-1"}`)
	env.tr.set(http.MethodPost, "https://api.test/rps/authenticate",
		finalCode, finalBody)
}
