////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package mfa is the identity protocol engine: the registration and
// authentication lifecycle of PIN-protected identities against an M-Pin
// backend. It orchestrates the protocol client, the crypto engine and the
// two storage tiers; it never touches key material itself.
package mfa

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/mfactor/client/crypto"
	"gitlab.com/mfactor/client/rps"
	"gitlab.com/mfactor/client/status"
	"gitlab.com/mfactor/client/storage"
	"gitlab.com/mfactor/client/transport"
)

// Context supplies the platform capabilities the SDK runs on. The host
// application owns the lifetimes of everything returned.
type Context interface {
	Transport() transport.Transport
	Storage(kind storage.Kind) storage.Store
	CryptoEngine() crypto.Engine
}

// NewContext bundles explicit capabilities into a Context, for hosts that
// do not carry one of their own.
func NewContext(tr transport.Transport, secure, nonSecure storage.Store,
	eng crypto.Engine) Context {
	return &platformContext{tr: tr, secure: secure, nonSecure: nonSecure,
		eng: eng}
}

type platformContext struct {
	tr        transport.Transport
	secure    storage.Store
	nonSecure storage.Store
	eng       crypto.Engine
}

func (c *platformContext) Transport() transport.Transport { return c.tr }

func (c *platformContext) Storage(kind storage.Kind) storage.Store {
	if kind == storage.Secure {
		return c.secure
	}
	return c.nonSecure
}

func (c *platformContext) CryptoEngine() crypto.Engine { return c.eng }

// Recognized Init configuration keys. Unrecognized keys are ignored so
// configuration files can be shared across client versions.
const (
	ConfigBackend        = "backend"
	ConfigRPSPrefix      = "rpsPrefix"
	ConfigRequestTimeout = "requestTimeoutSeconds"
)

type sdkState int

const (
	sdkNotInitialized sdkState = iota
	sdkInitialized
	sdkBackendSet
)

// SDK is the engine facade. It is not safe for concurrent use; hosts
// serialize calls, matching the one-user-at-a-keyboard usage model.
type SDK struct {
	state     sdkState
	client    *rps.Client
	crypto    crypto.Engine
	secure    storage.Store
	nonSecure storage.Store

	backend   string
	rpsPrefix string
	settings  *rps.ClientSettings

	users      map[string]*User
	logoutData map[string]*logoutData
}

// New builds an SDK over the supplied platform context. Call Init before
// anything else.
func New(ctx Context) *SDK {
	return &SDK{
		client:     rps.New(ctx.Transport()),
		crypto:     ctx.CryptoEngine(),
		secure:     ctx.Storage(storage.Secure),
		nonSecure:  ctx.Storage(storage.NonSecure),
		users:      map[string]*User{},
		logoutData: map[string]*logoutData{},
	}
}

// Init opens the crypto session, restores the user registry and applies
// the configuration. When the configuration names a backend it is set
// eagerly, so a single Init call yields a ready SDK.
func (s *SDK) Init(config map[string]string) status.Status {
	if s.state != sdkNotInitialized {
		return status.New(status.FlowError, "SDK is already initialized")
	}

	if err := s.crypto.OpenSession(); err != nil {
		return status.FromError(status.CryptoError, err)
	}

	if st := s.loadUsers(); !st.IsOK() {
		s.crypto.CloseSession()
		return st
	}
	s.state = sdkInitialized

	if v := config[ConfigRequestTimeout]; v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			s.client.SetRequestTimeout(time.Duration(secs) * time.Second)
		} else {
			jww.WARN.Printf("mfa: ignoring bad %s value %q",
				ConfigRequestTimeout, v)
		}
	}

	if backend := config[ConfigBackend]; backend != "" {
		if st := s.SetBackend(backend, config[ConfigRPSPrefix]); !st.IsOK() {
			jww.WARN.Printf("mfa: init could not set backend %s: %s",
				backend, st)
			return st
		}
	}

	jww.INFO.Printf("mfa: initialized with %d stored user(s)", len(s.users))
	return status.Ok()
}

// Destroy closes the crypto session and forgets all in-memory state.
// Persisted users survive; a later Init restores them.
func (s *SDK) Destroy() {
	if s.state == sdkNotInitialized {
		return
	}
	s.crypto.CloseSession()
	s.users = map[string]*User{}
	s.logoutData = map[string]*logoutData{}
	s.settings = nil
	s.backend = ""
	s.rpsPrefix = ""
	s.state = sdkNotInitialized
}

func (s *SDK) checkInitialized() status.Status {
	if s.state == sdkNotInitialized {
		return status.New(status.FlowError, "SDK is not initialized")
	}
	return status.Ok()
}

func (s *SDK) checkBackendSet() status.Status {
	if s.state != sdkBackendSet {
		return status.New(status.FlowError, "no backend is set")
	}
	return status.Ok()
}

// TestBackend probes a backend URL without changing SDK state: it fetches
// and validates the client settings document and discards it.
func (s *SDK) TestBackend(backend string) status.Status {
	return s.TestBackendRPS(backend, "")
}

// TestBackendRPS is TestBackend with an explicit RPS prefix.
func (s *SDK) TestBackendRPS(backend, rpsPrefix string) status.Status {
	if st := s.checkInitialized(); !st.IsOK() {
		return st
	}
	settings, st := s.client.GetClientSettings(backend, rpsPrefix)
	if !st.IsOK() {
		return st
	}
	if err := settings.Validate(); err != nil {
		return status.FromError(status.ResponseParseError, err)
	}
	return status.Ok()
}

// SetBackend binds the SDK to a backend. On any failure the previously
// set backend, if any, stays fully effective.
func (s *SDK) SetBackend(backend, rpsPrefix string) status.Status {
	if st := s.checkInitialized(); !st.IsOK() {
		return st
	}

	backend = strings.TrimSuffix(strings.TrimSpace(backend), "/")
	settings, st := s.client.GetClientSettings(backend, rpsPrefix)
	if !st.IsOK() {
		return st
	}
	if err := settings.Validate(); err != nil {
		return status.FromError(status.ResponseParseError, err)
	}

	s.backend = backend
	s.rpsPrefix = rpsPrefix
	s.settings = settings
	s.state = sdkBackendSet
	jww.INFO.Printf("mfa: backend set to %s", backend)
	return status.Ok()
}

// Backend returns the currently bound backend URL, empty when unset.
func (s *SDK) Backend() string {
	return s.backend
}

// GetClientParam returns any value from the backend's client settings
// document, or empty when no backend is set or the key is absent.
func (s *SDK) GetClientParam(key string) string {
	if s.settings == nil {
		return ""
	}
	return s.settings.Param(key)
}

// AddCustomHeaders attaches headers to every subsequent backend request.
func (s *SDK) AddCustomHeaders(headers map[string]string) {
	s.client.AddCustomHeaders(headers)
}

// ClearCustomHeaders drops all previously added headers.
func (s *SDK) ClearCustomHeaders() {
	s.client.ClearCustomHeaders()
}

// SetCID pins the customer id reported with every backend request.
func (s *SDK) SetCID(cid string) {
	s.client.SetCID(cid)
}

// AddTrustedDomain narrows outbound requests to the given domain and its
// subdomains. Until the first call every domain is allowed.
func (s *SDK) AddTrustedDomain(domain string) {
	s.client.AddTrustedDomain(domain)
}

// ClearTrustedDomains re-opens outbound requests to all domains.
func (s *SDK) ClearTrustedDomains() {
	s.client.ClearTrustedDomains()
}

// todayEpochDays is the current day number used for time permits.
func todayEpochDays() int {
	return int(netTime.Now().Unix() / 86400)
}

// hashMPinID produces the hex SHA-256 digest of a hex mpinId's bytes, the
// key the certivox time permit service is addressed by.
func hashMPinID(mpinIDHex string) string {
	raw, err := hex.DecodeString(mpinIDHex)
	if err != nil {
		// Malformed ids hash as their literal bytes; the server rejects
		// the lookup either way.
		raw = []byte(mpinIDHex)
	}
	digest := sha256.Sum256(raw)
	return hex.EncodeToString(digest[:])
}
