////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package mfa

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/mfactor/client/status"
)

func TestRegistration_FullFlow(t *testing.T) {
	env := newTestEnvWithBackend(t)
	user := env.registerUser(t, "alice@test", "1234")

	require.Equal(t, StateRegistered, user.State())
	require.Equal(t, "cust-1", user.CustomerID())
	require.Equal(t, "app-1", user.AppID())
	require.Equal(t, 4, user.PinLength())
	require.True(t, user.regOTT.IsEmpty(),
		"the one-time token must be gone after registration")
	require.Empty(t, env.eng.regOTTs, "the staged regOTT must be deleted")
	require.Equal(t, []int{1234}, env.eng.tokens[user.MPinID()])
}

func TestRegistration_StartFromWrongState(t *testing.T) {
	env := newTestEnvWithBackend(t)
	user := env.registerUser(t, "alice@test", "1234")

	st := env.sdk.StartRegistration(user, "", "", "")
	require.True(t, st.Is(status.FlowError),
		"a registered user cannot start registration again")

	st = env.sdk.FinishRegistration(user, NewMultiFactor("1234"))
	require.True(t, st.Is(status.FlowError))
}

func TestRegistration_ConfirmPending(t *testing.T) {
	env := newTestEnvWithBackend(t)
	mpinID := hex.EncodeToString([]byte("mpin-alice@test"))
	env.scriptRegistration("alice@test", mpinID)

	// Verification has not happened yet: the share fetch answers 401.
	env.tr.set(http.MethodGet, "https://api.test/rps/signature/"+mpinID,
		http.StatusUnauthorized, `{"error":"not verified"}`)

	user := env.sdk.MakeNewUser("alice@test", "")
	require.True(t, env.sdk.StartRegistration(user, "", "", "").IsOK())

	st := env.sdk.ConfirmRegistration(user)
	require.True(t, st.Is(status.IdentityNotVerified))
	require.Equal(t, StateStartedRegistration, user.State(),
		"a pending confirmation must not change state")

	// The user verifies; the next poll succeeds.
	env.tr.set(http.MethodGet, "https://api.test/rps/signature/"+mpinID,
		http.StatusOK,
		`{"clientSecretShare":"0a0b","cs2url":"https://api.test/certivox/clientSecret"}`)
	require.True(t, env.sdk.ConfirmRegistration(user).IsOK())
	require.Equal(t, StateActivated, user.State())

	// Confirming an already-activated user is a no-op.
	require.True(t, env.sdk.ConfirmRegistration(user).IsOK())
}

func TestRegistration_PinCancel(t *testing.T) {
	env := newTestEnvWithBackend(t)
	mpinID := hex.EncodeToString([]byte("mpin-alice@test"))
	env.scriptRegistration("alice@test", mpinID)

	user := env.sdk.MakeNewUser("alice@test", "")
	require.True(t, env.sdk.StartRegistration(user, "", "", "").IsOK())
	require.True(t, env.sdk.ConfirmRegistration(user).IsOK())

	st := env.sdk.FinishRegistration(user, MultiFactor{})
	require.True(t, st.Is(status.PinInputCanceled))
	require.Equal(t, StateActivated, user.State(),
		"cancelling PIN entry must leave the state alone")
}

func TestRegistration_ActiveFlagSkipsVerification(t *testing.T) {
	env := newTestEnvWithBackend(t)
	mpinID := hex.EncodeToString([]byte("mpin-alice@test"))
	env.scriptRegistration("alice@test", mpinID)
	env.tr.set(http.MethodPut, "https://api.test/rps/user", http.StatusOK,
		fmt.Sprintf(`{"mpinId":%q,"regOTT":"aabbccdd","active":true}`,
			mpinID))

	user := env.sdk.MakeNewUser("alice@test", "")
	require.True(t, env.sdk.StartRegistration(user, "", "", "").IsOK())
	require.Equal(t, StateActivated, user.State(),
		"an active reply skips external verification")
}

func TestRegistration_RestartIssuesNewIdentity(t *testing.T) {
	env := newTestEnvWithBackend(t)
	mpinID := hex.EncodeToString([]byte("mpin-alice@test"))
	env.scriptRegistration("alice@test", mpinID)

	user := env.sdk.MakeNewUser("alice@test", "")
	require.True(t, env.sdk.StartRegistration(user, "", "", "").IsOK())
	firstOTT := user.regOTT.Recombine()

	env.tr.set(http.MethodPut, "https://api.test/rps/user", http.StatusOK,
		fmt.Sprintf(`{"mpinId":%q,"regOTT":"99887766","active":false}`,
			mpinID))
	require.True(t, env.sdk.RestartRegistration(user).IsOK())
	require.NotEqual(t, firstOTT, user.regOTT.Recombine())
	require.Equal(t, StateStartedRegistration, user.State())

	// Restart is only for users mid-registration.
	env.scriptRegistration("bob@test", mpinID)
	fresh := env.sdk.MakeNewUser("bob@test", "")
	require.True(t, env.sdk.RestartRegistration(fresh).Is(status.FlowError))
}

func TestRegistration_RegOTTSurvivesRestart(t *testing.T) {
	env := newTestEnvWithBackend(t)
	mpinID := hex.EncodeToString([]byte("mpin-alice@test"))
	env.scriptRegistration("alice@test", mpinID)

	user := env.sdk.MakeNewUser("alice@test", "")
	require.True(t, env.sdk.StartRegistration(user, "ac-1", "", "").IsOK())
	ott := user.regOTT.Recombine()

	env.restart(t)
	users := env.sdk.ListUsers()
	require.Len(t, users, 1)
	restored := users[0]
	require.Equal(t, StateStartedRegistration, restored.State())
	require.Equal(t, ott, restored.regOTT.Recombine(),
		"the one-time token must survive a process restart")
	require.Equal(t, "ac-1", restored.accessCode)

	// The restored user can finish registering.
	require.True(t, env.sdk.ConfirmRegistration(restored).IsOK())
	require.True(t, env.sdk.FinishRegistration(restored,
		NewMultiFactor("1234")).IsOK())
	require.Equal(t, StateRegistered, restored.State())
}

func TestRegistration_RegistrationToken(t *testing.T) {
	env := newTestEnvWithBackend(t)
	mpinID := hex.EncodeToString([]byte("mpin-alice@test"))
	env.scriptRegistration("alice@test", mpinID)

	user := env.sdk.MakeNewUser("alice@test", "")
	require.True(t, env.sdk.StartRegistration(user, "", "", "").IsOK())

	require.False(t, env.sdk.IsRegistrationTokenSet(user))
	require.True(t, env.sdk.SetRegistrationToken(user, "tok-1").IsOK())
	require.True(t, env.sdk.IsRegistrationTokenSet(user))

	require.True(t, env.sdk.ConfirmRegistration(user).IsOK())
	req := env.tr.last(t)
	require.Equal(t, "tok-1", req.QueryParams["activationToken"],
		"the activation token rides along with the share fetch")
}
