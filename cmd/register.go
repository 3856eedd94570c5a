////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/mfactor/client/status"
)

// registerCmd enrolls an identity: it starts the registration, polls the
// backend until the out-of-band verification lands, then derives the
// token from the entered PIN.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register an identity with the backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()

		id := viper.GetString("user")
		if id == "" {
			jww.FATAL.Panicf("an identity is required (--user)")
		}

		user := sdk.MakeNewUser(id, viper.GetString("deviceName"))
		st := sdk.StartRegistration(user, "", "",
			viper.GetString("regCode"))
		if !st.IsOK() {
			jww.FATAL.Panicf("cannot start registration: %s", st)
		}
		fmt.Printf("Registration started for %s\n", id)

		if token := viper.GetString("regToken"); token != "" {
			if st = sdk.SetRegistrationToken(user, token); !st.IsOK() {
				jww.FATAL.Panicf("cannot set the activation token: %s", st)
			}
		}

		interval := viper.GetDuration("pollInterval")
		for {
			st = sdk.ConfirmRegistration(user)
			if st.IsOK() {
				break
			}
			if !st.Is(status.IdentityNotVerified) {
				jww.FATAL.Panicf("cannot confirm registration: %s", st)
			}
			fmt.Printf("Waiting for verification of %s...\n", id)
			time.Sleep(interval)
		}

		st = sdk.FinishRegistration(user, readPin())
		if !st.IsOK() {
			jww.FATAL.Panicf("cannot finish registration: %s", st)
		}
		fmt.Printf("Registered %s\n", id)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("deviceName", "",
		"Device name reported to the backend")
	viper.BindPFlag("deviceName", registerCmd.Flags().Lookup("deviceName"))

	registerCmd.Flags().String("regCode", "",
		"Registration code issued by an already registered device")
	viper.BindPFlag("regCode", registerCmd.Flags().Lookup("regCode"))

	registerCmd.Flags().String("regToken", "",
		"Out-of-band activation token, when the backend requires one")
	viper.BindPFlag("regToken", registerCmd.Flags().Lookup("regToken"))

	registerCmd.Flags().Duration("pollInterval", 5*time.Second,
		"How often to poll for verification")
	viper.BindPFlag("pollInterval",
		registerCmd.Flags().Lookup("pollInterval"))
}
