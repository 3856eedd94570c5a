////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// authCmd authenticates a registered identity, optionally against a
// browser session access code.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate a registered identity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()
		user := findUser(sdk)

		accessCode := viper.GetString("accessCode")
		if accessCode != "" {
			details, st := sdk.GetSessionDetails(accessCode)
			if st.IsOK() && details.AppName != "" {
				fmt.Printf("Logging in to %s\n", details.AppName)
			}
		}

		if st := sdk.StartAuthentication(user, accessCode); !st.IsOK() {
			jww.FATAL.Panicf("cannot start authentication: %s", st)
		}
		st := sdk.FinishAuthentication(user, readPin(), accessCode)
		if !st.IsOK() {
			jww.FATAL.Panicf("authentication failed: %s", st)
		}
		fmt.Printf("Authenticated %s\n", user.ID())
	},
}

// otpCmd authenticates and prints a one-time passcode.
var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Retrieve a one-time passcode",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()
		user := findUser(sdk)

		if st := sdk.StartAuthenticationOTP(user); !st.IsOK() {
			jww.FATAL.Panicf("cannot start authentication: %s", st)
		}
		otp, st := sdk.FinishAuthenticationOTP(user, readPin())
		if !st.IsOK() {
			jww.FATAL.Panicf("authentication failed: %s", st)
		}
		if !otp.Status.IsOK() {
			jww.FATAL.Panicf("the backend issued no OTP: %s", otp.Status)
		}
		fmt.Printf("OTP: %s (valid %d seconds)\n", otp.OTP, otp.TTLSeconds)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(otpCmd)

	authCmd.Flags().StringP("accessCode", "a", "",
		"Access code of the browser session to log in to")
	viper.BindPFlag("accessCode", authCmd.Flags().Lookup("accessCode"))
}
