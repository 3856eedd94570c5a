////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"fmt"
	"io/ioutil"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/xx_network/primitives/netTime"
)

// signSetupCmd provisions the signing sub-identity for a registered user.
var signSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the signing identity for a registered user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()
		user := findUser(sdk)
		pin := readPin()

		if st := sdk.StartRegistrationDVS(user, pin); !st.IsOK() {
			jww.FATAL.Panicf("cannot start the signing registration: %s", st)
		}
		if st := sdk.FinishRegistrationDVS(user, pin); !st.IsOK() {
			jww.FATAL.Panicf("cannot finish the signing registration: %s", st)
		}
		fmt.Printf("Signing enabled for %s\n", user.ID())
	},
}

// signCmd signs a document with the user's signing identity.
var signCmd = &cobra.Command{
	Use:   "sign [file]",
	Short: "Sign a document with a registered identity",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()
		user := findUser(sdk)

		document, err := ioutil.ReadFile(args[0])
		if err != nil {
			jww.FATAL.Panicf("cannot read %s: %+v", args[0], err)
		}
		hash := sdk.HashDocument(string(document))

		sig, st := sdk.Sign(user, hash, readPin(),
			int(netTime.Now().Unix()))
		if !st.IsOK() {
			jww.FATAL.Panicf("cannot sign %s: %s", args[0], st)
		}
		fmt.Printf("hash: %s\nu: %s\nv: %s\npublicKey: %s\ndtas: %s\n",
			sig.Hash, sig.U, sig.V, sig.PublicKey, sig.DTAs)
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.AddCommand(signSetupCmd)
}
