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

// usersCmd lists the identities stored for the configured backend.
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List stored identities",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()

		users := sdk.ListUsers()
		if len(users) == 0 {
			fmt.Println("No stored identities")
			return
		}
		for _, u := range users {
			sign := ""
			if u.CanSign() {
				sign = ", signing enabled"
			}
			fmt.Printf("%s\t%s%s\n", u.ID(), u.State(), sign)
		}
	},
}

// deleteUserCmd removes one identity and its secrets.
var deleteUserCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a stored identity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()

		if viper.GetString("user") == "" {
			jww.FATAL.Panicf("an identity is required (--user)")
		}
		user := findUser(sdk)
		sdk.DeleteUser(user)
		fmt.Printf("Deleted %s\n", user.ID())
	},
}

// clearUsersCmd wipes the whole registry.
var clearUsersCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored identities",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		sdk := initSDK()
		defer sdk.Destroy()
		sdk.ClearUsers()
		fmt.Println("Deleted all stored identities")
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(deleteUserCmd)
	usersCmd.AddCommand(clearUsersCmd)
}
