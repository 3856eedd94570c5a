////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/mfactor/client/crypto/soft"
	"gitlab.com/mfactor/client/mfa"
	"gitlab.com/mfactor/client/storage"
	"gitlab.com/mfactor/client/transport"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mfactor",
	Short: "Command-line client for M-Pin multi-factor authentication",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// initSDK builds and initializes an SDK bound to the configured backend.
func initSDK() *mfa.SDK {
	initLog(viper.GetUint("logLevel"), viper.GetString("log"))

	session := viper.GetString("session")
	if session == "" {
		jww.FATAL.Panicf("a session directory is required (--session)")
	}

	kv, err := storage.OpenKV(session, viper.GetString("password"))
	if err != nil {
		jww.FATAL.Panicf("cannot open session storage: %+v", err)
	}
	secure := storage.NewEkvStore(kv, storage.Secure)
	nonSecure := storage.NewEkvStore(kv, storage.NonSecure)

	sdk := mfa.New(mfa.NewContext(transport.NewHTTPTransport(), secure,
		nonSecure, soft.NewEngine(kv)))

	backend := viper.GetString("backend")
	if backend == "" {
		jww.FATAL.Panicf("a backend URL is required (--backend)")
	}
	st := sdk.Init(map[string]string{
		mfa.ConfigBackend:   backend,
		mfa.ConfigRPSPrefix: viper.GetString("rpsPrefix"),
	})
	if !st.IsOK() {
		jww.FATAL.Panicf("cannot initialize against %s: %s", backend, st)
	}

	for _, domain := range viper.GetStringSlice("trustedDomain") {
		sdk.AddTrustedDomain(domain)
	}
	return sdk
}

// findUser locates the registered user named by --user, or the only user
// when the flag is omitted.
func findUser(sdk *mfa.SDK) *mfa.User {
	id := viper.GetString("user")
	users := sdk.ListUsers()
	if id == "" {
		if len(users) == 1 {
			return users[0]
		}
		jww.FATAL.Panicf("%d users stored; select one with --user",
			len(users))
	}
	for _, u := range users {
		if u.ID() == id {
			return u
		}
	}
	jww.FATAL.Panicf("no stored user %q", id)
	return nil
}

// readPin returns the PIN from --pin or prompts for it.
func readPin() mfa.MultiFactor {
	pin := viper.GetString("pin")
	if pin == "" {
		fmt.Print("PIN: ")
		fmt.Scanln(&pin)
	}
	return mfa.NewMultiFactor(pin)
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(ioutil.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP("logLevel", "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("logLevel"))

	rootCmd.PersistentFlags().StringP("session", "s", "",
		"Sets the storage directory for client session data")
	viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session"))

	rootCmd.PersistentFlags().StringP("password", "p", "",
		"Password to the session storage")
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))

	rootCmd.PersistentFlags().StringP("backend", "b", "",
		"Backend URL to authenticate against")
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))

	rootCmd.PersistentFlags().String("rpsPrefix", "",
		"Path prefix of the relying-party service on the backend")
	viper.BindPFlag("rpsPrefix", rootCmd.PersistentFlags().Lookup("rpsPrefix"))

	rootCmd.PersistentFlags().StringP("user", "u", "",
		"Identity to operate on")
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	rootCmd.PersistentFlags().String("pin", "",
		"PIN to use; prompted for when omitted")
	viper.BindPFlag("pin", rootCmd.PersistentFlags().Lookup("pin"))

	rootCmd.PersistentFlags().StringSlice("trustedDomain", nil,
		"Restrict outbound requests to these domains")
	viper.BindPFlag("trustedDomain",
		rootCmd.PersistentFlags().Lookup("trustedDomain"))

	rootCmd.PersistentFlags().StringP("log", "l", "-",
		"Log output path, - for stdout")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfg := os.Getenv("MFACTOR_CONFIG"); cfg != "" {
		viper.SetConfigFile(cfg)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("cannot read config file %s: %s\n", cfg, err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("mfactor")
	viper.AutomaticEnv()
}
