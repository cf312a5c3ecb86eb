// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vface-dev/vface/internal/config"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// NewRootCmd creates the root vface command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vface",
		Short:         "vface - biometric identity matching boundary",
		Long:          "vface accepts encrypted face embeddings, guards enrollment against duplicates, and answers similarity queries without ever persisting plaintext biometrics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newKeygenCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return vfaceerr.Errorf(vfaceerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		v.SetConfigName("vface")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vface")
		v.AddConfigPath("/etc/vface")
		// No config file is fine, defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return vfaceerr.Errorf(vfaceerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return vfaceerr.Errorf(vfaceerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
