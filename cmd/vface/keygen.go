// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new AES-256 encryption key",
		Long:  "Generate a random 32-byte key, hex encoded, ready to export as VFACE_ENCRYPTION_KEY or a versioned VFACE_ENCRYPTION_KEY_V<n>.",
		RunE:  runKeygen,
	}

	cmd.Flags().Int("key-version", 0, "print the export line for this payload version")

	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeCLISetupFailure, "generating key material")
	}

	encoded := hex.EncodeToString(key)

	version, _ := cmd.Flags().GetInt("key-version")
	if version > 0 {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "export VFACE_ENCRYPTION_KEY_V%d=%s\n", version, encoded)
		return err
	}

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "export VFACE_ENCRYPTION_KEY=%s\n", encoded)
	return err
}
