// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package config

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/viper"

	"github.com/vface-dev/vface/internal/crypto"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// EnvKeyResolver resolves per-version symmetric keys from the environment:
// VFACE_ENCRYPTION_KEY_V<n> for a versioned key, VFACE_ENCRYPTION_KEY as the
// unversioned fallback. Keys are hex-decoded fresh on every call; nothing is
// cached, and callers scrub the returned slice after use.
type EnvKeyResolver struct {
	v *viper.Viper
}

// Compile-time interface check.
var _ crypto.KeyResolver = (*EnvKeyResolver)(nil)

// NewEnvKeyResolver creates a resolver bound to v. Pass viper.GetViper() for
// process-wide environment state.
func NewEnvKeyResolver(v *viper.Viper) *EnvKeyResolver {
	return &EnvKeyResolver{v: v}
}

// Resolve returns the 256-bit key for version. A version with neither a
// versioned nor a fallback key is a hard failure, never a different version.
func (r *EnvKeyResolver) Resolve(version int) ([]byte, error) {
	raw := r.v.GetString(fmt.Sprintf("encryption_key_v%d", version))
	if raw == "" {
		raw = r.v.GetString("encryption_key")
	}
	if raw == "" {
		return nil, vfaceerr.Errorf(vfaceerr.CodeCryptoKeyNotFound,
			"no encryption key configured for version %d", version)
	}

	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, vfaceerr.Errorf(vfaceerr.CodeCryptoKeyNotFound,
			"encryption key for version %d is not valid hex", version)
	}
	if len(key) != crypto.KeySize {
		crypto.Scrub(key)
		return nil, vfaceerr.Errorf(vfaceerr.CodeCryptoKeyNotFound,
			"encryption key for version %d must be %d bytes, got %d", version, crypto.KeySize, len(key))
	}

	return key, nil
}
