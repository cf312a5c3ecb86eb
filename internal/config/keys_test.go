// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package config_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vface-dev/vface/internal/config"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

func newResolverViper() *viper.Viper {
	v := viper.New()
	config.SetupEnv(v)
	return v
}

func hexKey(fill byte) string {
	return hex.EncodeToString([]byte(strings.Repeat(string(fill), 32)))
}

func TestEnvKeyResolver_VersionedKey(t *testing.T) {
	t.Setenv("VFACE_ENCRYPTION_KEY_V2", hexKey('b'))
	t.Setenv("VFACE_ENCRYPTION_KEY", hexKey('a'))

	r := config.NewEnvKeyResolver(newResolverViper())

	key, err := r.Resolve(2)
	require.NoError(t, err)
	assert.Equal(t, byte('b'), key[0])
}

func TestEnvKeyResolver_FallbackKey(t *testing.T) {
	t.Setenv("VFACE_ENCRYPTION_KEY", hexKey('a'))

	r := config.NewEnvKeyResolver(newResolverViper())

	// Version 3 has no versioned key; the unversioned fallback applies.
	key, err := r.Resolve(3)
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.Equal(t, byte('a'), key[0])
}

func TestEnvKeyResolver_NoKey(t *testing.T) {
	r := config.NewEnvKeyResolver(newResolverViper())

	_, err := r.Resolve(1)
	assert.True(t, vfaceerr.HasCode(err, vfaceerr.CodeCryptoKeyNotFound))
}

func TestEnvKeyResolver_BadKeyMaterial(t *testing.T) {
	t.Setenv("VFACE_ENCRYPTION_KEY", "not-hex")
	r := config.NewEnvKeyResolver(newResolverViper())
	_, err := r.Resolve(1)
	assert.True(t, vfaceerr.HasCode(err, vfaceerr.CodeCryptoKeyNotFound))

	t.Setenv("VFACE_ENCRYPTION_KEY", "aabb") // too short
	_, err = r.Resolve(1)
	assert.True(t, vfaceerr.HasCode(err, vfaceerr.CodeCryptoKeyNotFound))
}
