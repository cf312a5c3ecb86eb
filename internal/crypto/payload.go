// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package crypto decrypts AES-256-GCM encrypted embedding payloads. This is
// the only package in which plaintext embedding bytes exist; every exit path
// scrubs them before returning.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// KeySize is the required symmetric key length (AES-256).
const KeySize = 32

// KeyResolver resolves a 256-bit key by payload version at decrypt time.
// Implementations must not cache plaintext key material beyond the call.
type KeyResolver interface {
	Resolve(version int) ([]byte, error)
}

// KeyResolverFunc adapts a function to the KeyResolver interface.
type KeyResolverFunc func(version int) ([]byte, error)

func (f KeyResolverFunc) Resolve(version int) ([]byte, error) { return f(version) }

// Payload is a parsed encrypted embedding.
type Payload struct {
	Version    int
	IV         []byte
	AuthTag    []byte
	Ciphertext []byte
}

var versionPrefix = regexp.MustCompile(`^v\d+$`)

// ParsePayload splits a colon-delimited hex payload. A leading v<digits>
// segment selects the key version; the 3-field legacy form implies version 1.
func ParsePayload(raw string) (*Payload, error) {
	parts := strings.Split(raw, ":")

	var version int
	var ivHex, tagHex, ctHex string

	switch {
	case len(parts) == 4 && versionPrefix.MatchString(parts[0]):
		v, err := strconv.Atoi(parts[0][1:])
		if err != nil || v < 1 {
			return nil, vfaceerr.Errorf(vfaceerr.CodeCryptoPayloadUnknownFormat,
				"invalid payload version segment %q", parts[0])
		}
		version = v
		ivHex, tagHex, ctHex = parts[1], parts[2], parts[3]
	case len(parts) == 3:
		version = 1
		ivHex, tagHex, ctHex = parts[0], parts[1], parts[2]
	default:
		return nil, vfaceerr.Errorf(vfaceerr.CodeCryptoPayloadUnknownFormat,
			"unknown payload format: %d parts", len(parts))
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeCryptoMalformedHex, "decoding iv")
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeCryptoMalformedHex, "decoding auth tag")
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeCryptoMalformedHex, "decoding ciphertext")
	}

	return &Payload{Version: version, IV: iv, AuthTag: tag, Ciphertext: ct}, nil
}

// Decrypt parses and authenticated-decrypts an encrypted embedding payload
// into a float32 vector. The ciphertext and tag form one authenticated block;
// no associated data is used. All decrypt failures carry uniform client-facing
// detail so a tag mismatch is indistinguishable from other failures.
func Decrypt(raw string, keys KeyResolver) ([]float32, error) {
	payload, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}

	key, err := keys.Resolve(payload.Version)
	if err != nil {
		return nil, vfaceerr.Wrapf(err, vfaceerr.CodeCryptoKeyNotFound,
			"no key for payload version %d", payload.Version)
	}
	defer Scrub(key)

	if len(key) != KeySize {
		return nil, vfaceerr.Errorf(vfaceerr.CodeCryptoKeyNotFound,
			"key for version %d is not %d bytes", payload.Version, KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, vfaceerr.Wrap(err, vfaceerr.CodeCryptoAuthFailed, "decryption failed")
	}

	aead, err := cipher.NewGCMWithNonceSize(block, len(payload.IV))
	if err != nil {
		return nil, vfaceerr.New(vfaceerr.CodeCryptoAuthFailed, "decryption failed")
	}

	sealed := make([]byte, 0, len(payload.Ciphertext)+len(payload.AuthTag))
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.AuthTag...)

	plaintext, err := aead.Open(nil, payload.IV, sealed, nil)
	if err != nil {
		// Uniform message: never reveal whether the tag, key, or ciphertext
		// was at fault.
		return nil, vfaceerr.New(vfaceerr.CodeCryptoAuthFailed, "decryption failed")
	}
	defer Scrub(plaintext)

	var vector []float32
	if err := json.Unmarshal(plaintext, &vector); err != nil {
		return nil, vfaceerr.New(vfaceerr.CodeCryptoAuthFailed, "decryption failed")
	}

	return vector, nil
}

// Scrub overwrites b with zeros. Best effort in a garbage-collected runtime:
// earlier copies made by the GC or append growth cannot be reached.
func Scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
