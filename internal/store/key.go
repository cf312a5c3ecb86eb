// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package store

import (
	"encoding/binary"
	"encoding/hex"

	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// FingerprintLen is the expected length of a caller-supplied identity
// fingerprint: 64 hex characters (a 256-bit digest).
const FingerprintLen = 64

// StorageKey derives the deterministic point ID for a fingerprint: the first
// 16 hex characters interpreted as a big-endian unsigned 64-bit integer.
//
// Two fingerprints sharing a 16-character prefix map to the same key and
// overwrite each other on upsert. That collision is a known limitation of
// this scheme, not an error.
func StorageKey(fingerprint string) (uint64, error) {
	if len(fingerprint) != FingerprintLen {
		return 0, vfaceerr.Errorf(vfaceerr.CodeStoreInvalidInput,
			"fingerprint must be %d hex characters, got %d", FingerprintLen, len(fingerprint))
	}

	// The whole fingerprint must be hex, not just the key-bearing prefix.
	raw, err := hex.DecodeString(fingerprint)
	if err != nil {
		return 0, vfaceerr.Wrap(err, vfaceerr.CodeStoreInvalidInput, "fingerprint is not hex",
			vfaceerr.FieldFingerprint(fingerprint))
	}

	return binary.BigEndian.Uint64(raw[:8]), nil
}
