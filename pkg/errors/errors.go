// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeCryptoPayloadUnknownFormat Code = "crypto.payload.parse.unknown_format"
	CodeCryptoKeyNotFound          Code = "crypto.payload.key.not_found"
	CodeCryptoMalformedHex         Code = "crypto.payload.decode.malformed_hex"
	CodeCryptoAuthFailed           Code = "crypto.payload.decrypt.auth_failed"

	CodeMatchingDimensionMismatch Code = "matching.embedding.dimension_mismatch"
	CodeMatchingDuplicateIdentity Code = "matching.enroll.duplicate_identity"

	CodeStoreUnreachable        Code = "store.unreachable"
	CodeStoreRecordNotFound     Code = "store.record.not_found"
	CodeStoreInvalidInput       Code = "store.invalid_input"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerAuthUnauthorized Code = "server.auth.unauthorized"
	CodeServerRequestInvalid   Code = "server.request.invalid"
	CodeServerInternalFailure  Code = "server.internal.failure"
	CodeServerStartFailure     Code = "server.start.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldFingerprint attaches a non-reversible fingerprint prefix, never the
// full 64-char fingerprint.
func FieldFingerprint(fingerprint string) Attr {
	return Field("fingerprint_prefix", Prefix(fingerprint))
}

// Prefix truncates a fingerprint to its first 8 characters for logs and
// client-facing messages.
func Prefix(fingerprint string) string {
	if len(fingerprint) <= 8 {
		return fingerprint
	}
	return fingerprint[:8]
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(string(code)).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(string(code)).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(string(code)).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(string(code)).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	codeStr, _ := oopsErr.Code().(string)
	return Code(codeStr)
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsDecryptFailure reports whether err is any of the payload-decrypt error
// classes. Callers surfacing these to clients must use a uniform message so
// authentication failures are indistinguishable from other decrypt failures.
func IsDecryptFailure(err error) bool {
	c := CodeOf(err)
	return strings.HasPrefix(string(c), "crypto.payload.")
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeStoreRecordNotFound)
}

func IsDuplicate(err error) bool {
	return HasCode(err, CodeMatchingDuplicateIdentity)
}

func IsUnauthorized(err error) bool {
	return HasCode(err, CodeServerAuthUnauthorized)
}

func IsStoreUnreachable(err error) bool {
	return HasCode(err, CodeStoreUnreachable)
}

// HTTPStatus maps an error code to the status its class surfaces as.
// Decrypt, validation, and request errors are client faults; duplicate
// enrollment is a policy conflict; store unreachability is infrastructure.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeCryptoPayloadUnknownFormat,
		CodeCryptoKeyNotFound,
		CodeCryptoMalformedHex,
		CodeCryptoAuthFailed,
		CodeMatchingDimensionMismatch,
		CodeStoreInvalidInput,
		CodeServerRequestInvalid:
		return http.StatusBadRequest
	case CodeMatchingDuplicateIdentity:
		return http.StatusConflict
	case CodeStoreRecordNotFound:
		return http.StatusNotFound
	case CodeServerAuthUnauthorized:
		return http.StatusUnauthorized
	case CodeStoreUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(string(CodeServerInternalFailure)).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}
