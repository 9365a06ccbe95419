package attestation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trufnetwork/attest/attestation/canonical"
	"github.com/trufnetwork/attest/attestation/payload"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrNotYetSigned means the record exists but the leader has not signed it.
	ErrNotYetSigned = errors.New("attestation not yet signed")

	// ErrNotFound means no attestation record exists for the request tx id.
	ErrNotFound = errors.New("attestation not found")

	// ErrInsufficientBalance is returned when the requester cannot pay the
	// attestation fee.
	ErrInsufficientBalance = errors.New("insufficient balance for attestation")

	// ErrVerificationFailure means the recovered signer is not an expected validator.
	ErrVerificationFailure = errors.New("attestation verification failed")

	// ErrMalformedPayload is re-exported from the payload codec.
	ErrMalformedPayload = payload.ErrMalformedPayload

	// ErrUnsupportedArgumentType is re-exported from the canonicalizer.
	ErrUnsupportedArgumentType = canonical.ErrUnsupportedArgumentType
)

// ValidationError names the request or filter field that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Node error message patterns. Matching is case-insensitive.
const (
	ErrPatternNotFound            = "not found"
	ErrPatternNotYetSigned        = "not yet signed"
	ErrPatternNotSignedYet        = "not signed yet"
	ErrPatternInsufficientBalance = "insufficient balance"
)

// NotSignedErrorPatterns are messages meaning "keep polling".
var NotSignedErrorPatterns = []string{
	ErrPatternNotYetSigned,
	ErrPatternNotSignedYet,
	ErrPatternNotFound,
}

// IsNotSignedError reports whether err means the signed payload is not
// available yet, whether because the record is missing or still unsigned.
func IsNotSignedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotYetSigned) || errors.Is(err, ErrNotFound) {
		return true
	}
	return containsAny(err, NotSignedErrorPatterns)
}

// classifyRetrievalError maps a node error from get_signed_attestation onto
// the taxonomy. Unsigned is checked first: its message never says "not found".
func classifyRetrievalError(err error) error {
	switch {
	case err == nil:
		return nil
	case containsAny(err, []string{ErrPatternNotYetSigned, ErrPatternNotSignedYet}):
		return fmt.Errorf("%w: %v", ErrNotYetSigned, err)
	case containsAny(err, []string{ErrPatternNotFound}):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}

// classifySubmitError maps submission/finality failures onto the taxonomy.
func classifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	if containsAny(err, []string{ErrPatternInsufficientBalance}) {
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	}
	return err
}

func containsAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
