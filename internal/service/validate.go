package service

import (
	"regexp"

	apperrors "github.com/nbsync/sync-server-go/internal/errors"
)

// Unit IDs exclude ':' so ledger notification members stay parseable, and
// session codes match the generated alphabet.
var (
	unitIDPattern      = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)
	sessionCodePattern = regexp.MustCompile(`^[A-Z2-9]{4,12}$`)
	contentHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

func validateUnitID(unitID string) error {
	if !unitIDPattern.MatchString(unitID) {
		return apperrors.InvalidInput("unit_id", "must be 1-128 characters of [A-Za-z0-9_.-]")
	}
	return nil
}

func validateSessionCode(code string) error {
	if !sessionCodePattern.MatchString(code) {
		return apperrors.InvalidInput("session code", "malformed")
	}
	return nil
}

func validateContentHash(hash string) error {
	if !contentHashPattern.MatchString(hash) {
		return apperrors.InvalidInput("content hash", "must be 64 lowercase hex characters")
	}
	return nil
}

// storeErr wraps raw registry errors as transient store failures while
// passing structured errors through verbatim.
func storeErr(op string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.StoreUnavailable(op, err)
}
