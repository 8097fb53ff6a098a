package dispenser

import "errors"

// Domain errors for the dispenser package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, dispenser.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when an identity has no catalog entry.
	ErrNotFound = errors.New("dispenser: not found")

	// ErrAddressRequired is returned when saving an entry without an address.
	ErrAddressRequired = errors.New("dispenser: address required")

	// ErrNicknameRequired is returned when saving an entry without a nickname.
	ErrNicknameRequired = errors.New("dispenser: nickname required")

	// ErrDrugCodeRequired is returned when saving an entry without a drug code.
	ErrDrugCodeRequired = errors.New("dispenser: drug code required")

	// ErrInvalidIdentity is returned when an identity is empty or malformed.
	ErrInvalidIdentity = errors.New("dispenser: invalid identity")
)
