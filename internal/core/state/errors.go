package state

import "github.com/pkg/errors"

var (
	ErrAccountNotFound          = errors.New("state: account not found")
	ErrAssetAlreadyRegistered   = errors.New("state: asset already registered")
	ErrAssetNotFound            = errors.New("state: asset not found")
	ErrInsufficientFrozen       = errors.New("state: not enough frozen native coin to unfreeze")
	ErrInsufficientUnlocked     = errors.New("state: not enough unlocked freeze records to satisfy the unfreeze amount")
	ErrMultiSigThresholdZero    = errors.New("state: multisig threshold of zero with non-empty participants is forbidden")
	ErrNonceMismatch            = errors.New("state: transaction nonce does not match the account's current nonce")
)
