package transaction

import "github.com/pkg/errors"

// Errors returned by the builder and by early validation in the
// executor, before any proof is checked (spec §3, §4.2).
var (
	ErrEmptyTransfers                    = errors.New("transaction: transfer payload has no destinations")
	ErrMaxTransferCountReached           = errors.New("transaction: transfer payload exceeds the maximum destination count")
	ErrSenderIsReceiver                  = errors.New("transaction: destination matches the sender's own key")
	ErrInvalidNetwork                    = errors.New("transaction: destination key belongs to a different network")
	ErrExtraDataTooLarge                 = errors.New("transaction: extra data exceeds the maximum size")
	ErrMissingContractKey                = errors.New("transaction: invoke targets a contract with no deployed module")
	ErrBurnZero                          = errors.New("transaction: burn amount is zero")
	ErrDepositZero                       = errors.New("transaction: deposit amount is zero")
	ErrInvalidModule                     = errors.New("transaction: contract module failed validation")
	ErrMaxGasReached                     = errors.New("transaction: requested gas exceeds the maximum allowed")
	ErrMultiSigParticipants              = errors.New("transaction: multisig participant count out of range")
	ErrMultiSigThreshold                 = errors.New("transaction: multisig threshold out of range for participant count")
	ErrMultiSigSelfParticipant           = errors.New("transaction: multisig participant list includes the sender")
	ErrInsufficientFunds                 = errors.New("transaction: insufficient decrypted balance to cover amount and fee")
	ErrProofGenerationError              = errors.New("transaction: proof generation failed")
	ErrEnergyFeesNotAllowedForNonTransfer = errors.New("transaction: energy-denominated fees are only allowed on Transfer payloads")
	ErrInvalidConstructorInvoke          = errors.New("transaction: deploy payload's constructor params are invalid for the module")
)
