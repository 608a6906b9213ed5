package executor

import "github.com/pkg/errors"

// Validation-taxonomy errors (spec §7 "Validation errors"): reject the
// transaction/block, never poison state.
var (
	ErrTxTooBig                = errors.New("executor: transaction exceeds MAX_TRANSACTION_SIZE")
	ErrUnsupportedVersion      = errors.New("executor: transaction version is not supported by this block version")
	ErrSourceCommitmentMissing = errors.New("executor: spent asset has no matching source commitment")
	ErrCommitmentEqProofFailed = errors.New("executor: commitment-equality proof failed")
	ErrValidityProofFailed     = errors.New("executor: ciphertext-validity proof failed")
	ErrRangeProofFailed        = errors.New("executor: aggregated range proof failed")
	ErrTxNonceAlreadyUsed      = errors.New("executor: nonce does not match the account's current nonce")
	ErrMultiSigSignaturesShort = errors.New("executor: fewer valid multisig signatures than the registered threshold")
	ErrMultiSigDuplicateSigner = errors.New("executor: multisig signature list repeats a signer index")
	ErrInvalidSignature        = errors.New("executor: transaction signature verification failed")
	ErrInvalidTxInBlock        = errors.New("executor: transaction structurally invalid for inclusion in a block")
	ErrContractAlreadyDeployed = errors.New("executor: deploy targets a contract hash that already has a module")
	ErrContractNotDeployed     = errors.New("executor: invoke targets a contract with no deployed module")
	ErrDepositZero             = errors.New("executor: deposit declares a zero public amount and no private proof")
	ErrTxAlreadyInBlockchain   = errors.New("executor: transaction hash already executed in an ordered block")
)
