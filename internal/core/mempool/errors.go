package mempool

import "github.com/pkg/errors"

var (
	ErrAlreadyInMempool       = errors.New("mempool: transaction already admitted")
	ErrTxAlreadyInBlockchain  = errors.New("mempool: transaction already executed in an ordered block")
	ErrVerificationFailed     = errors.New("mempool: transaction failed verification against tip state")
	ErrInvalidNonceWindow     = errors.New("mempool: nonce outside [cache.min, cache.max+1] for this source")
	ErrReplacementUnderpriced = errors.New("mempool: replacement transaction fee is not strictly higher")
	ErrTxTooBig               = errors.New("mempool: transaction exceeds MaxTransactionSize")
)
