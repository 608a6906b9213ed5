package executor

import (
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
)

// TipVerifier adapts a VerificationState/VM pair into the
// mempool.Verifier collaborator (spec §4.6): verification always runs
// against whatever topoheight Topoheight() currently reports, which the
// daemon keeps pinned to the chain's accepted tip.
type TipVerifier struct {
	State      VerificationState
	VM         VM
	Topoheight func() uint64
}

// VerifyAgainstTip runs the full transaction verification pipeline
// against the current tip state.
func (v TipVerifier) VerifyAgainstTip(tx *transaction.Transaction) error {
	return VerifyTransaction(v.State, v.VM, tx, v.Topoheight())
}

// NonceAtTip reports owner's next-expected nonce at the current tip.
func (v TipVerifier) NonceAtTip(owner crypto.PublicKey) (uint64, error) {
	return v.State.NonceAtTopoheight(owner, v.Topoheight())
}
