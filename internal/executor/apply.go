package executor

import (
	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/consensus"
	"github.com/terminos-network/terminos/internal/core/state"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/params"
	"github.com/terminos-network/terminos/pkg/contractvm"
)

// Receipt records one transaction's application outcome, enough for the
// caller (block acceptance) to update the mempool and emit events (spec
// §4.4, §7 "the event bus emits ... TransactionOrphaned").
type Receipt struct {
	Hash      [32]byte
	GasUsed   uint64
	Orphaned  bool // true if a later (source, nonce) duplicate pre-empted this one
	VMFailed  bool // true if InvokeContract/DeployContract ran but the VM itself failed
}

// ApplyBlock applies txs, in their block-serialisation order, to st at
// topoheight (spec §5 "Ordering guarantees": "Within one block,
// transactions are applied strictly in their block-serialisation
// order"). A fresh consensus.NonceChecker enforces the double-spend
// guard of spec §4.5: the first transaction for a given (source, nonce)
// wins; later duplicates are orphaned without being applied.
func ApplyBlock(st VerificationState, vm VM, txs []*transaction.Transaction, topoheight uint64) ([]Receipt, error) {
	checker := consensus.NewNonceChecker()
	receipts := make([]Receipt, 0, len(txs))

	for _, tx := range txs {
		hash, err := txSigningHash(tx)
		if err != nil {
			return nil, err
		}

		if !checker.Admit(tx) {
			receipts = append(receipts, Receipt{Hash: hash, Orphaned: true})
			continue
		}

		gasUsed, vmFailed, err := ApplyTransaction(st, vm, tx, topoheight)
		if err != nil {
			return nil, errors.Wrapf(err, "executor: applying tx %x", hash)
		}
		receipts = append(receipts, Receipt{Hash: hash, GasUsed: gasUsed, VMFailed: vmFailed})
	}
	return receipts, nil
}

// ApplyTransaction applies one already-verified transaction to st at
// topoheight (spec §4.4). Callers must have run VerifyTransaction first;
// ApplyTransaction does not re-check proofs, only recomputes the same
// deterministic cost/credit arithmetic the verifier already checked
// equals the declared commitments.
func ApplyTransaction(st VerificationState, vm VM, tx *transaction.Transaction, topoheight uint64) (gasUsed uint64, vmFailed bool, err error) {
	newAccounts, err := countNewDestinations(st, tx.Payload, topoheight)
	if err != nil {
		return 0, false, err
	}

	for _, sc := range tx.SourceCommitments {
		balance, _, err := st.EncryptedBalanceAtMax(tx.Source, sc.Asset, topoheight)
		if err != nil {
			return 0, false, errors.Wrap(err, "executor: reading balance to debit")
		}
		newCiphertext := balance.Sub(outgoingForAsset(tx, sc.Asset))
		if cost := publicScalarCostForAsset(tx, sc.Asset, newAccounts); cost > 0 {
			newCiphertext = newCiphertext.SubScalarG(cost)
		}
		if err := st.SetEncryptedBalance(tx.Source, sc.Asset, topoheight, newCiphertext); err != nil {
			return 0, false, errors.Wrap(err, "executor: writing debited balance")
		}
	}

	if tp, ok := tx.Payload.(transaction.TransferPayload); ok {
		for _, t := range tp.Transfers {
			if err := creditTransfer(st, t, topoheight); err != nil {
				return 0, false, err
			}
		}
	}

	if err := st.SetNonce(tx.Source, topoheight, tx.Nonce+1); err != nil {
		return 0, false, errors.Wrap(err, "executor: bumping nonce")
	}

	switch p := tx.Payload.(type) {
	case transaction.BurnPayload:
		if err := st.RecordBurn(topoheight, p.Amount); err != nil {
			return 0, false, errors.Wrap(err, "executor: recording burned supply")
		}
	case transaction.MultiSigPayload:
		if err := st.SetMultiSig(tx.Source, topoheight, p.Participants, p.Threshold); err != nil {
			return 0, false, errors.Wrap(err, "executor: applying multisig registration")
		}
	case transaction.EnergyFreezePayload:
		if err := applyFreeze(st, tx.Source, p, topoheight); err != nil {
			return 0, false, err
		}
	case transaction.EnergyUnfreezePayload:
		if err := applyUnfreeze(st, tx.Source, p, topoheight); err != nil {
			return 0, false, err
		}
	case transaction.InvokeContractPayload:
		gasUsed, vmFailed, err = applyInvoke(st, vm, tx.Source, p, topoheight)
		if err != nil {
			return gasUsed, vmFailed, err
		}
	case transaction.DeployContractPayload:
		if err := st.RecordBurn(topoheight, params.BurnPerContract); err != nil {
			return 0, false, errors.Wrap(err, "executor: recording deploy burn")
		}
		gasUsed, vmFailed, err = applyDeploy(st, vm, tx.Source, p, topoheight)
		if err != nil {
			return gasUsed, vmFailed, err
		}
	}

	return gasUsed, vmFailed, nil
}

// creditTransfer adds a transfer's amount ciphertext to its destination
// (spec §4.4 "For each transfer, credit the destination by adding the
// amount's ElGamal ciphertext under the destination's key"). The
// executor builds this ciphertext from the transfer's commitment and
// receiver handle, mirroring outgoingCiphertext's reconstruction on the
// sender side.
func creditTransfer(st VerificationState, t transaction.Transfer, topoheight uint64) error {
	existing, _, err := st.EncryptedBalanceAtMax(t.Destination, t.Asset, topoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading destination balance")
	}
	incoming := outgoingCiphertext(t.AmountCommitment, t.ReceiverHandle)
	if err := st.SetEncryptedBalance(t.Destination, t.Asset, topoheight, existing.Add(incoming)); err != nil {
		return errors.Wrap(err, "executor: crediting destination balance")
	}
	return nil
}

func applyFreeze(st VerificationState, owner crypto.PublicKey, p transaction.EnergyFreezePayload, topoheight uint64) error {
	energy, err := st.EnergyAtTopoheight(owner, topoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading energy state")
	}
	record := state.NewFreezeRecord(p.Amount, p.Duration, topoheight)
	energy = state.Freeze(energy, record)
	return st.SetEnergy(owner, topoheight, energy)
}

func applyUnfreeze(st VerificationState, owner crypto.PublicKey, p transaction.EnergyUnfreezePayload, topoheight uint64) error {
	energy, err := st.EnergyAtTopoheight(owner, topoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading energy state")
	}
	energy, err = state.Unfreeze(energy, p.Amount, topoheight)
	if err != nil {
		return errors.Wrap(err, "executor: unfreezing")
	}
	if err := st.SetEnergy(owner, topoheight, energy); err != nil {
		return err
	}

	balance, _, err := st.EncryptedBalanceAtMax(owner, transaction.NativeAsset, topoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading native balance for unfreeze credit")
	}
	credited := balance.Add(crypto.Encrypt(owner, p.Amount, crypto.ZeroScalar()))
	return st.SetEncryptedBalance(owner, transaction.NativeAsset, topoheight, credited)
}

// applyInvoke enters the VM for an already-deployed contract (spec §4.4
// "For contract invocation/deploy, enter the VM"). Public deposits are
// debited from the source's balance as a public scalar cost (already
// folded into publicScalarCostForAsset above); private deposits are only
// range-proved, per the limitation documented in DESIGN.md. The VM's
// returned gas usage is charged; the unused portion of max_gas is
// credited back to the sender's native balance.
func applyInvoke(st VerificationState, vm VM, source crypto.PublicKey, p transaction.InvokeContractPayload, topoheight uint64) (uint64, bool, error) {
	if vm == nil {
		return 0, false, errors.New("executor: no VM wired for InvokeContract")
	}
	module, err := vm.LoadModule(p.Contract)
	if err != nil {
		return 0, false, errors.Wrap(err, "executor: loading contract module")
	}
	result, err := vm.Execute(module, p.ChunkID, p.Params, p.MaxGas)
	if err != nil {
		return result.GasUsed, true, nil
	}
	if err := creditGasRefund(st, source, p.MaxGas, result.GasUsed, topoheight); err != nil {
		return result.GasUsed, false, err
	}
	if err := applyContractEffects(st, result, topoheight); err != nil {
		return result.GasUsed, false, err
	}
	return result.GasUsed, false, nil
}

// applyDeploy publishes a new contract module, burning BURN_PER_CONTRACT
// from the deployer's native balance (already folded into
// publicScalarCostForAsset) and storing the module keyed by its content
// hash (spec §4.4 "Contract modules are written once at deploy").
func applyDeploy(st VerificationState, vm VM, source crypto.PublicKey, p transaction.DeployContractPayload, topoheight uint64) (uint64, bool, error) {
	contract := contractHashOf(p.Module)
	if err := st.Backend().SetContractModule(contract, p.Module); err != nil {
		return 0, false, errors.Wrap(err, "executor: storing deployed module")
	}
	if vm == nil || len(p.ConstructorParams) == 0 {
		return 0, false, nil
	}
	result, err := vm.Execute(p.Module, 0, p.ConstructorParams, p.MaxGas)
	if err != nil {
		return result.GasUsed, true, nil
	}
	if err := creditGasRefund(st, source, p.MaxGas, result.GasUsed, topoheight); err != nil {
		return result.GasUsed, false, err
	}
	if err := applyContractEffects(st, result, topoheight); err != nil {
		return result.GasUsed, false, err
	}
	return result.GasUsed, false, nil
}

func creditGasRefund(st VerificationState, source crypto.PublicKey, maxGas, gasUsed uint64, topoheight uint64) error {
	if gasUsed >= maxGas {
		return nil
	}
	refund := maxGas - gasUsed
	balance, _, err := st.EncryptedBalanceAtMax(source, transaction.NativeAsset, topoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading balance for gas refund")
	}
	credited := balance.Add(crypto.Encrypt(source, refund, crypto.ZeroScalar()))
	return st.SetEncryptedBalance(source, transaction.NativeAsset, topoheight, credited)
}

// applyContractEffects records and applies a VM invocation's emitted
// transfers at the end of the transaction (spec §4.4 "Contract-emitted
// transfers and events are recorded into the execution log and applied
// at the end of the transaction"). Events themselves are out of this
// package's scope (they flow to the event bus, an RPC concern); only
// their balance-affecting transfers are applied here.
func applyContractEffects(st VerificationState, result contractvm.Result, topoheight uint64) error {
	for _, xfer := range result.Transfers {
		fromPK, err := crypto.DecodePublicKey(xfer.From[:])
		if err != nil {
			continue // malformed VM output; nothing to apply
		}
		toPK, err := crypto.DecodePublicKey(xfer.To[:])
		if err != nil {
			continue
		}
		fromBal, _, err := st.EncryptedBalanceAtMax(fromPK, xfer.Asset, topoheight)
		if err != nil {
			return errors.Wrap(err, "executor: reading contract-transfer source balance")
		}
		amountCt := crypto.Encrypt(toPK, xfer.Amount, crypto.ZeroScalar())
		if err := st.SetEncryptedBalance(fromPK, xfer.Asset, topoheight, fromBal.SubScalarG(xfer.Amount)); err != nil {
			return errors.Wrap(err, "executor: debiting contract-transfer source")
		}
		toBal, _, err := st.EncryptedBalanceAtMax(toPK, xfer.Asset, topoheight)
		if err != nil {
			return errors.Wrap(err, "executor: reading contract-transfer destination balance")
		}
		if err := st.SetEncryptedBalance(toPK, xfer.Asset, topoheight, toBal.Add(amountCt)); err != nil {
			return errors.Wrap(err, "executor: crediting contract-transfer destination")
		}
	}
	return nil
}

// FeePerAccountCreation and BurnPerContract are re-exported for callers
// (e.g. the daemon's block-template assembly) that need to size a
// transaction's worst-case debit without re-deriving it from params.
const (
	FeePerAccountCreation = params.FeePerAccountCreation
	BurnPerContract       = params.BurnPerContract
)
