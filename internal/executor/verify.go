// Package executor implements the transaction executor (spec §4.3, §4.4,
// §4.5 "Double-spend guard"): batched proof verification, deterministic
// application to chain state, contract invocation, and orphan recovery.
// It is the only package that ever holds a BlockchainVerificationState,
// the way daglabs-btcd's blockdag.validate.go is the only place a
// *blockdag.BlockDAG is threaded through script/UTXO verification.
package executor

import (
	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/params"
)

// RequiredTxVersion is the transaction version this executor accepts.
// Future block versions that bump the wire format add an entry here
// rather than loosening the check (spec §4.3 step 1).
const RequiredTxVersion = 1

// VerifyTransaction runs the nine ordered checks of spec §4.3 against
// st, pinned at execTopoheight (the topoheight the transaction is being
// considered for execution at, normally the block's own topoheight
// during block verification, or the chain tip during mempool admission).
// vm is only consulted for InvokeContract/DeployContract payloads and may
// be nil otherwise.
func VerifyTransaction(st VerificationState, vm VM, tx *transaction.Transaction, execTopoheight uint64) error {
	size, err := tx.Size()
	if err != nil {
		return errors.Wrap(err, "executor: measuring transaction size")
	}
	if size > params.MaxTransactionSize {
		return ErrTxTooBig
	}
	if tx.Version != RequiredTxVersion {
		return ErrUnsupportedVersion
	}

	newAccounts, err := countNewDestinations(st, tx.Payload, tx.Reference.Topoheight)
	if err != nil {
		return err
	}

	if err := verifySourceCommitments(st, tx, newAccounts); err != nil {
		return err
	}
	if err := verifyTransfers(tx); err != nil {
		return err
	}
	if err := verifyRangeProof(tx); err != nil {
		return err
	}

	nonce, err := st.NonceAtTopoheight(tx.Source, execTopoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading nonce")
	}
	if nonce != tx.Nonce {
		return ErrTxNonceAlreadyUsed
	}

	if err := verifyMultiSig(st, tx, execTopoheight); err != nil {
		return err
	}

	txHash, err := txSigningHash(tx)
	if err != nil {
		return err
	}
	if !crypto.Verify(tx.Source, txHash[:], tx.Signature) {
		return ErrInvalidSignature
	}

	if err := verifyContractPayload(st, tx); err != nil {
		return err
	}

	return nil
}

// txSigningHash hashes the transaction's unsigned encoding, the message
// the sender's ed25519-style signature covers (spec §4.3 step 7).
func txSigningHash(tx *transaction.Transaction) ([32]byte, error) {
	unsigned, err := tx.Encode(false)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "executor: encoding unsigned transaction")
	}
	return crypto.HashBytes(unsigned), nil
}

// outgoingCiphertext reconstructs the ElGamal-shaped ciphertext a
// transfer/private-deposit contributes against the sender's own balance
// from its public commitment and sender decrypt handle (spec §4.1
// CiphertextValidityProof: "commitment = a*G + r*H; senderHandle =
// r*SenderPub"). The executor never needs to decrypt this value, only
// to add/subtract it homomorphically against encrypted balances, so the
// commitment's point standing in for the ciphertext's C component is
// sufficient for that purpose.
func outgoingCiphertext(commitment crypto.Commitment, senderHandle *crypto.Point) crypto.Ciphertext {
	return crypto.Ciphertext{C: commitment.Point(), D: senderHandle}
}

// verifySourceCommitments implements spec §4.3 step 2: for each source
// commitment, reconstruct the sender's post-spend ciphertext from the
// ciphertext at the reference topoheight minus this transaction's
// outgoing amounts (and, for the native asset under a native fee, the
// fee scalar), then verify the CommitmentEqProof ties it to the declared
// commitment.
func verifySourceCommitments(st VerificationState, tx *transaction.Transaction, newAccounts int) error {
	spent := tx.SpentAssets()
	bySpent := make(map[transaction.AssetID]bool, len(spent))
	for _, a := range spent {
		bySpent[a] = true
	}

	bySC := make(map[transaction.AssetID]transaction.SourceCommitment, len(tx.SourceCommitments))
	for _, sc := range tx.SourceCommitments {
		if !bySpent[sc.Asset] {
			return errors.Wrapf(ErrSourceCommitmentMissing, "asset %x not spent by payload", sc.Asset)
		}
		bySC[sc.Asset] = sc
	}
	for asset := range bySpent {
		if _, ok := bySC[asset]; !ok {
			return ErrSourceCommitmentMissing
		}
	}

	for _, sc := range tx.SourceCommitments {
		balance, _, err := st.EncryptedBalanceAtMax(tx.Source, sc.Asset, tx.Reference.Topoheight)
		if err != nil {
			return errors.Wrap(err, "executor: reading reference balance")
		}

		outgoing := outgoingForAsset(tx, sc.Asset)
		newCiphertext := balance.Sub(outgoing)

		publicCost := publicScalarCostForAsset(tx, sc.Asset, newAccounts)
		if publicCost > 0 {
			newCiphertext = newCiphertext.SubScalarG(publicCost)
		}

		tr := crypto.NewTranscript("terminos/source-commitment/v1")
		tr.AppendBytes("asset", sc.Asset[:])
		if err := sc.Proof.Verify(tr, tx.Source, sc.Commitment, newCiphertext); err != nil {
			return errors.Wrap(ErrCommitmentEqProofFailed, err.Error())
		}
	}
	return nil
}

// outgoingForAsset sums the hidden (commitment+handle) outgoing amounts
// of asset: transfer amounts and private deposit amounts. Public scalar
// costs (fees, burns, public deposits, the fixed per-account-creation and
// per-contract-deploy charges) are handled separately by
// publicScalarCostForAsset, since they subtract a bare scalar*G rather
// than a full ciphertext.
func outgoingForAsset(tx *transaction.Transaction, asset transaction.AssetID) crypto.Ciphertext {
	out := crypto.ZeroCiphertext()
	if tp, ok := tx.Payload.(transaction.TransferPayload); ok {
		for _, t := range tp.Transfers {
			if t.Asset == asset {
				out = out.Add(outgoingCiphertext(t.AmountCommitment, t.SenderHandle))
			}
		}
	}
	return out
}

// publicScalarCostForAsset returns the portion of a spent asset's cost
// that is public (visible fee/burn/deposit/account-creation/contract-
// deploy amounts), using transaction.CostForAsset so this never drifts
// from the builder's own cost accounting (spec §4.2 step 4, §4.4).
// Transfer amounts are excluded here since they are hidden and already
// subtracted as ciphertexts by outgoingForAsset.
func publicScalarCostForAsset(tx *transaction.Transaction, asset transaction.AssetID, newAccounts int) uint64 {
	cost := transaction.CostForAsset(tx.Payload, asset, tx.Fee, tx.FeeType, newAccounts)
	if tp, ok := tx.Payload.(transaction.TransferPayload); ok {
		for _, t := range tp.Transfers {
			if t.Asset == asset {
				cost -= t.Amount
			}
		}
	}
	return cost
}

// verifyTransfers implements spec §4.3 step 3: every transfer's
// CiphertextValidityProof must hold.
func verifyTransfers(tx *transaction.Transaction) error {
	tp, ok := tx.Payload.(transaction.TransferPayload)
	if !ok {
		return nil
	}
	for _, t := range tp.Transfers {
		tr := crypto.NewTranscript("terminos/ciphertext-validity/v1")
		tr.AppendBytes("asset", t.Asset[:])
		if err := t.ValidityProof.Verify(tr, tx.Source, t.Destination, t.AmountCommitment, t.SenderHandle, t.ReceiverHandle); err != nil {
			return errors.Wrap(ErrValidityProofFailed, err.Error())
		}
	}
	return nil
}

// verifyRangeProof implements spec §4.3 step 4 and step 8: the
// aggregated range proof covers every declared commitment (new source
// balances, transfer amounts, private deposit amounts), padded to a
// power of two with zero commitments, under a transcript that replays
// the same energy-specific binding the builder applied (spec §4.3 step
// 8, builder.go's bindEnergyTranscript).
func verifyRangeProof(tx *transaction.Transaction) error {
	var commitments []crypto.Commitment
	for _, sc := range tx.SourceCommitments {
		commitments = append(commitments, sc.Commitment)
	}
	if tp, ok := tx.Payload.(transaction.TransferPayload); ok {
		for _, t := range tp.Transfers {
			commitments = append(commitments, t.AmountCommitment)
		}
	}
	for _, d := range depositsOf(tx.Payload) {
		if d.IsPrivate() {
			commitments = append(commitments, *d.PrivateCommitment)
		}
	}

	n := nextPow2(len(commitments))
	for len(commitments) < n {
		commitments = append(commitments, crypto.ZeroCommitment())
	}

	tr := crypto.NewTranscript("terminos/tx-range-proof/v1")
	bindEnergyTranscript(tr, tx.Payload)
	if err := tx.RangeProof.VerifyRangeAggregated(tr, commitments); err != nil {
		return errors.Wrap(ErrRangeProofFailed, err.Error())
	}
	return nil
}

// bindEnergyTranscript mirrors transaction.bindEnergyTranscript (private
// to the transaction package); the verifier reimplements the same two
// lines rather than exporting prover internals across the package
// boundary, since this is public wire data the verifier already has.
func bindEnergyTranscript(tr *crypto.Transcript, p transaction.Payload) {
	switch payload := p.(type) {
	case transaction.EnergyFreezePayload:
		tr.AppendUint64("energy_amount", payload.Amount)
		tr.AppendBytes("energy_duration", []byte{byte(payload.Duration)})
	case transaction.EnergyUnfreezePayload:
		tr.AppendUint64("energy_amount", payload.Amount)
	}
}

func depositsOf(p transaction.Payload) []transaction.Deposit {
	switch payload := p.(type) {
	case transaction.InvokeContractPayload:
		return payload.Deposits
	case transaction.DeployContractPayload:
		return payload.Deposits
	default:
		return nil
	}
}

// verifyMultiSig implements spec §4.3 step 6: if the source is
// registered as multisig, at least `threshold` valid, distinct-signer
// signatures over the transaction hash must be present.
func verifyMultiSig(st VerificationState, tx *transaction.Transaction, atTopoheight uint64) error {
	reg, err := st.MultiSigAtTopoheight(tx.Source, atTopoheight)
	if err != nil {
		return errors.Wrap(err, "executor: reading multisig registration")
	}
	if reg == nil {
		return nil
	}
	if reg.Threshold == 0 {
		return errors.New("executor: multisig registration with zero threshold is malformed")
	}

	txHash, err := txSigningHash(tx)
	if err != nil {
		return err
	}

	seen := map[uint8]bool{}
	valid := 0
	for _, sig := range tx.MultiSigSigs {
		if seen[sig.SignerIndex] {
			return ErrMultiSigDuplicateSigner
		}
		seen[sig.SignerIndex] = true
		if int(sig.SignerIndex) >= len(reg.Participants) {
			continue
		}
		if crypto.Verify(reg.Participants[sig.SignerIndex], txHash[:], sig.Signature) {
			valid++
		}
	}
	if valid < int(reg.Threshold) {
		return ErrMultiSigSignaturesShort
	}
	return nil
}

// verifyContractPayload implements spec §4.3 step 9.
func verifyContractPayload(st VerificationState, tx *transaction.Transaction) error {
	switch p := tx.Payload.(type) {
	case transaction.InvokeContractPayload:
		if _, ok, err := st.Backend().GetContractModule(p.Contract); err != nil {
			return errors.Wrap(err, "executor: reading contract module")
		} else if !ok {
			return ErrContractNotDeployed
		}
		return verifyDeposits(p.Deposits)
	case transaction.DeployContractPayload:
		if _, ok, err := st.Backend().GetContractModule(contractHashOf(p.Module)); err != nil {
			return errors.Wrap(err, "executor: checking contract module")
		} else if ok {
			return ErrContractAlreadyDeployed
		}
		return verifyDeposits(p.Deposits)
	default:
		return nil
	}
}

func verifyDeposits(deposits []transaction.Deposit) error {
	for _, d := range deposits {
		if d.PublicAmount == 0 && d.PrivateCommitment == nil {
			return ErrDepositZero
		}
	}
	return nil
}

func contractHashOf(module []byte) [32]byte {
	return crypto.HashBytes(module)
}

func countNewDestinations(st VerificationState, p transaction.Payload, atTopoheight uint64) (int, error) {
	tp, ok := p.(transaction.TransferPayload)
	if !ok {
		return 0, nil
	}
	n := 0
	for _, t := range tp.Transfers {
		exists, err := st.AccountExists(t.Destination, atTopoheight)
		if err != nil {
			return 0, errors.Wrap(err, "executor: checking destination existence")
		}
		if !exists {
			n++
		}
	}
	return n, nil
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// VerifyBatch runs VerifyTransaction across txs concurrently (spec §4.3
// "Batching contract": "many transactions that share no sender can be
// verified on parallel workers; any single verification failure aborts
// the block's acceptance"), bounded by workers short-lived goroutines via
// errgroup (spec §5 "Verification batches may spawn short-lived workers
// up to a configured bound").
func VerifyBatch(st VerificationState, vm VM, txs []*transaction.Transaction, execTopoheight uint64, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, tx := range txs {
		tx := tx
		g.Go(func() error {
			return VerifyTransaction(st, vm, tx, execTopoheight)
		})
	}
	return g.Wait()
}
