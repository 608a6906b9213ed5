package transaction

import (
	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/params"
)

// AccountState is the read side of chain state the builder needs for one
// spent asset: the plaintext balance (known only to the owner, used to
// size the proof), its current encrypted balance, and the opening
// scalar that ciphertext's D handle was built with. The owner is the
// only party who ever knows that opening (they chose it when the
// balance was last credited), which is what makes it possible to prove,
// without revealing it, that the post-spend commitment decrypts
// consistently with the post-spend ciphertext (spec §4.2 "Inputs").
type AccountState struct {
	PlaintextBalance uint64
	EncryptedBalance crypto.Ciphertext
	BalanceOpening   *crypto.Scalar
}

// StateProvider is the builder-side view of chain state (spec §4.2
// "Inputs": "a state provider giving current balance ... current
// encrypted balance, current nonce, current reference, and an
// account-existence oracle"). internal/core/state's Store implements it.
type StateProvider interface {
	Balance(owner crypto.PublicKey, asset AssetID) (AccountState, error)
	Nonce(owner crypto.PublicKey) (uint64, error)
	Reference() (Reference, error)
	AccountExists(key crypto.PublicKey, atTopoheight uint64) (bool, error)
	BumpNonce(owner crypto.PublicKey) error
}

// BuildRequest carries everything the caller supplies to Build beyond
// what StateProvider answers: the sender's keypair, network tag, payload
// and fee-type choice (spec §4.2). Payload must already carry plaintext
// Transfer.Amount / Deposit.PrivateAmount values; Build fills in the
// commitments, handles and proofs around them.
type BuildRequest struct {
	Sender     crypto.PrivateKey
	NetworkTag uint8
	Payload    Payload
	FeeType    FeeType
}

// Build runs the eight-step construction algorithm of spec §4.2 and
// returns an unsigned Transaction: every proof is filled in, but the
// final ed25519-style Signature field (and any MultiSigSigs) is left
// zero for the caller (or external co-signers) to fill in over the
// transaction's canonical hash.
func Build(state StateProvider, req BuildRequest) (*Transaction, error) {
	if err := validatePayloadShape(req.Payload, req.NetworkTag); err != nil {
		return nil, err
	}
	if req.FeeType == FeeEnergy && req.Payload.Kind() != PayloadTransfer {
		return nil, ErrEnergyFeesNotAllowedForNonTransfer
	}

	sourcePK := req.Sender.PublicKey()
	if tp, ok := req.Payload.(TransferPayload); ok {
		for _, t := range tp.Transfers {
			if t.Destination.Equal(sourcePK) {
				return nil, ErrSenderIsReceiver
			}
		}
	}
	nonce, err := state.Nonce(sourcePK)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading nonce")
	}
	reference, err := state.Reference()
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading reference")
	}

	tx := &Transaction{
		Version:   1,
		Source:    sourcePK,
		Payload:   req.Payload,
		FeeType:   req.FeeType,
		Nonce:     nonce,
		Reference: reference,
	}

	// Step 2: spent assets.
	spent := tx.SpentAssets()

	newAccounts, err := countNewDestinations(state, req.Payload, reference.Topoheight)
	if err != nil {
		return nil, err
	}
	outputCount := countOutputs(req.Payload)
	multiSigThreshold := multiSigThresholdOf(req.Payload)

	// Step 3: fee estimate from the payload shape. The proofs that make
	// up most of the encoded size are produced after the fee is fixed,
	// so the fee is computed from estimateSize; Build does not re-price
	// it from the finished transaction's tx.Size().
	estimatedSize := estimateSize(req.Payload)
	var fee uint64
	switch req.FeeType {
	case FeeNative:
		fee = NativeFee(estimatedSize, outputCount, newAccounts, multiSigThreshold)
	case FeeEnergy:
		fee = EnergyFee(estimatedSize, outputCount, newAccounts)
	}
	tx.Fee = fee

	// Step 4: source commitments, one per spent asset.
	var rangeValues []uint64
	var rangeBlindings []*crypto.Scalar

	for _, asset := range spent {
		acct, err := state.Balance(sourcePK, asset)
		if err != nil {
			return nil, errors.Wrapf(err, "transaction: reading balance for asset %x", asset)
		}
		cost := costForAsset(req.Payload, asset, fee, req.FeeType, newAccounts)
		if cost > acct.PlaintextBalance {
			return nil, ErrInsufficientFunds
		}
		newBalance := acct.PlaintextBalance - cost

		commitmentOpening, err := crypto.RandomScalar()
		if err != nil {
			return nil, errors.Wrap(err, "transaction: drawing source-commitment opening")
		}
		commitment := crypto.Commit(newBalance, commitmentOpening)
		newCiphertext := acct.EncryptedBalance.SubScalarG(cost)

		balanceOpening := acct.BalanceOpening
		if balanceOpening == nil {
			balanceOpening = crypto.ZeroScalar()
		}

		tr := crypto.NewTranscript("terminos/source-commitment/v1")
		tr.AppendBytes("asset", asset[:])
		proof, err := crypto.ProveCommitmentEq(tr, sourcePK, commitment, newCiphertext,
			crypto.ScalarFromUint64(newBalance), commitmentOpening, balanceOpening)
		if err != nil {
			return nil, errors.Wrap(ErrProofGenerationError, err.Error())
		}

		tx.SourceCommitments = append(tx.SourceCommitments, SourceCommitment{
			Asset:      asset,
			Commitment: commitment,
			Proof:      proof,
		})
		rangeValues = append(rangeValues, newBalance)
		rangeBlindings = append(rangeBlindings, commitmentOpening)
	}

	// Step 5: per-transfer commitments, handles and validity proofs.
	if transferPayload, ok := req.Payload.(TransferPayload); ok {
		newTransfers := make([]Transfer, len(transferPayload.Transfers))
		for i, t := range transferPayload.Transfers {
			amountScalar := crypto.ScalarFromUint64(t.Amount)
			opening, err := crypto.RandomScalar()
			if err != nil {
				return nil, errors.Wrap(err, "transaction: drawing transfer opening")
			}
			amountCommitment := crypto.CommitScalar(amountScalar, opening)
			senderHandle := crypto.ScalarTimesPoint(opening, sourcePK.Point())
			receiverHandle := crypto.ScalarTimesPoint(opening, t.Destination.Point())

			tr := crypto.NewTranscript("terminos/ciphertext-validity/v1")
			tr.AppendBytes("asset", t.Asset[:])
			proof, err := crypto.ProveCiphertextValidity(tr, sourcePK, t.Destination, amountCommitment, senderHandle, receiverHandle, amountScalar, opening)
			if err != nil {
				return nil, errors.Wrap(ErrProofGenerationError, err.Error())
			}

			t.AmountCommitment = amountCommitment
			t.SenderHandle = senderHandle
			t.ReceiverHandle = receiverHandle
			t.ValidityProof = proof

			if len(t.ExtraData) > 0 && !t.ExtraDataIsSealed {
				sealed, err := SealExtraData(t.Destination, opening, t.ExtraData)
				if err != nil {
					return nil, errors.Wrap(err, "transaction: sealing extra data")
				}
				t.ExtraData = sealed
				t.ExtraDataIsSealed = true
			}

			newTransfers[i] = t
			rangeValues = append(rangeValues, t.Amount)
			rangeBlindings = append(rangeBlindings, opening)
		}
		tx.Payload = TransferPayload{Transfers: newTransfers}
	}

	// Deposits (InvokeContract/DeployContract) join the same range-proof
	// batch when private.
	if err := appendDepositRangeInputs(req.Payload, &rangeValues, &rangeBlindings); err != nil {
		return nil, err
	}

	// Step 6: pad and produce the aggregated range proof. Energy payloads
	// replay an extra transcript operation ahead of the proof so the
	// Fiat-Shamir challenge binds the declared freeze/unfreeze amount and
	// duration (spec §4.3 step 8); the executor's verifier replays the
	// identical operation before checking the proof.
	paddedValues, paddedBlindings := padRangeInputs(rangeValues, rangeBlindings)
	rangeTr := crypto.NewTranscript("terminos/tx-range-proof/v1")
	bindEnergyTranscript(rangeTr, req.Payload)
	rangeProof, err := crypto.ProveRangeAggregated(rangeTr, paddedValues, paddedBlindings)
	if err != nil {
		return nil, errors.Wrap(ErrProofGenerationError, err.Error())
	}
	tx.RangeProof = rangeProof

	// Step 7: bump the nonce in the state provider.
	if err := state.BumpNonce(sourcePK); err != nil {
		return nil, errors.Wrap(err, "transaction: bumping nonce")
	}

	// Step 8: leave Signature/MultiSigSigs zero; the caller (or external
	// co-signers, for a multisig source) signs the canonical hash and
	// attaches detached signatures before broadcast.
	return tx, nil
}

func validatePayloadShape(p Payload, networkTag uint8) error {
	_ = networkTag // network-tag matching is enforced once key encoding carries a tag; see DESIGN.md.
	switch payload := p.(type) {
	case TransferPayload:
		if len(payload.Transfers) == 0 {
			return ErrEmptyTransfers
		}
		if len(payload.Transfers) > params.MaxTransferCount {
			return ErrMaxTransferCountReached
		}
		sum := 0
		for _, t := range payload.Transfers {
			if len(t.ExtraData) > params.ExtraDataLimit {
				return ErrExtraDataTooLarge
			}
			sum += len(t.ExtraData)
		}
		if sum > params.ExtraDataLimitSum {
			return ErrExtraDataTooLarge
		}
	case BurnPayload:
		if payload.Amount == 0 {
			return ErrBurnZero
		}
	case MultiSigPayload:
		if len(payload.Participants) > params.MaxMultiSigParticipants {
			return ErrMultiSigParticipants
		}
		if len(payload.Participants) > 0 {
			if payload.Threshold < 1 || int(payload.Threshold) > len(payload.Participants) {
				return ErrMultiSigThreshold
			}
		}
	case InvokeContractPayload:
		if payload.MaxGas > params.MaxGasUsagePerTx {
			return ErrMaxGasReached
		}
		for _, d := range payload.Deposits {
			if d.amount() == 0 {
				return ErrDepositZero
			}
		}
	case DeployContractPayload:
		if payload.MaxGas > params.MaxGasUsagePerTx {
			return ErrMaxGasReached
		}
		for _, d := range payload.Deposits {
			if d.amount() == 0 {
				return ErrDepositZero
			}
		}
	case EnergyFreezePayload:
		if payload.Amount == 0 {
			return ErrBurnZero
		}
	case EnergyUnfreezePayload:
		if payload.Amount == 0 {
			return ErrBurnZero
		}
	}
	return nil
}

func countOutputs(p Payload) int {
	if t, ok := p.(TransferPayload); ok {
		return len(t.Transfers)
	}
	return 0
}

func multiSigThresholdOf(p Payload) uint8 {
	if m, ok := p.(MultiSigPayload); ok {
		return m.Threshold
	}
	return 0
}

func countNewDestinations(state StateProvider, p Payload, atTopoheight uint64) (int, error) {
	t, ok := p.(TransferPayload)
	if !ok {
		return 0, nil
	}
	n := 0
	for _, dest := range t.Transfers {
		exists, err := state.AccountExists(dest.Destination, atTopoheight)
		if err != nil {
			return 0, errors.Wrap(err, "transaction: checking account existence")
		}
		if !exists {
			n++
		}
	}
	return n, nil
}

// estimateSize returns a rough serialized-size estimate used for the fee
// calculation before the exact wire encoding is known. Transaction.Size
// reports the true encoded size; the fee is not re-priced from it.
func estimateSize(p Payload) int {
	const baseSize = 256
	switch payload := p.(type) {
	case TransferPayload:
		return baseSize + len(payload.Transfers)*192
	case InvokeContractPayload:
		return baseSize + len(payload.Params) + len(payload.Deposits)*96
	case DeployContractPayload:
		return baseSize + len(payload.Module) + len(payload.ConstructorParams)
	default:
		return baseSize
	}
}

func costForAsset(p Payload, asset AssetID, fee uint64, feeType FeeType, newAccounts int) uint64 {
	var cost uint64
	switch payload := p.(type) {
	case TransferPayload:
		for _, t := range payload.Transfers {
			if t.Asset == asset {
				cost += t.Amount
			}
		}
		if asset == NativeAsset {
			cost += uint64(newAccounts) * params.FeePerAccountCreation
		}
	case BurnPayload:
		if payload.Asset == asset {
			cost += payload.Amount
		}
	case InvokeContractPayload:
		for _, d := range payload.Deposits {
			if d.Asset == asset {
				cost += d.amount()
			}
		}
	case DeployContractPayload:
		for _, d := range payload.Deposits {
			if d.Asset == asset {
				cost += d.amount()
			}
		}
		if asset == NativeAsset {
			cost += params.BurnPerContract
		}
	case EnergyFreezePayload:
		if asset == NativeAsset {
			cost += payload.Amount
		}
	}
	if asset == NativeAsset && feeType == FeeNative {
		cost += fee
	}
	return cost
}

// bindEnergyTranscript appends the energy-specific transcript operation
// of spec §4.3 step 8 ahead of the range proof's own domain separator,
// so the proof cannot be replayed against a different declared
// freeze/unfreeze amount or duration. A no-op for every other payload
// kind.
func bindEnergyTranscript(tr *crypto.Transcript, p Payload) {
	switch payload := p.(type) {
	case EnergyFreezePayload:
		tr.AppendUint64("energy_amount", payload.Amount)
		tr.AppendBytes("energy_duration", []byte{byte(payload.Duration)})
	case EnergyUnfreezePayload:
		tr.AppendUint64("energy_amount", payload.Amount)
	}
}

// CostForAsset returns the plaintext amount transaction debits from its
// sender for asset, given the already-computed fee, fee type and new
// destination-account count (spec §4.2 step 4, §4.4 "Debit the sender's
// ciphertext"). Exported so the executor can recompute the identical
// cost when reconstructing the post-spend ciphertext during verification
// (spec §4.3 step 2) without duplicating this payload-kind switch.
func CostForAsset(p Payload, asset AssetID, fee uint64, feeType FeeType, newAccounts int) uint64 {
	return costForAsset(p, asset, fee, feeType, newAccounts)
}

func appendDepositRangeInputs(p Payload, values *[]uint64, blindings *[]*crypto.Scalar) error {
	var deposits []Deposit
	switch payload := p.(type) {
	case InvokeContractPayload:
		deposits = payload.Deposits
	case DeployContractPayload:
		deposits = payload.Deposits
	default:
		return nil
	}
	for i := range deposits {
		d := &deposits[i]
		if !d.IsPrivate() {
			continue
		}
		opening, err := crypto.RandomScalar()
		if err != nil {
			return errors.Wrap(err, "transaction: drawing deposit opening")
		}
		commitment := crypto.Commit(d.PrivateAmount, opening)
		d.PrivateCommitment = &commitment
		*values = append(*values, d.PrivateAmount)
		*blindings = append(*blindings, opening)
	}
	return nil
}

func padRangeInputs(values []uint64, blindings []*crypto.Scalar) ([]uint64, []*crypto.Scalar) {
	n := nextPow2(len(values))
	for len(values) < n {
		values = append(values, 0)
		blindings = append(blindings, crypto.ZeroScalar())
	}
	return values, blindings
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
