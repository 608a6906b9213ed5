package transaction

import (
	"github.com/terminos-network/terminos/internal/crypto"
)

// FeeType selects whether the transaction fee is billed in the native
// asset or spent from the sender's energy resource (spec §3).
type FeeType uint8

const (
	FeeNative FeeType = iota
	FeeEnergy
)

// Reference pins the account state a transaction was built against: the
// hash and topoheight of a recent block (spec §3, glossary "Reference").
type Reference struct {
	BlockHash  [32]byte
	Topoheight uint64
}

// SourceCommitment is one per spent asset: a Pedersen commitment to the
// sender's post-spend balance plus the Sigma proof tying it to the
// encrypted balance ciphertext (spec §3).
type SourceCommitment struct {
	Asset      AssetID
	Commitment crypto.Commitment
	Proof      crypto.CommitmentEqProof
}

// MultiSigSignature is one detached signature over the transaction hash
// from a registered multisig participant.
type MultiSigSignature struct {
	Signature   [64]byte
	SignerIndex uint8
}

// Transaction is the wire-level, fully-assembled transaction (spec §3,
// §6 "Transaction wire format").
type Transaction struct {
	Version           uint8
	Source            crypto.PublicKey
	Payload           Payload
	Fee               uint64
	FeeType           FeeType
	Nonce             uint64
	Reference         Reference
	SourceCommitments []SourceCommitment
	MultiSigSigs      []MultiSigSignature
	RangeProof        crypto.RangeProof
	Signature         [64]byte
}

// SpentAssets returns the set of assets this transaction debits from the
// sender: the assets the payload itself moves, plus the native asset
// whenever the fee is paid in the native asset. With an energy fee the
// native asset is included only if the payload itself moves it.
func (tx *Transaction) SpentAssets() []AssetID {
	seen := map[AssetID]bool{}
	var out []AssetID
	add := func(a AssetID) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}

	switch p := tx.Payload.(type) {
	case TransferPayload:
		for _, t := range p.Transfers {
			add(t.Asset)
		}
	case BurnPayload:
		add(p.Asset)
	case InvokeContractPayload:
		for _, d := range p.Deposits {
			add(d.Asset)
		}
	case DeployContractPayload:
		for _, d := range p.Deposits {
			add(d.Asset)
		}
	case EnergyFreezePayload, EnergyUnfreezePayload, MultiSigPayload:
		// Native-only, added below.
	}

	if tx.FeeType == FeeNative {
		add(NativeAsset)
	} else if len(out) == 0 {
		// Energy fee transactions still touch the native asset whenever
		// the payload itself does (transfers of the native asset); if it
		// touched no asset at all (e.g. a bare MultiSig payload) there is
		// nothing to add here, and energy fees are rejected for
		// non-Transfer payloads earlier in the pipeline anyway.
	}
	return out
}

// PayloadKind is a small helper mirroring tx.Payload.Kind() for callers
// that only have a pointer.
func (tx *Transaction) PayloadKind() PayloadKind {
	return tx.Payload.Kind()
}
