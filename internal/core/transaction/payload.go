// Package transaction implements the encrypted transaction engine's data
// model, fee calculators and builder (spec §3 Transaction, §4.2). Types
// here are deliberately thin: all proof verification lives in
// internal/executor, which is the only place a BlockchainVerificationState
// is available.
package transaction

import (
	"github.com/terminos-network/terminos/internal/crypto"
)

// AssetID identifies a registered asset.
type AssetID [32]byte

// NativeAsset is the fixed identifier of the chain's native coin,
// registered at topoheight 0 (spec §3).
var NativeAsset = AssetID{}

// PayloadKind tags which variant of Payload a transaction carries.
type PayloadKind uint8

const (
	PayloadTransfer PayloadKind = iota
	PayloadBurn
	PayloadMultiSig
	PayloadInvokeContract
	PayloadDeployContract
	PayloadEnergyFreeze
	PayloadEnergyUnfreeze
)

// Transfer is one destination entry of a Transfer payload.
type Transfer struct {
	Asset             AssetID
	Destination       crypto.PublicKey
	AmountCommitment  crypto.Commitment
	SenderHandle      *crypto.Point
	ReceiverHandle    *crypto.Point
	ValidityProof     crypto.CiphertextValidityProof
	ExtraData         []byte // plaintext or an AEAD envelope, see extradata.go
	ExtraDataIsSealed bool

	// Amount is the plaintext transfer amount. It is never part of the
	// wire encoding (see wire.go): only the commitment and handles
	// above are serialized, but the builder needs it locally to size
	// AmountCommitment and the range proof, and a receiving wallet fills
	// it back in after decrypting the ciphertext formed by the handles.
	Amount uint64 `json:"-"`
}

// TransferPayload moves funds to one or more destinations.
type TransferPayload struct {
	Transfers []Transfer
}

func (TransferPayload) Kind() PayloadKind { return PayloadTransfer }

// BurnPayload destroys coins of a single asset.
type BurnPayload struct {
	Asset  AssetID
	Amount uint64
}

func (BurnPayload) Kind() PayloadKind { return PayloadBurn }

// MultiSigPayload installs or clears a multisig registration on the
// sender's own account.
type MultiSigPayload struct {
	Participants []crypto.PublicKey // empty clears the registration
	Threshold    uint8
}

func (MultiSigPayload) Kind() PayloadKind { return PayloadMultiSig }

// Deposit funds a contract invocation/deploy, either publicly (Amount
// visible) or privately (amount hidden behind a commitment + proof, same
// shape as a Transfer's amount half).
type Deposit struct {
	Asset             AssetID
	PublicAmount      uint64 // 0 if private
	PrivateCommitment *crypto.Commitment
	PrivateProof      *crypto.CiphertextValidityProof

	// PrivateAmount is the plaintext deposit amount when IsPrivate() is
	// true. Like Transfer.Amount, it is builder-local and never wire
	// encoded.
	PrivateAmount uint64 `json:"-"`
}

// IsPrivate reports whether this deposit hides its amount.
func (d Deposit) IsPrivate() bool { return d.PrivateCommitment != nil }

// amount returns the plaintext amount regardless of visibility.
func (d Deposit) amount() uint64 {
	if d.IsPrivate() {
		return d.PrivateAmount
	}
	return d.PublicAmount
}

// InvokeContractPayload calls an already-deployed contract module.
type InvokeContractPayload struct {
	Contract [32]byte
	ChunkID  uint16
	Params   []byte
	MaxGas   uint64
	Deposits []Deposit
}

func (InvokeContractPayload) Kind() PayloadKind { return PayloadInvokeContract }

// DeployContractPayload publishes a new contract module.
type DeployContractPayload struct {
	Module            []byte
	ConstructorParams []byte
	MaxGas            uint64
	Deposits          []Deposit
}

func (DeployContractPayload) Kind() PayloadKind { return PayloadDeployContract }

// FreezeDuration enumerates the allowed freeze periods (spec §3
// FreezeRecord).
type FreezeDuration uint8

const (
	Freeze3Days FreezeDuration = iota
	Freeze7Days
	Freeze14Days
)

// Blocks returns how many blocks the duration locks funds for, given the
// chain's target block time.
func (d FreezeDuration) Blocks(blockTimeMS uint64) uint64 {
	days := map[FreezeDuration]uint64{Freeze3Days: 3, Freeze7Days: 7, Freeze14Days: 14}[d]
	msPerDay := uint64(86400) * 1000
	return days * msPerDay / blockTimeMS
}

// Multiplier returns the energy multiplier for the duration (spec §3:
// 1.0, 1.1, 1.2), expressed as a fixed-point (value, scale) pair to avoid
// floating point in consensus-critical code.
func (d FreezeDuration) Multiplier() (numerator, denominator uint64) {
	switch d {
	case Freeze3Days:
		return 10, 10
	case Freeze7Days:
		return 11, 10
	case Freeze14Days:
		return 12, 10
	default:
		return 10, 10
	}
}

// EnergyFreezePayload locks native coin for energy.
type EnergyFreezePayload struct {
	Amount   uint64
	Duration FreezeDuration
}

func (EnergyFreezePayload) Kind() PayloadKind { return PayloadEnergyFreeze }

// EnergyUnfreezePayload requests unlocking a given amount of previously
// frozen, now-unlockable native coin.
type EnergyUnfreezePayload struct {
	Amount uint64
}

func (EnergyUnfreezePayload) Kind() PayloadKind { return PayloadEnergyUnfreeze }

// Payload is implemented by every payload kind.
type Payload interface {
	Kind() PayloadKind
}
