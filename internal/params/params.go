// Package params collects the protocol constants named but left
// unspecified numerically by the design (MAX_TRANSFER_COUNT,
// STABLE_LIMIT, and friends). They live in their own package, not in
// internal/config, so that core/transaction, consensus, mempool and
// executor can all depend on them without importing the daemon-facing
// Config type.
package params

const (
	// MaxTransferCount bounds the number of destinations a single
	// Transfer payload may carry (spec §4.2 step 1).
	MaxTransferCount = 32

	// ExtraDataLimit bounds one transfer's extra-data payload in bytes.
	ExtraDataLimit = 1024
	// ExtraDataLimitSum bounds the combined extra-data size across all
	// transfers of one transaction.
	ExtraDataLimitSum = 4096

	// MaxMultiSigParticipants bounds a MultiSig payload's participant
	// list.
	MaxMultiSigParticipants = 16

	// MaxGasUsagePerTx bounds InvokeContract/DeployContract's max_gas
	// field.
	MaxGasUsagePerTx = 10_000_000

	// MaxTransactionSize bounds a transaction's canonical serialisation,
	// in bytes.
	MaxTransactionSize = 64 * 1024

	// MaxBlockSize bounds a block's canonical serialisation, in bytes.
	MaxBlockSize = 2 * 1024 * 1024

	// TipsLimit bounds the number of parent tips a block may reference.
	TipsLimit = 3

	// StableLimit is the minimum depth, in heights, before a block is
	// considered stable (spec §4.5, §9 glossary).
	StableLimit = 100

	// TipDeviationDifficultyNumerator/Denominator implement the "< 91% of
	// best tip's difficulty" guard (spec §4.5) as an integer fraction.
	TipDeviationDifficultyNumerator   = 91
	TipDeviationDifficultyDenominator = 100

	// FeePerAccountCreation is billed to the sender, in addition to the
	// transfer fee, when a destination has no registered account at the
	// sender's reference topoheight (spec §4.4, §8 scenario 3).
	FeePerAccountCreation = 100_000

	// BurnPerContract is burned from the sender's native balance on every
	// successful DeployContract (spec §4.4).
	BurnPerContract = 1_000_000

	// DAGCacheCapacity is the capacity of every LRU cache the DAG engine
	// keeps (reachability, common base, tip work score, full order; spec §9).
	DAGCacheCapacity = 1024

	// ChainSyncRequestExponentialIndexStart is the number of consecutive
	// topoheights a ChainRequest's block-id list carries before the
	// requested gap between entries starts doubling (spec §8 scenario 6).
	ChainSyncRequestExponentialIndexStart = 10

	// MaxChainResponseSize bounds how many block hashes a ChainResponse
	// may carry after the common point.
	MaxChainResponseSize = 512

	// MaxTxCountPerBlock caps the number of transactions a block template
	// may include, matching the wire format's u16 TX count (spec §4.6).
	MaxTxCountPerBlock = 65535

	// Coin is the number of atomic units per whole native coin, used by
	// §8's worked scenarios ("10 TOS" == 10*Coin atomic units).
	Coin = 100_000_000

	// MaxSupply bounds total emitted native-coin supply; block reward
	// shaping (spec §4.5) asymptotically approaches it.
	MaxSupply = 18_400_000 * Coin

	// EmissionSpeedFactor is the right-shift applied to the remaining
	// unemitted supply to derive one block's base reward (spec §4.5).
	EmissionSpeedFactor = 20

	// BlockTimeMS is the target time between blocks, used both by the
	// reward-shaping scale factor and by FreezeDuration.Blocks.
	BlockTimeMS = 15_000

	// MsPerSec converts milliseconds to seconds for the reward scale
	// factor BLOCK_TIME_MS / (MS_PER_SEC * 180) (spec §4.5).
	MsPerSec = 1000

	// SideBlockReward3rdPlusPercent is the reward floor (of 100%) paid to
	// the third and any further side block at the same height.
	SideBlockReward3rdPlusPercent = 5

	// P2P timing and sizing (spec §4.7, §5).
	P2PPingDelaySeconds         = 10
	P2PPingPeerListDelaySeconds = 60
	P2PPingTimeoutSeconds       = 30
	ChainSyncDelaySeconds       = 5
	PeerTimeoutInitConnection   = 5
	PeerTimeoutInitOutgoing     = 5
	PeerMaxPacketSize           = 16 * 1024 * 1024
	NotifyMaxLen                = 1024
	ChainSyncResponseMaxBlocks  = 512
	MaxPeerListAddresses        = 64

	// FailCountLimit is how many protocol-error strikes a peer accrues
	// before a temp ban (spec §7); TempBanTimeSeconds is the ban length.
	FailCountLimit     = 20
	TempBanTimeSeconds = 15 * 60
)
