package consensus

import "github.com/terminos-network/terminos/internal/params"

// BaseReward computes the pre-shaping block reward from emitted supply
// (spec §4.5 "Block reward shaping"):
//
//	(MAX_SUPPLY - supply) >> EMISSION_SPEED_FACTOR, scaled by
//	BLOCK_TIME_MS / (MS_PER_SEC * 180)
func BaseReward(supply uint64) uint64 {
	if supply >= params.MaxSupply {
		return 0
	}
	remaining := params.MaxSupply - supply
	base := remaining >> params.EmissionSpeedFactor
	return base * params.BlockTimeMS / (params.MsPerSec * 180)
}

// SideBlockSharePercent returns the percentage (of the base reward) a
// side block at the given 1-indexed position (1st, 2nd, 3rd+) among
// blocks sharing its height receives (spec §4.5: "1st side block
// 100%/2, 2nd 100%/4, >=3rd a floor of 5%"). A sideIndex of 0 means the
// block is itself the sync block, which always receives 100%.
func SideBlockSharePercent(sideIndex int) uint64 {
	switch {
	case sideIndex <= 0:
		return 100
	case sideIndex == 1:
		return 50
	case sideIndex == 2:
		return 25
	default:
		return params.SideBlockReward3rdPlusPercent
	}
}

// ShapedReward applies SideBlockSharePercent to base.
func ShapedReward(base uint64, sideIndex int) uint64 {
	return base * SideBlockSharePercent(sideIndex) / 100
}

// DevFeePercent looks up the percentage owed to the dev fee address at
// height, per a height-ascending schedule (spec §4.5 "A dev-fee
// percentage, driven by a height->percent schedule"). Returns 0 if the
// schedule is empty or height precedes its first step.
func DevFeePercent(height uint64, schedule []DevFeeStep) uint64 {
	var percent uint64
	for _, step := range schedule {
		if step.Height > height {
			break
		}
		percent = step.Percent
	}
	return percent
}

// SplitReward divides a shaped block reward into the miner's share and
// the dev-fee share, which is subtracted from the reward (not from
// transaction fees) and credited to the fixed dev public key.
func SplitReward(shapedReward, height uint64, schedule []DevFeeStep) (minerShare, devShare uint64) {
	percent := DevFeePercent(height, schedule)
	devShare = shapedReward * percent / 100
	return shapedReward - devShare, devShare
}
