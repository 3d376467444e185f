package bridge

import "sort"

// RecommenderMode selects the batch-selection strategy (spec §4.7).
type RecommenderMode int

const (
	// Greedy stops at the first transfer whose marginal cost is positive.
	Greedy RecommenderMode = iota
	// Generous keeps walking while the running totals stay within budget.
	Generous
)

// RecommenderParams bundles the cost model inputs (spec §4.7, step 1-2).
type RecommenderParams struct {
	SignatureFee     uint64 // gas per signature verification
	ValsetFee        uint64 // gas per validator in the set-hashing cost
	TransferFeeGas   uint64 // fixed per-transfer gas
	GweiPerNam       uint64 // conversion rate used to price gas_fee.amount
	SortedVotingPowers []uint64 // descending bonded stake, for quorum-signature count
	ValidatorCount   int
	MaxGas           uint64 // Generous mode budget; ignored in Greedy
	MaxCost          int64  // <=0 selects Greedy mode (spec §4.7 step 4)
}

// candidate pairs a transfer with its precomputed marginal cost.
type candidate struct {
	transfer PendingTransfer
	cost     int64
}

// Recommend selects the subset of pool entries maximizing net relayer
// profit under the configured budget (spec §4.7).
func Recommend(pool []PendingTransfer, p RecommenderParams) []PendingTransfer {
	validatorGas := p.SignatureFee*uint64(signaturesNeeded(p.SortedVotingPowers)) + p.ValsetFee*uint64(p.ValidatorCount)

	candidates := make([]candidate, 0, len(pool))
	for _, t := range pool {
		cost := int64(p.TransferFeeGas) - int64(t.GasFee.Amount)*int64(p.GweiPerNam)
		candidates = append(candidates, candidate{transfer: t, cost: cost})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })

	mode := Greedy
	if p.MaxCost > 0 {
		mode = Generous
	}

	var totalGas uint64
	var totalCost int64
	var selected []PendingTransfer

	totalGas += validatorGas

	for _, c := range candidates {
		if mode == Greedy {
			if c.cost > 0 {
				break
			}
			selected = append(selected, c.transfer)
			totalCost += c.cost
			continue
		}

		nextGas := totalGas + p.TransferFeeGas
		nextCost := totalCost + c.cost
		if nextGas <= p.MaxGas && nextCost <= p.MaxCost {
			totalGas = nextGas
			totalCost = nextCost
			selected = append(selected, c.transfer)
			continue
		}
		// First infeasible transfer after having been feasible: stop
		// (spec §4.7 step 4).
		break
	}

	return selected
}

// signaturesNeeded repeats pos.SignaturesNeededForQuorum's algorithm
// inline; the formula is identical: minimum validators, by descending
// stake, whose combined share exceeds 2/3 of total.
func signaturesNeeded(sortedDescStakes []uint64) int {
	var total uint64
	for _, s := range sortedDescStakes {
		total += s
	}
	if total == 0 {
		return 0
	}
	var acc uint64
	for i, s := range sortedDescStakes {
		acc += s
		if 3*acc > 2*total {
			return i + 1
		}
	}
	return len(sortedDescStakes)
}
