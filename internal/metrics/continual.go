package metrics

// Keys of the continual-learning metrics.
const (
	ForwardTransfer  = "forward_transfer"
	BackwardTransfer = "backward_transfer"
	Forgetting       = "forgetting"
)

// ContinualTransfer summarises how per-episode returns evolve across a
// continual-track run whose environment shifts between phases.
func ContinualTransfer(returns []float64) map[string]float64 {
	if len(returns) == 0 {
		return map[string]float64{
			ForwardTransfer:  0,
			BackwardTransfer: 0,
			Forgetting:       0,
		}
	}

	first := returns[0]
	last := returns[len(returns)-1]
	best := returns[0]
	var laterSum float64
	for i, r := range returns {
		if r > best {
			best = r
		}
		if i > 0 {
			laterSum += r
		}
	}

	return map[string]float64{
		ForwardTransfer:  last - first,
		BackwardTransfer: laterSum/float64(max(1, len(returns)-1)) - first,
		Forgetting:       best - last,
	}
}
