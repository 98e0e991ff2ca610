package engine

import (
	"github.com/hupe1980/agentgraph/core"
)

// mergeMessages reconciles an in-flight transcript with the stored one.
// Stored messages keep their positions; in-flight messages whose identity
// (sequence, agent name, type) is not already stored are appended and
// renumbered above the highest stored sequence so concurrent writers never
// collide.
func mergeMessages(stored, inflight []core.Message) []core.Message {
	seen := make(map[core.Identity]bool, len(stored))
	for _, m := range stored {
		seen[m.Identity()] = true
	}

	merged := append([]core.Message(nil), stored...)
	next := core.MaxSequence(stored) + 1
	for _, m := range inflight {
		if seen[m.Identity()] {
			continue
		}
		m.Sequence = next
		next++
		seen[m.Identity()] = true
		merged = append(merged, m)
	}
	return merged
}
