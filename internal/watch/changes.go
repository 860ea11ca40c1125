package watch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/artifactwatch/internal/artifact"
)

// Change kinds reported by Changes.
const (
	ChangeAdded      = "added"
	ChangeRemoved    = "removed"
	ChangeRedeployed = "redeployed"
)

// Change describes one contract that differs between two snapshots.
type Change struct {
	// Kind is one of "added", "removed", or "redeployed".
	Kind string
	// Contract is the contract name.
	Contract string
	// Detail provides extra information (e.g., old and new address).
	Detail string
}

// Changes compares two artifact lists by contract name. Artifacts without a
// name are ignored. The result is sorted by contract name.
func Changes(prev, curr []artifact.Artifact) []Change {
	prevMap := byName(prev)
	currMap := byName(curr)

	var changes []Change

	for name, pa := range prevMap {
		if _, ok := currMap[name]; !ok {
			changes = append(changes, Change{Kind: ChangeRemoved, Contract: name, Detail: pa.Address()})
		}
	}

	for name, ca := range currMap {
		pa, existed := prevMap[name]
		if !existed {
			changes = append(changes, Change{Kind: ChangeAdded, Contract: name, Detail: ca.Address()})
			continue
		}

		if pa.Address() != ca.Address() {
			changes = append(changes, Change{
				Kind:     ChangeRedeployed,
				Contract: name,
				Detail:   fmt.Sprintf("%s -> %s", orNone(pa.Address()), orNone(ca.Address())),
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Contract < changes[j].Contract })

	return changes
}

// ChangesSummary returns a human-readable one-line summary.
func ChangesSummary(changes []Change) string {
	var added, removed, redeployed int

	for _, c := range changes {
		switch c.Kind {
		case ChangeAdded:
			added++
		case ChangeRemoved:
			removed++
		case ChangeRedeployed:
			redeployed++
		}
	}

	if added == 0 && removed == 0 && redeployed == 0 {
		return "no contract changes"
	}

	parts := make([]string, 0, 3)

	if added > 0 {
		parts = append(parts, fmt.Sprintf("+%d contract(s) added", added))
	}

	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d contract(s) removed", removed))
	}

	if redeployed > 0 {
		parts = append(parts, fmt.Sprintf("~%d contract(s) redeployed", redeployed))
	}

	return strings.Join(parts, ", ")
}

func byName(arts []artifact.Artifact) map[string]artifact.Artifact {
	out := make(map[string]artifact.Artifact, len(arts))

	for _, a := range arts {
		if name := a.ContractName(); name != "" {
			out[name] = a
		}
	}

	return out
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}

	return s
}
