package abduction

import (
	"sort"
	"strings"
)

// Searcher selects the evidence relevant to a node_key from the full,
// totally-ordered evidence set. Evidence items are matched by slot_key
// against the node_key's suffix ("<root_id>:<slot_key>"), so the same
// piece of evidence can serve any root that shares a slot key.
type Searcher interface {
	Search(nodeKey string, evidence []EvidenceItem) []EvidenceItem
}

// DefaultSearcher matches EvidenceItem.SlotKey against the slot-key
// component of node_key.
type DefaultSearcher struct{}

func (DefaultSearcher) Search(nodeKey string, evidence []EvidenceItem) []EvidenceItem {
	_, slotKey, found := cutLast(nodeKey, ":")
	if !found {
		slotKey = nodeKey
	}
	var matched []EvidenceItem
	for _, e := range evidence {
		if e.SlotKey == slotKey {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].EvidenceID < matched[j].EvidenceID })
	return matched
}

// cutLast splits s on the last occurrence of sep, matching strings.Cut's
// return shape for the (before, after, found) case needed here.
func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
