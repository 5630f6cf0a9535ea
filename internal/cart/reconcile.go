package cart

// MutationKind labels a locally-issued cart change that has not yet been
// acknowledged by the remote cart.
type MutationKind string

const (
	MutationUpsert MutationKind = "upsert"
	MutationRemove MutationKind = "remove"
)

// Mutation is one pending local change. Mutations are journaled in call
// order and must never be reordered relative to each other.
type Mutation struct {
	Kind MutationKind
	Key  Key
	Item LineItem
}

// Reconcile merges the fetched remote cart with local state and the
// journal of unacknowledged mutations.
//
// The remote cart wins on item existence and stock ceilings; pending
// local mutations are re-applied on top of the fetched baseline, with
// last-local-write-wins for quantities. Rows the remote dropped (or
// reports as out of stock) stay dropped unless a pending upsert re-adds
// them.
func Reconcile(local, remote []LineItem, pending []Mutation) []LineItem {
	byKey := make(map[Key]*LineItem, len(local))
	for i := range local {
		byKey[local[i].Key()] = &local[i]
	}

	merged := make([]LineItem, 0, len(remote)+len(pending))
	index := make(map[Key]int, len(remote))
	outOfStock := make(map[Key]struct{})
	for _, rit := range remote {
		it := rit
		if it.MaxStock < 1 {
			// Remote reports the row as out of stock; it does not
			// survive the merge, and no pending upsert may revive it.
			outOfStock[it.Key()] = struct{}{}
			continue
		}
		if prev, ok := byKey[it.Key()]; ok {
			// Keep the local row identity and any transient resource;
			// the remote row supplies price and stock ceiling.
			it.ID = prev.ID
			it.preview = prev.preview
		}
		it.Quantity = clampQuantity(it.Quantity, it.MaxStock)
		index[it.Key()] = len(merged)
		merged = append(merged, it)
	}

	for _, m := range pending {
		switch m.Kind {
		case MutationRemove:
			if i, ok := index[m.Key]; ok {
				merged = append(merged[:i], merged[i+1:]...)
				delete(index, m.Key)
				for k, j := range index {
					if j > i {
						index[k] = j - 1
					}
				}
			}
		case MutationUpsert:
			if _, gone := outOfStock[m.Key]; gone {
				continue
			}
			if i, ok := index[m.Key]; ok {
				merged[i].Quantity = clampQuantity(m.Item.Quantity, merged[i].MaxStock)
				continue
			}
			// Not in the baseline: the remote never saw this row, so the
			// pending add re-creates it.
			it := m.Item
			it.Quantity = clampQuantity(it.Quantity, it.MaxStock)
			index[it.Key()] = len(merged)
			merged = append(merged, it)
		}
	}

	return merged
}
