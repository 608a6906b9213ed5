package consensus

import (
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/storage"
)

// NonceChecker enforces spec §4.5's double-spend guard and §8's nonce
// uniqueness property: across one block's execution order, a given
// (source, nonce) pair is used at most once. The first transaction for
// a (source, nonce) wins; any later one with the same pair is orphaned.
type NonceChecker struct {
	seen map[storage.AccountKey]map[uint64]bool
}

// NewNonceChecker returns an empty per-block checker.
func NewNonceChecker() *NonceChecker {
	return &NonceChecker{seen: map[storage.AccountKey]map[uint64]bool{}}
}

// Admit reports whether tx's (source, nonce) pair has not yet been seen
// in this block, recording it if so.
func (c *NonceChecker) Admit(tx *transaction.Transaction) bool {
	key := storage.KeyOf(tx.Source)
	if c.seen[key] == nil {
		c.seen[key] = map[uint64]bool{}
	}
	if c.seen[key][tx.Nonce] {
		return false
	}
	c.seen[key][tx.Nonce] = true
	return true
}
