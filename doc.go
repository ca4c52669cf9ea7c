// Package redcache implements general-purpose cache semantics on top
// of primitive Redis operations: namespaced get/put/evict, bulk clear
// via a secondary key index, TTL propagation, and a store-visible
// marker that keeps concurrent clears from overlapping.
//
// Redis offers no native cache abstraction, so each cache maintains a
// sorted set at "<name>~keys" recording every key it has written, and
// drains it in fixed-size pages on Clear. Put commits the value write,
// the index update and the expirations as one MULTI/EXEC unit. The
// guard consulted by Get and Put before an in-progress clear is
// advisory only; see Cache.Clear for the exact contract.
package redcache
