// Package cache provides a namespaced key/value cache with pluggable
// backends and a generic cache-aside wrapper.
//
// # Store
//
// The [Store] interface keys entries by (namespace, key). Each namespace is a
// named partition with its own TTL and nil-caching policy, registered at
// construction with [WithNamespaces]; writes without a TTL override resolve
// the namespace TTL and fall back to the store-wide default ([DefaultTTL]).
// Namespaces that disable nil caching turn a nil Put into a silent no-op, so
// absent results are recomputed instead of pinned.
//
// Four implementations are provided:
//
//   - [NewLocal] — in-process map guarded by a mutex. No serialization;
//     values are stored as-is. Expired entries are swept by a background
//     goroutine. Lost on restart, not shared across processes.
//
//   - [NewRedis] — shared store backed by Redis via
//     [github.com/redis/go-redis/v9]. Values are msgpack-serialized; expiry
//     uses native Redis TTL. The caller owns the redis.Client lifecycle.
//
//   - [NewSQLite] — persistent single-node store using [modernc.org/sqlite]
//     (pure Go, no CGO). msgpack BLOBs, WAL mode, background cleanup.
//     File-backed databases survive restarts.
//
//   - [NewTiered] — chains stores; first hit wins, writes fan out. Useful as
//     local L1 in front of Redis L2.
//
// I/O-backed stores bound every operation with a per-query timeout
// ([DefaultQueryTimeout]) so a slow backend never stalls a request
// indefinitely.
//
// # Keys
//
// [Key] derives a deterministic cache key from an operation's first argument
// by collapsing whitespace runs and trimming ([NormalizeSpace]); a call with
// no arguments maps to [DefaultKey]. Keys carry no randomness, so they are
// stable across restarts and across instances sharing a distributed store.
//
// # Cache-aside
//
// [Cached] wraps a producer function with check-cache-first semantics: get,
// invoke on miss, write through, return. Store failures degrade — a read
// error is a miss, a write error is dropped — while producer errors propagate
// untouched with nothing cached. See [Cached.Do] for the concurrency
// contract (no single-flight).
package cache
