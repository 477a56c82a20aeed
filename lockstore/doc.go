// Package lockstore provides the expiring per-queue locks used to keep at
// most one runner active per named queue.
//
// Three backings share the contracts.LockStore semantics:
//   - RedisLockStore: redis keys with native expiry, acquired through redsync.
//   - FileLockStore: one file per queue whose modification time is the expiry.
//   - SQLLockStore: one row per queue with an expires_at column.
package lockstore
