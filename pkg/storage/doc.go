// Package storage provides a concurrency-safe, asynchronous key/value store
// with per-key expiry.
//
// Values are persisted inside an Envelope that carries an optional absolute
// expiry timestamp. Expiry is evaluated lazily at read time; an expired read
// behaves like a miss and backends treat it as a deletion. Reads may slide
// the expiry window forward (renewal), but only for values that were stored
// with an expiry in the first place.
//
// Four backends are provided: MemoryStorage for single-process use,
// RedisStorage and SQLStorage for shared deployments, and S3Storage for
// object-store backed persistence. All backends are safe for concurrent use
// from multiple goroutines, and the shared backends assume nothing beyond
// atomic per-key set/get at the backing service.
package storage
