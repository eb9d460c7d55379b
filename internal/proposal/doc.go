// Package proposal defines the persisted proposal record, its binary
// wire codec, and the durable registry mapping numeric keys to records.
//
// The registry is a single logical table over the Pebble store. Each
// entry is encoded to a bounded, checksummed byte sequence; writes that
// would exceed the record size cap are rejected, never truncated.
package proposal
