// Package event defines the persisted data model for relay runs.
//
// A Run is an append-only sequence of Events. Events are immutable once
// written and totally ordered within a run by a 0-based, gap-free seq.
// The event type set is closed: the router emits exactly the types declared
// in this package and nothing else.
//
// # Canonical JSON
//
// Everything that crosses a trust boundary (event payloads, export bundles,
// digests) is serialized with MarshalCanonical:
//   - object keys sorted lexicographically
//   - no insignificant whitespace
//   - no HTML escaping (< > & stay literal)
//   - strings NFC normalized
//   - numbers preserved through decode/encode via json.Number
//
// The same (run, events) pair therefore produces identical bytes on any
// platform, which is what makes run digests portable.
package event
