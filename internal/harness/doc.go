// Package harness runs declarative scenarios against a real router
// with a fresh in-memory store, a fake adapter, and deterministic
// clocks and ids, then compares the recorded event trace against
// golden files.
//
// Scenarios are YAML files describing a run request plus the fake
// adapter's configured responses. Because every source of entropy is
// pinned, two executions of the same scenario produce byte-identical
// traces, which makes golden comparison exact rather than fuzzy.
package harness
