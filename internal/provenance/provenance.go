// Package provenance derives the portable content identity of a run.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/relay/internal/event"
)

// MethodID names the digest derivation so future methods can coexist
// with old bundles.
const MethodID = "sha256-canonical-v1"

// Provenance records how a bundle's digest was derived.
type Provenance struct {
	Digest   string `json:"digest"`
	MethodID string `json:"method_id"`
}

// Digest computes the sha256-hex digest over the canonical form of the
// run followed by its events in seq order. The same (run, events)
// yields the same digest on any platform.
func Digest(run event.Run, events []event.Event) (string, error) {
	h := sha256.New()

	runJSON, err := event.MarshalCanonical(run.CanonicalMap())
	if err != nil {
		return "", fmt.Errorf("canonicalize run: %w", err)
	}
	h.Write(runJSON)

	list := make([]any, len(events))
	for i, evt := range events {
		list[i] = evt.CanonicalMap()
	}
	eventsJSON, err := event.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("canonicalize events: %w", err)
	}
	h.Write(eventsJSON)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Derive computes the digest and wraps it with the method id.
func Derive(run event.Run, events []event.Event) (Provenance, error) {
	digest, err := Digest(run, events)
	if err != nil {
		return Provenance{}, err
	}
	return Provenance{Digest: digest, MethodID: MethodID}, nil
}
