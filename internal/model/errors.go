package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSearchUnavailable means the search provider failed or timed out
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrCacheUnavailable means the key-value store could not be reached
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrVerificationTimeout means a reachability probe ran out of time
	ErrVerificationTimeout = errors.New("verification timeout")
	// ErrAmbiguousReference means several offers plausibly match a reference
	ErrAmbiguousReference = errors.New("ambiguous reference")
	// ErrProductNotFound means no offer in the current results matches
	ErrProductNotFound = errors.New("product not found in current results")
	// ErrHallucinationBlocked means a claim lacked grounding and was blocked
	ErrHallucinationBlocked = errors.New("hallucination blocked")
	// ErrNoResultSet means the session has no persisted results to refer to
	ErrNoResultSet = errors.New("no results in session")
)

// AmbiguousReferenceError carries the candidate offers for clarification
type AmbiguousReferenceError struct {
	Utterance    string
	Alternatives []*Offer
}

func (e *AmbiguousReferenceError) Error() string {
	nums := make([]string, 0, len(e.Alternatives))
	for _, o := range e.Alternatives {
		nums = append(nums, fmt.Sprintf("#%d", o.SequenceNumber))
	}
	return fmt.Sprintf("%s: %q could mean %s", ErrAmbiguousReference, e.Utterance, strings.Join(nums, ", "))
}

func (e *AmbiguousReferenceError) Unwrap() error {
	return ErrAmbiguousReference
}
