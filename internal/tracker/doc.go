// Package tracker records cause-and-effect relationships between discrete
// events so that a complex, asynchronous, multi-step interaction can be
// reconstructed and analyzed after the fact.
//
// # Overview
//
// The tracker maintains a live, bounded-memory forest of causality chains.
// A chain is an ordered collection of causally related events sharing one
// root cause; every event carries timing, an open context map, and causal
// links (parent and children) to its neighbors in the chain.
//
// Chains are created explicitly with StartChain or implicitly by the first
// AddEvent when no chain is active. Events are completed with CompleteEvent,
// which records duration and optionally an error. A background sweep expires
// old chains and enforces the configured memory cap.
//
// # Usage
//
//	trk, err := tracker.New(tracker.NewDefaultConfig(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer trk.Destroy()
//
//	chainID, _ := trk.StartChain(tracker.EventUserAction, "click-save")
//	evtID, _ := trk.AddEvent(tracker.EventAPICall, "POST /save", tracker.InChain(chainID))
//	trk.CompleteEvent(evtID, nil)
//	trk.EndChain(chainID)
//
// # Concurrency
//
// All methods are safe for concurrent use; the store is guarded by a single
// mutex. The implicit active-chain pointer is a shared slot: concurrent
// unrelated flows calling AddEvent without an explicit chain ID are
// attributed to whichever chain is currently active. Callers that need
// isolation must pass InChain with the ID returned by StartChain.
//
// # Error handling
//
// AddEvent with an explicit but unknown chain ID is a caller contract
// violation and returns ErrChainNotFound. CompleteEvent and EndChain on
// unknown IDs are silent no-ops so that completions racing with eviction
// never crash a caller.
package tracker
