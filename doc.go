// Package jaxray treats very large, immutable, content-addressed, chunked
// N-dimensional labeled arrays as if they were ordinary in-memory arrays:
// indexable by coordinate values, sliceable, and composable through
// repeated selections, while only ever fetching the bytes a computation
// needs.
//
// A DataArray wraps either materialized values or a lazy block backed by a
// fetch function. Selections on a lazy array never fetch; they compose a
// per-dimension mapping from the derived virtual index space back to the
// original backing store, so a chain of selections is equivalent to one
// direct fetch against the root. Data only moves when Compute is called.
//
// The store/hamt and store/sharded packages provide the two
// content-addressed chunk stores that back lazy arrays; blockstore
// provides the physical block transport they read from.
package jaxray
