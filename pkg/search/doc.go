// Package search implements the search runtime (C3): a small set of
// declarative search kinds — file/directory/registry existence and
// value/version probes, MSI component and product detection, and a
// sandboxed extension search for anything the built-in kinds can't express —
// each optionally gated by a condition and writing its result into a
// variable store.
//
// ExecuteAll runs searches in declared order, skips any whose condition
// evaluates false, and logs-and-continues past a single search's failure
// rather than aborting the batch (§4.3) — mirroring how
// the manifest loader historically walked resource declarations and kept
// going past a bad entry, except a search failure never touches exit status.
//
// A probe miss (missing file, registry value, or MSI component) is not a
// failure: the search's variable is left unchanged. Exists-kind searches
// are the exception — a missing target is their result, written as the
// numeric 0.
package search
