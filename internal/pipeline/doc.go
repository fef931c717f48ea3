// Package pipeline orchestrates the catalog store, blob store, and external
// renderer for the image lifecycle.
//
// Each operation keeps the catalog record and the underlying files mutually
// consistent even when one half fails: uploads write the blob before the
// record so the catalog never references a missing file; deletes abort on
// real filesystem errors so files are never leaked without an owner; renders
// mutate the catalog only after the external process reports success.
//
// There is no cross-store transaction. Ordering and the documented
// best-effort spots (artifact deletion, missing-original tolerance) are the
// whole consistency story; see the package tests for the guaranteed
// properties.
package pipeline
