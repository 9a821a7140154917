// Package workload implements the reference storage workload: generate a
// random vector dataset, persist it in batches, then build an IVF-flat
// index by reading the dataset back. Run against an instrumented backend,
// the two phases exercise the write and read paths respectively and
// populate the per-operation profiles.
package workload
