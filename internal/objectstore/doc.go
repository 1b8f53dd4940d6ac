/*
Package objectstore implements the content-addressed blob/tree fetcher
consumed by the checkout and diff engines. Trees and blobs live in an
S3-compatible bucket, addressed by the blake3 hash of their serialized
contents; trees are CBOR-encoded entry lists via github.com/fxamacker/cbor.

GetRootTree and GetTreeEntryForRootID mirror spec.md §6's object-store
contract exactly, and both take a *FetchContext so a checkout or diff can
report aggregate trees_fetched/blobs_fetched counts in its completion
telemetry.
*/
package objectstore
