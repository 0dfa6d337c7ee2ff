// Package fragments stores typed, owned units of binary content and
// converts them on read to any media type their source type allows.
//
// The Service orchestrates a metadata Repository and a BlobStore keyed by
// (owner, id). Implementations live in subpackages: repo/memory and
// repo/postgres for metadata, storage/memory, storage/fs and storage/s3 for
// bytes, and cache/redis for converted output.
//
// # Type rules
//
// The accepted media types and the legal conversions between them are
// defined once in the mediatype package. A Fragment's type is validated when
// it is constructed and never changes afterwards; replacing content with a
// different type requires a new fragment.
//
// # Write ordering
//
// SetData saves metadata before bytes and does not roll back. A failed byte
// write leaves Size and Updated describing content that was never stored.
// Callers that need all-or-nothing semantics must re-read and repair.
package fragments
