// Package protocol defines the typed end-to-end message family and its wire
// codec.
//
// Every message on the wire is a single type byte followed by a
// variant-specific body. The package covers text, location, file and legacy
// image messages, ballots, delivery receipts and the group-scoped
// equivalents plus the group control messages (create, rename, photo, leave,
// request-sync).
//
// # Wire format
//
// Binary fields use fixed offsets: identities are 8 ASCII bytes, message and
// ballot ids 8 bytes, blob ids 16 bytes, symmetric blob keys 32 bytes.
// Integer fields in binary bodies are little-endian. JSON bodies (file,
// ballots) use fixed single-letter keys and compact encoding; optional
// fields are omitted entirely, never emitted as null.
//
// Decoding is strict: every variant validates its minimum length before
// indexing and fails with ErrBadMessage on structural corruption; an unknown
// type byte fails with ErrUnsupportedType.
package protocol
