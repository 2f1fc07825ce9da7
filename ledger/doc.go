// Package ledger implements the append-only, hash-chained log of player
// actions that every replica of a game session agrees on.
//
// # Core Components
//
// Entry: A single immutable record holding its index, a timestamp, the
// action, and the digests linking it to its predecessor.
//
// Ledger: The ordered sequence of entries owned by the sequencer. Append is
// the only mutating operation.
//
// HashChain: ComputeHash and VerifyChain, pure functions over entries.
//
// # Canonical Serialization
//
// The digest of an entry is the SHA-256 of a JSON object whose keys appear in
// this exact order:
//
//	{"index":…,"timestamp":…,"action":{"kind":…,"payload":…},"prevHash":…,"signerPublicKey":…}
//
// The payload is written in compacted form, or null when absent, and
// signerPublicKey is written only for signed entries. Implementations in other
// languages must reproduce this byte sequence to agree on hashes.
//
// # Security Properties
//
//   - Tamper detection: editing any hashed field of any entry breaks Verify
//   - Ordering: indexes grow by one from 0, prevHash links each entry to the last
//   - Attribution: AppendSigned records the signer key and an ed25519 signature
//
// Verification is never implicit: FromEntries holds whatever it is given, and
// callers decide when to call Verify.
package ledger
