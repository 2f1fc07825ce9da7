// Package consensus turns actions proposed by guests into ordered ledger
// entries and keeps every peer's copy of the ledger current.
//
// Exactly one peer, the initiator, runs a Sequencer. Every other peer runs a
// Replica. Guests never append: they propose, then wait for the next
// broadcast, which always carries the whole ledger and replaces their copy.
//
// # Core Components
//
// Sequencer: owns the Ledger, handles requests one at a time in arrival
// order, appends them and broadcasts the result to every attached channel.
//
// Replica: holds a read-only copy of the ledger, proposes actions and
// rejects any broadcast whose hash chain does not verify.
//
// Node: binds either role to an fsm.Machine, so local actions become
// predictions on guests and direct appends on the sequencer.
//
// # Wire Protocol
//
// All messages share the envelope
//
//	{"namespace": "game", "type": "...", "payload": {...}}
//
// Action requests use the type "<KIND>_REQUEST" with the action payload.
// LEDGER_SYNC carries {"entries": [...]} and LEDGER_SNAPSHOT_REQUEST asks the
// sequencer to resend the ledger to the requesting channel only.
//
// # Leniency
//
// The sequencer does not know the game. Any well-formed request is appended;
// an illegal action is skipped when reducers replay the ledger.
package consensus
