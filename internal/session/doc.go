// Package session provides the transaction boundary for persisting device
// mutations.
//
// Mutating operations queue Changes into a batch; Commit hands the whole
// batch to a Store, which applies it atomically. Rollback discards the
// pending batch. The boundary covers durable persistence only — in-memory
// circuit state is applied immediately by the engines and is reloaded from
// the store when a caller needs durable consistency after a rollback.
//
// SQLiteStore is the production Store, writing assignments to the
// device_assignments table with an audit row per committed batch.
package session
