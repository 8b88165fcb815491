// Package syncer reconciles note files with the entity store in both
// directions.
//
// # Overview
//
// Each tracked file has one ledger row recording the content hash and
// timestamp of its last successful reconciliation. The engine compares
// the current file hash against that record, and the linked entity's
// updated_at against the last sync time, to decide between three cases:
//
//	file changed, store unchanged   -> pull proceeds
//	store changed, file unchanged   -> nothing to do (push is explicit)
//	both changed                    -> conflict, resolved by policy
//
// # State machine
//
// A ledger row moves through:
//
//	pending -> synced <-> conflict -> synced
//
// Any step may instead land in error (I/O or persistence failure); a
// later retry re-enters the same transition. Retries are the recovery
// mechanism for interrupted reconciliations, which is safe because Pull
// and Push are idempotent with respect to unchanged input.
//
// # Usage
//
//	database, err := db.Open(".tracknote/tracknote.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//
//	engine := syncer.New(
//	    store.NewSQLiteStore(database.RawDB()),
//	    ledger.New(database.RawDB()),
//	    syncer.Config{Roots: []string{"notes"}},
//	)
//
//	stats, err := engine.ScanAndSync(ctx)
//
// # Concurrency
//
// Reconciliations of different paths may overlap; each path is guarded by
// its own lock so a single file's ledger read-modify-write and entity
// mutations never interleave. No cross-path locking exists. Pull and Push
// are synchronous; Push blocks the caller until the file write and ledger
// update complete.
package syncer
