/*
Package storage persists raw snapshot documents in SQLite.

The schema is managed by embedded golang-migrate migrations and opened
through the pure Go modernc.org/sqlite driver, so the server builds without
cgo. Documents are stored verbatim; created_at is stamped on every write
and drives list order.

# Usage

	store, err := storage.Open("data/snapshots.db", storage.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer store.Close()

	guarded := storage.NewGuarded(store, storage.GuardSettings{MaxFailures: 5})
	svc := snapshot.NewService(guarded, logger)
*/
package storage
