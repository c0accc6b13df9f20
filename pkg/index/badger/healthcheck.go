package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// Healthcheck verifies the database is open and can serve a read
// transaction.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.View(func(txn *badgerdb.Txn) error {
		// Starting the transaction is the check: badger errors out if
		// the database is closed or corrupted.
		return nil
	})
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}

	return nil
}

// Close releases the database. Pending writes are flushed first.
func (s *Store) Close() error {
	return s.db.Close()
}

// Compile-time interface check
var _ index.Store = (*Store)(nil)
