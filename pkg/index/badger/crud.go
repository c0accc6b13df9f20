package badger

import (
	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// ============================================================================
// Low-Level Read Helpers
// ============================================================================
//
// Thin wrappers around BadgerDB reads with no domain logic. Typed
// accessors in files.go and segments.go build on these.

// readValue copies an item's value out of the transaction.
func readValue(item *badgerdb.Item) ([]byte, error) {
	var value []byte
	err := item.Value(func(val []byte) error {
		value = append([]byte{}, val...)
		return nil
	})
	return value, err
}

// getRecord reads the raw record stored under key.
// Returns ErrNotFound when the key does not exist.
func getRecord(txn *badgerdb.Txn, key []byte, id, recordType string) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, index.NewNotFoundError(id, recordType)
	}
	if err != nil {
		return nil, index.NewIOError("failed to read "+recordType, err)
	}
	return readValue(item)
}

// getByPointer follows an ID index entry to the primary record bytes.
// A dangling pointer reports the record as missing.
func getByPointer(txn *badgerdb.Txn, pointerKey []byte, id, recordType string) ([]byte, []byte, error) {
	primary, err := getRecord(txn, pointerKey, id, recordType)
	if err != nil {
		return nil, nil, err
	}
	record, err := getRecord(txn, primary, id, recordType)
	if err != nil {
		return nil, nil, err
	}
	return record, primary, nil
}
