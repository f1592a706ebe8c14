package badger

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/kbase/storage"
)

// readRecord reads and decodes the value at key. A missing key yields the
// zero value and found == false.
func readRecord[T any](tx *badger.Txn, key []byte, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}

	var record T
	err = item.Value(func(val []byte) error {
		var err error
		record, err = decode(val)
		return err
	})
	if err != nil {
		return zero, false, err
	}
	return record, true, nil
}

// keyExists reports whether key is present in the transaction's view.
func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// readIndexedIDs walks an index prefix whose values are marshaled IDs and
// returns them in key order.
func readIndexedIDs(tx *badger.Txn, prefix []byte) ([]uuid.UUID, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []uuid.UUID
	for iter.Seek(prefix); iter.Valid(); iter.Next() {
		item := iter.Item()
		if !hasPrefix(item.Key(), prefix) {
			break
		}
		err := item.Value(func(val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
