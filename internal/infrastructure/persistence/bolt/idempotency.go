// Package bolt keeps idempotency records in an embedded BoltDB file, for single-node deployments
// that do not want the idempotency table in Postgres.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/chargecore/internal/domain"
	bolt "github.com/boltdb/bolt"
)

const bucketName = "idempotency_keys"

// record is the stored form. Response is []byte so it round-trips unchanged.
type record struct {
	Key              string    `json:"key"`
	AccountID        int64     `json:"accountId"`
	ChargeExternalID string    `json:"chargeExternalId"`
	RequestHash      string    `json:"requestHash"`
	Response         []byte    `json:"response"`
	CreatedAt        time.Time `json:"createdAt"`
}

type IdempotencyStore struct {
	db *bolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*IdempotencyStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create idempotency bucket: %w", err)
	}

	return &IdempotencyStore{db: db}, nil
}

func (s *IdempotencyStore) Close() error {
	return s.db.Close()
}

func (s *IdempotencyStore) Find(_ context.Context, accountID int64, key string) (*domain.IdempotencyRecord, error) {
	var rec *domain.IdempotencyRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get(storageKey(accountID, key))
		if v == nil {
			return domain.ErrIdempotencyNotFound
		}
		var err error
		rec, err = decode(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save writes record unless the key is already taken, in which case the stored record is returned.
func (s *IdempotencyStore) Save(_ context.Context, rec *domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error) {
	var result *domain.IdempotencyRecord
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		k := storageKey(rec.AccountID, rec.Key)

		if existing := b.Get(k); existing != nil {
			var err error
			result, err = decode(existing)
			return err
		}

		data, err := json.Marshal(record{
			Key:              rec.Key,
			AccountID:        rec.AccountID,
			ChargeExternalID: rec.ChargeExternalID,
			RequestHash:      rec.RequestHash,
			Response:         rec.Response,
			CreatedAt:        rec.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := b.Put(k, data); err != nil {
			return err
		}
		result = rec
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("save idempotency key: %w", err)
	}
	return result, created, nil
}

func storageKey(accountID int64, key string) []byte {
	return []byte(strconv.FormatInt(accountID, 10) + "/" + key)
}

func decode(v []byte) (*domain.IdempotencyRecord, error) {
	var r record
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &domain.IdempotencyRecord{
		Key:              r.Key,
		AccountID:        r.AccountID,
		ChargeExternalID: r.ChargeExternalID,
		RequestHash:      r.RequestHash,
		Response:         r.Response,
		CreatedAt:        r.CreatedAt,
	}, nil
}
