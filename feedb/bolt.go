package feedb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/coreos/bbolt"
	"github.com/google/uuid"
	"github.com/lightninglabs/autofees/autofee"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lnwire"
)

const (
	// dbFileName is the default file name of the client-side autofees
	// database.
	dbFileName = "autofees.db"

	// dbFilePermission is the default permission the autofees database
	// file is created with.
	dbFilePermission = 0600

	// DefaultOpenTimeout is the time we wait to obtain the database file
	// lock. The daemon and the cli may share a database file, but only
	// one of them can hold it open at a time.
	DefaultOpenTimeout = time.Second * 5

	// dbVersion is the current version of our database layout.
	dbVersion uint32 = 1
)

var (
	// policyBucketKey is the top level bucket that holds our policies,
	// keyed by policy id.
	//
	// policies -> <policy id> -> serialized policy
	policyBucketKey = []byte("policies")

	// adjustmentBucketKey is the top level bucket that holds one sub
	// bucket per policy. Each of those holds the policy's adjustments
	// keyed by a big endian sequence number, so they iterate in the order
	// they were written.
	//
	// adjustments -> <policy id> -> <sequence> -> serialized adjustment
	adjustmentBucketKey = []byte("adjustments")

	// metaBucketKey holds database wide information.
	metaBucketKey = []byte("metadata")

	// dbVersionKey is the key under which we store our layout version.
	dbVersionKey = []byte("dbp")

	byteOrder = binary.BigEndian

	// ErrUnknownVersion is returned when the database was written by a
	// newer version than we support.
	ErrUnknownVersion = errors.New("unknown database version")
)

// BoltStore is a bbolt backed implementation of Store.
type BoltStore struct {
	db    *bbolt.DB
	clock clock.Clock
}

// A compile-time flag to ensure that BoltStore implements the Store
// interface.
var _ Store = (*BoltStore)(nil)

// NewBoltStore opens the database in the directory provided, creating it if
// it does not exist yet. We wait for at most timeout for the file lock.
func NewBoltStore(dbDir string, clock clock.Clock,
	timeout time.Duration) (*BoltStore, error) {

	if err := os.MkdirAll(dbDir, 0700); err != nil {
		return nil, err
	}

	path := filepath.Join(dbDir, dbFileName)

	log.Debugf("Opening bolt db at %v", path)
	db, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{
		Timeout: timeout,
	})
	if err == bbolt.ErrTimeout {
		return nil, fmt.Errorf("database %v is in use by another "+
			"process", path)
	}
	if err != nil {
		return nil, err
	}

	if err := initBoltStore(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{
		db:    db,
		clock: clock,
	}, nil
}

// initBoltStore creates our top level buckets and checks the version of an
// existing database.
func initBoltStore(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, key := range [][]byte{
			policyBucketKey, adjustmentBucketKey,
		} {
			if _, err := tx.CreateBucketIfNotExists(key); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists(metaBucketKey)
		if err != nil {
			return err
		}

		version := meta.Get(dbVersionKey)
		if version == nil {
			var b [4]byte
			byteOrder.PutUint32(b[:], dbVersion)

			return meta.Put(dbVersionKey, b[:])
		}

		if v := byteOrder.Uint32(version); v > dbVersion {
			return fmt.Errorf("%w: %v", ErrUnknownVersion, v)
		}

		return nil
	})
}

// CreatePolicy validates and stores a new policy. The policy's id is set if
// it was empty, and its timestamps are set to the current time.
func (s *BoltStore) CreatePolicy(_ context.Context,
	policy *autofee.Policy) error {

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}

	if err := policy.Validate(); err != nil {
		return err
	}

	now := s.clock.Now()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	value, err := serializePolicy(policy)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		policies := tx.Bucket(policyBucketKey)

		if policies.Get([]byte(policy.ID)) != nil {
			return ErrPolicyExists
		}

		return policies.Put([]byte(policy.ID), value)
	})
}

// GetPolicy returns the policy with the id provided.
func (s *BoltStore) GetPolicy(_ context.Context, id string) (*autofee.Policy,
	error) {

	var policy *autofee.Policy
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		policy, err = fetchPolicy(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return policy, nil
}

// ListPolicies returns all policies of a wallet, newest first. An empty
// wallet id returns every policy.
func (s *BoltStore) ListPolicies(_ context.Context,
	walletID string) ([]*autofee.Policy, error) {

	policies, err := s.filterPolicies(func(p *autofee.Policy) bool {
		return walletID == "" || p.WalletID == walletID
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].CreatedAt.After(policies[j].CreatedAt)
	})

	return policies, nil
}

// ListEnabledPolicies returns all enabled policies, oldest first.
func (s *BoltStore) ListEnabledPolicies(_ context.Context) ([]*autofee.Policy,
	error) {

	policies, err := s.filterPolicies(func(p *autofee.Policy) bool {
		return p.Enabled
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(policies, func(i, j int) bool {
		return policies[i].CreatedAt.Before(policies[j].CreatedAt)
	})

	return policies, nil
}

func (s *BoltStore) filterPolicies(
	include func(*autofee.Policy) bool) ([]*autofee.Policy, error) {

	var policies []*autofee.Policy
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(policyBucketKey).ForEach(func(_, v []byte) error {
			policy, err := deserializePolicy(v)
			if err != nil {
				return err
			}

			if include(policy) {
				policies = append(policies, policy)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return policies, nil
}

// UpdatePolicy applies a partial update to a policy.
func (s *BoltStore) UpdatePolicy(_ context.Context, id string,
	update *autofee.PolicyUpdate) (*autofee.Policy, error) {

	if update.IsEmpty() {
		return nil, ErrEmptyUpdate
	}

	var updated autofee.Policy
	err := s.db.Update(func(tx *bbolt.Tx) error {
		current, err := fetchPolicy(tx, id)
		if err != nil {
			return err
		}

		updated, err = update.Apply(*current, s.clock.Now())
		if err != nil {
			return err
		}

		value, err := serializePolicy(&updated)
		if err != nil {
			return err
		}

		return tx.Bucket(policyBucketKey).Put([]byte(id), value)
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeletePolicy removes a policy and all of its adjustments.
func (s *BoltStore) DeletePolicy(_ context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		policies := tx.Bucket(policyBucketKey)
		if policies.Get([]byte(id)) == nil {
			return autofee.ErrPolicyNotFound
		}

		if err := policies.Delete([]byte(id)); err != nil {
			return err
		}

		err := tx.Bucket(adjustmentBucketKey).DeleteBucket([]byte(id))
		if err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}

		return nil
	})
}

// AppendAdjustment adds an adjustment to its policy's audit log.
func (s *BoltStore) AppendAdjustment(_ context.Context,
	adjustment *autofee.Adjustment) error {

	value, err := serializeAdjustment(adjustment)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		policyKey := []byte(adjustment.PolicyID)
		if tx.Bucket(policyBucketKey).Get(policyKey) == nil {
			return autofee.ErrPolicyNotFound
		}

		root := tx.Bucket(adjustmentBucketKey)
		bucket, err := root.CreateBucketIfNotExists(policyKey)
		if err != nil {
			return err
		}

		// Keys come from a sequence shared by all policies, so that they
		// order adjustments across policies too.
		seq, err := root.NextSequence()
		if err != nil {
			return err
		}

		var key [8]byte
		byteOrder.PutUint64(key[:], seq)

		return bucket.Put(key[:], value)
	})
}

// AdjustmentsByPolicy returns up to limit of a policy's adjustments, newest
// first.
func (s *BoltStore) AdjustmentsByPolicy(_ context.Context, policyID string,
	limit int) ([]*autofee.Adjustment, error) {

	limit = historyLimit(limit)

	var adjustments []*autofee.Adjustment
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(adjustmentBucketKey).Bucket(
			[]byte(policyID),
		)
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if len(adjustments) == limit {
				break
			}

			adjustment, err := deserializeAdjustment(v)
			if err != nil {
				return err
			}

			adjustments = append(adjustments, adjustment)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return adjustments, nil
}

// AdjustmentsByChannel returns up to limit of a channel's adjustments across
// all policies, newest first.
func (s *BoltStore) AdjustmentsByChannel(_ context.Context,
	channel lnwire.ShortChannelID, limit int) ([]*autofee.Adjustment,
	error) {

	adjustments, err := s.filterAdjustments(func(a *autofee.Adjustment) bool {
		return a.ChannelID == channel
	})
	if err != nil {
		return nil, err
	}

	return newestFirst(adjustments, historyLimit(limit)), nil
}

// RecentAdjustments returns up to limit adjustments made for a wallet,
// newest first.
func (s *BoltStore) RecentAdjustments(_ context.Context, walletID string,
	limit int) ([]*autofee.Adjustment, error) {

	adjustments, err := s.filterAdjustments(func(a *autofee.Adjustment) bool {
		return a.WalletID == walletID
	})
	if err != nil {
		return nil, err
	}

	return newestFirst(adjustments, historyLimit(limit)), nil
}

// PolicyStats summarizes all of a policy's adjustments.
func (s *BoltStore) PolicyStats(_ context.Context,
	policyID string) (*autofee.AdjustmentStats, error) {

	var adjustments []*autofee.Adjustment
	err := s.db.View(func(tx *bbolt.Tx) error {
		if _, err := fetchPolicy(tx, policyID); err != nil {
			return err
		}

		bucket := tx.Bucket(adjustmentBucketKey).Bucket(
			[]byte(policyID),
		)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			adjustment, err := deserializeAdjustment(v)
			if err != nil {
				return err
			}

			adjustments = append(adjustments, adjustment)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return autofee.NewAdjustmentStats(adjustments), nil
}

// sequencedAdjustment is an adjustment along with its storage sequence.
type sequencedAdjustment struct {
	*autofee.Adjustment

	seq uint64
}

// filterAdjustments returns every adjustment that passes the filter, in
// storage order.
func (s *BoltStore) filterAdjustments(
	include func(*autofee.Adjustment) bool) ([]sequencedAdjustment, error) {

	var adjustments []sequencedAdjustment
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(adjustmentBucketKey)

		return root.ForEach(func(k, v []byte) error {
			// Only nested buckets are expected at this level.
			if v != nil {
				return nil
			}

			return root.Bucket(k).ForEach(func(k, v []byte) error {
				adjustment, err := deserializeAdjustment(v)
				if err != nil {
					return err
				}

				if !include(adjustment) {
					return nil
				}

				adjustments = append(adjustments,
					sequencedAdjustment{
						Adjustment: adjustment,
						seq:        byteOrder.Uint64(k),
					},
				)

				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	return adjustments, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// fetchPolicy reads a policy within a transaction.
func fetchPolicy(tx *bbolt.Tx, id string) (*autofee.Policy, error) {
	value := tx.Bucket(policyBucketKey).Get([]byte(id))
	if value == nil {
		return nil, autofee.ErrPolicyNotFound
	}

	return deserializePolicy(value)
}

// newestFirst sorts adjustments by descending timestamp, breaking ties by
// descending sequence, and truncates them to limit entries.
func newestFirst(adjustments []sequencedAdjustment,
	limit int) []*autofee.Adjustment {

	sort.Slice(adjustments, func(i, j int) bool {
		a, b := adjustments[i], adjustments[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}

		return a.seq > b.seq
	})

	if len(adjustments) > limit {
		adjustments = adjustments[:limit]
	}

	result := make([]*autofee.Adjustment, 0, len(adjustments))
	for _, adjustment := range adjustments {
		result = append(result, adjustment.Adjustment)
	}

	return result
}
