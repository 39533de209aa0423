package bolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/cachedns/internal/dns/domain"
	"github.com/haukened/cachedns/internal/dns/repos/blocklist"
)

var (
	bucketExact  = []byte("exact")
	bucketSuffix = []byte("suffix")
	bucketMeta   = []byte("meta")

	metaVersion = []byte("version")
	metaUpdated = []byte("updated")
)

// Rule values are encoded as kind(1) | addedAt unix(8) | len(source)(2) | source.
const ruleHeaderLen = 11

// bucketCreator and bucketDeleter are the slices of *bbolt.Tx the bucket helpers need.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

// Seams for tests.
var (
	ensureBucketsFn   = ensureBuckets
	deleteBucketsFn   = deleteBuckets
	loadRulesFn       = loadRules
	writeMetaFn       = writeMeta
	decodeRuleValueFn = decodeRuleValue
)

// boltStore implements blocklist.Store on a bbolt file.
// Exact rules are keyed by name; suffix rules by the byte-reversed name so that
// every anchor of a query name can be probed with a point lookup.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (blocklist.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// GetFirstMatch returns the exact rule for name if present, otherwise the suffix rule
// on the longest matching label boundary.
func (s *boltStore) GetFirstMatch(name string) (domain.BlockRule, bool, error) {
	var (
		rule  domain.BlockRule
		found bool
	)
	if name == "" {
		return rule, false, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketExact); b != nil {
			if v := b.Get([]byte(name)); v != nil {
				r, err := decodeRuleValueFn(name, v, domain.BlockRuleExact)
				if err != nil {
					return err
				}
				rule, found = r, true
				return nil
			}
		}

		b := tx.Bucket(bucketSuffix)
		if b == nil {
			return nil
		}
		// "a.b.example" reversed is "elpmaxe.b.a"; trimming at the last '.' walks
		// anchors from most specific to the top label.
		rp := []byte(reverseString(name))
		for len(rp) > 0 {
			if v := b.Get(rp); v != nil {
				anchor := reverseString(string(rp))
				r, err := decodeRuleValueFn(anchor, v, domain.BlockRuleSuffix)
				if err != nil {
					return err
				}
				rule, found = r, true
				return nil
			}
			idx := bytes.LastIndexByte(rp, '.')
			if idx < 0 {
				break
			}
			rp = rp[:idx]
		}
		return nil
	})
	if err != nil {
		return domain.BlockRule{}, false, err
	}
	return rule, found, nil
}

// RebuildAll replaces all rules and metadata in a single transaction.
// Rules with an unsupported kind are skipped.
func (s *boltStore) RebuildAll(rules []domain.BlockRule, version uint64, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBucketsFn(tx, bucketExact, bucketSuffix, bucketMeta); err != nil {
			return err
		}
		if err := ensureBucketsFn(tx); err != nil {
			return err
		}
		if err := loadRulesFn(tx, rules); err != nil {
			return err
		}
		return writeMetaFn(tx, version, updatedUnix)
	})
}

// Purge removes every rule and the metadata, leaving empty buckets.
func (s *boltStore) Purge() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBucketsFn(tx, bucketExact, bucketSuffix, bucketMeta); err != nil {
			return err
		}
		return ensureBucketsFn(tx)
	})
}

func (s *boltStore) Stats() blocklist.StoreStats {
	st := blocklist.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketExact); b != nil {
			st.ExactKeys = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketSuffix); b != nil {
			st.SuffixKeys = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(metaVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(metaUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketExact, bucketSuffix, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	return nil
}

// deleteBuckets removes the named buckets; missing buckets are not an error.
func deleteBuckets(tx bucketDeleter, names ...[]byte) error {
	for _, name := range names {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete bucket %s: %w", name, err)
		}
	}
	return nil
}

func loadRules(tx *bbolt.Tx, rules []domain.BlockRule) error {
	exact := tx.Bucket(bucketExact)
	suffix := tx.Bucket(bucketSuffix)
	for _, r := range rules {
		var (
			b   *bbolt.Bucket
			key []byte
		)
		switch r.Kind {
		case domain.BlockRuleExact:
			b, key = exact, []byte(r.Name)
		case domain.BlockRuleSuffix:
			b, key = suffix, []byte(reverseString(r.Name))
		default:
			continue
		}
		if err := b.Put(key, encodeRuleValue(r)); err != nil {
			return fmt.Errorf("failed to store rule %q: %w", r.Name, err)
		}
	}
	return nil
}

func writeMeta(tx *bbolt.Tx, version uint64, updatedUnix int64) error {
	b := tx.Bucket(bucketMeta)
	if b == nil {
		return bberrors.ErrBucketNotFound
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put(metaVersion, vbuf); err != nil {
		return err
	}
	return b.Put(metaUpdated, ubuf)
}

func encodeRuleValue(r domain.BlockRule) []byte {
	src := r.Source
	if len(src) > 0xFFFF {
		src = src[:0xFFFF]
	}
	v := make([]byte, ruleHeaderLen+len(src))
	v[0] = byte(r.Kind)
	var added int64
	if !r.AddedAt.IsZero() {
		added = r.AddedAt.Unix()
	}
	binary.BigEndian.PutUint64(v[1:9], uint64(added))
	binary.BigEndian.PutUint16(v[9:11], uint16(len(src)))
	copy(v[ruleHeaderLen:], src)
	return v
}

// decodeRuleValue rebuilds a rule from its stored value. Short values and unknown
// kinds fall back to defaultKind; a source length past the end yields an empty source.
func decodeRuleValue(name string, v []byte, defaultKind domain.BlockRuleKind) (domain.BlockRule, error) {
	r := domain.BlockRule{Name: name, Kind: defaultKind}
	if len(v) < ruleHeaderLen {
		return r, nil
	}
	switch k := domain.BlockRuleKind(v[0]); k {
	case domain.BlockRuleExact, domain.BlockRuleSuffix:
		r.Kind = k
	}
	if added := int64(binary.BigEndian.Uint64(v[1:9])); added != 0 {
		r.AddedAt = time.Unix(added, 0).UTC()
	}
	srcLen := int(binary.BigEndian.Uint16(v[9:11]))
	if ruleHeaderLen+srcLen <= len(v) {
		r.Source = string(v[ruleHeaderLen : ruleHeaderLen+srcLen])
	}
	return r, nil
}

func reverseString(s string) string {
	b := []byte(s)
	reverseBytesInPlace(b)
	return string(b)
}

func reverseBytesInPlace(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
