// Package netfulfilled tracks one-time network requests that have already
// been served, per peer address and request tag, so that the sync process
// never asks the same peer for the same data twice. Entries expire so a
// well-behaved address becomes askable again after the TTL.
package netfulfilled

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	dbm "github.com/tendermint/tm-db"
)

// Request tags used by the sync reactor. The governance tag is reserved for
// the currently inactive governance stage.
const (
	TagSporkSync       = "spork-sync"
	TagNodeListSync    = "node-list-sync"
	TagPaymentVoteSync = "payment-vote-sync"
	TagFullSync        = "full-sync"
	TagGovernanceSync  = "governance-sync"
)

// DefaultTTL is how long a fulfilled marker is honored before the address
// may be asked again.
const DefaultTTL = 24 * time.Hour

// RequestLedger records fulfilled one-time requests. Markers are held in
// memory for fast lookups and written through to the backing database so
// they survive a restart.
//
// All methods are safe for concurrent use.
type RequestLedger struct {
	mtx sync.Mutex
	db  dbm.DB
	ttl time.Duration
	now func() time.Time

	// addr -> tag -> expiry
	fulfilled map[string]map[string]time.Time
}

// Option configures a RequestLedger.
type Option func(*RequestLedger)

// WithTTL overrides the marker expiry interval.
func WithTTL(ttl time.Duration) Option {
	return func(l *RequestLedger) { l.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *RequestLedger) { l.now = now }
}

// NewRequestLedger creates a ledger over db and loads any persisted markers.
// Markers that expired while the process was down are dropped on load.
func NewRequestLedger(db dbm.DB, opts ...Option) (*RequestLedger, error) {
	l := &RequestLedger{
		db:        db,
		ttl:       DefaultTTL,
		now:       time.Now,
		fulfilled: make(map[string]map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *RequestLedger) load() error {
	it, err := l.db.Iterator(nil, nil)
	if err != nil {
		return fmt.Errorf("iterating fulfilled-request db: %w", err)
	}

	// The database must not be written while the iterator is open, so keys
	// to drop are collected first and deleted after Close.
	var drop [][]byte
	now := l.now()
	for ; it.Valid(); it.Next() {
		addr, tag, ok := splitKey(it.Key())
		if !ok || len(it.Value()) != 8 {
			// unreadable entry, drop it
			drop = append(drop, append([]byte(nil), it.Key()...))
			continue
		}
		expiry := time.Unix(int64(binary.BigEndian.Uint64(it.Value())), 0)
		if !expiry.After(now) {
			drop = append(drop, append([]byte(nil), it.Key()...))
			continue
		}
		tags, ok := l.fulfilled[addr]
		if !ok {
			tags = make(map[string]time.Time)
			l.fulfilled[addr] = tags
		}
		tags[tag] = expiry
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return err
	}
	if err := it.Close(); err != nil {
		return err
	}

	for _, key := range drop {
		_ = l.db.Delete(key)
	}
	return nil
}

// AddFulfilled marks the request tag fulfilled for the address.
func (l *RequestLedger) AddFulfilled(addr, tag string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	expiry := l.now().Add(l.ttl)
	tags, ok := l.fulfilled[addr]
	if !ok {
		tags = make(map[string]time.Time)
		l.fulfilled[addr] = tags
	}
	tags[tag] = expiry

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(expiry.Unix()))
	_ = l.db.Set(makeKey(addr, tag), buf[:])
}

// HasFulfilled reports whether the request tag is marked fulfilled for the
// address and the marker has not expired.
func (l *RequestLedger) HasFulfilled(addr, tag string) bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	expiry, ok := l.fulfilled[addr][tag]
	return ok && expiry.After(l.now())
}

// RemoveFulfilled clears the marker for the address and tag, if present.
func (l *RequestLedger) RemoveFulfilled(addr, tag string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if tags, ok := l.fulfilled[addr]; ok {
		delete(tags, tag)
		if len(tags) == 0 {
			delete(l.fulfilled, addr)
		}
	}
	_ = l.db.Delete(makeKey(addr, tag))
}

// CleanupExpired drops all markers whose expiry has passed.
func (l *RequestLedger) CleanupExpired() {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	now := l.now()
	for addr, tags := range l.fulfilled {
		for tag, expiry := range tags {
			if !expiry.After(now) {
				delete(tags, tag)
				_ = l.db.Delete(makeKey(addr, tag))
			}
		}
		if len(tags) == 0 {
			delete(l.fulfilled, addr)
		}
	}
}

// Size returns the number of live markers, mainly for diagnostics.
func (l *RequestLedger) Size() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	n := 0
	for _, tags := range l.fulfilled {
		n += len(tags)
	}
	return n
}

// Keys are "addr|tag". Addresses contain no '|', tags are fixed constants.
func makeKey(addr, tag string) []byte {
	return []byte(addr + "|" + tag)
}

func splitKey(key []byte) (addr, tag string, ok bool) {
	s := string(key)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '|' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
