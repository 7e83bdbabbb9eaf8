package netfulfilled

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"
)

func TestRequestLedgerBasic(t *testing.T) {
	ledger, err := NewRequestLedger(dbm.NewMemDB())
	require.NoError(t, err)

	const addr = "10.0.0.1:9999"

	require.False(t, ledger.HasFulfilled(addr, TagSporkSync))

	ledger.AddFulfilled(addr, TagSporkSync)
	require.True(t, ledger.HasFulfilled(addr, TagSporkSync))
	require.False(t, ledger.HasFulfilled(addr, TagNodeListSync))
	require.False(t, ledger.HasFulfilled("10.0.0.2:9999", TagSporkSync))

	ledger.RemoveFulfilled(addr, TagSporkSync)
	require.False(t, ledger.HasFulfilled(addr, TagSporkSync))
	require.Zero(t, ledger.Size())
}

func TestRequestLedgerExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	ledger, err := NewRequestLedger(dbm.NewMemDB(), WithTTL(time.Hour), WithClock(clock))
	require.NoError(t, err)

	const addr = "10.0.0.1:9999"
	ledger.AddFulfilled(addr, TagPaymentVoteSync)
	require.True(t, ledger.HasFulfilled(addr, TagPaymentVoteSync))

	now = now.Add(61 * time.Minute)
	require.False(t, ledger.HasFulfilled(addr, TagPaymentVoteSync))

	require.Equal(t, 1, ledger.Size())
	ledger.CleanupExpired()
	require.Zero(t, ledger.Size())
}

func TestRequestLedgerPersistence(t *testing.T) {
	db := dbm.NewMemDB()
	now := time.Now()
	clock := func() time.Time { return now }

	ledger, err := NewRequestLedger(db, WithTTL(time.Hour), WithClock(clock))
	require.NoError(t, err)

	ledger.AddFulfilled("10.0.0.1:9999", TagFullSync)
	ledger.AddFulfilled("10.0.0.2:9999", TagSporkSync)

	// a second ledger over the same db sees the markers
	reloaded, err := NewRequestLedger(db, WithTTL(time.Hour), WithClock(clock))
	require.NoError(t, err)
	require.True(t, reloaded.HasFulfilled("10.0.0.1:9999", TagFullSync))
	require.True(t, reloaded.HasFulfilled("10.0.0.2:9999", TagSporkSync))

	// expired markers are dropped on load
	now = now.Add(2 * time.Hour)
	expired, err := NewRequestLedger(db, WithTTL(time.Hour), WithClock(clock))
	require.NoError(t, err)
	require.Zero(t, expired.Size())
}

func TestRequestLedgerLoadDropsManyExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	db := dbm.NewMemDB()
	ledger, err := NewRequestLedger(db, WithTTL(time.Hour), WithClock(clock))
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		ledger.AddFulfilled(fmt.Sprintf("10.0.%d.%d:9999", i/100, i%100), TagSporkSync)
	}
	now = now.Add(2 * time.Hour) // every marker is now expired

	// Reloading must drop all of them and must not wedge on the backing
	// database, however many entries are pending deletion.
	var reloaded *RequestLedger
	done := make(chan struct{})
	go func() {
		defer close(done)
		reloaded, err = NewRequestLedger(db, WithTTL(time.Hour), WithClock(clock))
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ledger reload did not finish")
	}
	require.NoError(t, err)
	require.Zero(t, reloaded.Size())

	it, err := db.Iterator(nil, nil)
	require.NoError(t, err)
	defer it.Close()
	require.False(t, it.Valid(), "expired markers must be purged from the database")
}
