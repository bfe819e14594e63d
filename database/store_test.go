package database

import (
	"database/sql"
	"fmt"
	"math/big"
	"testing"

	"ring-settler/ring"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	alice = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0xa000000000000000000000000000000000000002")
	token = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

func newTestStore(t *testing.T) *Store {
	db, err := ConnectAndInitializeTestDB()
	require.NoError(t, err)
	return NewStore(db)
}

func TestSpendableIsMinOfBalanceAndAllowance(t *testing.T) {
	store := newTestStore(t)

	spendable, err := store.Spendable(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(0), spendable.Int64())

	require.NoError(t, store.SetBalance(alice, token, big.NewInt(100), big.NewInt(30)))
	spendable, err = store.Spendable(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(30), spendable.Int64())

	require.NoError(t, store.SetBalance(alice, token, big.NewInt(100), big.NewInt(500)))
	spendable, err = store.Spendable(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(100), spendable.Int64())
}

func TestTransfer(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetBalance(alice, token, big.NewInt(100), big.NewInt(100)))

	require.NoError(t, store.Transfer(alice, bob, token, big.NewInt(40)))

	balance, err := store.BalanceOf(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance.Int64())

	// The allowance is consumed along with the balance.
	spendable, err := store.Spendable(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(60), spendable.Int64())

	balance, err = store.BalanceOf(bob, token)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.Int64())

	// The receiver got tokens but granted no allowance.
	spendable, err = store.Spendable(bob, token)
	require.NoError(t, err)
	assert.Equal(t, int64(0), spendable.Int64())
}

func TestTransferInsufficient(t *testing.T) {
	store := newTestStore(t)

	// Unknown sender.
	assert.Error(t, store.Transfer(alice, bob, token, big.NewInt(1)))

	// Balance covers the amount, allowance does not.
	require.NoError(t, store.SetBalance(alice, token, big.NewInt(100), big.NewInt(10)))
	assert.Error(t, store.Transfer(alice, bob, token, big.NewInt(50)))

	// Allowance covers the amount, balance does not.
	require.NoError(t, store.SetBalance(alice, token, big.NewInt(10), big.NewInt(100)))
	assert.Error(t, store.Transfer(alice, bob, token, big.NewInt(50)))

	// Nothing moved.
	balance, err := store.BalanceOf(bob, token)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Int64())
}

func TestTransferSelfChecksFunds(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetBalance(alice, token, big.NewInt(10), big.NewInt(10)))

	require.NoError(t, store.Transfer(alice, alice, token, big.NewInt(10)))
	assert.Error(t, store.Transfer(alice, alice, token, big.NewInt(11)))

	balance, err := store.BalanceOf(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Int64())
}

func TestAddFilledAccumulates(t *testing.T) {
	store := newTestStore(t)
	hash := crypto.Keccak256Hash([]byte("order"))

	filled, err := store.CumulativeFilled(hash)
	require.NoError(t, err)
	assert.Equal(t, int64(0), filled.Int64())

	require.NoError(t, store.AddFilled(hash, big.NewInt(30)))
	require.NoError(t, store.AddFilled(hash, big.NewInt(12)))

	filled, err = store.CumulativeFilled(hash)
	require.NoError(t, err)
	assert.Equal(t, int64(42), filled.Int64())
}

func TestCancelOrderIdempotent(t *testing.T) {
	store := newTestStore(t)
	hash := crypto.Keccak256Hash([]byte("order"))

	cancelled, err := store.IsCancelled(hash)
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, store.CancelOrder(hash))
	require.NoError(t, store.CancelOrder(hash))

	cancelled, err = store.IsCancelled(hash)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestNextRingIndexSequence(t *testing.T) {
	store := newTestStore(t)

	for want := uint64(0); want < 3; want++ {
		index, err := store.NextRingIndex()
		require.NoError(t, err)
		assert.Equal(t, want, index)
	}
}

func TestWithinTransactionRollsBack(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetBalance(alice, token, big.NewInt(100), big.NewInt(100)))
	hash := crypto.Keccak256Hash([]byte("order"))

	failure := fmt.Errorf("abort")
	err := store.WithinTransaction(func(ledger ring.Ledger) error {
		require.NoError(t, ledger.Transfer(alice, bob, token, big.NewInt(40)))
		require.NoError(t, ledger.AddFilled(hash, big.NewInt(40)))
		if _, err := ledger.NextRingIndex(); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	balance, err := store.BalanceOf(alice, token)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Int64())

	filled, err := store.CumulativeFilled(hash)
	require.NoError(t, err)
	assert.Equal(t, int64(0), filled.Int64())

	index, err := store.NextRingIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), index)
}

func TestWithinTransactionCommits(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetBalance(alice, token, big.NewInt(100), big.NewInt(100)))

	err := store.WithinTransaction(func(ledger ring.Ledger) error {
		return ledger.Transfer(alice, bob, token, big.NewInt(40))
	})
	require.NoError(t, err)

	balance, err := store.BalanceOf(bob, token)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance.Int64())
}

// Ledger reads must lock the rows they will rewrite, otherwise two
// concurrent settlements both read the pre-settlement balance and both
// commit. The generated SQL carries the lock on mysql; sqlite serializes
// writers itself and gets a plain read.
func TestLedgerReadsLockForUpdate(t *testing.T) {
	// sql.Open does not connect; with version initialization skipped and
	// DryRun set, gorm only builds statements.
	sqlDB, err := sql.Open("mysql", "settler:settler@tcp(localhost:3306)/ring_settler")
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(
		gormMysql.New(gormMysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true, Logger: gormlogger.Default.LogMode(gormlogger.Silent)},
	)
	require.NoError(t, err)

	mysqlStore := NewStore(db)
	var balance Balance
	stmt := mysqlStore.forUpdate().Where(&Balance{Owner: addressKey(alice)}).Find(&balance).Statement
	assert.Contains(t, stmt.SQL.String(), "FOR UPDATE")

	sqliteStore := newTestStore(t)
	stmt = sqliteStore.forUpdate().Where(&Balance{Owner: addressKey(alice)}).Find(&balance).Statement
	assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
}

func TestRingEventsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	ringHash := crypto.Keccak256Hash([]byte("ring"))
	orderHash := crypto.Keccak256Hash([]byte("order"))

	require.NoError(t, store.RingSettled(&ring.RingSettledEvent{
		RingIndex:    0,
		RingHash:     ringHash,
		Miner:        alice,
		FeeRecipient: bob,
	}))
	require.NoError(t, store.OrderFilled(&ring.OrderFilledEvent{
		RingIndex: 0,
		OrderHash: orderHash,
		AmountS:   big.NewInt(95),
		AmountB:   big.NewInt(90),
		LrcReward: big.NewInt(0),
		LrcFee:    big.NewInt(9),
		SplitS:    big.NewInt(0),
		SplitB:    big.NewInt(0),
	}))

	settled, fills, err := store.RingEvents(0)
	require.NoError(t, err)
	assert.Equal(t, hashKey(ringHash), settled.RingHash)
	assert.Equal(t, addressKey(alice), settled.Miner)
	assert.Equal(t, addressKey(bob), settled.FeeRecipient)

	require.Len(t, fills, 1)
	assert.Equal(t, hashKey(orderHash), fills[0].OrderHash)
	assert.Equal(t, "95", fills[0].AmountS)
	assert.Equal(t, "9", fills[0].LrcFee)
}
