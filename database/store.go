package database

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"ring-settler/ring"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements the settlement engine's ledger collaborators on top of
// gorm. A Store handed out by WithinTransaction shares one database
// transaction, so every mutation of a settlement commits or rolls back as a
// unit.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTransaction(fn func(ring.Ledger) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// forUpdate locks the fetched rows for the rest of the transaction, so two
// concurrent settlements touching the same balances, fills or counters
// serialize instead of both reading the pre-settlement state. SQLite has a
// single writer and does not accept the locking syntax.
func (s *Store) forUpdate() *gorm.DB {
	if s.db.Dialector.Name() == "sqlite" {
		return s.db
	}
	return s.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func hashKey(hash common.Hash) string {
	return strings.ToLower(hash.Hex())
}

func decodeAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("decodeAmount: invalid amount %q", s)
	}
	return amount, nil
}

func (s *Store) fetchBalance(owner, token common.Address) (*Balance, error) {
	var balance Balance
	err := s.forUpdate().Where(&Balance{Owner: addressKey(owner), Token: addressKey(token)}).First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// Spendable returns min(balance, allowance) - the most the settler is
// entitled to move for this owner and token. Unknown accounts hold zero.
func (s *Store) Spendable(owner, token common.Address) (*big.Int, error) {
	balance, err := s.fetchBalance(owner, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Spendable")
	}

	amount, err := decodeAmount(balance.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "Spendable")
	}
	allowance, err := decodeAmount(balance.Allowance)
	if err != nil {
		return nil, errors.Wrap(err, "Spendable")
	}

	if amount.Cmp(allowance) > 0 {
		return allowance, nil
	}
	return amount, nil
}

// BalanceOf returns the raw token balance, ignoring the allowance.
func (s *Store) BalanceOf(owner, token common.Address) (*big.Int, error) {
	balance, err := s.fetchBalance(owner, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "BalanceOf")
	}

	amount, err := decodeAmount(balance.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "BalanceOf")
	}
	return amount, nil
}

// SetBalance creates or replaces an account's balance and allowance.
func (s *Store) SetBalance(owner, token common.Address, amount, allowance *big.Int) error {
	balance, err := s.fetchBalance(owner, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = &Balance{Owner: addressKey(owner), Token: addressKey(token)}
	} else if err != nil {
		return errors.Wrap(err, "SetBalance")
	}

	balance.Amount = amount.String()
	balance.Allowance = allowance.String()

	if err := s.db.Save(balance).Error; err != nil {
		return errors.Wrap(err, "SetBalance")
	}
	return nil
}

// Transfer debits the sender's balance and allowance and credits the
// receiver. The debit fails if either the balance or the approved allowance
// does not cover the amount.
func (s *Store) Transfer(from, to, token common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("Transfer: negative amount %s", amount)
	}
	if amount.Sign() == 0 || from == to {
		// Still require the sender to hold the amount for a self transfer.
		spendable, err := s.Spendable(from, token)
		if err != nil {
			return err
		}
		if spendable.Cmp(amount) < 0 {
			return fmt.Errorf("Transfer: %s spendable %s of %s %s", from, spendable, amount, token)
		}
		return nil
	}

	fromBalance, err := s.fetchBalance(from, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("Transfer: %s holds no %s", from, token)
	}
	if err != nil {
		return errors.Wrap(err, "Transfer")
	}

	held, err := decodeAmount(fromBalance.Amount)
	if err != nil {
		return errors.Wrap(err, "Transfer")
	}
	allowed, err := decodeAmount(fromBalance.Allowance)
	if err != nil {
		return errors.Wrap(err, "Transfer")
	}
	if held.Cmp(amount) < 0 || allowed.Cmp(amount) < 0 {
		return fmt.Errorf("Transfer: %s holds %s (allowance %s) of %s %s",
			from, held, allowed, amount, token)
	}

	fromBalance.Amount = new(big.Int).Sub(held, amount).String()
	fromBalance.Allowance = new(big.Int).Sub(allowed, amount).String()
	if err := s.db.Save(fromBalance).Error; err != nil {
		return errors.Wrap(err, "Transfer")
	}

	toBalance, err := s.fetchBalance(to, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		toBalance = &Balance{Owner: addressKey(to), Token: addressKey(token), Allowance: "0"}
		toBalance.Amount = "0"
	} else if err != nil {
		return errors.Wrap(err, "Transfer")
	}

	received, err := decodeAmount(toBalance.Amount)
	if err != nil {
		return errors.Wrap(err, "Transfer")
	}
	toBalance.Amount = new(big.Int).Add(received, amount).String()
	if err := s.db.Save(toBalance).Error; err != nil {
		return errors.Wrap(err, "Transfer")
	}

	return nil
}

func (s *Store) CumulativeFilled(orderHash common.Hash) (*big.Int, error) {
	var fill OrderFill
	err := s.forUpdate().Where(&OrderFill{OrderHash: hashKey(orderHash)}).First(&fill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "CumulativeFilled")
	}

	amount, err := decodeAmount(fill.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "CumulativeFilled")
	}
	return amount, nil
}

func (s *Store) AddFilled(orderHash common.Hash, amount *big.Int) error {
	var fill OrderFill
	err := s.forUpdate().Where(&OrderFill{OrderHash: hashKey(orderHash)}).First(&fill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fill = OrderFill{OrderHash: hashKey(orderHash), Amount: "0"}
	} else if err != nil {
		return errors.Wrap(err, "AddFilled")
	}

	total, err := decodeAmount(fill.Amount)
	if err != nil {
		return errors.Wrap(err, "AddFilled")
	}
	fill.Amount = new(big.Int).Add(total, amount).String()
	fill.Updated = time.Now()

	if err := s.db.Save(&fill).Error; err != nil {
		return errors.Wrap(err, "AddFilled")
	}
	return nil
}

func (s *Store) IsCancelled(orderHash common.Hash) (bool, error) {
	var count int64
	err := s.forUpdate().Model(&OrderCancellation{}).Where(&OrderCancellation{OrderHash: hashKey(orderHash)}).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "IsCancelled")
	}
	return count > 0, nil
}

// CancelOrder flags an order hash as cancelled. Idempotent; cancellation is
// permanent.
func (s *Store) CancelOrder(orderHash common.Hash) error {
	cancelled, err := s.IsCancelled(orderHash)
	if err != nil {
		return fmt.Errorf("CancelOrder: %w", err)
	}
	if cancelled {
		return nil
	}

	cancellation := OrderCancellation{OrderHash: hashKey(orderHash), Created: time.Now()}
	if err := s.db.Create(&cancellation).Error; err != nil {
		return errors.Wrap(err, "CancelOrder")
	}
	return nil
}

func (s *Store) NextRingIndex() (uint64, error) {
	state, err := fetchState(s.forUpdate(), NextRingIndexState)
	if err != nil {
		return 0, fmt.Errorf("NextRingIndex: %w", err)
	}

	index := state.Index
	state.UpdateIndex(index + 1)
	if err := s.db.Save(state).Error; err != nil {
		return 0, errors.Wrap(err, "NextRingIndex")
	}

	return index, nil
}

func (s *Store) RingSettled(event *ring.RingSettledEvent) error {
	row := RingSettled{
		RingIndex:    event.RingIndex,
		RingHash:     hashKey(event.RingHash),
		Miner:        addressKey(event.Miner),
		FeeRecipient: addressKey(event.FeeRecipient),
		Timestamp:    time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "RingSettled")
	}
	return nil
}

func (s *Store) OrderFilled(event *ring.OrderFilledEvent) error {
	row := OrderFilled{
		RingIndex: event.RingIndex,
		OrderHash: hashKey(event.OrderHash),
		AmountS:   event.AmountS.String(),
		AmountB:   event.AmountB.String(),
		LrcReward: event.LrcReward.String(),
		LrcFee:    event.LrcFee.String(),
		SplitS:    event.SplitS.String(),
		SplitB:    event.SplitB.String(),
		Timestamp: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrap(err, "OrderFilled")
	}
	return nil
}

// RingEvents returns the persisted events of one settled ring.
func (s *Store) RingEvents(ringIndex uint64) (*RingSettled, []OrderFilled, error) {
	var settled RingSettled
	err := s.db.Where("ring_index = ?", ringIndex).First(&settled).Error
	if err != nil {
		return nil, nil, errors.Wrap(err, "RingEvents")
	}

	var fills []OrderFilled
	err = s.db.Where("ring_index = ?", ringIndex).Order("id").Find(&fills).Error
	if err != nil {
		return nil, nil, errors.Wrap(err, "RingEvents")
	}

	return &settled, fills, nil
}
