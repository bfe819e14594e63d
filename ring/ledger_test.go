package ring

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// fakeLedger is an in-memory Ledger for engine tests. Spendable is the raw
// balance; allowance handling is covered by the database store tests.
type fakeLedger struct {
	balances    map[string]*big.Int
	filled      map[common.Hash]*big.Int
	cancelled   map[common.Hash]bool
	nextRing    uint64
	ringEvents  []RingSettledEvent
	orderEvents []OrderFilledEvent
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:  make(map[string]*big.Int),
		filled:    make(map[common.Hash]*big.Int),
		cancelled: make(map[common.Hash]bool),
	}
}

func balanceKey(owner, token common.Address) string {
	return owner.Hex() + "/" + token.Hex()
}

func (l *fakeLedger) setBalance(owner, token common.Address, amount int64) {
	l.balances[balanceKey(owner, token)] = big.NewInt(amount)
}

func (l *fakeLedger) balance(owner, token common.Address) *big.Int {
	if b, ok := l.balances[balanceKey(owner, token)]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (l *fakeLedger) Spendable(owner, token common.Address) (*big.Int, error) {
	return l.balance(owner, token), nil
}

func (l *fakeLedger) Transfer(from, to, token common.Address, amount *big.Int) error {
	held := l.balance(from, token)
	if held.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s below %s", held, amount)
	}
	l.balances[balanceKey(from, token)] = held.Sub(held, amount)
	received := l.balance(to, token)
	l.balances[balanceKey(to, token)] = received.Add(received, amount)
	return nil
}

func (l *fakeLedger) CumulativeFilled(orderHash common.Hash) (*big.Int, error) {
	if f, ok := l.filled[orderHash]; ok {
		return new(big.Int).Set(f), nil
	}
	return big.NewInt(0), nil
}

func (l *fakeLedger) IsCancelled(orderHash common.Hash) (bool, error) {
	return l.cancelled[orderHash], nil
}

func (l *fakeLedger) AddFilled(orderHash common.Hash, amount *big.Int) error {
	total, _ := l.CumulativeFilled(orderHash)
	l.filled[orderHash] = total.Add(total, amount)
	return nil
}

func (l *fakeLedger) NextRingIndex() (uint64, error) {
	index := l.nextRing
	l.nextRing++
	return index, nil
}

func (l *fakeLedger) RingSettled(event *RingSettledEvent) error {
	l.ringEvents = append(l.ringEvents, *event)
	return nil
}

func (l *fakeLedger) OrderFilled(event *OrderFilledEvent) error {
	l.orderEvents = append(l.orderEvents, *event)
	return nil
}

func (l *fakeLedger) clone() *fakeLedger {
	c := newFakeLedger()
	for k, v := range l.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range l.filled {
		c.filled[k] = new(big.Int).Set(v)
	}
	for k, v := range l.cancelled {
		c.cancelled[k] = v
	}
	c.nextRing = l.nextRing
	c.ringEvents = append(c.ringEvents, l.ringEvents...)
	c.orderEvents = append(c.orderEvents, l.orderEvents...)
	return c
}

// snapshot captures balances and fills for byte-identical comparison after
// failed settlements.
func (l *fakeLedger) snapshot() map[string]string {
	snap := make(map[string]string)
	for k, v := range l.balances {
		snap["balance/"+k] = v.String()
	}
	for k, v := range l.filled {
		snap["filled/"+k.Hex()] = v.String()
	}
	return snap
}

// fakeStore applies transactions copy-on-write: mutations reach the backing
// ledger only if fn succeeds.
type fakeStore struct {
	ledger *fakeLedger
}

func (s *fakeStore) WithinTransaction(fn func(Ledger) error) error {
	work := s.ledger.clone()
	if err := fn(work); err != nil {
		return err
	}
	*s.ledger = *work
	return nil
}
