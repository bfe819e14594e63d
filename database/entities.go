package database

import "time"

// BaseEntity is an abstract entity, all other entities should be derived from it
type BaseEntity struct {
	ID uint64 `gorm:"primaryKey"`
}

// Balance is one owner's holding of one token. Amounts are uint256 decimal
// strings; Allowance is the approval granted to the settler, so the
// spendable amount is min(Amount, Allowance).
type Balance struct {
	BaseEntity
	Owner     string `gorm:"type:varchar(42);uniqueIndex:idx_owner_token,priority:1"`
	Token     string `gorm:"type:varchar(42);uniqueIndex:idx_owner_token,priority:2"`
	Amount    string `gorm:"type:varchar(78)"`
	Allowance string `gorm:"type:varchar(78)"`
}

// OrderFill accumulates the total sell amount settled for an order hash.
type OrderFill struct {
	BaseEntity
	OrderHash string `gorm:"type:varchar(66);uniqueIndex"`
	Amount    string `gorm:"type:varchar(78)"`
	Updated   time.Time
}

type OrderCancellation struct {
	BaseEntity
	OrderHash string `gorm:"type:varchar(66);uniqueIndex"`
	Created   time.Time
}

// RingSettled and OrderFilled are the persisted settlement events.
type RingSettled struct {
	BaseEntity
	RingIndex    uint64 `gorm:"index"`
	RingHash     string `gorm:"type:varchar(66)"`
	Miner        string `gorm:"type:varchar(42);index"`
	FeeRecipient string `gorm:"type:varchar(42);index"`
	Timestamp    time.Time
}

type OrderFilled struct {
	BaseEntity
	RingIndex uint64 `gorm:"index"`
	OrderHash string `gorm:"type:varchar(66);index"`
	AmountS   string `gorm:"type:varchar(78)"`
	AmountB   string `gorm:"type:varchar(78)"`
	LrcReward string `gorm:"type:varchar(78)"`
	LrcFee    string `gorm:"type:varchar(78)"`
	SplitS    string `gorm:"type:varchar(78)"`
	SplitB    string `gorm:"type:varchar(78)"`
	Timestamp time.Time
}
