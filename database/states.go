package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/pkg/errors"
)

const (
	NextRingIndexState string = "next_ring_index"
)

var stateNames = []string{
	NextRingIndexState,
}

// State captures engine counters, currently only the next ring sequence
// index. Kept as named rows so further counters can be added without
// migrations.
type State struct {
	BaseEntity
	Name    string `gorm:"type:varchar(50);index"`
	Index   uint64
	Updated time.Time
}

func (s *State) UpdateIndex(newIndex uint64) {
	s.Index = newIndex
	s.Updated = time.Now()
}

func fetchState(db *gorm.DB, name string) (*State, error) {
	var currentState State
	err := db.Where(&State{Name: name}).First(&currentState).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetchState")
	}
	return &currentState, nil
}

func initStates(db *gorm.DB) error {
	for _, name := range stateNames {
		_, err := fetchState(db, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "initStates")
		}

		s := &State{Name: name}
		s.UpdateIndex(0)
		if err := db.Create(s).Error; err != nil {
			return errors.Wrap(err, "initStates: Create")
		}
	}

	return nil
}
