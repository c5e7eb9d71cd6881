package store

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/reinodovo/boto-heapsort/internal/database"
)

const sortingsBucket = "sortings"

const (
	VoteA = -1
	VoteB = 1
)

// CompareResult is one pairwise question asked to the chat. Votes maps a
// participant to VoteA or VoteB.
type CompareResult struct {
	Id        string
	A, B      string
	Votes     map[int64]int
	MessageId int
}

// Sorting is the session of a chat. Started is set once somebody presses
// Start and stays set until the session is reset.
type Sorting struct {
	ChatId         int64
	Items          []string
	Users          map[int64]string
	CompareResults map[string]CompareResult
	LastMessageId  int
	Started        bool
}

type Store struct {
	// mtx serialises read-modify-write cycles made through Update.
	mtx sync.Mutex
	db  database.Database
}

func NewStore(db database.Database) *Store {
	return &Store{db: db}
}

func NewSorting(chatId int64) Sorting {
	return Sorting{
		ChatId:         chatId,
		Users:          make(map[int64]string),
		CompareResults: make(map[string]CompareResult),
	}
}

// FindCompareResult looks up the question for a and b in either order.
// reversed is true when the stored question is (b, a).
func (s Sorting) FindCompareResult(a, b string) (result CompareResult, reversed bool, ok bool) {
	for _, r := range s.CompareResults {
		if r.A == a && r.B == b {
			return r, false, true
		}
		if r.A == b && r.B == a {
			return r, true, true
		}
	}
	return CompareResult{}, false, false
}

func (s *Store) GetSorting(chatId int64) (Sorting, error) {
	sorting := Sorting{}
	err := s.db.GetObject(sortingsBucket, fmt.Sprintf("%v", chatId), &sorting)
	if errors.Is(err, database.ErrKeyNotFound) {
		return NewSorting(chatId), nil
	}
	if err != nil {
		return sorting, errors.Wrapf(err, "loading sorting for chat %d", chatId)
	}
	// decoders leave empty maps nil
	if sorting.Users == nil {
		sorting.Users = make(map[int64]string)
	}
	if sorting.CompareResults == nil {
		sorting.CompareResults = make(map[string]CompareResult)
	}
	for id, r := range sorting.CompareResults {
		if r.Votes == nil {
			r.Votes = make(map[int64]int)
			sorting.CompareResults[id] = r
		}
	}
	return sorting, nil
}

func (s *Store) SaveSorting(chatId int64, sorting Sorting) error {
	return errors.Wrapf(s.db.SaveObject(sortingsBucket, fmt.Sprintf("%v", chatId), sorting), "saving sorting for chat %d", chatId)
}

func (s *Store) ResetSorting(chatId int64) error {
	return s.SaveSorting(chatId, NewSorting(chatId))
}

// Update loads the chat's sorting, applies fn and saves the result. Updates
// on the same Store never interleave. Nothing is saved when fn fails.
func (s *Store) Update(chatId int64, fn func(sorting *Sorting) error) (Sorting, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sorting, err := s.GetSorting(chatId)
	if err != nil {
		return sorting, err
	}
	if err := fn(&sorting); err != nil {
		return sorting, err
	}
	return sorting, s.SaveSorting(chatId, sorting)
}
