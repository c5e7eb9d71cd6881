package bot

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/reinodovo/boto-heapsort/internal/store"
)

var ErrSortingCancelled = errors.New("sorting cancelled")

const (
	optionA      = "a"
	optionB      = "b"
	optionRevoke = "revoke"
)

type CompareRequest struct {
	id     string
	a, b   string
	chatId int64
}

type CompareCallback func(req CompareRequest) error

// Comparator asks a chat to compare two items and waits until every
// participant agrees on the answer.
type Comparator struct {
	requests        chan CompareRequest
	compareCallback CompareCallback
	store           *store.Store
	logger          log.Logger
	metrics         *metrics

	mtx             sync.Mutex
	pendingRequests map[string]chan int
}

func NewComparator(compareCallback CompareCallback, store *store.Store, logger log.Logger, metrics *metrics) *Comparator {
	return &Comparator{
		requests:        make(chan CompareRequest),
		compareCallback: compareCallback,
		store:           store,
		logger:          logger,
		metrics:         metrics,
		pendingRequests: make(map[string]chan int),
	}
}

// Compare returns a negative number when the chat prefers a over b and a
// positive one otherwise. Identical items compare equal without a poll.
func (c *Comparator) Compare(ctx context.Context, a, b string, chatId int64) (int, error) {
	if a == b {
		return 0, nil
	}

	var (
		decided   bool
		result    int
		reversed  bool
		newPoll   *CompareRequest
		requestId string
	)
	resp := make(chan int, 1)

	// registering the pending request under the store lock means a vote is
	// either already saved or will find the request
	_, err := c.store.Update(chatId, func(sorting *store.Sorting) error {
		if cached, rev, ok := sorting.FindCompareResult(a, b); ok {
			reversed = rev
			if vote, unanimous := getVoteResult(sorting.Users, cached.Votes); unanimous {
				decided, result = true, vote
				return nil
			}
			requestId = cached.Id
			c.addPending(requestId, resp)
			return nil
		}

		requestId = uuid.New().String()
		sorting.CompareResults[requestId] = store.CompareResult{
			Id:    requestId,
			A:     a,
			B:     b,
			Votes: make(map[int64]int),
		}
		c.addPending(requestId, resp)
		newPoll = &CompareRequest{id: requestId, a: a, b: b, chatId: chatId}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sign := 1
	if reversed {
		sign = -1
	}

	if decided {
		c.metrics.comparisons.WithLabelValues(sourceCache).Inc()
		return sign * result, nil
	}
	c.metrics.comparisons.WithLabelValues(sourcePoll).Inc()

	if newPoll != nil {
		select {
		case c.requests <- *newPoll:
		case <-ctx.Done():
			c.removePending(requestId)
			return 0, ErrSortingCancelled
		}
	}

	select {
	case vote := <-resp:
		return sign * vote, nil
	case <-ctx.Done():
		c.removePending(requestId)
		return 0, ErrSortingCancelled
	}
}

func (c *Comparator) addPending(id string, resp chan int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.pendingRequests[id] = resp
}

func (c *Comparator) removePending(id string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.pendingRequests, id)
}

func (c *Comparator) resolve(id string, result int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if resp, ok := c.pendingRequests[id]; ok {
		resp <- result
		delete(c.pendingRequests, id)
	}
}

func (c *Comparator) receiveVote(chatId int64, requestId string, userId int64, option string) error {
	var (
		result    int
		unanimous bool
	)
	_, err := c.store.Update(chatId, func(sorting *store.Sorting) error {
		// ignore votes from users not participating in the poll
		if _, ok := sorting.Users[userId]; !ok {
			return nil
		}
		cmpResult, ok := sorting.CompareResults[requestId]
		if !ok {
			return nil
		}

		switch option {
		case optionA:
			cmpResult.Votes[userId] = store.VoteA
		case optionB:
			cmpResult.Votes[userId] = store.VoteB
		case optionRevoke:
			delete(cmpResult.Votes, userId)
		default:
			return errors.Errorf("unknown poll option %q", option)
		}
		c.metrics.votes.WithLabelValues(option).Inc()

		result, unanimous = getVoteResult(sorting.Users, cmpResult.Votes)
		return nil
	})
	if err != nil {
		return err
	}

	if unanimous {
		c.resolve(requestId, result)
	}
	return nil
}

// getVoteResult reports the common vote once every user has voted the same way.
func getVoteResult(users map[int64]string, votes map[int64]int) (int, bool) {
	if len(users) == 0 || len(users) != len(votes) {
		return 0, false
	}

	result := 0
	for userId := range users {
		vote, ok := votes[userId]
		if !ok {
			return 0, false
		}
		if result != 0 && result != vote {
			return 0, false
		}
		result = vote
	}
	return result, true
}

// Start hands new polls to the callback until Stop is called.
func (c *Comparator) Start() {
	for req := range c.requests {
		if err := c.compareCallback(req); err != nil {
			level.Error(c.logger).Log("msg", "failed to create poll", "chat", req.chatId, "request", req.id, "err", err)
		}
	}
}

// Stop ends Start. No Compare call may be running or made afterwards.
func (c *Comparator) Stop() {
	close(c.requests)
}
