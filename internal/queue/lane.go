// Package queue serializes conversation turns per chat.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyChatID is returned when Do is called with an empty chat ID.
var ErrEmptyChatID = errors.New("queue: chat ID must not be empty")

// laneBufferSize is the capacity of each lane's work channel.
// Tests in this package may override it to exercise full-buffer paths.
var laneBufferSize = 4096

// turn is a unit of work submitted to a lane.
type turn struct {
	ctx  context.Context
	fn   func() error
	done chan error
}

// lane runs one chat's turns sequentially via a single goroutine.
type lane struct {
	work chan turn
}

// run processes turns from the work channel in FIFO order. A turn whose
// context expired while queued is skipped with its context error.
func (l *lane) run() {
	for item := range l.work {
		if item.ctx.Err() != nil {
			item.done <- item.ctx.Err()
			continue
		}
		item.done <- l.safeExec(item.fn)
	}
}

// safeExec runs fn and recovers panics, converting them to errors so one
// broken turn cannot kill the chat's worker.
func (l *lane) safeExec(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: panic: %v", r)
		}
	}()
	return fn()
}

// LaneQueue gives every chat its own FIFO lane. Turns within one chat never
// overlap; turns in different chats run concurrently. Each lane is a single
// worker goroutine behind a buffered channel.
type LaneQueue struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// NewLaneQueue creates a LaneQueue ready for use.
func NewLaneQueue() *LaneQueue {
	return &LaneQueue{
		lanes: make(map[string]*lane),
	}
}

// Do executes fn serially within the chat's lane. It blocks until the turn
// completes or the context is cancelled. Returns the error from fn, or
// ctx.Err() if the context is cancelled while waiting.
func (q *LaneQueue) Do(ctx context.Context, chatID string, fn func() error) error {
	if chatID == "" {
		return ErrEmptyChatID
	}

	l := q.laneFor(chatID)
	item := turn{
		ctx:  ctx,
		fn:   fn,
		done: make(chan error, 1),
	}

	select {
	case l.work <- item:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// laneFor returns the chat's lane, starting a worker for it on first use.
func (q *LaneQueue) laneFor(chatID string) *lane {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[chatID]; ok {
		return l
	}
	l := &lane{
		work: make(chan turn, laneBufferSize),
	}
	q.lanes[chatID] = l
	go l.run()
	return l
}

// LaneCount returns the number of chats with active lanes.
func (q *LaneQueue) LaneCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}
