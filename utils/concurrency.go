package utils

import (
	"sync"
)

// WorkerPool bounds the number of goroutines running submitted jobs.
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool running at most maxWorkers jobs at once.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	maxWorkers = max(1, maxWorkers)
	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Size returns the concurrency cap.
func (wp *WorkerPool) Size() int {
	return wp.maxWorkers
}

// Submit enqueues a job for execution in the pool. It blocks while the pool
// is full.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Result pairs an item's output with its error.
type Result[R any] struct {
	Value R
	Err   error
}

// Map runs fn over items on the pool and returns results in input order.
// Items for which skip returns true at dispatch time are not run and keep a
// zero Result; skip may be nil.
func Map[T, R any](wp *WorkerPool, items []T, skip func() bool, fn func(index int, item T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	for i, item := range items {
		if skip != nil && skip() {
			break
		}
		i, item := i, item
		wp.Submit(func() {
			v, err := fn(i, item)
			results[i] = Result[R]{Value: v, Err: err}
		})
	}
	wp.Wait()
	return results
}

// StringSet is a thread-safe set of strings, used for URLs and fingerprints.
type StringSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewStringSet creates an empty StringSet.
func NewStringSet() *StringSet {
	return &StringSet{seen: make(map[string]struct{})}
}

// Add returns true if s was newly added, false if already present.
func (s *StringSet) Add(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[v]; exists {
		return false
	}
	s.seen[v] = struct{}{}
	return true
}

// Contains returns true if v has already been added.
func (s *StringSet) Contains(v string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[v]
	return exists
}

// Size returns the number of unique values tracked.
func (s *StringSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Unique returns values with duplicates removed, keeping first occurrences
// in order. Empty strings are dropped.
func Unique(values []string) []string {
	set := NewStringSet()
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || !set.Add(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
