// Package lock serialises work on shared keys such as one estimate row or
// one user's reliability counters.
package lock

import (
	"context"
	"fmt"
	"sort"
)

// Locker acquires exclusive ownership of a set of keys. Keys are taken in
// sorted order so overlapping sets cannot deadlock. When the keys cannot be
// taken within the locker's timeout Acquire returns an *apperr.Error of kind
// ErrConcurrencyConflict.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// UserKey is the lock key of one user's reliability record.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// EstimateKey is the lock key of one (operation, station) estimate.
func EstimateKey(operationID, stationID int64) string {
	return fmt.Sprintf("estimate:%d:%d", operationID, stationID)
}

// OperationKey is the lock key of a run that has no operation row yet.
func OperationKey(trainNumber, date string) string {
	return fmt.Sprintf("operation:%s:%s", trainNumber, date)
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func releaseAll(releases []func()) func() {
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
