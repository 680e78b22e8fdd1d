package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"moviebot/internal/models"
)

// MockRedemptionLog keeps redemptions in memory
type MockRedemptionLog struct {
	mu          sync.RWMutex
	redemptions []models.Redemption
}

// NewMockRedemptionLog creates an empty redemption log
func NewMockRedemptionLog() *MockRedemptionLog {
	return &MockRedemptionLog{}
}

func (l *MockRedemptionLog) Initialize(ctx context.Context) error {
	return nil
}

// RecordRedemption appends a redemption
func (l *MockRedemptionLog) RecordRedemption(ctx context.Context, r models.Redemption) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.redemptions = append(l.redemptions, r)
	return nil
}

// Redemptions returns a copy of everything recorded so far
func (l *MockRedemptionLog) Redemptions() []models.Redemption {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Redemption, len(l.redemptions))
	copy(out, l.redemptions)
	return out
}

// Summary counts attempts and hits since the given time
func (l *MockRedemptionLog) Summary(ctx context.Context, since time.Time) (models.RedemptionSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var summary models.RedemptionSummary
	for _, r := range l.redemptions {
		if r.RedeemedAt.Before(since) {
			continue
		}
		summary.Attempts++
		if r.Found {
			summary.Found++
		}
	}
	return summary, nil
}

// TopCodes returns the most attempted codes since the given time
func (l *MockRedemptionLog) TopCodes(ctx context.Context, limit int, since time.Time) ([]models.CodeStat, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]uint64)
	for _, r := range l.redemptions {
		if r.RedeemedAt.Before(since) {
			continue
		}
		counts[r.Code]++
	}

	stats := make([]models.CodeStat, 0, len(counts))
	for code, n := range counts {
		stats = append(stats, models.CodeStat{Code: code, Attempts: n})
	}

	// Sort by count descending, then by code
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Attempts != stats[j].Attempts {
			return stats[i].Attempts > stats[j].Attempts
		}
		return stats[i].Code < stats[j].Code
	})

	if limit > 0 && limit < len(stats) {
		stats = stats[:limit]
	}
	return stats, nil
}

func (l *MockRedemptionLog) Close() error {
	return nil
}
