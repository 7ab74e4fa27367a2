package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/portal-session/internal/domain"
)

// NoticeRepository lists published notices.
type NoticeRepository interface {
	Publish(ctx context.Context, notice *domain.Notice) error
	List(ctx context.Context, includeMembersOnly bool) ([]domain.Notice, error)
}

type memoryNoticeRepository struct {
	mu      sync.RWMutex
	nextID  int64
	notices []domain.Notice
}

// NewMemoryNoticeRepository returns an in-process implementation.
func NewMemoryNoticeRepository() NoticeRepository {
	return &memoryNoticeRepository{}
}

func (r *memoryNoticeRepository) Publish(_ context.Context, notice *domain.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	notice.ID = r.nextID
	r.notices = append(r.notices, *notice)
	return nil
}

// List returns pinned notices first, then newest first.
func (r *memoryNoticeRepository) List(_ context.Context, includeMembersOnly bool) ([]domain.Notice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Notice, 0, len(r.notices))
	for _, n := range r.notices {
		if n.MembersOnly && !includeMembersOnly {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
