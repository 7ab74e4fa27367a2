package service

import (
	"context"

	"github.com/spec-kit/portal-session/internal/domain"
	"github.com/spec-kit/portal-session/internal/repository"
)

// ContentService serves portal notices.
type ContentService struct {
	notices repository.NoticeRepository
}

// NewContentService builds the service.
func NewContentService(notices repository.NoticeRepository) *ContentService {
	return &ContentService{notices: notices}
}

// Notices lists notices; signed-in callers also see members-only ones.
func (s *ContentService) Notices(ctx context.Context, signedIn bool) ([]domain.Notice, error) {
	return s.notices.List(ctx, signedIn)
}

// Publish adds a notice.
func (s *ContentService) Publish(ctx context.Context, notice *domain.Notice) error {
	return s.notices.Publish(ctx, notice)
}
