package service

import (
	"context"
	"time"

	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/session"
	"go.uber.org/zap"
)

// InboxResult distinguishes a failed load from an empty inbox.
type InboxResult struct {
	State         inbox.State
	Conversations []inbox.Conversation
	Err           error
}

type InboxService interface {
	Load(ctx context.Context, sess session.Session) InboxResult
}

type inboxService struct {
	messages MessageService
	profiles inbox.ProfileLookup
	m        *metrics.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewInboxService bounds the profile lookups of one load by timeout; rows
// whose lookup runs out of time get the placeholder identity.
func NewInboxService(messages MessageService, profiles inbox.ProfileLookup, m *metrics.Metrics, logger *zap.Logger, timeout time.Duration, now func() time.Time) InboxService {
	if now == nil {
		now = time.Now
	}
	return &inboxService{
		messages: messages,
		profiles: profiles,
		m:        m,
		logger:   logging.OrNop(logger),
		timeout:  timeout,
		now:      now,
	}
}

func (s *inboxService) Load(ctx context.Context, sess session.Session) InboxResult {
	view := inbox.NewInboxView(sess.UserID)
	msgs, err := s.messages.FetchInbox(ctx, sess)
	if err != nil {
		view = view.Apply(inbox.Failed(err))
		if s.m != nil {
			s.m.InboxLoadFailures.Inc()
		}
		s.logger.Warn("inbox load failed", zap.String("uid", sess.UserID), zap.Error(err))
		return InboxResult{State: view.State, Conversations: []inbox.Conversation{}, Err: view.Err}
	}
	view = view.Apply(inbox.Loaded(msgs))
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return InboxResult{
		State:         view.State,
		Conversations: inbox.Decorate(ctx, view.Summaries, s.profiles, s.now()),
	}
}
