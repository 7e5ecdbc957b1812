package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teal-fm/beacon/metrics"
	"github.com/teal-fm/beacon/models"
	"github.com/teal-fm/beacon/oauth"
	"github.com/teal-fm/beacon/service/presence"
)

// UserStore is the slice of the user store the batch job needs
type UserStore interface {
	ListEnabledUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserCredentials(ctx context.Context, userID, accessToken, refreshToken string) error
	UpdateSessionToken(ctx context.Context, userID string, token *string) error
}

// CredentialRefresher exchanges a refresh token for a new credential pair
type CredentialRefresher interface {
	Refresh(ctx context.Context, userID, refreshToken string) (*oauth.Credentials, error)
}

// PresenceUpdater pushes activities to the user's headless session
type PresenceUpdater interface {
	Update(ctx context.Context, accessToken string, activities []*presence.Activity, sessionToken *string) (*presence.UpdateResult, error)
}

// Options tunes a Service
type Options struct {
	// Concurrency is the number of users processed in parallel. Values below 1 mean 1.
	Concurrency int
	// BatchTimeout bounds a whole run. Zero means no deadline.
	BatchTimeout time.Duration
}

// Service runs the batch presence refresh over every enabled user
type Service struct {
	store     UserStore
	refresher CredentialRefresher
	presence  PresenceUpdater
	opts      Options
	logger    *zap.SugaredLogger

	// serializes runs so a user is never processed by two runs at once
	runMu sync.Mutex
}

// NewService creates a batch refresh service
func NewService(store UserStore, refresher CredentialRefresher, updater PresenceUpdater, opts Options, logger *zap.SugaredLogger) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Service{
		store:     store,
		refresher: refresher,
		presence:  updater,
		opts:      opts,
		logger:    logger.Named("refresh"),
	}
}

// Run performs one batch pass. It only returns an error when the enabled
// users cannot be listed; every per-user failure is recorded in the result.
func (s *Service) Run(ctx context.Context) (*BatchResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := uuid.NewString()
	log := s.logger.With("run_id", runID)
	start := time.Now()

	users, err := s.store.ListEnabledUsers(ctx)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("aborted").Inc()
		log.Errorw("failed to list enabled users", "error", err)
		return nil, fmt.Errorf("failed to list enabled users: %w", err)
	}
	users = enabledOnly(users, log)

	runCtx := ctx
	if s.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.BatchTimeout)
		defer cancel()
	}

	log.Infow("starting batch presence refresh", "users", len(users), "concurrency", s.opts.Concurrency)

	outcomes := s.process(runCtx, users, log)
	result := fold(runID, outcomes)

	for _, o := range outcomes {
		label := "success"
		if o.err != nil {
			kind, _ := classify(o.err)
			label = string(kind)
		}
		metrics.BatchUsersTotal.WithLabelValues(label).Inc()
	}
	metrics.BatchRunsTotal.WithLabelValues("completed").Inc()
	metrics.BatchDuration.Observe(time.Since(start).Seconds())

	log.Infow("finished batch presence refresh",
		"success", result.Success,
		"failed", result.Failed,
		"duration", time.Since(start))

	return result, nil
}

// process fans users out to a bounded pool of workers. Each outcome lands in
// the slot of its user, so the caller sees them in listing order.
func (s *Service) process(ctx context.Context, users []*models.User, log *zap.SugaredLogger) []outcome {
	outcomes := make([]outcome, len(users))
	jobs := make(chan int)

	workers := min(s.opts.Concurrency, len(users))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				user := users[i]
				err := s.processUser(ctx, user)
				if err != nil {
					kind, _ := classify(err)
					log.Warnw("presence refresh failed", "user_id", user.ID, "kind", kind, "error", err)
				} else {
					log.Debugw("presence refreshed", "user_id", user.ID)
				}
				outcomes[i] = outcome{userID: user.ID, err: err}
			}
		}()
	}

	for i := range users {
		if ctx.Err() == nil {
			select {
			case jobs <- i:
				continue
			case <-ctx.Done():
			}
		}

		log.Warnw("batch deadline reached, remaining users not processed", "remaining", len(users)-i)
		for j := i; j < len(users); j++ {
			outcomes[j] = outcome{
				userID: users[j].ID,
				err:    &failure{kind: KindCancelled, message: "Batch ended before user was processed", err: ctx.Err()},
			}
		}
		break
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// processUser drives one user through build, refresh, update and reconcile.
// Any panic is converted into an Unexpected failure for this user only.
func (s *Service) processUser(ctx context.Context, user *models.User) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = unexpected("Unexpected error", fmt.Errorf("panic: %v", r))
		}
	}()

	// Validation does not depend on the credential, so a user who cannot be
	// processed never spends their single-use refresh token.
	activity, err := presence.BuildActivity(user)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return &failure{kind: KindCancelled, message: "Batch ended before user was processed", err: err}
	}

	// The provider spends the old refresh token as soon as it answers, so the
	// exchange and the write of the new pair must outlive a cancelled batch.
	persistCtx := context.WithoutCancel(ctx)
	creds, err := s.refresher.Refresh(persistCtx, user.ID, user.RefreshToken)
	if err != nil {
		return err
	}

	if err := s.store.UpdateUserCredentials(persistCtx, user.ID, creds.AccessToken, creds.RefreshToken); err != nil {
		return unexpected("Failed to persist refreshed credentials", err)
	}
	user.AccessToken = creds.AccessToken
	user.RefreshToken = creds.RefreshToken

	result, err := s.presence.Update(ctx, creds.AccessToken, []*presence.Activity{activity}, user.SessionToken)
	if err != nil {
		return err
	}

	if result.Token != "" && (user.SessionToken == nil || *user.SessionToken != result.Token) {
		token := result.Token
		if err := s.store.UpdateSessionToken(persistCtx, user.ID, &token); err != nil {
			return unexpected("Failed to persist session token", err)
		}
		user.SessionToken = &token
	}

	return nil
}

func enabledOnly(users []*models.User, log *zap.SugaredLogger) []*models.User {
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		if !u.Enabled {
			log.Warnw("store listed a disabled user, skipping", "user_id", u.ID)
			continue
		}
		out = append(out, u)
	}
	return out
}

// StartScheduler runs a batch immediately and then on every tick until ctx is done
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		s.runScheduled(ctx)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("presence refresh scheduler stopped")
				return
			case <-ticker.C:
				s.runScheduled(ctx)
			}
		}
	}()

	s.logger.Infof("presence refresh scheduler started with interval %v", interval)
}

func (s *Service) runScheduled(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		s.logger.Errorw("scheduled batch aborted", "error", err)
	}
}
