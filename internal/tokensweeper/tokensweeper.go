// Package tokensweeper purges the access tokens of deleted users in the
// background. Deletions are queued and flushed in batches on a ticker.
package tokensweeper

import (
	"context"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/blogsbook/internal/logger"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

type tokensPurger interface {
	DeleteAccessTokensByUserIDs(ctx context.Context, userIDs []string) (int64, error)
}

type TokenSweeper struct {
	queue                    chan string
	db                       tokensPurger
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
	done                     chan struct{}
}

func New(
	db tokensPurger,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *TokenSweeper {
	return &TokenSweeper{
		db:                       db,
		queue:                    make(chan string, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
		done:                     make(chan struct{}),
	}
}

// ListenErrors passes every purge failure to callback until the sweeper stops.
func (s *TokenSweeper) ListenErrors(callback func(error)) {
	go func() {
		for err := range s.errorChannel {
			callback(err)
		}
	}()
}

// EnqueueJob queues the users of job for purging. It blocks while the queue is full.
func (s *TokenSweeper) EnqueueJob(job *models.AccessTokensPurgeJob) {
	for _, userID := range job.UserIDs {
		s.queue <- userID
	}
}

func (s *TokenSweeper) flush(ctx context.Context, userIDs []string) bool {
	if len(userIDs) == 0 {
		return true
	}

	removed, err := s.db.DeleteAccessTokensByUserIDs(ctx, funk.UniqString(userIDs))
	if err != nil {
		select {
		case s.errorChannel <- err:
		default:
			logger.Log.Debugln("Error calling the `s.db.DeleteAccessTokensByUserIDs()`: ", err)
		}
		return false
	}
	logger.Log.Infof("purged %d access tokens of %d deleted users", removed, len(userIDs))

	return true
}

func (s *TokenSweeper) drain(userIDs []string) []string {
	for {
		select {
		case userID := <-s.queue:
			userIDs = append(userIDs, userID)
		default:
			return userIDs
		}
	}
}

// Run starts the sweeping loop. When ctx is cancelled the queued users are
// flushed one last time and Done is closed.
func (s *TokenSweeper) Run(ctx context.Context) {
	go func() {
		defer close(s.done)
		defer close(s.errorChannel)

		ticker := time.NewTicker(s.delayBetweenQueueFetches)
		defer ticker.Stop()

		var userIDs []string

		for {
			select {
			case userID := <-s.queue:
				userIDs = append(userIDs, userID)
			case <-ticker.C:
				if s.flush(ctx, userIDs) {
					userIDs = nil
				}
			case <-ctx.Done():
				s.flush(context.Background(), s.drain(userIDs))
				return
			}
		}
	}()
}

// Done is closed once Run has finished its final flush.
func (s *TokenSweeper) Done() <-chan struct{} {
	return s.done
}
