// internal/warmer/warmer_test.go
package warmer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

// MockResolver is a mock of the Resolver interface.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolveActivity(ctx context.Context, usernames []string) (model.ActivityReport, error) {
	args := m.Called(ctx, usernames)
	return args.Get(0).(model.ActivityReport), args.Error(1)
}

func report(successful, failed int) model.ActivityReport {
	return model.ActivityReport{GlobalSummary: model.GlobalSummary{
		SuccessfulUsers: successful,
		FailedUsers:     failed,
		TotalUsers:      successful + failed,
	}}
}

func newTestWarmer(t *testing.T, resolver Resolver, usernames []string) *Warmer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWarmer(resolver, logger, usernames, time.Hour)
	require.NoError(t, err)
	return w
}

func TestNewWarmer_RejectsNonPositiveInterval(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewWarmer(new(MockResolver), logger, []string{"octocat"}, 0)
	assert.Error(t, err)
}

func TestWarmer_RunCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves all users in one batch", func(t *testing.T) {
		resolver := new(MockResolver)
		resolver.On("ResolveActivity", ctx, []string{"octocat", "hubot"}).Return(report(2, 0), nil).Once()

		newTestWarmer(t, resolver, []string{"octocat", "hubot"}).runCycle(ctx)

		resolver.AssertExpectations(t)
	})

	t.Run("splits large user lists into batches", func(t *testing.T) {
		usernames := make([]string, batchSize+1)
		for i := range usernames {
			usernames[i] = fmt.Sprintf("user-%d", i)
		}
		resolver := new(MockResolver)
		resolver.On("ResolveActivity", ctx, usernames[:batchSize]).Return(report(batchSize, 0), nil).Once()
		resolver.On("ResolveActivity", ctx, usernames[batchSize:]).Return(report(1, 0), nil).Once()

		newTestWarmer(t, resolver, usernames).runCycle(ctx)

		resolver.AssertExpectations(t)
	})

	t.Run("continues after a failed batch", func(t *testing.T) {
		usernames := make([]string, batchSize+1)
		for i := range usernames {
			usernames[i] = fmt.Sprintf("user-%d", i)
		}
		resolver := new(MockResolver)
		resolver.On("ResolveActivity", ctx, usernames[:batchSize]).Return(model.ActivityReport{}, errors.New("storage down")).Once()
		resolver.On("ResolveActivity", ctx, usernames[batchSize:]).Return(report(1, 0), nil).Once()

		newTestWarmer(t, resolver, usernames).runCycle(ctx)

		resolver.AssertExpectations(t)
	})

	t.Run("stops the cycle when the token is missing", func(t *testing.T) {
		usernames := make([]string, batchSize+1)
		for i := range usernames {
			usernames[i] = fmt.Sprintf("user-%d", i)
		}
		resolver := new(MockResolver)
		resolver.On("ResolveActivity", ctx, usernames[:batchSize]).Return(model.ActivityReport{}, apperrors.ErrMissingToken).Once()

		newTestWarmer(t, resolver, usernames).runCycle(ctx)

		resolver.AssertExpectations(t)
		resolver.AssertNumberOfCalls(t, "ResolveActivity", 1)
	})
}

func TestWarmer_StartReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	resolver := new(MockResolver)
	resolver.On("ResolveActivity", mock.Anything, []string{"octocat"}).
		Run(func(mock.Arguments) { cancel() }).
		Return(report(1, 0), nil).Once()

	w := newTestWarmer(t, resolver, []string{"octocat"})
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("warmer did not stop after cancellation")
	}
	resolver.AssertExpectations(t)
}
