package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovoronin/pairline/internal/domain"
	"github.com/ovoronin/pairline/internal/domain/mocks"
)

func TestBroadcaster_TokenGate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	b := domain.NewBroadcaster(newFakeUserRepo(), mocks.NewMockSender(ctrl), "s3cret", time.Millisecond, testLogger())

	assert.ErrorIs(t, b.Enter(1, "wrong"), domain.ErrInvalidAdminToken)
	assert.False(t, b.TakeAwaiting(1))

	require.NoError(t, b.Enter(1, "s3cret"))
	assert.True(t, b.TakeAwaiting(1))
	// TakeAwaiting consumes the mode.
	assert.False(t, b.TakeAwaiting(1))

	assert.NoError(t, b.VerifyToken("s3cret"))
	assert.ErrorIs(t, b.VerifyToken("wrong"), domain.ErrInvalidAdminToken)
}

func TestBroadcaster_EmptyTokenRejectsEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	b := domain.NewBroadcaster(newFakeUserRepo(), mocks.NewMockSender(ctrl), "", time.Millisecond, testLogger())

	assert.ErrorIs(t, b.Enter(1, ""), domain.ErrInvalidAdminToken)
	assert.ErrorIs(t, b.VerifyToken(""), domain.ErrInvalidAdminToken)
}

func TestBroadcaster_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	b := domain.NewBroadcaster(newFakeUserRepo(), mocks.NewMockSender(ctrl), "s3cret", time.Millisecond, testLogger())

	assert.False(t, b.Cancel(1))
	require.NoError(t, b.Enter(1, "s3cret"))
	assert.True(t, b.Cancel(1))
	assert.False(t, b.TakeAwaiting(1))
}

func TestBroadcaster_RunTally(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := newFakeUserRepo(10, 20, 30)
	sender := mocks.NewMockSender(ctrl)
	payload := domain.TextPayload("maintenance tonight")

	sender.EXPECT().Send(gomock.Any(), int64(10), payload).Return(int64(1), nil)
	sender.EXPECT().Send(gomock.Any(), int64(20), payload).Return(int64(0), errors.New("blocked"))
	sender.EXPECT().Send(gomock.Any(), int64(30), payload).Return(int64(2), nil)

	b := domain.NewBroadcaster(users, sender, "s3cret", time.Millisecond, testLogger())
	report := b.Run(context.Background(), payload)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 1, report.Failure)
	assert.InDelta(t, 66.7, report.SuccessPercentage(), 0.1)
}

func TestBroadcaster_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := newFakeUserRepo(10, 20, 30)
	sender := mocks.NewMockSender(ctrl)
	payload := domain.TextPayload("hello")

	ctx, cancel := context.WithCancel(context.Background())
	sender.EXPECT().
		Send(gomock.Any(), int64(10), payload).
		DoAndReturn(func(context.Context, int64, domain.Payload) (int64, error) {
			cancel()
			return 1, nil
		})

	b := domain.NewBroadcaster(users, sender, "s3cret", time.Millisecond, testLogger())
	report := b.Run(ctx, payload)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 0, report.Failure)
}

func TestBroadcastReport_SuccessPercentage(t *testing.T) {
	assert.Equal(t, float64(0), domain.BroadcastReport{}.SuccessPercentage())
	assert.Equal(t, float64(100), domain.BroadcastReport{Total: 4, Success: 4}.SuccessPercentage())
	assert.Equal(t, float64(50), domain.BroadcastReport{Total: 4, Success: 2, Failure: 2}.SuccessPercentage())
}
