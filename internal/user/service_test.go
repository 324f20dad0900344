package user

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/billsafe/internal/calendar"
	"github.com/Proton-105/billsafe/internal/domain"
	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/internal/repository"
)

var now = time.Date(2025, time.October, 10, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockRepo) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockRepo) Relink(ctx context.Context, oldID, newID string) error {
	return m.Called(ctx, oldID, newID).Error(0)
}

func ptr(s string) *string { return &s }

func TestUpsertCreatesNewUser(t *testing.T) {
	repo := new(mockRepo)
	repo.On("FindByID", mock.Anything, "uid-1").Return(nil, repository.ErrNotFound)
	repo.On("FindByEmail", mock.Anything, "a@example.com").Return(nil, repository.ErrNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil).Once()

	svc := NewService(repo, calendar.FixedClock(now), testLogger())
	user, err := svc.Upsert(context.Background(), "uid-1", UpsertInput{Email: "a@example.com", Name: ptr("Asha"), PushToken: "device-1"})
	require.NoError(t, err)

	assert.Equal(t, "uid-1", user.ID)
	assert.True(t, user.NotificationsEnabled)
	assert.Equal(t, "INR", user.Currency)
	assert.True(t, user.CanReceivePush())
	assert.Equal(t, now, user.CreatedAt)
}

func TestUpsertKeepsOmittedFields(t *testing.T) {
	repo := new(mockRepo)
	stored := &domain.User{ID: "uid-1", Email: "a@example.com", Name: "Asha", Phone: "+9100000", PushToken: "device-1", NotificationsEnabled: true}
	repo.On("FindByID", mock.Anything, "uid-1").Return(stored, nil)
	repo.On("Update", mock.Anything, stored).Return(nil).Once()

	svc := NewService(repo, calendar.FixedClock(now), testLogger())
	user, err := svc.Upsert(context.Background(), "uid-1", UpsertInput{Email: "new@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "+9100000", user.Phone)
	assert.Equal(t, "device-1", user.PushToken)
	repo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestUpsertRelinksByEmail(t *testing.T) {
	repo := new(mockRepo)
	old := &domain.User{ID: "uid-old", Email: "a@example.com", PushToken: "device-1", NotificationsEnabled: true}
	repo.On("FindByID", mock.Anything, "uid-new").Return(nil, repository.ErrNotFound)
	repo.On("FindByEmail", mock.Anything, "a@example.com").Return(old, nil)
	repo.On("Relink", mock.Anything, "uid-old", "uid-new").Return(nil).Once()
	repo.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == "uid-new" && u.PushToken == "device-2"
	})).Return(nil).Once()

	svc := NewService(repo, calendar.FixedClock(now), testLogger())
	user, err := svc.Upsert(context.Background(), "uid-new", UpsertInput{Email: "a@example.com", PushToken: "device-2"})
	require.NoError(t, err)
	assert.Equal(t, "uid-new", user.ID)
	repo.AssertExpectations(t)
}

func TestUpsertValidation(t *testing.T) {
	svc := NewService(new(mockRepo), calendar.FixedClock(now), testLogger())

	for _, in := range []struct {
		uid   string
		email string
	}{
		{uid: "", email: "a@example.com"},
		{uid: "uid-1", email: ""},
		{uid: "uid-1", email: "not-an-email"},
	} {
		_, err := svc.Upsert(context.Background(), in.uid, UpsertInput{Email: in.email})

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	}
}

func TestSetNotifications(t *testing.T) {
	repo := new(mockRepo)
	stored := &domain.User{ID: "uid-1", PushToken: "device-1", NotificationsEnabled: true}
	repo.On("FindByID", mock.Anything, "uid-1").Return(stored, nil)
	repo.On("FindByID", mock.Anything, "ghost").Return(nil, repository.ErrNotFound)
	repo.On("Update", mock.Anything, stored).Return(nil).Once()

	svc := NewService(repo, calendar.FixedClock(now), testLogger())

	user, err := svc.SetNotifications(context.Background(), "uid-1", false)
	require.NoError(t, err)
	assert.False(t, user.CanReceivePush())

	_, err = svc.SetNotifications(context.Background(), "ghost", false)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}
