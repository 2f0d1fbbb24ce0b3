package otp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/travel-otp-api/internal/domain"
	"github.com/travel-otp-api/internal/infrastructure/memory"
)

var _ Store = (*memory.Store)(nil)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, html, text string) error {
	return m.Called(ctx, to, subject, html, text).Error(0)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	args := m.Called(ctx, email)
	if r, _ := args.Get(0).(*domain.OTPRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockStore) Delete(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- builder ---

const testCode = "042917"

type fixture struct {
	svc    Service
	store  *memory.Store
	mailer *mockMailer
	clock  *fakeClock
}

func newFixture() *fixture {
	f := &fixture{
		store:  memory.NewStore(),
		mailer: &mockMailer{},
		clock:  &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
	}
	f.svc = NewService(ServiceDeps{
		Store:    f.store,
		Mailer:   f.mailer,
		Generate: func(int) (string, error) { return testCode, nil },
		Now:      f.clock.Now,
		Policy:   DefaultPolicy(),
	})
	return f
}

func (f *fixture) mailerOK(email string) {
	f.mailer.On("SendEmail", mock.Anything, email, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func requireCode(t *testing.T, err error, code domain.ErrorCode) *domain.OTPError {
	t.Helper()
	require.Error(t, err)
	oe, ok := domain.AsOTPError(err)
	require.True(t, ok, "expected *domain.OTPError, got %T", err)
	require.Equal(t, code, oe.Code)
	assert.NotEmpty(t, oe.Message)
	return oe
}

// --- SendOTP ---

func TestSendOTP_HappyPath_StoresFreshRecord(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")

	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	rec, err := f.store.Get(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, testCode, rec.Code)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, f.clock.Now(), rec.LastSentAt)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), rec.ExpiresAt)
	assert.NotEmpty(t, rec.ID)
	f.mailer.AssertExpectations(t)
}

func TestSendOTP_NormalizesEmail(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")

	require.NoError(t, f.svc.SendOTP(context.Background(), "  A@X.com"))

	_, err := f.store.Get(context.Background(), "a@x.com")
	assert.NoError(t, err)
}

func TestSendOTP_EmailCarriesSpacedCodeAndExpiry(t *testing.T) {
	f := newFixture()
	f.mailer.On("SendEmail", mock.Anything, "a@x.com",
		mock.MatchedBy(func(s string) bool { return s == "Travel Booking - Your verification code" }),
		mock.MatchedBy(func(h string) bool { return containsAll(h, "0 4 2 9 1 7", "10 minutes") }),
		mock.MatchedBy(func(txt string) bool { return containsAll(txt, "0 4 2 9 1 7", "10 minutes") }),
	).Return(nil)

	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))
	f.mailer.AssertExpectations(t)
}

func TestSendOTP_WithinCooldown_TooManyRequests(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	f.clock.Advance(15 * time.Second)
	err := f.svc.SendOTP(context.Background(), "a@x.com")

	oe := requireCode(t, err, domain.CodeTooManyRequests)
	assert.Equal(t, 45, oe.RetryAfter)
	f.mailer.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestSendOTP_RetryAfterRoundsUp(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	f.clock.Advance(59*time.Second + 500*time.Millisecond)
	oe := requireCode(t, f.svc.SendOTP(context.Background(), "a@x.com"), domain.CodeTooManyRequests)
	assert.Equal(t, 1, oe.RetryAfter)
}

func TestSendOTP_AfterCooldownWhileLive_AlreadySent(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	f.clock.Advance(2 * time.Minute)
	oe := requireCode(t, f.svc.SendOTP(context.Background(), "a@x.com"), domain.CodeOTPAlreadySent)
	assert.Contains(t, oe.Message, "8 more minute")
	f.mailer.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestSendOTP_AfterExpiry_ReplacesRecord(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))
	first, err := f.store.Get(context.Background(), "a@x.com")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	second, err := f.store.Get(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, f.clock.Now(), second.LastSentAt)
}

func TestSendOTP_DispatchFailure_RollsBack(t *testing.T) {
	f := newFixture()
	f.mailer.On("SendEmail", mock.Anything, "b@y.com", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp: 421 service not available")).Once()
	f.mailer.On("SendEmail", mock.Anything, "b@y.com", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Once()

	err := f.svc.SendOTP(context.Background(), "b@y.com")
	requireCode(t, err, domain.CodeEmailSendFailed)
	assert.Equal(t, 0, f.store.Len())

	// no cooldown or already-sent block survives the failed attempt
	require.NoError(t, f.svc.SendOTP(context.Background(), "b@y.com"))
	f.mailer.AssertExpectations(t)
}

func TestSendOTP_DispatchTimeout_TreatedAsFailure(t *testing.T) {
	f := newFixture()
	p := DefaultPolicy()
	p.SendTimeout = 20 * time.Millisecond
	f.svc = NewService(ServiceDeps{
		Store:    f.store,
		Mailer:   f.mailer,
		Generate: func(int) (string, error) { return testCode, nil },
		Now:      f.clock.Now,
		Policy:   p,
	})
	f.mailer.On("SendEmail", mock.Anything, "slow@x.com", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	err := f.svc.SendOTP(context.Background(), "slow@x.com")

	requireCode(t, err, domain.CodeEmailSendFailed)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, f.store.Len())
}

func TestSendOTP_GeneratorFailure_InternalError(t *testing.T) {
	f := newFixture()
	f.svc = NewService(ServiceDeps{
		Store:    f.store,
		Mailer:   f.mailer,
		Generate: func(int) (string, error) { return "", errors.New("entropy exhausted") },
		Now:      f.clock.Now,
	})

	oe := requireCode(t, f.svc.SendOTP(context.Background(), "a@x.com"), domain.CodeInternal)
	assert.NotContains(t, oe.Message, "entropy")
	assert.Equal(t, 0, f.store.Len())
	f.mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendOTP_StoreFailure_InternalError(t *testing.T) {
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com").Return(nil, errors.New("connection refused"))
	svc := NewService(ServiceDeps{Store: st, Mailer: &mockMailer{}})

	requireCode(t, svc.SendOTP(context.Background(), "a@x.com"), domain.CodeInternal)
	st.AssertExpectations(t)
}

func TestSendOTP_RollbackKeepsNewerRecord(t *testing.T) {
	st := &mockStore{}
	ml := &mockMailer{}
	st.On("Get", mock.Anything, "a@x.com").Return(nil, domain.ErrNotFound).Once()
	st.On("Put", mock.Anything, mock.AnythingOfType("*domain.OTPRecord")).Return(nil)
	// by the time the dispatch fails another record owns the key
	st.On("Get", mock.Anything, "a@x.com").Return(&domain.OTPRecord{ID: "someone-else", Email: "a@x.com"}, nil).Once()
	ml.On("SendEmail", mock.Anything, "a@x.com", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom"))

	svc := NewService(ServiceDeps{Store: st, Mailer: ml})
	requireCode(t, svc.SendOTP(context.Background(), "a@x.com"), domain.CodeEmailSendFailed)

	st.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSendOTP_ConcurrentSameEmail_OnlyOneWins(t *testing.T) {
	f := newFixture()
	f.mailer.On("SendEmail", mock.Anything, "race@x.com", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { time.Sleep(10 * time.Millisecond) }).
		Return(nil)

	var ok, throttled int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.SendOTP(context.Background(), "race@x.com")
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrTooManyRequests):
				atomic.AddInt32(&throttled, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(7), throttled)
	f.mailer.AssertNumberOfCalls(t, "SendEmail", 1)
}

// --- VerifyOTP ---

func TestVerifyOTP_NoRecord_NotFound(t *testing.T) {
	f := newFixture()
	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode), domain.CodeOTPNotFound)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	require.NoError(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode))
	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode), domain.CodeOTPNotFound)
}

func TestVerifyOTP_Expired_RemovesRecord(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	f.clock.Advance(10 * time.Minute)
	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode), domain.CodeOTPExpired)
	assert.Equal(t, 0, f.store.Len())
}

func TestVerifyOTP_WrongCode_CountsDownRemaining(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	for _, want := range []int{4, 3, 2, 1} {
		oe := requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", "000000"), domain.CodeInvalidOTP)
		assert.Equal(t, want, oe.RemainingAttempts)
	}
	rec, err := f.store.Get(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Attempts)

	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", "000000"), domain.CodeTooManyAttempts)
	assert.Equal(t, 0, f.store.Len())
}

func TestVerifyOTP_LockedOut_CorrectCodeRejected(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))
	for i := 0; i < 5; i++ {
		_ = f.svc.VerifyOTP(context.Background(), "a@x.com", "999999")
	}

	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode), domain.CodeOTPNotFound)
	assert.Equal(t, 0, f.store.Len())
}

func TestVerifyOTP_PersistedRecordAtLimit_TooManyAttempts(t *testing.T) {
	f := newFixture()
	now := f.clock.Now()
	require.NoError(t, f.store.Put(context.Background(), &domain.OTPRecord{
		ID: "r1", Email: "a@x.com", Code: testCode, Attempts: 5,
		LastSentAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode), domain.CodeTooManyAttempts)
	assert.Equal(t, 0, f.store.Len())
}

func TestVerifyOTP_ExpiryCheckedBeforeCode(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))

	f.clock.Advance(11 * time.Minute)
	requireCode(t, f.svc.VerifyOTP(context.Background(), "a@x.com", "000000"), domain.CodeOTPExpired)
}

func TestVerifyOTP_StoreFailure_InternalError(t *testing.T) {
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com").Return(nil, errors.New("timeout"))
	svc := NewService(ServiceDeps{Store: st, Mailer: &mockMailer{}})

	oe := requireCode(t, svc.VerifyOTP(context.Background(), "a@x.com", "123456"), domain.CodeInternal)
	assert.NotContains(t, oe.Message, "timeout")
}

func TestVerifyOTP_AfterVerify_CanRequestAgain(t *testing.T) {
	f := newFixture()
	f.mailerOK("a@x.com")
	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))
	require.NoError(t, f.svc.VerifyOTP(context.Background(), "a@x.com", testCode))

	require.NoError(t, f.svc.SendOTP(context.Background(), "a@x.com"))
}

func TestNewService_AppliesPolicyDefaults(t *testing.T) {
	svc := NewService(ServiceDeps{Store: memory.NewStore(), Mailer: &mockMailer{}}).(*service)
	assert.Equal(t, DefaultPolicy(), svc.policy)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
