package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
)

const (
	testPollInterval = time.Millisecond
	testMaxAttempts  = 5
)

func setupCreditTest(t *testing.T, processor *stubProcessor) (*CreditService, redismock.ClientMock, *memStore, *recordNotifier) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	store := newMemStore()
	notifier := &recordNotifier{}

	service := NewCreditService(
		db,
		store,
		processor,
		notifier,
		&monitoring.Monitor{},
		"https://tickets.example.com",
		testPollInterval,
		testMaxAttempts,
	)
	return service, mock, store, notifier
}

func pendingPurchase(store *memStore, sessionID string) {
	store.purchases[sessionID] = &models.CreditPurchase{
		ID:        "purchase_1",
		SessionID: sessionID,
		UserID:    "user_1",
		PackID:    "small",
		Amount:    10,
		Credits:   100,
		Status:    models.PurchaseStatusPending,
		CreatedAt: time.Now(),
	}
}

func sessionState(sessionID, sessStatus, paymentStatus string) *status.SessionState {
	return &status.SessionState{
		SessionID:     sessionID,
		Status:        sessStatus,
		PaymentStatus: paymentStatus,
		Amount:        decimal.NewFromInt(10),
		Currency:      "USD",
	}
}

func TestInitiatePurchase(t *testing.T) {
	processor := &stubProcessor{
		createFn: func(_ context.Context, form *status.SessionForm) (*status.SessionState, error) {
			assert.True(t, form.Amount.Equal(decimal.NewFromInt(40)))
			assert.Contains(t, form.SuccessURL, "/credits/success")
			assert.Contains(t, form.CancelURL, "/pricing")
			return &status.SessionState{
				SessionID:     "sess_123",
				CheckoutURL:   "https://checkout.example.com/sess_123",
				Status:        "open",
				PaymentStatus: "pending",
				Amount:        form.Amount,
				Currency:      form.Currency,
			}, nil
		},
	}
	service, _, store, _ := setupCreditTest(t, processor)

	session, err := service.InitiatePurchase(context.Background(), "user_1", "medium")
	require.NoError(t, err)

	assert.Equal(t, "sess_123", session.SessionID)
	assert.NotEmpty(t, session.CheckoutURL)

	purchase := store.purchases["sess_123"]
	require.NotNil(t, purchase)
	assert.Equal(t, models.PurchaseStatusPending, purchase.Status)
	assert.Equal(t, 500, purchase.Credits)
	assert.Equal(t, 40.0, purchase.Amount)
}

func TestInitiatePurchaseUnknownPack(t *testing.T) {
	service, _, _, _ := setupCreditTest(t, &stubProcessor{})

	_, err := service.InitiatePurchase(context.Background(), "user_1", "gigantic")
	assert.Error(t, err)
}

func TestConfirmFirstPollPaid(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, sessionID string) (*status.SessionState, error) {
			return sessionState(sessionID, "complete", "paid"), nil
		},
	}
	service, mock, store, notifier := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_123")

	mock.ExpectSet(balanceKey("user_1"), 100, 0).SetVal("OK")

	result, err := service.Confirm(context.Background(), "user_1", "sess_123")
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileSuccess, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 100, result.Credits)
	assert.Equal(t, 100, result.Balance)

	// One poll, one apply, credits landed once.
	assert.Equal(t, 1, processor.checkCount())
	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, 100, store.credits["user_1"])
	assert.Equal(t, models.PurchaseStatusCompleted, store.purchases["sess_123"].Status)

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "credits_added", notifier.last()["type"])
}

func TestConfirmPaidOnLaterPoll(t *testing.T) {
	polls := 0
	processor := &stubProcessor{}
	processor.checkFn = func(_ context.Context, sessionID string) (*status.SessionState, error) {
		polls++
		if polls < 3 {
			return sessionState(sessionID, "open", "pending"), nil
		}
		return sessionState(sessionID, "complete", "paid"), nil
	}
	service, mock, store, _ := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_123")

	mock.ExpectSet(balanceKey("user_1"), 100, 0).SetVal("OK")

	result, err := service.Confirm(context.Background(), "user_1", "sess_123")
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileSuccess, result.State)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, processor.checkCount())
}

func TestConfirmExhaustsAttempts(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, sessionID string) (*status.SessionState, error) {
			return sessionState(sessionID, "open", "pending"), nil
		},
	}
	service, _, store, notifier := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_456")

	result, err := service.Confirm(context.Background(), "user_1", "sess_456")
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileFailed, result.State)
	assert.Equal(t, testMaxAttempts, result.Attempts)

	// Exactly maxAttempts polls, then give up. No credits move.
	assert.Equal(t, testMaxAttempts, processor.checkCount())
	assert.Equal(t, 0, store.applyCalls)
	assert.Equal(t, 0, store.credits["user_1"])
	assert.Equal(t, models.PurchaseStatusPending, store.purchases["sess_456"].Status)
	assert.Equal(t, 0, notifier.count())
}

func TestConfirmExpired(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, sessionID string) (*status.SessionState, error) {
			return sessionState(sessionID, "expired", "pending"), nil
		},
	}
	service, _, store, _ := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_456")

	result, err := service.Confirm(context.Background(), "user_1", "sess_456")
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileExpired, result.State)
	assert.Equal(t, 1, result.Attempts)

	// Expiry is terminal on the first sighting, no further polls.
	assert.Equal(t, 1, processor.checkCount())
	assert.Equal(t, models.PurchaseStatusCancelled, store.purchases["sess_456"].Status)
	assert.Equal(t, 0, store.credits["user_1"])
}

func TestConfirmSessionUnknownAtProcessor(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, _ string) (*status.SessionState, error) {
			return nil, status.ErrSessionNotFound
		},
	}
	service, _, store, _ := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_456")

	result, err := service.Confirm(context.Background(), "user_1", "sess_456")
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileFailed, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, processor.checkCount())
}

func TestConfirmCancelledContext(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, sessionID string) (*status.SessionState, error) {
			return sessionState(sessionID, "open", "pending"), nil
		},
	}
	service, _, store, _ := setupCreditTest(t, processor)
	// A long interval proves cancellation interrupts the wait.
	service.pollInterval = time.Hour
	pendingPurchase(store, "sess_456")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := service.Confirm(ctx, "user_1", "sess_456")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, processor.checkCount())
}

func TestConfirmUnknownPurchase(t *testing.T) {
	service, _, _, _ := setupCreditTest(t, &stubProcessor{})

	_, err := service.Confirm(context.Background(), "user_1", "sess_missing")
	assert.ErrorIs(t, err, status.ErrPurchaseNotFound)
}

func TestConfirmWrongUser(t *testing.T) {
	service, _, store, _ := setupCreditTest(t, &stubProcessor{})
	pendingPurchase(store, "sess_123")

	_, err := service.Confirm(context.Background(), "user_2", "sess_123")
	assert.ErrorIs(t, err, status.ErrPurchaseNotFound)
}

func TestStatusAppliesAtMostOnce(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, sessionID string) (*status.SessionState, error) {
			return sessionState(sessionID, "complete", "paid"), nil
		},
	}
	service, mock, store, _ := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_123")

	mock.ExpectSet(balanceKey("user_1"), 100, 0).SetVal("OK")

	first, err := service.Status(context.Background(), "user_1", "sess_123")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusCompleted, first.PurchaseStatus)
	assert.True(t, first.Completed())

	second, err := service.Status(context.Background(), "user_1", "sess_123")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusCompleted, second.PurchaseStatus)

	// The second status call saw a completed purchase and skipped the apply.
	assert.Equal(t, 1, store.applyCalls)
	assert.Equal(t, 100, store.credits["user_1"])
}

func TestStatusExpiredCancelsPurchase(t *testing.T) {
	processor := &stubProcessor{
		checkFn: func(_ context.Context, sessionID string) (*status.SessionState, error) {
			return sessionState(sessionID, "expired", "expired"), nil
		},
	}
	service, _, store, _ := setupCreditTest(t, processor)
	pendingPurchase(store, "sess_456")

	result, err := service.Status(context.Background(), "user_1", "sess_456")
	require.NoError(t, err)

	assert.Equal(t, models.PurchaseStatusCancelled, result.PurchaseStatus)
	assert.False(t, result.Completed())
	assert.Equal(t, 0, store.credits["user_1"])
}

func TestHandleTransactionAppliesOnce(t *testing.T) {
	service, mock, store, notifier := setupCreditTest(t, &stubProcessor{})
	pendingPurchase(store, "sess_123")

	mock.ExpectSet(balanceKey("user_1"), 100, 0).SetVal("OK")

	tran := &status.Transaction{SessionID: "sess_123", Status: "paid"}
	service.HandleTransaction(context.Background(), tran)
	service.HandleTransaction(context.Background(), tran)

	assert.Equal(t, 100, store.credits["user_1"])
	assert.Equal(t, models.PurchaseStatusCompleted, store.purchases["sess_123"].Status)
	assert.Equal(t, 1, notifier.count())
}

func TestBalanceFallsBackToStore(t *testing.T) {
	service, mock, store, _ := setupCreditTest(t, &stubProcessor{})
	store.credits["user_1"] = 42

	mock.ExpectGet(balanceKey("user_1")).RedisNil()
	mock.ExpectSet(balanceKey("user_1"), 42, 0).SetVal("OK")

	balance, err := service.Balance(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 42, balance)
}

func TestBalanceServedFromCache(t *testing.T) {
	service, mock, store, _ := setupCreditTest(t, &stubProcessor{})
	store.credits["user_1"] = 42

	mock.ExpectGet(balanceKey("user_1")).SetVal("42")

	balance, err := service.Balance(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 42, balance)
}
