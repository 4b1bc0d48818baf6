package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-marketplace/internal/services/payments"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
)

// CreditService sells credit packs through hosted checkout sessions and
// reconciles their outcome against the payment processor.
type CreditService struct {
	Redis     *redis.Client
	store     Store
	processor payments.Processor
	notifier  Notifier
	monitor   *monitoring.Monitor

	appURL       string
	pollInterval time.Duration
	maxAttempts  int
}

func NewCreditService(
	redisClient *redis.Client,
	store Store,
	processor payments.Processor,
	notifier Notifier,
	monitor *monitoring.Monitor,
	appURL string,
	pollInterval time.Duration,
	maxAttempts int,
) *CreditService {
	return &CreditService{
		Redis:        redisClient,
		store:        store,
		processor:    processor,
		notifier:     notifier,
		monitor:      monitor,
		appURL:       appURL,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// InitiatePurchase opens a checkout session for a credit pack and records
// the pending purchase.
func (s *CreditService) InitiatePurchase(ctx context.Context, userID, packID string) (*models.CheckoutSession, error) {
	pack, ok := models.FindCreditPack(packID)
	if !ok {
		return nil, fmt.Errorf("unknown credit pack: %s", packID)
	}

	form := &status.SessionForm{
		Amount:     pack.Price,
		Currency:   "USD",
		Reference:  fmt.Sprintf("credits_%s_%d", userID, time.Now().Unix()),
		SuccessURL: fmt.Sprintf("%s/credits/success?session_id={SESSION_ID}", s.appURL),
		CancelURL:  fmt.Sprintf("%s/pricing", s.appURL),
		Metadata: map[string]string{
			"user_id": userID,
			"pack_id": pack.ID,
		},
	}

	sess, err := s.processor.CreateSession(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	amount, _ := pack.Price.Float64()
	purchase := &models.CreditPurchase{
		SessionID: sess.SessionID,
		UserID:    userID,
		PackID:    pack.ID,
		Amount:    amount,
		Credits:   pack.Credits,
		Status:    models.PurchaseStatusPending,
	}
	if err := s.store.CreateCreditPurchase(ctx, purchase); err != nil {
		return nil, err
	}

	return &models.CheckoutSession{
		SessionID:   sess.SessionID,
		CheckoutURL: sess.CheckoutURL,
		Amount:      sess.Amount,
		Currency:    sess.Currency,
	}, nil
}

// Status performs a single poll of a purchase's checkout session. When the
// processor reports the session paid, the purchase is completed and credits
// applied right here, so a purchase completes at most once no matter how
// many times the status is asked for.
func (s *CreditService) Status(ctx context.Context, userID, sessionID string) (*models.SessionStatus, error) {
	purchase, err := s.store.GetCreditPurchase(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != userID {
		return nil, status.ErrPurchaseNotFound
	}

	sess, err := s.processor.CheckSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Paid() && purchase.Status == models.PurchaseStatusPending {
		_, balance, err := s.store.ApplyCreditPurchase(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		s.cacheBalance(ctx, userID, balance)
		purchase.Status = models.PurchaseStatusCompleted
	} else if sess.Expired() && purchase.Status == models.PurchaseStatusPending {
		if err := s.store.MarkCreditPurchase(ctx, sessionID, models.PurchaseStatusCancelled); err != nil {
			return nil, err
		}
		purchase.Status = models.PurchaseStatusCancelled
	}

	return &models.SessionStatus{
		SessionID:      sessionID,
		PaymentStatus:  sess.PaymentStatus,
		PurchaseStatus: purchase.Status,
		Amount:         sess.Amount,
		Currency:       sess.Currency,
	}, nil
}

// Confirm reconciles a checkout session by polling the processor until the
// purchase settles or the attempt budget runs out. It polls at most
// maxAttempts times with a fixed delay between polls and stops early on
// any terminal outcome or when ctx is cancelled.
func (s *CreditService) Confirm(ctx context.Context, userID, sessionID string) (*models.ReconcileResult, error) {
	purchase, err := s.store.GetCreditPurchase(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if purchase.UserID != userID {
		return nil, status.ErrPurchaseNotFound
	}

	result := &models.ReconcileResult{State: models.ReconcileChecking}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result.Attempts = attempt

		sess, err := s.processor.CheckSession(ctx, sessionID)
		switch {
		case errors.Is(err, status.ErrSessionNotFound):
			result.State = models.ReconcileFailed
			s.monitor.TrackReconcileOutcome(string(result.State), attempt)
			return result, nil

		case err != nil:
			log.Printf("Confirm: check session %s attempt %d: %v", sessionID, attempt, err)

		case sess.Paid():
			// The one balance read for this confirmation comes back from
			// the apply, whether or not this call won the apply.
			applied, balance, err := s.store.ApplyCreditPurchase(ctx, sessionID)
			if err != nil {
				return nil, err
			}

			result.State = models.ReconcileSuccess
			result.Amount = sess.Amount
			result.Credits = purchase.Credits
			result.Balance = balance

			s.cacheBalance(ctx, userID, balance)
			s.monitor.TrackReconcileOutcome(string(result.State), attempt)

			if applied {
				if err := s.notifier.NotifyUser(ctx, userID, map[string]any{
					"type":       "credits_added",
					"session_id": sessionID,
					"credits":    purchase.Credits,
					"balance":    balance,
				}); err != nil {
					log.Printf("Confirm: notify user %s: %v", userID, err)
				}
			}
			return result, nil

		case sess.Expired():
			if err := s.store.MarkCreditPurchase(ctx, sessionID, models.PurchaseStatusCancelled); err != nil {
				log.Printf("Confirm: mark purchase %s cancelled: %v", sessionID, err)
			}
			result.State = models.ReconcileExpired
			s.monitor.TrackReconcileOutcome(string(result.State), attempt)
			return result, nil
		}

		// Still pending. Wait before the next poll, but never after the
		// last one.
		if attempt < s.maxAttempts {
			timer := time.NewTimer(s.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	result.State = models.ReconcileFailed
	s.monitor.TrackReconcileOutcome(string(result.State), s.maxAttempts)
	return result, nil
}

// HandleTransaction applies a settlement notification pushed by the
// processor. Late or duplicate notifications are harmless because the
// apply is a no-op once the purchase completed.
func (s *CreditService) HandleTransaction(ctx context.Context, tran *status.Transaction) {
	if tran.Status != "paid" {
		return
	}

	purchase, err := s.store.GetCreditPurchase(ctx, tran.SessionID)
	if err != nil {
		log.Printf("HandleTransaction: purchase for session %s: %v", tran.SessionID, err)
		return
	}

	applied, balance, err := s.store.ApplyCreditPurchase(ctx, tran.SessionID)
	if err != nil {
		log.Printf("HandleTransaction: apply session %s: %v", tran.SessionID, err)
		return
	}
	if !applied {
		return
	}

	s.cacheBalance(ctx, purchase.UserID, balance)

	if err := s.notifier.NotifyUser(ctx, purchase.UserID, map[string]any{
		"type":       "credits_added",
		"session_id": tran.SessionID,
		"credits":    purchase.Credits,
		"balance":    balance,
	}); err != nil {
		log.Printf("HandleTransaction: notify user %s: %v", purchase.UserID, err)
	}
}

// Balance returns a user's credit balance, from the Redis cache when warm.
func (s *CreditService) Balance(ctx context.Context, userID string) (int, error) {
	if cached, err := s.Redis.Get(ctx, balanceKey(userID)).Result(); err == nil {
		if balance, err := strconv.Atoi(cached); err == nil {
			return balance, nil
		}
	}

	balance, err := s.store.CreditBalance(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.cacheBalance(ctx, userID, balance)
	return balance, nil
}

func (s *CreditService) cacheBalance(ctx context.Context, userID string, balance int) {
	if err := s.Redis.Set(ctx, balanceKey(userID), balance, 0).Err(); err != nil {
		log.Printf("cache balance for %s: %v", userID, err)
	}
}
