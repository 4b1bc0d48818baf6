package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/services/payments"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/utils"
)

const attemptLockTTL = 30 * time.Second

// ActiveEventsKey is the Redis set of event ids currently open for booking.
// cmd seeds it on serve and the event hooks keep it current.
const ActiveEventsKey = "active_events"

// UserInfo identifies the authenticated user starting a booking.
type UserInfo struct {
	ID    string
	Email string
	Name  string
}

// BookingService drives the details -> payment -> success booking workflow.
// Drafts live in Redis under a TTL; the ticket record and availability
// decrement happen in a single store transaction on payment success.
type BookingService struct {
	Redis     *redis.Client
	store     Store
	processor payments.Processor
	notifier  Notifier
	breaker   *utils.CircuitBreaker
	monitor   *monitoring.Monitor

	draftTTL   time.Duration
	creditCost int

	now func() time.Time
}

func NewBookingService(
	redisClient *redis.Client,
	store Store,
	processor payments.Processor,
	notifier Notifier,
	monitor *monitoring.Monitor,
	draftTTL time.Duration,
	creditCost int,
) *BookingService {
	return &BookingService{
		Redis:      redisClient,
		store:      store,
		processor:  processor,
		notifier:   notifier,
		breaker:    utils.NewCircuitBreaker("payment-authorize"),
		monitor:    monitor,
		draftTTL:   draftTTL,
		creditCost: creditCost,
		now:        time.Now,
	}
}

// StartBooking opens a new draft in the details state.
func (s *BookingService) StartBooking(ctx context.Context, user *UserInfo, eventID, ticketType string) (*models.BookingDraft, error) {
	// Membership in the synced set gates bookings for inactive events.
	// A Redis failure falls through to the database lookup.
	if member, err := s.Redis.SIsMember(ctx, ActiveEventsKey, eventID).Result(); err == nil && !member {
		return nil, status.ErrEventNotActive
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	// Advisory check only. Issuance re-checks inside a transaction.
	if event.AvailableTickets <= 0 {
		return nil, status.ErrTicketsSoldOut
	}

	now := s.now()
	draft := &models.BookingDraft{
		ID:         fmt.Sprintf("booking_%s_%d", user.ID, now.UnixNano()),
		UserID:     user.ID,
		UserEmail:  user.Email,
		UserName:   user.Name,
		EventID:    eventID,
		TicketType: ticketType,
		Amount:     event.Price,
		State:      models.StateDetails,
		CreatedAt:  now,
	}

	if err := s.saveDraft(ctx, draft); err != nil {
		return nil, err
	}

	return draft, nil
}

// ConfirmDetails validates the attendee details and moves the draft from
// details to payment.
func (s *BookingService) ConfirmDetails(ctx context.Context, userID, draftID string, details *models.ContactDetails) (*models.BookingDraft, error) {
	details.Normalize()
	if err := details.Validate(); err != nil {
		s.monitor.TrackBookingFailure("validation")
		return nil, err
	}

	draft, err := s.loadDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}

	if !draft.State.CanTransition(models.StatePayment) {
		return nil, fmt.Errorf("%w: %s -> payment", status.ErrInvalidTransition, draft.State)
	}

	draft.UserName = details.Name
	draft.UserEmail = details.Email
	draft.State = models.StatePayment

	if err := s.saveDraft(ctx, draft); err != nil {
		return nil, err
	}

	s.monitor.TrackTransition(string(models.StateDetails), string(models.StatePayment))
	return draft, nil
}

// Back returns a draft from the payment step to the details step. Details
// entered so far are kept.
func (s *BookingService) Back(ctx context.Context, userID, draftID string) (*models.BookingDraft, error) {
	draft, err := s.loadDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}

	if !draft.State.CanTransition(models.StateDetails) {
		return nil, fmt.Errorf("%w: %s -> details", status.ErrInvalidTransition, draft.State)
	}

	draft.State = models.StateDetails
	draft.PaymentMethod = ""

	if err := s.saveDraft(ctx, draft); err != nil {
		return nil, err
	}

	s.monitor.TrackTransition(string(models.StatePayment), string(models.StateDetails))
	return draft, nil
}

// SubmitPayment charges the selected method and, only if the charge
// succeeds, issues the ticket. A ticket exists if and only if both the
// charge and issuance succeed; an issuance failure after a successful card
// charge triggers a compensating refund.
func (s *BookingService) SubmitPayment(ctx context.Context, userID, draftID, method string, card *models.CardDetails) (*models.BookingDraft, error) {
	draft, err := s.loadDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}

	if draft.State != models.StatePayment {
		return nil, fmt.Errorf("%w: submit from %s", status.ErrInvalidTransition, draft.State)
	}

	// One payment attempt per draft at a time.
	locked, err := s.Redis.SetNX(ctx, attemptKey(draftID), "1", attemptLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire attempt lock: %w", err)
	}
	if !locked {
		return nil, status.ErrAttemptInFlight
	}
	defer s.Redis.Del(context.WithoutCancel(ctx), attemptKey(draftID))

	draft.PaymentMethod = method

	var chargeID string
	switch method {
	case models.PaymentMethodCard:
		chargeID, err = s.chargeCard(ctx, draft, card)
	case models.PaymentMethodCredits:
		err = s.chargeCredits(ctx, draft)
	default:
		return nil, fmt.Errorf("unsupported payment method: %s", method)
	}
	if err != nil {
		if serr := s.saveDraft(ctx, draft); serr != nil {
			log.Printf("SubmitPayment: save draft %s after charge failure: %v", draft.ID, serr)
		}
		return nil, err
	}

	ticket, err := s.store.IssueTicket(ctx, draft)
	if err != nil {
		s.monitor.TrackBookingFailure("issuance")
		s.compensate(ctx, draft, method, chargeID)
		if serr := s.saveDraft(ctx, draft); serr != nil {
			log.Printf("SubmitPayment: save draft %s after issuance failure: %v", draft.ID, serr)
		}
		return nil, fmt.Errorf("%w: %v", status.ErrIssuance, err)
	}

	draft.State = models.StateSuccess
	draft.TicketID = ticket.ID
	if err := s.saveDraft(ctx, draft); err != nil {
		log.Printf("SubmitPayment: save success draft %s: %v", draft.ID, err)
	}

	s.monitor.TrackTransition(string(models.StatePayment), string(models.StateSuccess))

	if err := s.notifier.NotifyUser(ctx, userID, map[string]any{
		"type":       "booking_confirmed",
		"booking_id": draft.ID,
		"ticket_id":  ticket.ID,
		"event_id":   draft.EventID,
	}); err != nil {
		log.Printf("SubmitPayment: notify user %s: %v", userID, err)
	}

	return draft, nil
}

func (s *BookingService) chargeCard(ctx context.Context, draft *models.BookingDraft, card *models.CardDetails) (string, error) {
	if card == nil {
		s.monitor.TrackBookingFailure("validation")
		return "", errors.New("card details are required")
	}
	card.Normalize()
	if err := card.Validate(); err != nil {
		s.monitor.TrackBookingFailure("validation")
		return "", err
	}

	form := &status.ChargeForm{
		Amount:     decimal.NewFromFloat(draft.Amount),
		Currency:   "USD",
		CardNumber: card.Number,
		Expiry:     card.Expiry,
		CVV:        card.CVV,
		HolderName: card.HolderName,
		Reference:  draft.ID,
	}

	start := time.Now()
	reply, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.processor.Authorize(ctx, form)
	})
	s.monitor.TrackAuthorize(string(s.processor.GetProvider()), time.Since(start))

	if err != nil {
		s.monitor.TrackBookingFailure("unavailable")
		if errors.Is(err, utils.ErrBreakerOpen) {
			return "", fmt.Errorf("%w: circuit open", status.ErrPaymentUnavailable)
		}
		return "", fmt.Errorf("%w: %v", status.ErrPaymentUnavailable, err)
	}

	result := reply.(*status.ChargeResult)
	if !result.Succeeded() {
		s.monitor.TrackBookingFailure("declined")
		return "", status.ErrPaymentDeclined
	}

	return result.ChargeID, nil
}

func (s *BookingService) chargeCredits(ctx context.Context, draft *models.BookingDraft) error {
	balance, err := s.store.DebitCredits(ctx, draft.UserID, s.creditCost)
	if err != nil {
		if errors.Is(err, status.ErrInsufficientCredits) {
			s.monitor.TrackBookingFailure("insufficient_credits")
		}
		return err
	}

	s.cacheBalance(ctx, draft.UserID, balance)
	return nil
}

// compensate undoes a successful charge after issuance failed. A failed
// refund is recorded on the draft and logged for manual follow-up.
func (s *BookingService) compensate(ctx context.Context, draft *models.BookingDraft, method, chargeID string) {
	switch method {
	case models.PaymentMethodCard:
		if chargeID == "" {
			return
		}
		if err := s.processor.Refund(ctx, chargeID); err != nil {
			log.Printf("ALERT: refund failed for booking %s charge %s: %v", draft.ID, chargeID, err)
			s.Redis.HSet(context.WithoutCancel(ctx), draftKey(draft.ID), "refund_pending", chargeID)
			return
		}

	case models.PaymentMethodCredits:
		balance, err := s.store.AddCredits(ctx, draft.UserID, s.creditCost)
		if err != nil {
			log.Printf("ALERT: credit refund failed for booking %s user %s: %v", draft.ID, draft.UserID, err)
			return
		}
		s.cacheBalance(ctx, draft.UserID, balance)
	}
}

// GetDraft returns a user's draft.
func (s *BookingService) GetDraft(ctx context.Context, userID, draftID string) (*models.BookingDraft, error) {
	return s.loadDraft(ctx, userID, draftID)
}

// History returns the user's past bookings, newest first.
func (s *BookingService) History(ctx context.Context, userID string, limit, offset int) ([]*HistoryRow, error) {
	return s.store.TicketHistory(ctx, userID, limit, offset)
}

// Tickets returns the user's ticket records.
func (s *BookingService) Tickets(ctx context.Context, userID string, limit, offset int) ([]*models.Ticket, error) {
	return s.store.ListTickets(ctx, userID, limit, offset)
}

func (s *BookingService) cacheBalance(ctx context.Context, userID string, balance int) {
	if err := s.Redis.Set(ctx, balanceKey(userID), balance, 0).Err(); err != nil {
		log.Printf("cache balance for %s: %v", userID, err)
	}
}

func draftKey(draftID string) string {
	return fmt.Sprintf("booking:draft:%s", draftID)
}

func attemptKey(draftID string) string {
	return fmt.Sprintf("booking:attempt:%s", draftID)
}

func balanceKey(userID string) string {
	return fmt.Sprintf("credits:balance:%s", userID)
}

func (s *BookingService) saveDraft(ctx context.Context, draft *models.BookingDraft) error {
	key := draftKey(draft.ID)

	fields := map[string]any{
		"id":             draft.ID,
		"user_id":        draft.UserID,
		"user_email":     draft.UserEmail,
		"user_name":      draft.UserName,
		"event_id":       draft.EventID,
		"ticket_type":    draft.TicketType,
		"payment_method": draft.PaymentMethod,
		"amount":         draft.Amount,
		"state":          string(draft.State),
		"ticket_id":      draft.TicketID,
		"created_at":     draft.CreatedAt.Unix(),
	}
	if err := s.Redis.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", draft.ID, err)
	}

	if err := s.Redis.Expire(ctx, key, s.draftTTL).Err(); err != nil {
		return fmt.Errorf("expire draft %s: %w", draft.ID, err)
	}

	return nil
}

func (s *BookingService) loadDraft(ctx context.Context, userID, draftID string) (*models.BookingDraft, error) {
	data, err := s.Redis.HGetAll(ctx, draftKey(draftID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", draftID, err)
	}
	if len(data) == 0 {
		return nil, status.ErrDraftNotFound
	}
	if data["user_id"] != userID {
		return nil, status.ErrDraftNotFound
	}

	amount, _ := strconv.ParseFloat(data["amount"], 64)
	createdAt, _ := strconv.ParseInt(data["created_at"], 10, 64)

	return &models.BookingDraft{
		ID:            data["id"],
		UserID:        data["user_id"],
		UserEmail:     data["user_email"],
		UserName:      data["user_name"],
		EventID:       data["event_id"],
		TicketType:    data["ticket_type"],
		PaymentMethod: data["payment_method"],
		Amount:        amount,
		State:         models.DraftState(data["state"]),
		TicketID:      data["ticket_id"],
		CreatedAt:     time.Unix(createdAt, 0),
	}, nil
}
