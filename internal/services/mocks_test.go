package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticket-marketplace/internal/services/payments"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
)

// memStore is an in-memory Store used by the service tests.
type memStore struct {
	mu sync.Mutex

	events    map[string]*models.Event
	tickets   []*models.Ticket
	credits   map[string]int
	purchases map[string]*models.CreditPurchase

	failIssue bool

	applyCalls int
	ticketSeq  int
}

func newMemStore() *memStore {
	return &memStore{
		events:    make(map[string]*models.Event),
		credits:   make(map[string]int),
		purchases: make(map[string]*models.CreditPurchase),
	}
}

func (m *memStore) GetEvent(_ context.Context, eventID string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s not found", eventID)
	}
	cp := *event
	return &cp, nil
}

func (m *memStore) IssueTicket(_ context.Context, draft *models.BookingDraft) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failIssue {
		return nil, fmt.Errorf("simulated issuance failure")
	}

	event, ok := m.events[draft.EventID]
	if !ok {
		return nil, fmt.Errorf("event %s not found", draft.EventID)
	}
	if event.AvailableTickets <= 0 {
		return nil, status.ErrTicketsSoldOut
	}
	event.AvailableTickets--

	m.ticketSeq++
	ticket := &models.Ticket{
		ID:           fmt.Sprintf("ticket_%d", m.ticketSeq),
		EventID:      draft.EventID,
		UserID:       draft.UserID,
		UserEmail:    draft.UserEmail,
		UserName:     draft.UserName,
		TicketType:   draft.TicketType,
		Price:        draft.Amount,
		Status:       "confirmed",
		PurchaseDate: time.Now().UTC().Format(time.RFC3339),
	}
	m.tickets = append(m.tickets, ticket)
	return ticket, nil
}

func (m *memStore) DebitCredits(_ context.Context, userID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.credits[userID]
	if current < amount {
		return 0, status.ErrInsufficientCredits
	}
	m.credits[userID] = current - amount
	return m.credits[userID], nil
}

func (m *memStore) AddCredits(_ context.Context, userID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credits[userID] += amount
	return m.credits[userID], nil
}

func (m *memStore) CreditBalance(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[userID], nil
}

func (m *memStore) CreateCreditPurchase(_ context.Context, purchase *models.CreditPurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	purchase.ID = fmt.Sprintf("purchase_%d", len(m.purchases)+1)
	purchase.CreatedAt = time.Now()
	cp := *purchase
	m.purchases[purchase.SessionID] = &cp
	return nil
}

func (m *memStore) GetCreditPurchase(_ context.Context, sessionID string) (*models.CreditPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purchase, ok := m.purchases[sessionID]
	if !ok {
		return nil, status.ErrPurchaseNotFound
	}
	cp := *purchase
	return &cp, nil
}

func (m *memStore) ApplyCreditPurchase(_ context.Context, sessionID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyCalls++

	purchase, ok := m.purchases[sessionID]
	if !ok {
		return false, 0, status.ErrPurchaseNotFound
	}

	if purchase.Status != models.PurchaseStatusPending {
		return false, m.credits[purchase.UserID], nil
	}

	purchase.Status = models.PurchaseStatusCompleted
	now := time.Now()
	purchase.CompletedAt = &now
	m.credits[purchase.UserID] += purchase.Credits
	return true, m.credits[purchase.UserID], nil
}

func (m *memStore) MarkCreditPurchase(_ context.Context, sessionID, purchaseStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	purchase, ok := m.purchases[sessionID]
	if !ok {
		return status.ErrPurchaseNotFound
	}
	if purchase.Status != models.PurchaseStatusPending {
		return nil
	}
	purchase.Status = purchaseStatus
	return nil
}

func (m *memStore) ListTickets(_ context.Context, userID string, _, _ int) ([]*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Ticket
	for _, ticket := range m.tickets {
		if ticket.UserID == userID {
			out = append(out, ticket)
		}
	}
	return out, nil
}

func (m *memStore) TicketHistory(_ context.Context, userID string, _, _ int) ([]*HistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*HistoryRow
	for _, ticket := range m.tickets {
		if ticket.UserID != userID {
			continue
		}
		row := &HistoryRow{
			TicketID:     ticket.ID,
			EventID:      ticket.EventID,
			TicketType:   ticket.TicketType,
			Price:        ticket.Price,
			Status:       ticket.Status,
			PurchaseDate: ticket.PurchaseDate,
		}
		if event, ok := m.events[ticket.EventID]; ok {
			row.EventName = event.Name
			row.EventDate = event.Date
			row.Location = event.Location
		}
		out = append(out, row)
	}
	return out, nil
}

// stubProcessor scripts processor behavior per call.
type stubProcessor struct {
	mu sync.Mutex

	authorizeFn func(ctx context.Context, form *status.ChargeForm) (*status.ChargeResult, error)
	refundFn    func(ctx context.Context, chargeID string) error
	createFn    func(ctx context.Context, form *status.SessionForm) (*status.SessionState, error)
	checkFn     func(ctx context.Context, sessionID string) (*status.SessionState, error)

	checkCalls  int
	refundCalls int
}

func (p *stubProcessor) GetProvider() payments.Provider { return "stub" }

func (p *stubProcessor) Authorize(ctx context.Context, form *status.ChargeForm) (*status.ChargeResult, error) {
	return p.authorizeFn(ctx, form)
}

func (p *stubProcessor) Refund(ctx context.Context, chargeID string) error {
	p.mu.Lock()
	p.refundCalls++
	p.mu.Unlock()
	if p.refundFn == nil {
		return nil
	}
	return p.refundFn(ctx, chargeID)
}

func (p *stubProcessor) CreateSession(ctx context.Context, form *status.SessionForm) (*status.SessionState, error) {
	return p.createFn(ctx, form)
}

func (p *stubProcessor) CheckSession(ctx context.Context, sessionID string) (*status.SessionState, error) {
	p.mu.Lock()
	p.checkCalls++
	p.mu.Unlock()
	return p.checkFn(ctx, sessionID)
}

func (p *stubProcessor) checkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkCalls
}

func (p *stubProcessor) SetTransactionChannel(_ chan *status.Transaction) {}

func (p *stubProcessor) Close(_ context.Context) error { return nil }

// recordNotifier captures published notifications.
type recordNotifier struct {
	mu       sync.Mutex
	messages []map[string]any
	users    []string
}

func (n *recordNotifier) NotifyUser(_ context.Context, userID string, message map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	n.messages = append(n.messages, message)
	return nil
}

func (n *recordNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *recordNotifier) last() map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return nil
	}
	return n.messages[len(n.messages)-1]
}
