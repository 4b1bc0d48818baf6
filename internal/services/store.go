package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/utils"
)

// Store is the persistence surface the workflow services depend on.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)

	// IssueTicket re-checks availability, decrements the event's pool and
	// creates the ticket record in one transaction.
	IssueTicket(ctx context.Context, draft *models.BookingDraft) (*models.Ticket, error)

	// DebitCredits removes credits from a user's balance, failing with
	// status.ErrInsufficientCredits when the balance is too low. Returns
	// the new balance.
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)

	// AddCredits returns credits to a user's balance, used to compensate a
	// credits booking whose ticket issuance failed. Returns the new balance.
	AddCredits(ctx context.Context, userID string, amount int) (int, error)

	CreditBalance(ctx context.Context, userID string) (int, error)

	CreateCreditPurchase(ctx context.Context, purchase *models.CreditPurchase) error
	GetCreditPurchase(ctx context.Context, sessionID string) (*models.CreditPurchase, error)

	// ApplyCreditPurchase marks a pending purchase completed and adds its
	// credits to the user's balance. Applying an already-completed purchase
	// is a no-op, so credits land at most once per purchase.
	ApplyCreditPurchase(ctx context.Context, sessionID string) (applied bool, balance int, err error)

	// MarkCreditPurchase sets a purchase's terminal status without touching
	// the balance (cancelled, expired).
	MarkCreditPurchase(ctx context.Context, sessionID, purchaseStatus string) error

	ListTickets(ctx context.Context, userID string, limit, offset int) ([]*models.Ticket, error)

	// TicketHistory joins tickets with their events for the history view.
	TicketHistory(ctx context.Context, userID string, limit, offset int) ([]*HistoryRow, error)
}

// HistoryRow is one line of a user's booking history.
type HistoryRow struct {
	TicketID     string  `db:"ticket_id" json:"ticket_id"`
	EventID      string  `db:"event_id" json:"event_id"`
	EventName    string  `db:"event_name" json:"event_name"`
	EventDate    string  `db:"event_date" json:"event_date"`
	Location     string  `db:"location" json:"location"`
	TicketType   string  `db:"ticket_type" json:"ticket_type"`
	Price        float64 `db:"price" json:"price"`
	Status       string  `db:"status" json:"status"`
	PurchaseDate string  `db:"purchase_date" json:"purchase_date"`
}

// RecordStore implements Store on top of PocketBase collections.
type RecordStore struct {
	app core.App
}

func NewRecordStore(app core.App) *RecordStore {
	return &RecordStore{app: app}
}

func (s *RecordStore) GetEvent(_ context.Context, eventID string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		return nil, fmt.Errorf("find event %s: %w", eventID, err)
	}
	return eventFromRecord(record), nil
}

func (s *RecordStore) IssueTicket(ctx context.Context, draft *models.BookingDraft) (*models.Ticket, error) {
	var ticket *models.Ticket

	err := s.app.RunInTransaction(func(txApp core.App) error {
		event, err := txApp.FindRecordById("events", draft.EventID)
		if err != nil {
			return fmt.Errorf("find event %s: %w", draft.EventID, err)
		}

		available := event.GetInt("available_tickets")
		if available <= 0 {
			return status.ErrTicketsSoldOut
		}
		event.Set("available_tickets", available-1)
		if err := txApp.SaveWithContext(ctx, event); err != nil {
			return fmt.Errorf("update event availability: %w", err)
		}

		collection, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		record := core.NewRecord(collection)
		record.Set("event_id", draft.EventID)
		record.Set("user_id", draft.UserID)
		record.Set("user_email", draft.UserEmail)
		record.Set("user_name", draft.UserName)
		record.Set("ticket_type", draft.TicketType)
		record.Set("price", draft.Amount)
		record.Set("status", "confirmed")
		record.Set("purchase_date", time.Now().UTC().Format(time.RFC3339))
		record.Set("source", event.GetString("source"))

		// The id is assigned during save, so the ticket is persisted
		// first and the QR payload written in a second save.
		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return fmt.Errorf("save ticket: %w", err)
		}

		code, err := utils.GenerateCode(8)
		if err != nil {
			return fmt.Errorf("generate ticket code: %w", err)
		}
		record.Set("qr_code", ticketQRPayload(record.Id, draft.EventID, draft.UserID, code))

		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return fmt.Errorf("save ticket qr: %w", err)
		}

		ticket = ticketFromRecord(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

func (s *RecordStore) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	var balance int

	err := s.app.RunInTransaction(func(txApp core.App) error {
		user, err := txApp.FindRecordById("users", userID)
		if err != nil {
			return fmt.Errorf("find user %s: %w", userID, err)
		}

		current := user.GetInt("credits")
		if current < amount {
			return status.ErrInsufficientCredits
		}

		balance = current - amount
		user.Set("credits", balance)
		return txApp.SaveWithContext(ctx, user)
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (s *RecordStore) AddCredits(ctx context.Context, userID string, amount int) (int, error) {
	var balance int

	err := s.app.RunInTransaction(func(txApp core.App) error {
		user, err := txApp.FindRecordById("users", userID)
		if err != nil {
			return fmt.Errorf("find user %s: %w", userID, err)
		}

		balance = user.GetInt("credits") + amount
		user.Set("credits", balance)
		return txApp.SaveWithContext(ctx, user)
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (s *RecordStore) CreditBalance(_ context.Context, userID string) (int, error) {
	user, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return 0, fmt.Errorf("find user %s: %w", userID, err)
	}
	return user.GetInt("credits"), nil
}

func (s *RecordStore) CreateCreditPurchase(ctx context.Context, purchase *models.CreditPurchase) error {
	collection, err := s.app.FindCollectionByNameOrId("credit_purchases")
	if err != nil {
		return err
	}

	record := core.NewRecord(collection)
	record.Set("session_id", purchase.SessionID)
	record.Set("user_id", purchase.UserID)
	record.Set("pack_id", purchase.PackID)
	record.Set("amount", purchase.Amount)
	record.Set("credits", purchase.Credits)
	record.Set("status", purchase.Status)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save credit purchase: %w", err)
	}

	purchase.ID = record.Id
	return nil
}

func (s *RecordStore) GetCreditPurchase(_ context.Context, sessionID string) (*models.CreditPurchase, error) {
	record, err := s.findPurchase(s.app, sessionID)
	if err != nil {
		return nil, err
	}
	return purchaseFromRecord(record), nil
}

func (s *RecordStore) ApplyCreditPurchase(ctx context.Context, sessionID string) (bool, int, error) {
	var (
		applied bool
		balance int
	)

	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := s.findPurchase(txApp, sessionID)
		if err != nil {
			return err
		}

		user, err := txApp.FindRecordById("users", record.GetString("user_id"))
		if err != nil {
			return fmt.Errorf("find user %s: %w", record.GetString("user_id"), err)
		}

		if record.GetString("status") != models.PurchaseStatusPending {
			balance = user.GetInt("credits")
			return nil
		}

		record.Set("status", models.PurchaseStatusCompleted)
		record.Set("completed_at", time.Now().UTC().Format(time.RFC3339))
		if err := txApp.SaveWithContext(ctx, record); err != nil {
			return fmt.Errorf("save credit purchase: %w", err)
		}

		balance = user.GetInt("credits") + record.GetInt("credits")
		user.Set("credits", balance)
		if err := txApp.SaveWithContext(ctx, user); err != nil {
			return fmt.Errorf("save user balance: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	return applied, balance, nil
}

func (s *RecordStore) MarkCreditPurchase(ctx context.Context, sessionID, purchaseStatus string) error {
	record, err := s.findPurchase(s.app, sessionID)
	if err != nil {
		return err
	}

	// Terminal statuses never overwrite a completed purchase.
	if record.GetString("status") != models.PurchaseStatusPending {
		return nil
	}

	record.Set("status", purchaseStatus)
	return s.app.SaveWithContext(ctx, record)
}

func (s *RecordStore) ListTickets(_ context.Context, userID string, limit, offset int) ([]*models.Ticket, error) {
	records, err := s.app.FindRecordsByFilter(
		"tickets",
		"user_id = {:userID}",
		"-purchase_date",
		limit,
		offset,
		map[string]any{"userID": userID},
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets for %s: %w", userID, err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, record := range records {
		tickets = append(tickets, ticketFromRecord(record))
	}
	return tickets, nil
}

func (s *RecordStore) TicketHistory(_ context.Context, userID string, limit, offset int) ([]*HistoryRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := s.app.DB().NewQuery(`
		SELECT
			t.id AS ticket_id,
			t.event_id AS event_id,
			COALESCE(e.name, '') AS event_name,
			COALESCE(e.date, '') AS event_date,
			COALESCE(e.location, '') AS location,
			t.ticket_type AS ticket_type,
			t.price AS price,
			t.status AS status,
			t.purchase_date AS purchase_date
		FROM tickets t
		LEFT JOIN events e ON e.id = t.event_id
		WHERE t.user_id = {:userID}
		ORDER BY t.purchase_date DESC
		LIMIT {:limit} OFFSET {:offset}`)
	query.Bind(dbx.Params{
		"userID": userID,
		"limit":  limit,
		"offset": offset,
	})

	var rows []*HistoryRow
	if err := query.All(&rows); err != nil {
		return nil, fmt.Errorf("ticket history for %s: %w", userID, err)
	}
	return rows, nil
}

func (s *RecordStore) findPurchase(app core.App, sessionID string) (*core.Record, error) {
	records, err := app.FindRecordsByFilter(
		"credit_purchases",
		"session_id = {:sessionID}",
		"-created",
		1,
		0,
		map[string]any{"sessionID": sessionID},
	)
	if err != nil {
		return nil, fmt.Errorf("find credit purchase %s: %w", sessionID, err)
	}
	if len(records) == 0 {
		return nil, status.ErrPurchaseNotFound
	}
	return records[0], nil
}

func eventFromRecord(record *core.Record) *models.Event {
	return &models.Event{
		ID:               record.Id,
		Name:             record.GetString("name"),
		Description:      record.GetString("description"),
		Date:             record.GetString("date"),
		Location:         record.GetString("location"),
		Price:            record.GetFloat("price"),
		AvailableTickets: record.GetInt("available_tickets"),
		TotalTickets:     record.GetInt("total_tickets"),
		Category:         record.GetString("category"),
		Source:           record.GetString("source"),
		ImageURL:         record.GetString("image_url"),
		Status:           record.GetString("status"),
	}
}

// ticketQRPayload encodes the scannable payload for an issued ticket.
// The ticket id must already be persisted.
func ticketQRPayload(ticketID, eventID, userID, code string) string {
	qr, _ := json.Marshal(map[string]string{
		"ticket_id": ticketID,
		"event_id":  eventID,
		"user_id":   userID,
		"code":      code,
	})
	return string(qr)
}

func ticketFromRecord(record *core.Record) *models.Ticket {
	return &models.Ticket{
		ID:           record.Id,
		EventID:      record.GetString("event_id"),
		UserID:       record.GetString("user_id"),
		UserEmail:    record.GetString("user_email"),
		UserName:     record.GetString("user_name"),
		TicketType:   record.GetString("ticket_type"),
		Price:        record.GetFloat("price"),
		Status:       record.GetString("status"),
		QRCode:       record.GetString("qr_code"),
		PurchaseDate: record.GetString("purchase_date"),
		Source:       record.GetString("source"),
	}
}

func purchaseFromRecord(record *core.Record) *models.CreditPurchase {
	purchase := &models.CreditPurchase{
		ID:        record.Id,
		SessionID: record.GetString("session_id"),
		UserID:    record.GetString("user_id"),
		PackID:    record.GetString("pack_id"),
		Amount:    record.GetFloat("amount"),
		Credits:   record.GetInt("credits"),
		Status:    record.GetString("status"),
		CreatedAt: record.GetDateTime("created").Time(),
	}
	if raw := record.GetString("completed_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			purchase.CompletedAt = &ts
		}
	}
	return purchase
}
