package models

type Ticket struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	UserID       string  `json:"user_id"`
	UserEmail    string  `json:"user_email"`
	UserName     string  `json:"user_name"`
	TicketType   string  `json:"ticket_type"`
	Price        float64 `json:"price"`
	Status       string  `json:"status"` // confirmed, cancelled, transferred
	QRCode       string  `json:"qr_code"`
	PurchaseDate string  `json:"purchase_date"`
	Source       string  `json:"source"`
}
