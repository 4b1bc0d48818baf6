package models

type Event struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Date             string  `json:"date"`
	Location         string  `json:"location"`
	Price            float64 `json:"price"`
	AvailableTickets int     `json:"available_tickets"`
	TotalTickets     int     `json:"total_tickets"`
	Category         string  `json:"category"`
	Source           string  `json:"source"` // local, ticketmaster
	ImageURL         string  `json:"image_url,omitempty"`
	Status           string  `json:"status"` // active, cancelled, finished
}
