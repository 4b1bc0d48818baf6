package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "event_id", Required: true, Max: 100},
			&core.TextField{Name: "user_id", Required: true, Max: 100},
			&core.EmailField{Name: "user_email"},
			&core.TextField{Name: "user_name", Max: 200},
			&core.TextField{Name: "ticket_type", Max: 100},
			&core.NumberField{Name: "price"},
			&core.SelectField{Name: "status", Values: []string{"confirmed", "cancelled", "transferred"}, MaxSelect: 1},
			&core.TextField{Name: "qr_code", Max: 1000},
			&core.TextField{Name: "purchase_date", Max: 100},
			&core.TextField{Name: "source", Max: 100},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_user", false, "user_id", "")
		collection.AddIndex("idx_tickets_event", false, "event_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
