package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true, Max: 200},
			&core.TextField{Name: "description", Max: 5000},
			&core.TextField{Name: "date", Required: true},
			&core.TextField{Name: "location", Max: 300},
			&core.NumberField{Name: "price", Required: true},
			&core.NumberField{Name: "available_tickets", OnlyInt: true},
			&core.NumberField{Name: "total_tickets", OnlyInt: true},
			&core.TextField{Name: "category", Max: 100},
			&core.SelectField{Name: "source", Values: []string{"local", "ticketmaster"}, MaxSelect: 1},
			&core.TextField{Name: "image_url", Max: 500},
			&core.SelectField{Name: "status", Values: []string{"active", "cancelled", "finished"}, MaxSelect: 1},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_events_status", false, "status", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
