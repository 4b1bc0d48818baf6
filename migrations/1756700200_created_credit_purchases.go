package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("credit_purchases")

		collection.Fields.Add(
			&core.TextField{Name: "session_id", Required: true, Max: 200},
			&core.TextField{Name: "user_id", Required: true, Max: 100},
			&core.TextField{Name: "pack_id", Required: true, Max: 50},
			&core.NumberField{Name: "amount"},
			&core.NumberField{Name: "credits", OnlyInt: true},
			&core.SelectField{Name: "status", Values: []string{"pending", "completed", "cancelled"}, MaxSelect: 1},
			&core.TextField{Name: "completed_at", Max: 100},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_credit_purchases_session", true, "session_id", "")
		collection.AddIndex("idx_credit_purchases_user", false, "user_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("credit_purchases")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
