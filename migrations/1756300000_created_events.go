package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "evcol9x2kq4zzo1",
			"name": "events",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text_title",
					"name": "title",
					"type": "text",
					"required": true,
					"presentable": true,
					"min": 1,
					"max": 80,
					"pattern": ""
				},
				{
					"id": "text_notes",
					"name": "notes",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "text_guidelines",
					"name": "guidelines",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "text_location",
					"name": "location",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "number_capacity",
					"name": "capacity",
					"type": "number",
					"required": true,
					"presentable": false,
					"min": 1,
					"max": 500,
					"onlyInt": true
				},
				{
					"id": "text_fee",
					"name": "fee",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "date_starts_at",
					"name": "starts_at",
					"type": "date",
					"required": true,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "date_reg_start",
					"name": "registration_start",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "date_reg_end",
					"name": "registration_end",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "date_deadline",
					"name": "deadline",
					"type": "date",
					"required": false,
					"presentable": false,
					"min": "",
					"max": ""
				},
				{
					"id": "relation_organizer",
					"name": "organizer",
					"type": "relation",
					"required": true,
					"presentable": false,
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": false,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "url_poster",
					"name": "poster_url",
					"type": "url",
					"required": false,
					"presentable": false,
					"exceptDomains": null,
					"onlyDomains": null
				},
				{
					"id": "text_qr_payload",
					"name": "qr_payload",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				}
			],
			"indexes": [
				"CREATE INDEX idx_events_starts_at ON events (starts_at)"
			],
			"listRule": "",
			"viewRule": "",
			"createRule": "@request.auth.id != ''",
			"updateRule": "@request.auth.id = organizer",
			"deleteRule": "@request.auth.id = organizer"
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("evcol9x2kq4zzo1")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
