package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "prcol4m8tw2yyo2",
			"name": "profiles",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "relation_user",
					"name": "user",
					"type": "relation",
					"required": true,
					"presentable": true,
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": true,
					"minSelect": 0,
					"maxSelect": 1
				},
				{
					"id": "text_display_name",
					"name": "display_name",
					"type": "text",
					"required": false,
					"presentable": true,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "email_email",
					"name": "email",
					"type": "email",
					"required": false,
					"presentable": false,
					"exceptDomains": null,
					"onlyDomains": null
				},
				{
					"id": "text_phone",
					"name": "phone_number",
					"type": "text",
					"required": false,
					"presentable": false,
					"min": 0,
					"max": 0,
					"pattern": ""
				},
				{
					"id": "url_photo",
					"name": "photo_url",
					"type": "url",
					"required": false,
					"presentable": false,
					"exceptDomains": null,
					"onlyDomains": null
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_profiles_user ON profiles (user)"
			],
			"listRule": "@request.auth.id = user",
			"viewRule": "@request.auth.id = user",
			"createRule": "@request.auth.id != ''",
			"updateRule": "@request.auth.id = user",
			"deleteRule": "@request.auth.id = user"
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("prcol4m8tw2yyo2")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
