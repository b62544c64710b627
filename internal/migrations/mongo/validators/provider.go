package validators

import "go.mongodb.org/mongo-driver/bson"

var availabilityWindow = bson.M{
	"bsonType": "object",
	"required": []string{"enabled", "start_minute", "end_minute"},
	"properties": bson.M{
		"enabled": bson.M{"bsonType": "bool"},
		"start_minute": bson.M{
			"bsonType": []string{"int", "long"},
			"minimum":  0,
			"maximum":  1439,
		},
		"end_minute": bson.M{
			"bsonType": []string{"int", "long"},
			"minimum":  0,
			"maximum":  1439,
		},
	},
}

var ProviderValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"timezone",
			"session_duration_minutes",
			"status",
			"created_at",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"timezone": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"session_duration_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  5,
				"maximum":  480,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "ready"},
			},
			"weekly_availability": bson.M{
				"bsonType":             "object",
				"additionalProperties": false,
				"properties": bson.M{
					"monday":    availabilityWindow,
					"tuesday":   availabilityWindow,
					"wednesday": availabilityWindow,
					"thursday":  availabilityWindow,
					"friday":    availabilityWindow,
					"saturday":  availabilityWindow,
					"sunday":    availabilityWindow,
				},
			},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
