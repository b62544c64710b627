package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"user_id",
			"provider_id",
			"appointment_instant",
			"end_instant",
			"session_type",
			"status",
			"reschedule_count",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},
			"provider_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"appointment_instant":      bson.M{"bsonType": "date"},
			"end_instant":              bson.M{"bsonType": "date"},
			"rescheduled_from_instant": bson.M{"bsonType": "date"},
			"session_type": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"scheduled", "cancelled", "completed"},
			},
			"reschedule_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"cancellation_reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},
			"cancelled_at": bson.M{"bsonType": "date"},
			"completed_at": bson.M{"bsonType": "date"},
			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
