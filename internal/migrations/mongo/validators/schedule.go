package validators

import "go.mongodb.org/mongo-driver/bson"

var ScheduleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "version", "entries"},

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
			"entries": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"booking_id", "appointment_instant", "end_instant"},
					"properties": bson.M{
						"booking_id":          bson.M{"bsonType": "string"},
						"user_id":             bson.M{"bsonType": "string"},
						"appointment_instant": bson.M{"bsonType": "date"},
						"end_instant":         bson.M{"bsonType": "date"},
						"session_type":        bson.M{"bsonType": "string"},
					},
				},
			},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
