package model

import "time"

type ProviderStatus string

const (
	ProviderPending ProviderStatus = "pending"
	ProviderReady   ProviderStatus = "ready"
)

type Provider struct {
	ID                     string             `json:"id" bson:"_id" validate:"required,min=1,max=64,provider_id"`
	Timezone               string             `json:"timezone" bson:"timezone" validate:"required,iana_timezone"`
	SessionDurationMinutes int                `json:"sessionDurationMinutes" bson:"session_duration_minutes" validate:"required,min=5,max=480"`
	Status                 ProviderStatus     `json:"status" bson:"status" validate:"required,oneof=pending ready"`
	WeeklyAvailability     WeeklyAvailability `json:"weeklyAvailability,omitempty" bson:"weekly_availability,omitempty"`
	CreatedAt              time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt              time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (p *Provider) IsReady() bool {
	return p.Status == ProviderReady
}

func (p *Provider) SessionDuration() time.Duration {
	return time.Duration(p.SessionDurationMinutes) * time.Minute
}
