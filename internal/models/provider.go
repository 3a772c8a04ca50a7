package models

import (
	"fmt"
	"time"
)

// ProviderState is the mutable side of the provider configuration, keyed by
// client id and config version.
type ProviderState struct {
	ID                string     `bson:"_id" json:"id"`
	ClientID          string     `bson:"client_id" json:"client_id"`
	Version           int        `bson:"version" json:"version"`
	AccessToken       string     `bson:"access_token,omitempty" json:"-"`
	TokenExpiresAt    *time.Time `bson:"token_expires_at,omitempty" json:"token_expires_at,omitempty"`
	PublicKey         string     `bson:"public_key,omitempty" json:"public_key,omitempty"`
	PublicKeyID       string     `bson:"public_key_id,omitempty" json:"public_key_id,omitempty"`
	LastWebhookStatus string     `bson:"last_webhook_status,omitempty" json:"last_webhook_status,omitempty"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// WebhookDelivery records a processed notification so an identical redelivery
// is recognised.
type WebhookDelivery struct {
	Key           string    `bson:"_id" json:"key"`
	TransactionID string    `bson:"transaction_id" json:"transaction_id"`
	Status        string    `bson:"status" json:"status"`
	ReceivedAt    time.Time `bson:"received_at" json:"received_at"`
}

type TransactionStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
	Pending    int64 `json:"pending"`
}

func ProviderStateID(clientID string, version int) string {
	return fmt.Sprintf("%s:v%d", clientID, version)
}
