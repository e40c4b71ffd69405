package models

import "time"

type Client struct {
	ID               string  `gorm:"primaryKey;size:50" json:"id"`
	Name             string  `gorm:"size:120;not null" json:"name"`
	Email            string  `gorm:"size:120;not null" json:"email"`
	StripeCustomerID *string `gorm:"size:100" json:"stripe_customer_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentMethod is a locally saved reference to a provider-side payment
// method. The default flag plus UpdatedAt give the resolution order:
// most-recently-marked-default first.
type PaymentMethod struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	ClientID         string `gorm:"size:50;not null;index:idx_method_client" json:"client_id"`
	ProviderMethodID string `gorm:"size:100;not null" json:"provider_method_id"`
	IsDefault        bool   `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
