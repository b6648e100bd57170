package postgres

import "time"

// SignalRecord is the last alerted classification for one (subscriber, symbol).
// Symbol columns are sized to signal.MaxSymbolLen.
type SignalRecord struct {
	ID uint `gorm:"primaryKey"`

	Subscriber string `gorm:"type:varchar(64);not null;index:idx_signal_subscriber_symbol,unique"`
	Symbol     string `gorm:"type:varchar(32);not null;index:idx_signal_subscriber_symbol,unique"`

	Classification string `gorm:"type:varchar(16);not null"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (SignalRecord) TableName() string {
	return "signal_record"
}

// SubscriptionRecord is one tracked symbol of a subscriber.
type SubscriptionRecord struct {
	ID uint `gorm:"primaryKey"`

	Subscriber string `gorm:"type:varchar(64);not null;index:idx_subscription_subscriber_symbol,unique"`
	Symbol     string `gorm:"type:varchar(32);not null;index:idx_subscription_subscriber_symbol,unique"`
	Position   int    `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SubscriptionRecord) TableName() string {
	return "subscription_record"
}
