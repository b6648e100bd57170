package postgres

import (
	"context"

	"signalwatch/internal/signal"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SaveSubscription replaces every row of sub in one transaction.
func (p *PostgresClient) SaveSubscription(ctx context.Context, sub signal.Subscriber, symbols []signal.Symbol) error {
	records := lo.Map(symbols, func(sym signal.Symbol, i int) SubscriptionRecord {
		return SubscriptionRecord{Subscriber: string(sub), Symbol: string(sym), Position: i}
	})

	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscriber = ?", string(sub)).Delete(&SubscriptionRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

func (p *PostgresClient) DeleteSubscription(ctx context.Context, sub signal.Subscriber) error {
	return p.DB.WithContext(ctx).
		Where("subscriber = ?", string(sub)).
		Delete(&SubscriptionRecord{}).Error
}

func (p *PostgresClient) LoadSubscriptions(ctx context.Context) (map[signal.Subscriber][]signal.Symbol, error) {
	var records []SubscriptionRecord
	err := p.DB.WithContext(ctx).
		Order("subscriber, position").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make(map[signal.Subscriber][]signal.Symbol)
	for _, r := range records {
		sub := signal.Subscriber(r.Subscriber)
		out[sub] = append(out[sub], signal.Symbol(r.Symbol))
	}
	return out, nil
}
