package postgres

import (
	"context"
	"errors"
	"fmt"

	"signalwatch/internal/signal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LastAlerted implements the signal state store lookup.
func (p *PostgresClient) LastAlerted(ctx context.Context, sub signal.Subscriber, sym signal.Symbol) (signal.Classification, bool, error) {
	var rec SignalRecord
	err := p.DB.WithContext(ctx).
		Where("subscriber = ? AND symbol = ?", string(sub), string(sym)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	c, err := signal.ParseClassification(rec.Classification)
	if err != nil {
		return "", false, fmt.Errorf("signal_record %d: %w", rec.ID, err)
	}
	return c, true, nil
}

// Record upserts the classification for (sub, sym).
func (p *PostgresClient) Record(ctx context.Context, sub signal.Subscriber, sym signal.Symbol, c signal.Classification) error {
	rec := &SignalRecord{
		Subscriber:     string(sub),
		Symbol:         string(sym),
		Classification: string(c),
	}
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subscriber"},
			{Name: "symbol"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"classification", "updated_at"}),
	}).Create(rec).Error
}

func (p *PostgresClient) Forget(ctx context.Context, sub signal.Subscriber) error {
	return p.DB.WithContext(ctx).
		Where("subscriber = ?", string(sub)).
		Delete(&SignalRecord{}).Error
}
