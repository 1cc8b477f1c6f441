package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"funnelboard/internal/analytics"
)

// SnapshotRecord is one archived computation cycle. The headline scalars are
// stored as columns for cheap history queries; the full snapshot rides along
// as jsonb.
type SnapshotRecord struct {
	ID              string    `json:"id" gorm:"primarykey"`
	Period          string    `json:"period" gorm:"index"`
	Week            int       `json:"week"`
	TotalLeads      int       `json:"total_leads"`
	CitasAgendadas  int       `json:"citas_agendadas"`
	GananciaMensual float64   `json:"ganancia_mensual"`
	Payload         []byte    `json:"payload" gorm:"type:jsonb"`
	ComputedAt      time.Time `json:"computed_at" gorm:"index"`
}

// Archive persists snapshot history in Postgres.
type Archive struct {
	db *gorm.DB
}

// NewArchive opens the database and migrates the snapshot table.
func NewArchive(dsn string) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot table: %w", err)
	}

	return &Archive{db: db}, nil
}

// Save archives one computed snapshot. period is the selected month in
// "2006-01" form, or "all_time".
func (a *Archive) Save(ctx context.Context, period string, week int, snapshot *analytics.MetricsSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	record := &SnapshotRecord{
		ID:              uuid.New().String(),
		Period:          period,
		Week:            week,
		TotalLeads:      snapshot.KPIs.TotalLeads,
		CitasAgendadas:  snapshot.KPIs.CitasAgendadas,
		GananciaMensual: snapshot.KPIs.GananciaMensual,
		Payload:         payload,
		ComputedAt:      snapshot.ComputedAt,
	}

	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return nil
}

// Recent returns the newest archived snapshots, most recent first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	var records []SnapshotRecord
	err := a.db.WithContext(ctx).
		Order("computed_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	return records, nil
}
