package gormEventStore

import (
	"sort"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/Layr-Labs/sidecar-events/pkg/eventStore"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

type GormEventStore struct {
	Db     *gorm.DB
	Logger *zap.Logger
}

func NewGormEventStore(db *gorm.DB, l *zap.Logger) *GormEventStore {
	return &GormEventStore{
		Db:     db,
		Logger: l,
	}
}

func (s *GormEventStore) UpsertEvents(events []domainEvents.DomainEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	records := make([]*eventStore.DomainEventRecord, 0, len(events))
	for _, e := range events {
		r, err := eventStore.NewRecordFromEvent(e)
		if err != nil {
			return 0, err
		}
		records = append(records, r)
	}

	res := s.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_id"}},
		DoNothing: true,
	}).CreateInBatches(&records, upsertBatchSize)
	if res.Error != nil {
		s.Logger.Sugar().Errorw("Failed to upsert domain events",
			zap.Int("count", len(records)),
			zap.Error(res.Error),
		)
		return 0, res.Error
	}
	s.Logger.Sugar().Debugw("Upserted domain events",
		zap.Int("count", len(records)),
		zap.Int64("inserted", res.RowsAffected),
	)
	return res.RowsAffected, nil
}

func (s *GormEventStore) GetEventsForTransaction(txHash string) ([]domainEvents.DomainEvent, error) {
	var records []*eventStore.DomainEventRecord
	res := s.Db.Model(&eventStore.DomainEventRecord{}).
		Where("tx_hash = ?", strings.ToLower(txHash)).
		Find(&records)
	if res.Error != nil {
		return nil, res.Error
	}
	events := make([]domainEvents.DomainEvent, 0, len(records))
	for _, r := range records {
		e, err := r.ToEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	domainEvents.SortEvents(events)
	return events, nil
}

func (s *GormEventStore) ListContentIdsForBlock(blockNumber uint64) ([]string, error) {
	var ids []string
	res := s.Db.Model(&eventStore.DomainEventRecord{}).
		Where("block_number = ?", blockNumber).
		Pluck("content_id", &ids)
	if res.Error != nil {
		return nil, res.Error
	}
	sort.Strings(ids)
	return ids, nil
}
