// Package eventStore persists domain events keyed by their content id.
package eventStore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/sidecar-events/pkg/domainEvents"
	"github.com/shopspring/decimal"
)

type DomainEventRecord struct {
	ContentId      string          `gorm:"primaryKey;type:varchar(66)"`
	Kind           string          `gorm:"type:varchar(32);not null"`
	TxHash         string          `gorm:"type:varchar(66);not null"`
	BlockNumber    uint64          `gorm:"not null"`
	LogIndex       uint64          `gorm:"not null"`
	BlockTimestamp uint64
	PrimaryAmount  decimal.Decimal `gorm:"type:varchar(78)"`
	ParentId       string          `gorm:"type:varchar(66)"`
	Payload        string          `gorm:"type:text"`
	CreatedAt      time.Time
}

func (DomainEventRecord) TableName() string {
	return "domain_events"
}

type EventStore interface {
	// UpsertEvents inserts events whose content id is not yet stored and
	// returns how many rows were new.
	UpsertEvents(events []domainEvents.DomainEvent) (int64, error)
	GetEventsForTransaction(txHash string) ([]domainEvents.DomainEvent, error)
	ListContentIdsForBlock(blockNumber uint64) ([]string, error)
}

func NewRecordFromEvent(event domainEvents.DomainEvent) (*DomainEventRecord, error) {
	meta := event.GetMetadata()
	if meta.ContentId == "" {
		return nil, fmt.Errorf("%s event in tx %s at log %d has no content id", event.Kind(), meta.TxHash, meta.LogIndex)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.Kind(), err)
	}

	amount := decimal.Zero
	if a := domainEvents.PrimaryAmount(event); a != nil {
		amount = decimal.NewFromBigInt(a, 0)
	}

	parentId := ""
	if t, ok := event.(*domainEvents.Transfer); ok {
		parentId = string(t.ParentId)
	}

	return &DomainEventRecord{
		ContentId:      string(meta.ContentId),
		Kind:           string(event.Kind()),
		TxHash:         strings.ToLower(meta.TxHash),
		BlockNumber:    meta.BlockNumber,
		LogIndex:       meta.LogIndex,
		BlockTimestamp: meta.Timestamp,
		PrimaryAmount:  amount,
		ParentId:       parentId,
		Payload:        string(payload),
	}, nil
}

func (r *DomainEventRecord) ToEvent() (domainEvents.DomainEvent, error) {
	event, err := domainEvents.NewEventForKind(domainEvents.EventKind(r.Kind))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Payload), event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event %s: %w", r.Kind, r.ContentId, err)
	}
	return event, nil
}
