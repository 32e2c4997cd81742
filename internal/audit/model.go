package audit

import (
	"time"

	"tradecore/internal/message"
	"tradecore/internal/orderlog"
	"tradecore/internal/sequence"
)

// GapRecord is one detected sequence gap.
type GapRecord struct {
	ID             uint64    `gorm:"primaryKey;column:id"`
	SubscriptionID int64     `gorm:"column:subscription_id;not null;index"`
	FromSeq        uint64    `gorm:"column:from_seq;not null"`
	ToSeq          uint64    `gorm:"column:to_seq;not null"`
	Missing        uint64    `gorm:"column:missing;not null"`
	DetectedAt     time.Time `gorm:"column:detected_at;type:timestamp;not null;index"`
}

func (GapRecord) TableName() string { return "sequence_gaps" }

func NewGapRecord(gap sequence.Gap, at time.Time) GapRecord {
	return GapRecord{
		SubscriptionID: gap.SubscriptionID,
		FromSeq:        gap.From,
		ToSeq:          gap.To,
		Missing:        gap.Len(),
		DetectedAt:     at,
	}
}

// IncompleteRecord is one order log half evicted without its counterpart.
type IncompleteRecord struct {
	ID             uint64    `gorm:"primaryKey;column:id"`
	SubscriptionID int64     `gorm:"column:subscription_id;not null;index"`
	Side           string    `gorm:"column:side;type:varchar(16);not null"`
	OrderID        int64     `gorm:"column:order_id"`
	OrderStringID  string    `gorm:"column:order_string_id;type:varchar(64)"`
	Kind           string    `gorm:"column:kind;type:varchar(32)"`
	SeqNum         uint64    `gorm:"column:seq_num"`
	FlushedAt      time.Time `gorm:"column:flushed_at;type:timestamp;not null;index"`
}

func (IncompleteRecord) TableName() string { return "incomplete_order_log" }

func NewIncompleteRecord(inc orderlog.Incomplete, at time.Time) IncompleteRecord {
	rec := IncompleteRecord{
		SubscriptionID: inc.SubscriptionID,
		Side:           inc.Side.String(),
		OrderID:        inc.ID.ID,
		OrderStringID:  inc.ID.StringID,
		FlushedAt:      at,
	}
	if inc.Fact != nil {
		rec.Kind = inc.Fact.GetKind().String()
		rec.SeqNum = message.SeqNumOf(inc.Fact)
	}
	return rec
}
