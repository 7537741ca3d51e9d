package message

import (
	"database/sql"
	"time"
)

// DeliveryState represents message_deliveries
type DeliveryState struct {
	MessageID   string
	UserID      string
	DeliveredAt sql.NullTime
	SeenAt      sql.NullTime
}

func (d *DeliveryState) MarkDelivered(at time.Time) {
	d.DeliveredAt = sql.NullTime{Time: at, Valid: true}
}

// MarkSeen records the read time. A seen message is also delivered.
func (d *DeliveryState) MarkSeen(at time.Time) {
	d.SeenAt = sql.NullTime{Time: at, Valid: true}
	if !d.DeliveredAt.Valid {
		d.DeliveredAt = d.SeenAt
	}
}
