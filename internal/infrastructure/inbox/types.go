package inbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Delivery kinds, one per webhook surface.
const (
	KindTelegram = "telegram"
	KindGmail    = "gmail"
	KindCalendar = "calendar"
)

// Item is one accepted webhook delivery awaiting processing.
type Item struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
