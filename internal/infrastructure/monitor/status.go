package monitor

import "time"

type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Inbox      bool      `json:"inbox"`
	InboxSize  int       `json:"inbox_size"`
	LastCheck  time.Time `json:"last_check"`
}
