package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

type receiveTextEvent struct {
	From             string `json:"From"`
	Message          string `json:"Message"`
	MessageLocalised string `json:"Message_Localised"`
	Channel          string `json:"Channel"`
}

func newReceiveText() *handler[receiveTextEvent] {
	return &handler[receiveTextEvent]{
		eventType: "ReceiveText",
		tables: []writer.Table{{
			Name:    "event_receive_text",
			Columns: []writer.Column{str("msg_from"), str("message"), str("message_localised"), str("channel")},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *receiveTextEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_receive_text", id, ts, 0).
					Set("msg_from", p.From).
					Set("message", p.Message).
					Set("message_localised", p.MessageLocalised).
					Set("channel", p.Channel),
			}
		},
	}
}
