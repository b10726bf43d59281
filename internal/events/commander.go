package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

type commanderEvent struct {
	FID  string `json:"FID"`
	Name string `json:"Name"`
}

func newCommander() *handler[commanderEvent] {
	return &handler[commanderEvent]{
		eventType: "Commander",
		tables: []writer.Table{{
			Name:    "event_commander",
			Columns: []writer.Column{str("fid"), str("name")},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *commanderEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_commander", id, ts, 0).
					Set("fid", p.FID).
					Set("name", p.Name),
			}
		},
	}
}

type loadGameEvent struct {
	FID          string  `json:"FID"`
	Commander    string  `json:"Commander"`
	Horizons     bool    `json:"Horizons"`
	Ship         string  `json:"Ship"`
	ShipID       int64   `json:"ShipID"`
	ShipName     string  `json:"ShipName"`
	ShipIdent    string  `json:"ShipIdent"`
	FuelLevel    float64 `json:"FuelLevel"`
	FuelCapacity float64 `json:"FuelCapacity"`
	GameMode     string  `json:"GameMode"`
	Group        string  `json:"Group"`
	Credits      int64   `json:"Credits"`
	Loan         int64   `json:"Loan"`
}

func newLoadGame() *handler[loadGameEvent] {
	return &handler[loadGameEvent]{
		eventType: "LoadGame",
		tables: []writer.Table{{
			Name: "event_load_game",
			Columns: []writer.Column{
				str("fid"), str("commander"), flag("horizons"), str("ship"), i64("ship_id"),
				str("ship_name"), str("ship_ident"), f64("fuel_level"), f64("fuel_capacity"),
				str("game_mode"), str("group_name"), i64("credits"), i64("loan"),
			},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *loadGameEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_load_game", id, ts, 0).
					Set("fid", p.FID).
					Set("commander", p.Commander).
					Set("horizons", p.Horizons).
					Set("ship", p.Ship).
					Set("ship_id", p.ShipID).
					Set("ship_name", p.ShipName).
					Set("ship_ident", p.ShipIdent).
					Set("fuel_level", p.FuelLevel).
					Set("fuel_capacity", p.FuelCapacity).
					Set("game_mode", p.GameMode).
					Set("group_name", p.Group).
					Set("credits", p.Credits).
					Set("loan", p.Loan),
			}
		},
	}
}

// rankEvent carries the six rank ladders; Rank holds ranks and Progress
// holds the percentage towards the next rank
type rankEvent struct {
	Combat     int64 `json:"Combat"`
	Trade      int64 `json:"Trade"`
	Explore    int64 `json:"Explore"`
	Empire     int64 `json:"Empire"`
	Federation int64 `json:"Federation"`
	CQC        int64 `json:"CQC"`
}

var rankColumns = []writer.Column{
	i64("combat"), i64("trade"), i64("explore"), i64("empire"), i64("federation"), i64("cqc"),
}

func rankHandler(eventType, table string) *handler[rankEvent] {
	return &handler[rankEvent]{
		eventType: eventType,
		tables:    []writer.Table{{Name: table, Columns: rankColumns}},
		rows: func(id uuid.UUID, ts time.Time, p *rankEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow(table, id, ts, 0).
					Set("combat", p.Combat).
					Set("trade", p.Trade).
					Set("explore", p.Explore).
					Set("empire", p.Empire).
					Set("federation", p.Federation).
					Set("cqc", p.CQC),
			}
		},
	}
}

func newRank() *handler[rankEvent] { return rankHandler("Rank", "event_rank") }

func newProgress() *handler[rankEvent] { return rankHandler("Progress", "event_progress") }

type reputationEvent struct {
	Empire      float64 `json:"Empire"`
	Federation  float64 `json:"Federation"`
	Independent float64 `json:"Independent"`
	Alliance    float64 `json:"Alliance"`
}

func newReputation() *handler[reputationEvent] {
	return &handler[reputationEvent]{
		eventType: "Reputation",
		tables: []writer.Table{{
			Name:    "event_reputation",
			Columns: []writer.Column{f64("empire"), f64("federation"), f64("independent"), f64("alliance")},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *reputationEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_reputation", id, ts, 0).
					Set("empire", p.Empire).
					Set("federation", p.Federation).
					Set("independent", p.Independent).
					Set("alliance", p.Alliance),
			}
		},
	}
}
