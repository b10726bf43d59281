package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

// systemInfo is the star system block shared by FSDJump and Location
type systemInfo struct {
	StarSystem             string   `json:"StarSystem"`
	SystemAddress          int64    `json:"SystemAddress"`
	StarPos                starPos  `json:"StarPos"`
	SystemAllegiance       string   `json:"SystemAllegiance"`
	SystemEconomy          string   `json:"SystemEconomy"`
	SystemEconomyLocalised string   `json:"SystemEconomy_Localised"`
	SystemSecondEconomy    string   `json:"SystemSecondEconomy"`
	SystemGovernment       string   `json:"SystemGovernment"`
	SystemSecurity         string   `json:"SystemSecurity"`
	Population             int64    `json:"Population"`
	Body                   string   `json:"Body"`
	BodyID                 int64    `json:"BodyID"`
	BodyType               string   `json:"BodyType"`
	SystemFaction          *faction `json:"SystemFaction"`
	FactionState           string   `json:"FactionState"` // Older journals put it next to a plain SystemFaction
}

var systemColumns = []writer.Column{
	str("star_system"), i64("system_address"), f64("star_pos_x"), f64("star_pos_y"), f64("star_pos_z"),
	str("system_allegiance"), str("system_economy"), str("system_economy_localised"),
	str("system_second_economy"), str("system_government"), str("system_security"),
	i64("population"), str("body"), i64("body_id"), str("body_type"),
	str("system_faction_name"), str("system_faction_state"),
}

func (s *systemInfo) set(row *writer.Row) *writer.Row {
	factionName, factionState := "", s.FactionState
	if s.SystemFaction != nil {
		factionName = s.SystemFaction.Name
		if s.SystemFaction.State != "" {
			factionState = s.SystemFaction.State
		}
	}

	return row.
		Set("star_system", s.StarSystem).
		Set("system_address", s.SystemAddress).
		Set("star_pos_x", s.StarPos.axis(0)).
		Set("star_pos_y", s.StarPos.axis(1)).
		Set("star_pos_z", s.StarPos.axis(2)).
		Set("system_allegiance", s.SystemAllegiance).
		Set("system_economy", s.SystemEconomy).
		Set("system_economy_localised", s.SystemEconomyLocalised).
		Set("system_second_economy", s.SystemSecondEconomy).
		Set("system_government", s.SystemGovernment).
		Set("system_security", s.SystemSecurity).
		Set("population", s.Population).
		Set("body", s.Body).
		Set("body_id", s.BodyID).
		Set("body_type", s.BodyType).
		Set("system_faction_name", factionName).
		Set("system_faction_state", factionState)
}

type fsdJumpEvent struct {
	systemInfo
	JumpDist  float64 `json:"JumpDist"`
	FuelUsed  float64 `json:"FuelUsed"`
	FuelLevel float64 `json:"FuelLevel"`
}

func newFSDJump() *handler[fsdJumpEvent] {
	columns := append(append([]writer.Column{}, systemColumns...),
		f64("jump_dist"), f64("fuel_used"), f64("fuel_level"))

	return &handler[fsdJumpEvent]{
		eventType: "FSDJump",
		tables:    []writer.Table{{Name: "event_fsd_jump", Columns: columns}},
		rows: func(id uuid.UUID, ts time.Time, p *fsdJumpEvent) []*writer.Row {
			row := p.systemInfo.set(writer.NewRow("event_fsd_jump", id, ts, 0)).
				Set("jump_dist", p.JumpDist).
				Set("fuel_used", p.FuelUsed).
				Set("fuel_level", p.FuelLevel)
			return []*writer.Row{row}
		},
	}
}

type fsdTargetEvent struct {
	Name                  string `json:"Name"`
	SystemAddress         int64  `json:"SystemAddress"`
	StarClass             string `json:"StarClass"`
	RemainingJumpsInRoute int64  `json:"RemainingJumpsInRoute"`
}

func newFSDTarget() *handler[fsdTargetEvent] {
	return &handler[fsdTargetEvent]{
		eventType: "FSDTarget",
		tables: []writer.Table{{
			Name: "event_fsd_target",
			Columns: []writer.Column{
				str("name"), i64("system_address"), str("star_class"), i64("remaining_jumps_in_route"),
			},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *fsdTargetEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_fsd_target", id, ts, 0).
					Set("name", p.Name).
					Set("system_address", p.SystemAddress).
					Set("star_class", p.StarClass).
					Set("remaining_jumps_in_route", p.RemainingJumpsInRoute),
			}
		},
	}
}

type startJumpEvent struct {
	JumpType      string `json:"JumpType"`
	StarSystem    string `json:"StarSystem"`
	SystemAddress int64  `json:"SystemAddress"`
	StarClass     string `json:"StarClass"`
}

func newStartJump() *handler[startJumpEvent] {
	return &handler[startJumpEvent]{
		eventType: "StartJump",
		tables: []writer.Table{{
			Name: "event_start_jump",
			Columns: []writer.Column{
				str("jump_type"), str("star_system"), i64("system_address"), str("star_class"),
			},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *startJumpEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_start_jump", id, ts, 0).
					Set("jump_type", p.JumpType).
					Set("star_system", p.StarSystem).
					Set("system_address", p.SystemAddress).
					Set("star_class", p.StarClass),
			}
		},
	}
}

type locationFaction struct {
	Name         string  `json:"Name"`
	FactionState string  `json:"FactionState"`
	Government   string  `json:"Government"`
	Influence    float64 `json:"Influence"`
	Allegiance   string  `json:"Allegiance"`
	Happiness    string  `json:"Happiness"`
	MyReputation float64 `json:"MyReputation"`
}

type locationEvent struct {
	systemInfo
	Docked            bool              `json:"Docked"`
	StationName       string            `json:"StationName"`
	StationType       string            `json:"StationType"`
	MarketID          int64             `json:"MarketID"`
	StationFaction    *faction          `json:"StationFaction"`
	StationGovernment string            `json:"StationGovernment"`
	StationAllegiance string            `json:"StationAllegiance"`
	StationEconomy    string            `json:"StationEconomy"`
	StationServices   []string          `json:"StationServices"`
	Factions          []locationFaction `json:"Factions"`
}

const (
	locationTable         = "event_location"
	locationFactionsTable = "event_location_factions"
	locationServicesTable = "event_location_station_services"
)

func newLocation() *handler[locationEvent] {
	columns := append([]writer.Column{
		flag("docked"), str("station_name"), str("station_type"), i64("market_id"),
		str("station_faction_name"), str("station_faction_state"), str("station_government"),
		str("station_allegiance"), str("station_economy"),
	}, systemColumns...)

	return &handler[locationEvent]{
		eventType: "Location",
		tables: []writer.Table{
			{Name: locationTable, Columns: columns},
			{Name: locationFactionsTable, Columns: []writer.Column{
				str("name"), str("state"), str("government"), f64("influence"),
				str("allegiance"), str("happiness"), f64("my_reputation"),
			}},
			{Name: locationServicesTable, Columns: []writer.Column{str("station_service")}},
		},
		rows: func(id uuid.UUID, ts time.Time, p *locationEvent) []*writer.Row {
			var stationFaction faction
			if p.StationFaction != nil {
				stationFaction = *p.StationFaction
			}

			row := writer.NewRow(locationTable, id, ts, 0).
				Set("docked", p.Docked).
				Set("station_name", p.StationName).
				Set("station_type", p.StationType).
				Set("market_id", p.MarketID).
				Set("station_faction_name", stationFaction.Name).
				Set("station_faction_state", stationFaction.State).
				Set("station_government", p.StationGovernment).
				Set("station_allegiance", p.StationAllegiance).
				Set("station_economy", p.StationEconomy)
			rows := []*writer.Row{p.systemInfo.set(row)}

			for i, f := range p.Factions {
				rows = append(rows, writer.NewRow(locationFactionsTable, id, ts, uint32(i)).
					Set("name", f.Name).
					Set("state", f.FactionState).
					Set("government", f.Government).
					Set("influence", f.Influence).
					Set("allegiance", f.Allegiance).
					Set("happiness", f.Happiness).
					Set("my_reputation", f.MyReputation))
			}

			for i, service := range p.StationServices {
				rows = append(rows, writer.NewRow(locationServicesTable, id, ts, uint32(i)).
					Set("station_service", service))
			}

			return rows
		},
	}
}
