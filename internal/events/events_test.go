package events

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/dispatch"
	"github.com/SteelMorgan/journal-ingest/internal/parser"
	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

func rowsFor(t *testing.T, line string) []*writer.Row {
	t.Helper()

	ev, err := parser.Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	r := dispatch.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h, ok := r.Lookup(ev.Type)
	if !ok {
		t.Fatalf("no handler for %s", ev.Type)
	}

	rows, err := h.Rows(uuid.New(), ev)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}

	// Every row must fit its declared table
	w := writer.NewDiscardWriter()
	if err := w.EnsureTables(context.Background(), h.Tables()); err != nil {
		t.Fatalf("EnsureTables() error = %v", err)
	}
	for _, row := range rows {
		if err := w.WriteRow(context.Background(), row); err != nil {
			t.Errorf("row for %s does not fit: %v", row.Table, err)
		}
	}
	return rows
}

func TestHandlers_RowCounts(t *testing.T) {
	tests := []struct {
		name string
		line string
		want int
	}{
		{"Commander", `{"timestamp":"2021-03-15T18:30:40Z","event":"Commander","FID":"F123","Name":"Jameson"}`, 1},
		{"LoadGame", `{"timestamp":"2021-03-15T18:30:40Z","event":"LoadGame","FID":"F123","Commander":"Jameson","Horizons":true,"Ship":"Python","ShipID":7,"FuelLevel":32.0,"Credits":1000000,"Loan":0}`, 1},
		{"Rank", `{"timestamp":"2021-03-15T18:30:40Z","event":"Rank","Combat":3,"Trade":5,"Explore":4,"Empire":0,"Federation":2,"CQC":0}`, 1},
		{"Progress", `{"timestamp":"2021-03-15T18:30:40Z","event":"Progress","Combat":30,"Trade":55,"Explore":4,"Empire":0,"Federation":21,"CQC":0}`, 1},
		{"Reputation", `{"timestamp":"2021-03-15T18:30:40Z","event":"Reputation","Empire":12.5,"Federation":75.0,"Alliance":0.0}`, 1},
		{"FSDJump", `{"timestamp":"2021-03-15T18:30:40Z","event":"FSDJump","StarSystem":"Sol","SystemAddress":10477373803,"StarPos":[0.0,0.0,0.0],"JumpDist":8.2,"SystemFaction":{"Name":"Mother Gaia","FactionState":"Boom"}}`, 1},
		{"FSDTarget", `{"timestamp":"2021-03-15T18:30:40Z","event":"FSDTarget","Name":"Alpha Centauri","SystemAddress":1099511627778,"StarClass":"G","RemainingJumpsInRoute":2}`, 1},
		{"StartJump", `{"timestamp":"2021-03-15T18:30:40Z","event":"StartJump","JumpType":"Hyperspace","StarSystem":"Alpha Centauri","SystemAddress":1099511627778,"StarClass":"G"}`, 1},
		{"Scan", `{"timestamp":"2021-03-15T18:30:40Z","event":"Scan","ScanType":"Detailed","BodyName":"Earth","BodyID":3,"Landable":false,"Composition":{"Ice":0.0,"Rock":0.67,"Metal":0.33},"WasDiscovered":true}`, 1},
		{"Materials", `{"timestamp":"2021-03-15T18:30:40Z","event":"Materials","Raw":[{"Name":"iron","Count":10},{"Name":"nickel","Count":3}],"Manufactured":[{"Name":"gridresistors","Count":1}],"Encoded":[]}`, 3},
		{"Bounty", `{"timestamp":"2021-03-15T18:30:40Z","event":"Bounty","Target":"viper","TotalReward":5000,"Rewards":[{"Faction":"Alpha","Reward":3000},{"Faction":"Beta","Reward":2000}]}`, 3},
		{"ReceiveText", `{"timestamp":"2021-03-15T18:30:40Z","event":"ReceiveText","From":"Pilot","Message":"o7","Channel":"local"}`, 1},
		{"Location", `{"timestamp":"2021-03-15T18:30:40Z","event":"Location","Docked":true,"StationName":"Abraham Lincoln","StationFaction":"Mother Gaia","FactionState":"Boom","StarSystem":"Sol","StationServices":["dock","refuel"],"Factions":[{"Name":"Mother Gaia","Influence":0.5}]}`, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := rowsFor(t, tt.line)
			if len(rows) != tt.want {
				t.Errorf("expected %d rows, got %d", tt.want, len(rows))
			}
		})
	}
}

func TestMaterials_IndexAcrossCategories(t *testing.T) {
	rows := rowsFor(t, `{"timestamp":"2021-03-15T18:30:40Z","event":"Materials",`+
		`"Raw":[{"Name":"iron","Count":10}],"Manufactured":[{"Name":"gridresistors","Count":1}],"Encoded":[{"Name":"shieldcyclerecordings","Count":4}]}`)

	wantCategories := []string{"Raw", "Manufactured", "Encoded"}
	for i, row := range rows {
		if row.Index != uint32(i) {
			t.Errorf("row %d: expected idx %d, got %d", i, i, row.Index)
		}
		if row.Values["category"] != wantCategories[i] {
			t.Errorf("row %d: expected category %s, got %v", i, wantCategories[i], row.Values["category"])
		}
	}
}

func TestFaction_StringOrObject(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantName  string
		wantState string
	}{
		{
			name:      "object",
			line:      `{"timestamp":"2021-03-15T18:30:40Z","event":"FSDJump","StarSystem":"Sol","SystemFaction":{"Name":"Mother Gaia","FactionState":"Boom"}}`,
			wantName:  "Mother Gaia",
			wantState: "Boom",
		},
		{
			name:      "plain name",
			line:      `{"timestamp":"2021-03-15T18:30:40Z","event":"FSDJump","StarSystem":"Sol","SystemFaction":"Mother Gaia","FactionState":"War"}`,
			wantName:  "Mother Gaia",
			wantState: "War",
		},
		{
			name: "absent",
			line: `{"timestamp":"2021-03-15T18:30:40Z","event":"FSDJump","StarSystem":"Sol"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := rowsFor(t, tt.line)
			row := rows[0]
			if got := row.Values["system_faction_name"]; got != tt.wantName {
				t.Errorf("expected faction name %q, got %v", tt.wantName, got)
			}
			if got := row.Values["system_faction_state"]; got != tt.wantState {
				t.Errorf("expected faction state %q, got %v", tt.wantState, got)
			}
		})
	}
}

func TestHandler_DecodeError(t *testing.T) {
	ev, err := parser.Parse([]byte(`{"timestamp":"2021-03-15T18:30:40Z","event":"Rank","Combat":"Elite"}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := newRank().Rows(uuid.New(), ev); err == nil {
		t.Error("expected decode error for a string rank")
	}
}

func TestAll_TablesAreValid(t *testing.T) {
	seen := make(map[string]bool)
	for _, h := range All() {
		for _, table := range h.Tables() {
			if err := table.Validate(); err != nil {
				t.Errorf("%s: %v", h.Type(), err)
			}
			if seen[table.Name] {
				t.Errorf("table %s declared twice", table.Name)
			}
			seen[table.Name] = true
		}
	}
}
