package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

type scanEvent struct {
	ScanType              string  `json:"ScanType"`
	BodyName              string  `json:"BodyName"`
	BodyID                int64   `json:"BodyID"`
	StarSystem            string  `json:"StarSystem"`
	SystemAddress         int64   `json:"SystemAddress"`
	DistanceFromArrivalLS float64 `json:"DistanceFromArrivalLS"`
	TidalLock             bool    `json:"TidalLock"`
	TerraformState        string  `json:"TerraformState"`
	StarType              string  `json:"StarType"`
	SubClass              int64   `json:"Subclass"`
	StellarMass           float64 `json:"StellarMass"`
	AbsoluteMagnitude     float64 `json:"AbsoluteMagnitude"`
	AgeMY                 int64   `json:"Age_MY"`
	Luminosity            string  `json:"Luminosity"`
	PlanetClass           string  `json:"PlanetClass"`
	Atmosphere            string  `json:"Atmosphere"`
	AtmosphereType        string  `json:"AtmosphereType"`
	Volcanism             string  `json:"Volcanism"`
	MassEM                float64 `json:"MassEM"`
	Radius                float64 `json:"Radius"`
	SurfaceGravity        float64 `json:"SurfaceGravity"`
	SurfaceTemperature    float64 `json:"SurfaceTemperature"`
	SurfacePressure       float64 `json:"SurfacePressure"`
	Landable              bool    `json:"Landable"`
	Composition           struct {
		Ice   float64 `json:"Ice"`
		Rock  float64 `json:"Rock"`
		Metal float64 `json:"Metal"`
	} `json:"Composition"`
	SemiMajorAxis      float64 `json:"SemiMajorAxis"`
	Eccentricity       float64 `json:"Eccentricity"`
	OrbitalInclination float64 `json:"OrbitalInclination"`
	Periapsis          float64 `json:"Periapsis"`
	OrbitalPeriod      float64 `json:"OrbitalPeriod"`
	RotationPeriod     float64 `json:"RotationPeriod"`
	AxialTilt          float64 `json:"AxialTilt"`
	ReserveLevel       string  `json:"ReserveLevel"`
	WasDiscovered      bool    `json:"WasDiscovered"`
	WasMapped          bool    `json:"WasMapped"`
}

func newScan() *handler[scanEvent] {
	return &handler[scanEvent]{
		eventType: "Scan",
		tables: []writer.Table{{
			Name: "event_scan",
			Columns: []writer.Column{
				str("scan_type"), str("body_name"), i64("body_id"), str("star_system"), i64("system_address"),
				f64("distance_from_arrival_ls"), flag("tidal_lock"), str("terraform_state"),
				str("star_type"), i64("sub_class"), f64("stellar_mass"), f64("absolute_magnitude"),
				i64("age_my"), str("luminosity"), str("planet_class"), str("atmosphere"),
				str("atmosphere_type"), str("volcanism"), f64("mass_em"), f64("radius"),
				f64("surface_gravity"), f64("surface_temperature"), f64("surface_pressure"), flag("landable"),
				f64("composition_ice"), f64("composition_rock"), f64("composition_metal"),
				f64("semi_major_axis"), f64("eccentricity"), f64("orbital_inclination"), f64("periapsis"),
				f64("orbital_period"), f64("rotation_period"), f64("axial_tilt"), str("reserve_level"),
				flag("was_discovered"), flag("was_mapped"),
			},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *scanEvent) []*writer.Row {
			return []*writer.Row{
				writer.NewRow("event_scan", id, ts, 0).
					Set("scan_type", p.ScanType).
					Set("body_name", p.BodyName).
					Set("body_id", p.BodyID).
					Set("star_system", p.StarSystem).
					Set("system_address", p.SystemAddress).
					Set("distance_from_arrival_ls", p.DistanceFromArrivalLS).
					Set("tidal_lock", p.TidalLock).
					Set("terraform_state", p.TerraformState).
					Set("star_type", p.StarType).
					Set("sub_class", p.SubClass).
					Set("stellar_mass", p.StellarMass).
					Set("absolute_magnitude", p.AbsoluteMagnitude).
					Set("age_my", p.AgeMY).
					Set("luminosity", p.Luminosity).
					Set("planet_class", p.PlanetClass).
					Set("atmosphere", p.Atmosphere).
					Set("atmosphere_type", p.AtmosphereType).
					Set("volcanism", p.Volcanism).
					Set("mass_em", p.MassEM).
					Set("radius", p.Radius).
					Set("surface_gravity", p.SurfaceGravity).
					Set("surface_temperature", p.SurfaceTemperature).
					Set("surface_pressure", p.SurfacePressure).
					Set("landable", p.Landable).
					Set("composition_ice", p.Composition.Ice).
					Set("composition_rock", p.Composition.Rock).
					Set("composition_metal", p.Composition.Metal).
					Set("semi_major_axis", p.SemiMajorAxis).
					Set("eccentricity", p.Eccentricity).
					Set("orbital_inclination", p.OrbitalInclination).
					Set("periapsis", p.Periapsis).
					Set("orbital_period", p.OrbitalPeriod).
					Set("rotation_period", p.RotationPeriod).
					Set("axial_tilt", p.AxialTilt).
					Set("reserve_level", p.ReserveLevel).
					Set("was_discovered", p.WasDiscovered).
					Set("was_mapped", p.WasMapped),
			}
		},
	}
}

type material struct {
	Name  string `json:"Name"`
	Count int64  `json:"Count"`
}

type materialsEvent struct {
	Raw          []material `json:"Raw"`
	Manufactured []material `json:"Manufactured"`
	Encoded      []material `json:"Encoded"`
}

// newMaterials emits one row per material; idx runs across all categories
func newMaterials() *handler[materialsEvent] {
	return &handler[materialsEvent]{
		eventType: "Materials",
		tables: []writer.Table{{
			Name:    "event_materials",
			Columns: []writer.Column{str("category"), str("name"), i64("count")},
		}},
		rows: func(id uuid.UUID, ts time.Time, p *materialsEvent) []*writer.Row {
			var rows []*writer.Row
			categories := []struct {
				name  string
				items []material
			}{
				{"Raw", p.Raw},
				{"Manufactured", p.Manufactured},
				{"Encoded", p.Encoded},
			}
			for _, c := range categories {
				for _, m := range c.items {
					rows = append(rows, writer.NewRow("event_materials", id, ts, uint32(len(rows))).
						Set("category", c.name).
						Set("name", m.Name).
						Set("count", m.Count))
				}
			}
			return rows
		},
	}
}
