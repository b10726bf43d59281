package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SteelMorgan/journal-ingest/internal/writer"
)

type bountyReward struct {
	Faction string `json:"Faction"`
	Reward  int64  `json:"Reward"`
}

type bountyEvent struct {
	Target           string         `json:"Target"`
	TotalReward      int64          `json:"TotalReward"`
	VictimFaction    string         `json:"VictimFaction"`
	SharedWithOthers int64          `json:"SharedWithOthers"`
	Faction          string         `json:"Faction"` // Skimmer bounties carry a single faction
	Reward           int64          `json:"Reward"`
	Rewards          []bountyReward `json:"Rewards"`
}

const (
	bountyTable        = "event_bounty"
	bountyRewardsTable = "event_bounty_rewards"
)

func newBounty() *handler[bountyEvent] {
	return &handler[bountyEvent]{
		eventType: "Bounty",
		tables: []writer.Table{
			{Name: bountyTable, Columns: []writer.Column{
				str("target"), i64("total_reward"), str("victim_faction"),
				i64("shared_with_others"), str("faction"), i64("reward"),
			}},
			{Name: bountyRewardsTable, Columns: []writer.Column{str("faction"), i64("reward")}},
		},
		rows: func(id uuid.UUID, ts time.Time, p *bountyEvent) []*writer.Row {
			rows := []*writer.Row{
				writer.NewRow(bountyTable, id, ts, 0).
					Set("target", p.Target).
					Set("total_reward", p.TotalReward).
					Set("victim_faction", p.VictimFaction).
					Set("shared_with_others", p.SharedWithOthers).
					Set("faction", p.Faction).
					Set("reward", p.Reward),
			}
			for i, r := range p.Rewards {
				rows = append(rows, writer.NewRow(bountyRewardsTable, id, ts, uint32(i)).
					Set("faction", r.Faction).
					Set("reward", r.Reward))
			}
			return rows
		},
	}
}
