package expedition

import (
	"fmt"
	"time"

	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

// Wasteland loot table, picked by a luck-weighted rarity roll.
var wastelandLoot = []vault.Item{
	{Name: "Tin Can", Rarity: vault.RarityCommon, Type: "junk"},
	{Name: "Frayed Jumpsuit", Rarity: vault.RarityCommon, Type: "outfit"},
	{Name: "Hunting Rifle", Rarity: vault.RarityRare, Type: "weapon"},
	{Name: "Reinforced Duster", Rarity: vault.RarityRare, Type: "outfit"},
	{Name: "Plasma Caster", Rarity: vault.RarityLegendary, Type: "weapon"},
	{Name: "Prototype Lab Coat", Rarity: vault.RarityLegendary, Type: "outfit"},
}

var safeDescriptions = []string{
	"took shelter in an abandoned bus and waited out a dust storm",
	"found a dry overpass and rested a while",
	"traded stories with a passing caravan",
	"skirted a raider camp without being seen",
}

var dangerDescriptions = []string{
	"was ambushed by feral ghouls",
	"stumbled into a radscorpion nest",
	"got caught in a raider crossfire",
	"was cornered by a pack of wild dogs",
}

// lootRarityWeights skews drops by the explorer's snapshotted luck.
func lootRarityWeights(luck int) []int {
	switch {
	case luck >= 8:
		return []int{1, 4, 5}
	case luck <= 3:
		return []int{8, 1, 1}
	default:
		return []int{5, 3, 2}
	}
}

// GenerateEvent rolls one wasteland event for an active expedition.
// Returns nil without error when the minimum interval since the last
// logged event has not yet passed. Fatal health loss is left to the
// caller's death handling; health just clamps at zero here.
func (c *Coordinator) GenerateEvent(exp *Expedition, inh *vault.Inhabitant, now time.Time, rng entropy.Source) (*Event, error) {
	if exp == nil {
		return nil, fault.NotFound("expedition not found")
	}
	if exp.Status != StatusActive {
		return nil, fault.Conflict("expedition %s is %s, not active", exp.ID, exp.Status)
	}
	if inh == nil {
		return nil, fault.NotFound("expedition %s: inhabitant not found", exp.ID)
	}
	if now.Sub(exp.LastEventAt).Seconds() < c.bal.EventIntervalSeconds {
		return nil, nil
	}

	var ev Event

	// Perception decides whether the explorer finds anything.
	discover := vault.Clamp(0.5+float64(exp.Snapshot.Perception-1)*0.05, 0.5, 0.95)
	if rng.Float() < discover {
		ev = c.lootEvent(exp, rng)
		exp.Distance += float64(1 + rng.Intn(5))
	} else {
		ev = c.fieldEvent(exp, inh, rng)
		exp.Distance += float64(1 + rng.Intn(3))
	}

	ev.At = now
	exp.Events = append(exp.Events, ev)
	exp.LastEventAt = now
	return &exp.Events[len(exp.Events)-1], nil
}

// lootEvent awards an item from the luck-weighted table plus caps,
// scaled by the ground's yield at the explorer's current distance.
func (c *Coordinator) lootEvent(exp *Expedition, rng entropy.Source) Event {
	luck := exp.Snapshot.Luck
	rarity := vault.Rarity(entropy.WeightedIndex(rng, lootRarityWeights(luck)))

	var candidates []vault.Item
	for _, item := range wastelandLoot {
		if item.Rarity == rarity {
			candidates = append(candidates, item)
		}
	}
	item := candidates[rng.Intn(len(candidates))]
	exp.Loot = append(exp.Loot, item)

	richness := 1.0
	if c.field != nil {
		richness = 0.5 + c.field.Yield(exp.Distance)
	}
	caps := int64(float64(c.bal.CapsBase+c.bal.CapsPerLuck*int64(luck)) * richness * entropy.Between(rng, 0.75, 1.25))
	exp.CapsFound += caps

	return Event{
		Type:        EventLoot,
		Description: fmt.Sprintf("found %s (%s) and %d caps", item.Name, item.Rarity, caps),
		Loot:        &item,
		Caps:        caps,
	}
}

// fieldEvent rolls agility-based danger avoidance. A failed roll means
// an encounter: the enemy counter ticks up and the explorer takes
// damage scaled by the wasteland danger field at their distance.
func (c *Coordinator) fieldEvent(exp *Expedition, inh *vault.Inhabitant, rng entropy.Source) Event {
	avoid := vault.Clamp(0.5+float64(exp.Snapshot.Agility)*0.05, 0, 1)
	if rng.Float() < avoid {
		return Event{
			Type:        EventSafe,
			Description: fmt.Sprintf("%s %s", inh.Name, safeDescriptions[rng.Intn(len(safeDescriptions))]),
		}
	}

	exp.EnemiesEncountered++
	danger := 1.0
	if c.field != nil {
		danger = 0.5 + c.field.Danger(exp.Distance)
	}
	inh.Damage(c.bal.DangerBaseDamage * danger)

	return Event{
		Type:        EventDanger,
		Description: fmt.Sprintf("%s %s", inh.Name, dangerDescriptions[rng.Intn(len(dangerDescriptions))]),
	}
}
