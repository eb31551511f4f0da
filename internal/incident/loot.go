package incident

import (
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

// Named loot tables per hazard type. Raiders drop weapons, fires and
// infestations leave salvage.
var namedLoot = map[Type][]vault.Item{
	TypeFire: {
		{Name: "Scorched Toolkit", Rarity: vault.RarityCommon, Type: "junk"},
		{Name: "Fire Axe", Rarity: vault.RarityRare, Type: "weapon"},
		{Name: "Asbestos Suit", Rarity: vault.RarityLegendary, Type: "outfit"},
	},
	TypeRaiderAttack: {
		{Name: "Rusty Pipe Pistol", Rarity: vault.RarityCommon, Type: "weapon"},
		{Name: "Sawed-Off Shotgun", Rarity: vault.RarityRare, Type: "weapon"},
		{Name: "Raider Warlord Armor", Rarity: vault.RarityLegendary, Type: "outfit"},
	},
	TypeInfestation: {
		{Name: "Chitin Fragment", Rarity: vault.RarityCommon, Type: "junk"},
		{Name: "Venom Extractor", Rarity: vault.RarityRare, Type: "weapon"},
		{Name: "Queen's Carapace", Rarity: vault.RarityLegendary, Type: "outfit"},
	},
}

// rarityWeightsFor skews named drops by difficulty: harder hazards pay
// out rarer items.
func rarityWeightsFor(difficulty int) []int {
	switch {
	case difficulty >= 8:
		return []int{1, 4, 5}
	case difficulty >= 5:
		return []int{3, 5, 2}
	default:
		return []int{7, 2, 1}
	}
}

// generateLoot rolls the reward for a successful resolution. Higher
// difficulty raises the chance of a named item over generic caps, and
// always pays at least a small caps stipend.
func (e *Engine) generateLoot(inc *Incident, rng entropy.Source) LootReport {
	report := LootReport{
		Caps: int64(float64(e.bal.CapsPerDifficulty*int64(inc.Difficulty)) * entropy.Between(rng, 0.75, 1.25)),
	}

	namedChance := float64(inc.Difficulty) * e.bal.NamedItemChancePerDifficulty
	if namedChance > 0.9 {
		namedChance = 0.9
	}
	if rng.Float() >= namedChance {
		return report
	}

	table := namedLoot[inc.Type]
	rarity := vault.Rarity(entropy.WeightedIndex(rng, rarityWeightsFor(inc.Difficulty)))
	for _, item := range table {
		if item.Rarity == rarity {
			report.Items = append(report.Items, item)
			break
		}
	}
	return report
}
