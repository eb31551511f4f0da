package vault

// MaxLevel caps inhabitant progression.
const MaxLevel = 50

// xpPerLevelStep is the base cost of the quadratic level curve:
// the XP needed to go from level n to n+1 is n × xpPerLevelStep.
const xpPerLevelStep = 600

// XPForLevel returns the cumulative experience required to reach a level.
// Level 1 costs nothing; each step up costs more than the last.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	n := int64(level - 1)
	return xpPerLevelStep * n * (n + 1) / 2
}

// LevelForXP returns the level reached with the given cumulative experience.
func LevelForXP(xp int64) int {
	level := 1
	for level < MaxLevel && xp >= XPForLevel(level+1) {
		level++
	}
	return level
}

// AddExperience credits experience to an inhabitant and applies any
// level-ups. Returns the number of levels gained. Each level gained
// also raises max health slightly, keeping veterans durable. The dead
// gain nothing; a level-up must never revive them.
func (i *Inhabitant) AddExperience(xp int64) int {
	if xp <= 0 || !i.Alive() {
		return 0
	}
	i.Experience += xp
	newLevel := LevelForXP(i.Experience)
	gained := newLevel - i.Level
	if gained <= 0 {
		return 0
	}
	i.Level = newLevel
	i.MaxHealth += float64(gained) * 2
	i.Heal(float64(gained) * 2)
	return gained
}
