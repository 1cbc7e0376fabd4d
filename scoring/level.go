package scoring

// RiskLevel is the discretized label of a risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelVeryHigh RiskLevel = "Very High"
)

// LevelFromScore maps a 0-100 score onto a level. Lower bounds are inclusive.
func LevelFromScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskLevelVeryHigh
	case score >= 60:
		return RiskLevelHigh
	case score >= 40:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Elevated reports whether the level calls for active countermeasures.
func (l RiskLevel) Elevated() bool {
	return l == RiskLevelHigh || l == RiskLevelVeryHigh
}

func (l RiskLevel) String() string {
	return string(l)
}
