package policy

type ThreatLevel int

const (
	ThreatLow ThreatLevel = iota
	ThreatMedium
	ThreatHigh
)

func (l ThreatLevel) String() string {
	switch l {
	case ThreatHigh:
		return "HIGH"
	case ThreatMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func (l ThreatLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Counts are event totals over the rolling window.
type Counts struct {
	Deletes int
	Denied  int
}

// Thresholds are exclusive: a count must exceed them.
type Thresholds struct {
	High   int
	Medium int
}

var DefaultThresholds = Thresholds{High: 20, Medium: 10}

// Classify grades the window by delete volume. Denials are reported
// alongside but do not move the level.
func (t Thresholds) Classify(c Counts) ThreatLevel {
	switch {
	case c.Deletes > t.High:
		return ThreatHigh
	case c.Deletes > t.Medium:
		return ThreatMedium
	default:
		return ThreatLow
	}
}

func ClassifyThreat(c Counts) ThreatLevel {
	return DefaultThresholds.Classify(c)
}
