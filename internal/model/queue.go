package model

// Queue is a ranked queue identifier as used by the match filters.
type Queue int

// Ranked queues covered by the collection engine.
const (
	QueueSoloDuo Queue = 420
	QueueFlex    Queue = 440
)

// ID returns the numeric queue id for match-history filters.
func (q Queue) ID() int { return int(q) }

// APIName returns the string form used by the league endpoints.
func (q Queue) APIName() string {
	if q == QueueFlex {
		return "RANKED_FLEX_SR"
	}
	return "RANKED_SOLO_5x5"
}

// String returns a human-readable queue label.
func (q Queue) String() string {
	switch q {
	case QueueSoloDuo:
		return "Ranked Solo/Duo"
	case QueueFlex:
		return "Ranked Flex 5v5"
	default:
		return "Unknown"
	}
}

// ParseQueue maps a configured queue name to a Queue, defaulting to Solo/Duo.
func ParseQueue(name string) Queue {
	if name == "RANKED_FLEX_SR" || name == "flex" {
		return QueueFlex
	}
	return QueueSoloDuo
}
