package domain

// PushWatchType is the only message a push client sends.
const PushWatchType = "watch"

// WatchMessage replaces the set of dates a push connection receives events
// for. An empty set means every event.
type WatchMessage struct {
	Type  string `json:"type"`
	Dates []Date `json:"dates"`
}

// WatchSet turns the dates into the lookup used by ChangeEvent.Concerns.
func (m WatchMessage) WatchSet() map[Date]bool {
	set := make(map[Date]bool, len(m.Dates))
	for _, d := range m.Dates {
		if d.Valid() {
			set[d] = true
		}
	}
	return set
}
