package entity

const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// PresenceRecord is the value stored under status/{uid}. There is exactly
// one record per user id; simultaneous connections overwrite each other
// (last writer wins).
type PresenceRecord struct {
	State       string `json:"state"`
	LastChanged int64  `json:"last_changed"`
}

func (p PresenceRecord) Online() bool {
	return p.State == PresenceOnline
}
