package entity

// ChatIndexEntry is one row of a user's chat index, stored under
// userChats/{uid}/{sessionId}. It exists symmetrically for both
// participants exactly when the session exists.
type ChatIndexEntry struct {
	ChatWith string `json:"chatWith"`
	Name     string `json:"name"`
	UID      string `json:"uid"`
}

// ChatListEntry is a ChatIndexEntry merged with the session's latest
// message, as produced by the chat list aggregator.
type ChatListEntry struct {
	SessionID   string `json:"sessionId"`
	PeerEmail   string `json:"chatWith"`
	PeerName    string `json:"name"`
	PeerUID     string `json:"uid"`
	LastMessage string `json:"lastMessage"`
	Timestamp   int64  `json:"timestamp"`
}
