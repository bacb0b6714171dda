package entity

// Message is one entry of a session's append-only log, stored under
// privateChats/{sessionId}/messages/{messageId}. The id is assigned by the
// log and its lexicographic order is the canonical message order; the
// timestamp is client-stamped and used for display only.
type Message struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Sender      string `json:"sender"`
	SenderEmail string `json:"senderEmail"`
	Timestamp   int64  `json:"timestamp"`
}
