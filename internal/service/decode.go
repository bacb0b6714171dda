package service

import (
	"arichat/internal/entity"
)

// Store snapshots are generic value trees; numbers arrive as int64 when
// written in-process and as float64 after a JSON round trip through the
// persistence layer or the wire bridge. The decoders below accept both.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func decodeUser(uid string, v any) *entity.User {
	m := asMap(v)
	if m == nil {
		return nil
	}
	return &entity.User{
		UID:   uid,
		Email: asString(m["email"]),
		Name:  asString(m["name"]),
	}
}

func decodePresence(v any) entity.PresenceRecord {
	m := asMap(v)
	return entity.PresenceRecord{
		State:       asString(m["state"]),
		LastChanged: asInt64(m["last_changed"]),
	}
}

func decodeMessage(id string, v any) entity.Message {
	m := asMap(v)
	return entity.Message{
		ID:          id,
		Text:        asString(m["text"]),
		Sender:      asString(m["sender"]),
		SenderEmail: asString(m["senderEmail"]),
		Timestamp:   asInt64(m["timestamp"]),
	}
}

func decodeIndexEntry(v any) entity.ChatIndexEntry {
	m := asMap(v)
	return entity.ChatIndexEntry{
		ChatWith: asString(m["chatWith"]),
		Name:     asString(m["name"]),
		UID:      asString(m["uid"]),
	}
}
