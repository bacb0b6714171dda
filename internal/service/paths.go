package service

// Store path layout, shared by every component:
//
//	users/{uid}                                    public profile
//	emailIndex/{normalizedEmail}                   uid lookup for discovery
//	status/{uid}                                   presence record
//	typing/{sessionId}/{uid}                       typing flag
//	userChats/{uid}/{sessionId}                    chat index entry
//	privateChats/{sessionId}/participants/{uid}    access marker
//	privateChats/{sessionId}/messages/{messageId}  message log

func userPath(uid string) string {
	return "users/" + uid
}

func usersRoot() string {
	return "users"
}

func emailIndexPath(key string) string {
	return "emailIndex/" + key
}

func statusPath(uid string) string {
	return "status/" + uid
}

func typingPath(sessionID, uid string) string {
	return "typing/" + sessionID + "/" + uid
}

func userChatsPath(uid string) string {
	return "userChats/" + uid
}

func chatIndexPath(uid, sessionID string) string {
	return "userChats/" + uid + "/" + sessionID
}

func participantPath(sessionID, uid string) string {
	return "privateChats/" + sessionID + "/participants/" + uid
}

func messagesPath(sessionID string) string {
	return "privateChats/" + sessionID + "/messages"
}

func messagePath(sessionID, messageID string) string {
	return messagesPath(sessionID) + "/" + messageID
}
