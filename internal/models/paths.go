package models

import "tripmate/server/internal/docstore"

// GroupsCollection is the root collection of trip groups
const GroupsCollection = "groups"

// Sub-collections of a group
const (
	MessagesCollection      = "messages"
	TypingCollection        = "typingStatus"
	SchedulesCollection     = "schedules"
	AnnouncementsCollection = "announcements"
	VotesCollection         = "votes"
	MenusCollection         = "menus"
)

// GroupPath is the document path of a group
func GroupPath(groupID string) string {
	return docstore.Join(GroupsCollection, groupID)
}

// GroupCollection is the path of one of a group's sub-collections
func GroupCollection(groupID, name string) string {
	return docstore.Join(GroupsCollection, groupID, name)
}

// GroupDoc is the path of a document in one of a group's sub-collections
func GroupDoc(groupID, name, id string) string {
	return docstore.Join(GroupsCollection, groupID, name, id)
}
