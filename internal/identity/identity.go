// Package identity holds the lightweight named presence of a user: a display
// name plus the groups that user has joined. There is no account behind it.
package identity

import "strings"

// Identity is the local identity record
type Identity struct {
	Name     string   `json:"name"`
	GroupIDs []string `json:"groupIds"`
}

// Valid reports whether the identity carries a usable display name
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.Name) != ""
}

// HasGroup reports whether the identity has joined groupID
func (id Identity) HasGroup(groupID string) bool {
	for _, g := range id.GroupIDs {
		if g == groupID {
			return true
		}
	}
	return false
}

// AddGroup returns a copy of the identity that includes groupID
func (id Identity) AddGroup(groupID string) Identity {
	if id.HasGroup(groupID) {
		return id
	}
	groups := make([]string, 0, len(id.GroupIDs)+1)
	groups = append(groups, id.GroupIDs...)
	id.GroupIDs = append(groups, groupID)
	return id
}

// Rename returns a copy of the identity with a new trimmed display name
func (id Identity) Rename(name string) Identity {
	id.Name = strings.TrimSpace(name)
	return id
}
