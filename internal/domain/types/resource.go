package types

// ResourceKind names a subscribable resource family.
type ResourceKind string

const (
	// ResourceSession is a single session record (keys, typing, last seen).
	ResourceSession ResourceKind = "session"
	// ResourceMessages is the ordered message list of a session.
	ResourceMessages ResourceKind = "messages"
	// ResourceUserChats is the set of sessions a user participates in.
	ResourceUserChats ResourceKind = "user_chats"
)

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceSession, ResourceMessages, ResourceUserChats:
		return true
	}
	return false
}

// Resource identifies something a subscriber can watch.
type Resource struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// String renders kind/id.
func (r Resource) String() string { return string(r.Kind) + "/" + r.ID }

// SessionResource is the resource for a session record.
func SessionResource(id SessionID) Resource {
	return Resource{Kind: ResourceSession, ID: string(id)}
}

// MessagesResource is the resource for a session's message list.
func MessagesResource(id SessionID) Resource {
	return Resource{Kind: ResourceMessages, ID: string(id)}
}

// UserChatsResource is the resource for a user's chat list.
func UserChatsResource(id UserID) Resource {
	return Resource{Kind: ResourceUserChats, ID: string(id)}
}
