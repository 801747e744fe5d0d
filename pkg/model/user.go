package model

// User identifies the sender of a message. Adapters are responsible for
// deduplicating users by ID across events; the thought process and memory
// packages treat User values as immutable snapshots.
type User struct {
	ID          string
	DisplayName string
	RoomID      string
	Metadata    map[string]string
}

// NewUser constructs a User, initializing Metadata to an empty map so
// callers can set fields without a nil check.
func NewUser(id, displayName string) *User {
	return &User{
		ID:          id,
		DisplayName: displayName,
		Metadata:    map[string]string{},
	}
}

// Clone returns a deep copy, so later mutation of the original cannot
// affect the copy. (Memory does not call it; Memory.Set deep-copies
// values through a JSON round trip.)
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Metadata = make(map[string]string, len(u.Metadata))
	for k, v := range u.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
