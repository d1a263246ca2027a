package user

import (
	"context"
	"time"
)

// User is a directory record. Optional attributes are pointers so a request
// can distinguish "leave unchanged" (nil) from "set to this value" — the
// basis of the merge-patch update semantics. ID is zero until storage
// assigns one and never changes afterwards.
type User struct {
	ID        int64     `json:"id"`
	Username  *string   `json:"username,omitempty"`
	Email     *string   `json:"email,omitempty"`
	FirstName *string   `json:"firstName,omitempty"`
	LastName  *string   `json:"lastName,omitempty"`
	Active    *bool     `json:"active,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy. Stores hand out copies so callers can't mutate
// persisted state through shared pointers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Username = cloneString(u.Username)
	c.Email = cloneString(u.Email)
	c.FirstName = cloneString(u.FirstName)
	c.LastName = cloneString(u.LastName)
	if u.Active != nil {
		v := *u.Active
		c.Active = &v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Store is the persistence contract the directory runs against. Lookups
// report absence with a nil record (or false), never an error; Save and
// Delete may fail, and a uniqueness-constraint violation inside Save must
// surface as an error matching ErrConflict — that constraint is the final
// backstop behind the directory's pre-checks.
type Store interface {
	// GetByID returns the record, or nil when absent.
	GetByID(ctx context.Context, id int64) (*User, error)
	// ExistsByID reports whether a record with the id exists.
	ExistsByID(ctx context.Context, id int64) (bool, error)
	// ExistsByUsername reports whether any record holds the username.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// ExistsByEmail reports whether any record holds the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindByUsername returns the record holding the username, or nil.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// FindByEmail returns the record holding the email, or nil.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// List returns one page of records in storage order.
	List(ctx context.Context, page, size int) ([]*User, error)
	// Save inserts when u.ID is zero (assigning id and timestamps) and
	// updates otherwise. Returns the persisted record; updating an id that
	// no longer exists returns ErrNotFound rather than resurrecting it.
	Save(ctx context.Context, u *User) (*User, error)
	// Delete removes the record. Deleting an absent id is not an error.
	Delete(ctx context.Context, id int64) error
}
