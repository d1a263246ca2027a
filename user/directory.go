package user

import (
	"context"

	"github.com/agentuity/go-common/logger"
)

// DefaultPageSize is used by List when the caller passes a non-positive size.
const DefaultPageSize = 20

// Directory enforces the user resource's invariants over a Store: username
// and email are unique across persisted records when set, ids are
// storage-assigned, and updates merge rather than replace.
//
// Uniqueness is check-then-act: the pre-checks give clean error messages,
// but two concurrent writers can both pass them. The store's own unique
// constraint is the source of truth, and a constraint violation at save time
// also surfaces as ErrConflict.
type Directory struct {
	store Store
	log   logger.Logger
}

// NewDirectory returns a Directory over the given store.
func NewDirectory(store Store, log logger.Logger) *Directory {
	return &Directory{store: store, log: log.WithPrefix("[userdir]")}
}

// Create persists a new record. Any caller-supplied id is discarded so
// storage assigns one.
func (d *Directory) Create(ctx context.Context, candidate *User) (*User, error) {
	if candidate.Username != nil {
		exists, err := d.store.ExistsByUsername(ctx, *candidate.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, conflict("username already exists")
		}
	}
	if candidate.Email != nil {
		exists, err := d.store.ExistsByEmail(ctx, *candidate.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, conflict("email already exists")
		}
	}
	record := candidate.Clone()
	record.ID = 0
	saved, err := d.store.Save(ctx, record)
	if err != nil {
		return nil, err
	}
	d.log.Debug("created user %d", saved.ID)
	return saved, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (d *Directory) Get(ctx context.Context, id int64) (*User, error) {
	record, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// List returns one page of records in storage order. Page numbers start at
// zero; a non-positive size falls back to DefaultPageSize.
func (d *Directory) List(ctx context.Context, page, size int) ([]*User, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return d.store.List(ctx, page, size)
}

// Update applies a merge-patch: only non-nil fields of patch overwrite the
// stored record, so omitted fields are never cleared. Username and email are
// applied only when they differ from the stored value, after a uniqueness
// check against the rest of the directory.
func (d *Directory) Update(ctx context.Context, id int64, patch *User) (*User, error) {
	existing, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	if patch.Username != nil && (existing.Username == nil || *patch.Username != *existing.Username) {
		other, err := d.store.FindByUsername(ctx, *patch.Username)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, conflict("username already exists")
		}
		existing.Username = cloneString(patch.Username)
	}

	if patch.Email != nil && (existing.Email == nil || *patch.Email != *existing.Email) {
		other, err := d.store.FindByEmail(ctx, *patch.Email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, conflict("email already exists")
		}
		existing.Email = cloneString(patch.Email)
	}

	if patch.FirstName != nil {
		existing.FirstName = cloneString(patch.FirstName)
	}
	if patch.LastName != nil {
		existing.LastName = cloneString(patch.LastName)
	}
	if patch.Active != nil {
		v := *patch.Active
		existing.Active = &v
	}

	saved, err := d.store.Save(ctx, existing)
	if err != nil {
		return nil, err
	}
	d.log.Debug("updated user %d", saved.ID)
	return saved, nil
}

// Delete removes the record with the given id, or returns ErrNotFound.
// There is no soft-delete; the record is gone.
func (d *Directory) Delete(ctx context.Context, id int64) error {
	exists, err := d.store.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := d.store.Delete(ctx, id); err != nil {
		return err
	}
	d.log.Debug("deleted user %d", id)
	return nil
}
