package user

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local development. It
// enforces the same unique constraints the SQL store does, under a single
// mutex, so the concurrent-create race resolves the same way: exactly one
// writer wins, the rest get a conflict.
type MemoryStore struct {
	mutex   sync.Mutex
	records map[int64]*User
	nextID  int64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*User),
		nextID:  1,
		now:     time.Now,
	}
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.records[id].Clone(), nil
}

func (s *MemoryStore) ExistsByID(_ context.Context, id int64) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *MemoryStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	u, err := s.FindByUsername(ctx, username)
	return u != nil, err
}

func (s *MemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, err := s.FindByEmail(ctx, email)
	return u != nil, err
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.findLocked(func(u *User) bool {
		return u.Username != nil && *u.Username == username
	}).Clone(), nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.findLocked(func(u *User) bool {
		return u.Email != nil && *u.Email == email
	}).Clone(), nil
}

// findLocked scans records; caller holds the mutex.
func (s *MemoryStore) findLocked(match func(*User) bool) *User {
	for _, u := range s.records {
		if match(u) {
			return u
		}
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, page, size int) ([]*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := page * size
	if start >= len(ids) {
		return []*User{}, nil
	}
	end := start + size
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]*User, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, u *User) (*User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Constraint backstop: no other record may hold the same username or
	// email. Checked inside the lock so concurrent saves serialize here.
	if u.Username != nil {
		if other := s.findLocked(func(r *User) bool {
			return r.ID != u.ID && r.Username != nil && *r.Username == *u.Username
		}); other != nil {
			return nil, conflict("username already exists")
		}
	}
	if u.Email != nil {
		if other := s.findLocked(func(r *User) bool {
			return r.ID != u.ID && r.Email != nil && *r.Email == *u.Email
		}); other != nil {
			return nil, conflict("email already exists")
		}
	}

	record := u.Clone()
	now := s.now()
	if record.ID == 0 {
		record.ID = s.nextID
		s.nextID++
		record.CreatedAt = now
	} else if existing, ok := s.records[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		// Updating an id that has been deleted must not resurrect it.
		return nil, ErrNotFound
	}
	record.UpdatedAt = now
	s.records[record.ID] = record
	return record.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mutex.Lock()
	delete(s.records, id)
	s.mutex.Unlock()
	return nil
}
