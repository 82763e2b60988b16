package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr map[string]error
	deleted   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, deleteErr: map[string]error{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ string) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return int64(len(b)), nil
}

func (m *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[key]; err != nil {
		return err
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type fakeMetadataRepo struct {
	rows     map[int64]*Metadata
	sequence int64
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{rows: map[int64]*Metadata{}}
}

func (r *fakeMetadataRepo) Create(_ context.Context, meta *Metadata) (*Metadata, error) {
	r.sequence++
	clone := *meta
	clone.ID = r.sequence
	r.rows[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *fakeMetadataRepo) FindByID(_ context.Context, id int64) (*Metadata, error) {
	m, ok := r.rows[id]
	if !ok {
		return nil, ErrBlobNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMetadataRepo) Delete(_ context.Context, id int64) (*Metadata, error) {
	m, ok := r.rows[id]
	if !ok {
		return nil, ErrBlobNotFound
	}
	delete(r.rows, id)
	return m, nil
}

type fakeDeletionRepo struct {
	rows       map[int64]*deletionRow
	sequence   int64
	enqueueErr error
}

type deletionRow struct {
	Deletion
	availableAt time.Time
	lockedAt    *time.Time
	completedAt *time.Time
	lastError   string
}

func newFakeDeletionRepo() *fakeDeletionRepo {
	return &fakeDeletionRepo{rows: map[int64]*deletionRow{}}
}

func (r *fakeDeletionRepo) Enqueue(_ context.Context, key, reason string, availableAt time.Time) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	r.sequence++
	r.rows[r.sequence] = &deletionRow{
		Deletion:    Deletion{ID: r.sequence, StorageKey: key, Reason: reason, CreatedAt: availableAt},
		availableAt: availableAt,
	}
	return nil
}

func (r *fakeDeletionRepo) Claim(_ context.Context, now, lockCutoff time.Time, maxAttempts, limit int) ([]*Deletion, error) {
	var out []*Deletion
	for id := int64(1); id <= r.sequence && len(out) < limit; id++ {
		row, ok := r.rows[id]
		if !ok || row.completedAt != nil || row.Attempts >= maxAttempts || row.availableAt.After(now) {
			continue
		}
		if row.lockedAt != nil && !row.lockedAt.Before(lockCutoff) {
			continue
		}
		locked := now
		row.lockedAt = &locked
		row.Attempts++
		d := row.Deletion
		out = append(out, &d)
	}
	return out, nil
}

func (r *fakeDeletionRepo) Ack(_ context.Context, id int64, completedAt time.Time) error {
	row, ok := r.rows[id]
	if !ok {
		return errors.New("missing")
	}
	row.completedAt = &completedAt
	row.lockedAt = nil
	return nil
}

func (r *fakeDeletionRepo) Nack(_ context.Context, id int64, lastError string, next time.Time) error {
	row, ok := r.rows[id]
	if !ok {
		return errors.New("missing")
	}
	row.lockedAt = nil
	row.lastError = lastError
	row.availableAt = next
	return nil
}

func (r *fakeDeletionRepo) CountPending(context.Context) (int64, error) {
	var n int64
	for _, row := range r.rows {
		if row.completedAt == nil {
			n++
		}
	}
	return n, nil
}
