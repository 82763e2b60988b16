package backup

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/ogurasousui/hrbank-api/internal/core/blob"
	"github.com/ogurasousui/hrbank-api/internal/core/employee"
	"github.com/ogurasousui/hrbank-api/internal/core/pagination"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type fakeRepo struct {
	mu        sync.Mutex
	backups   []*Backup
	changedAt *time.Time
}

func (r *fakeRepo) insert(b Backup) *Backup {
	b.ID = int64(len(r.backups) + 1)
	r.backups = append(r.backups, &b)
	c := b
	return &c
}

func (r *fakeRepo) InsertInProgress(_ context.Context, worker string, startedAt time.Time) (*Backup, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.backups {
		if b.Status == StatusInProgress {
			c := *b
			return &c, false, nil
		}
	}
	return r.insert(Backup{Worker: worker, Status: StatusInProgress, StartedAt: startedAt}), true, nil
}

func (r *fakeRepo) InsertSkipped(_ context.Context, worker string, at time.Time) (*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(Backup{Worker: worker, Status: StatusSkipped, StartedAt: at, EndedAt: &at}), nil
}

func (r *fakeRepo) transition(id int64, to Status, endedAt time.Time, artifact *int64) (*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.backups {
		if b.ID != id {
			continue
		}
		if b.Status != StatusInProgress {
			return nil, ErrNotInProgress
		}
		b.Status = to
		b.EndedAt = &endedAt
		b.ArtifactBlobID = artifact
		c := *b
		return &c, nil
	}
	return nil, ErrBackupNotFound
}

func (r *fakeRepo) Complete(_ context.Context, id int64, endedAt time.Time, artifactBlobID int64) (*Backup, error) {
	return r.transition(id, StatusCompleted, endedAt, &artifactBlobID)
}

func (r *fakeRepo) Fail(_ context.Context, id int64, endedAt time.Time) (*Backup, error) {
	return r.transition(id, StatusFailed, endedAt, nil)
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.backups {
		if b.ID == id {
			c := *b
			return &c, nil
		}
	}
	return nil, ErrBackupNotFound
}

func (r *fakeRepo) FindLatest(_ context.Context, status *Status) (*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Backup
	for _, b := range r.backups {
		if status != nil && b.Status != *status {
			continue
		}
		if latest == nil || !b.StartedAt.Before(latest.StartedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrBackupNotFound
	}
	c := *latest
	return &c, nil
}

func (r *fakeRepo) HasInProgress(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.ContainsBy(r.backups, func(b *Backup) bool { return b.Status == StatusInProgress }), nil
}

func (r *fakeRepo) LatestChangeAt(context.Context) (*time.Time, error) {
	return r.changedAt, nil
}

func (r *fakeRepo) matching(f SearchFilter) []*Backup {
	return lo.Filter(r.backups, func(b *Backup, _ int) bool {
		if f.Worker != "" && !strings.Contains(b.Worker, f.Worker) {
			return false
		}
		if f.Status != nil && b.Status != *f.Status {
			return false
		}
		if f.StartedAtFrom != nil && b.StartedAt.Before(*f.StartedAtFrom) {
			return false
		}
		if f.StartedAtTo != nil && !b.StartedAt.Before(*f.StartedAtTo) {
			return false
		}
		return true
	})
}

func (r *fakeRepo) Page(_ context.Context, f SearchFilter, q pagination.Query) ([]*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := lo.Filter(r.matching(f), func(b *Backup, _ int) bool { return q.Follows(Position(b, q.Key)) })
	sort.Slice(rows, func(i, j int) bool { return q.Less(Position(rows[i], q.Key), Position(rows[j], q.Key)) })
	if len(rows) > q.Size+1 {
		rows = rows[:q.Size+1]
	}
	return rows, nil
}

func (r *fakeRepo) Count(_ context.Context, f SearchFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(f))), nil
}

type snapshotKey struct{}

// snapshotTx は読み取り専用スナップショットごとに ctx へ番号を付けます。
type snapshotTx struct {
	mu        sync.Mutex
	snapshots int
}

func (m *snapshotTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	m.snapshots++
	n := m.snapshots
	m.mu.Unlock()
	return fn(context.WithValue(ctx, snapshotKey{}, n))
}

func (m *snapshotTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeEmployees struct {
	employees []*employee.Employee
	calls     []int
	snapshots []any
	err       error
}

func (f *fakeEmployees) ListAfterID(ctx context.Context, afterID int64, limit int) ([]*employee.Employee, error) {
	f.snapshots = append(f.snapshots, ctx.Value(snapshotKey{}))
	if f.err != nil {
		return nil, f.err
	}
	var out []*employee.Employee
	for _, e := range f.employees {
		if e.ID > afterID && len(out) < limit {
			out = append(out, e)
		}
	}
	f.calls = append(f.calls, len(out))
	return out, nil
}

type fakeArtifacts struct {
	mu          sync.Mutex
	putErr      error
	registerErr error
	contents    map[string]string
	registered  map[int64]*blob.Metadata
	discarded   []string
	sequence    int64
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{contents: map[string]string{}, registered: map[int64]*blob.Metadata{}}
}

func (a *fakeArtifacts) Put(_ context.Context, kind string, in blob.Upload) (*blob.Metadata, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if a.putErr != nil {
		return nil, a.putErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := kind + "/" + in.FileName
	a.contents[key] = string(body)
	return &blob.Metadata{FileName: in.FileName, ContentType: in.ContentType, Size: int64(len(body)), StorageKey: key}, nil
}

func (a *fakeArtifacts) Register(_ context.Context, meta *blob.Metadata) (*blob.Metadata, error) {
	if a.registerErr != nil {
		return nil, a.registerErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sequence++
	c := *meta
	c.ID = a.sequence
	a.registered[c.ID] = &c
	return &c, nil
}

func (a *fakeArtifacts) Discard(_ context.Context, key, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded = append(a.discarded, key)
	return nil
}

var errStore = errors.New("store unavailable")
