package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/dorm-seat-reservation/internal/model"
)

// MemoryStore keeps reservations, settings and announcements in process.
// It enforces the same two unique indexes as the MySQL schema under a single
// mutex, so Insert and UpdatePlacement are atomic with respect to each
// other.  It backs STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
    mu            sync.Mutex
    nextID        uint64
    nextArchiveID uint64
    rows          map[uint64]model.Reservation
    byIdentity    map[model.Identity]uint64
    byPlacement   map[model.Placement]uint64
    cancelled     []model.CancelledReservation
    settings      *model.AdminSetting
    announcements map[string]model.Announcement
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        rows:          make(map[uint64]model.Reservation),
        byIdentity:    make(map[model.Identity]uint64),
        byPlacement:   make(map[model.Placement]uint64),
        announcements: make(map[string]model.Announcement),
    }
}

func (m *MemoryStore) get(id uint64, ok bool) (model.Reservation, error) {
    if !ok {
        return model.Reservation{}, ErrNotFound
    }
    return m.rows[id], nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id uint64) (model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return model.Reservation{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    _, ok := m.rows[id]
    return m.get(id, ok)
}

func (m *MemoryStore) FindByIdentity(ctx context.Context, who model.Identity) (model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return model.Reservation{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.byIdentity[who]
    return m.get(id, ok)
}

func (m *MemoryStore) FindByPlacement(ctx context.Context, p model.Placement) (model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return model.Reservation{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.byPlacement[p]
    return m.get(id, ok)
}

func (m *MemoryStore) FindByPlacementExcluding(ctx context.Context, p model.Placement, excludeID uint64) (model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return model.Reservation{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.byPlacement[p]
    return m.get(id, ok && id != excludeID)
}

// Insert checks the identity index before the placement index, the same
// order MySQL reports them in for this schema.
func (m *MemoryStore) Insert(ctx context.Context, res *model.Reservation) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, taken := m.byIdentity[res.Identity]; taken {
        return &UniqueViolation{Index: IndexIdentity}
    }
    if _, taken := m.byPlacement[res.Placement]; taken {
        return &UniqueViolation{Index: IndexPlacement}
    }
    m.nextID++
    res.ID = m.nextID
    res.CreatedAt = res.CreatedAt.UTC()
    m.rows[res.ID] = *res
    m.byIdentity[res.Identity] = res.ID
    m.byPlacement[res.Placement] = res.ID
    return nil
}

func (m *MemoryStore) UpdatePlacement(ctx context.Context, id uint64, p model.Placement, deviceID string, at time.Time) (model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return model.Reservation{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    cur, ok := m.rows[id]
    if !ok {
        return model.Reservation{}, ErrNotFound
    }
    if owner, taken := m.byPlacement[p]; taken && owner != id {
        return model.Reservation{}, &UniqueViolation{Index: IndexPlacement}
    }
    delete(m.byPlacement, cur.Placement)
    cur.Placement = p
    cur.CreatedAt = at.UTC()
    if deviceID != "" {
        cur.DeviceID = deviceID
    }
    m.rows[id] = cur
    m.byPlacement[p] = id
    return cur, nil
}

func (m *MemoryStore) archive(res model.Reservation, c *model.Cancellation) {
    if c == nil {
        return
    }
    snap := c.Snapshot(res)
    m.nextArchiveID++
    snap.ID = m.nextArchiveID
    m.cancelled = append(m.cancelled, snap)
}

func (m *MemoryStore) remove(res model.Reservation) {
    delete(m.rows, res.ID)
    delete(m.byIdentity, res.Identity)
    delete(m.byPlacement, res.Placement)
}

func (m *MemoryStore) Delete(ctx context.Context, res model.Reservation, c *model.Cancellation) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    cur, ok := m.rows[res.ID]
    if !ok {
        return ErrNotFound
    }
    m.archive(cur, c)
    m.remove(cur)
    return nil
}

func (m *MemoryStore) DeleteAll(ctx context.Context, c *model.Cancellation) (int64, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    all := m.sorted()
    for _, res := range all {
        m.archive(res, c)
        m.remove(res)
    }
    return int64(len(all)), nil
}

// sorted returns rows in the same order as the MySQL listing.  Caller holds mu.
func (m *MemoryStore) sorted() []model.Reservation {
    out := make([]model.Reservation, 0, len(m.rows))
    for _, r := range m.rows {
        out = append(out, r)
    }
    sort.Slice(out, func(i, j int) bool {
        a, b := out[i].Placement, out[j].Placement
        if a.Dormitory != b.Dormitory {
            return a.Dormitory < b.Dormitory
        }
        if a.Floor != b.Floor {
            return a.Floor < b.Floor
        }
        return a.Seat < b.Seat
    })
    return out
}

func (m *MemoryStore) ListAll(ctx context.Context) ([]model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.sorted(), nil
}

func (m *MemoryStore) ListCancelled(ctx context.Context) ([]model.CancelledReservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    out := make([]model.CancelledReservation, len(m.cancelled))
    for i, c := range m.cancelled {
        out[len(out)-1-i] = c
    }
    return out, nil
}

func (m *MemoryStore) GetSettings(ctx context.Context) (model.AdminSetting, error) {
    if err := ctx.Err(); err != nil {
        return model.AdminSetting{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.settings == nil {
        return model.AdminSetting{}, ErrNotFound
    }
    return *m.settings, nil
}

func (m *MemoryStore) UpsertSettings(ctx context.Context, s model.AdminSetting) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    m.settings = &s
    return nil
}

func (m *MemoryStore) GetAnnouncement(ctx context.Context, key string) (model.Announcement, error) {
    if err := ctx.Err(); err != nil {
        return model.Announcement{}, err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    a, ok := m.announcements[key]
    if !ok {
        return model.Announcement{Key: key}, ErrNotFound
    }
    return a, nil
}

func (m *MemoryStore) UpsertAnnouncement(ctx context.Context, a model.Announcement) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    m.announcements[a.Key] = a
    return nil
}
