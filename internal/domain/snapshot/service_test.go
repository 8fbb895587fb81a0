package snapshot

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sidesnap/internal/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu     sync.Mutex
	rows   map[string]Record
	seq    int
	putErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]Record)}
}

func (m *memStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	if !ok {
		return nil, &NotFoundError{Kind: "snapshot", ID: id}
	}
	return &rec, nil
}

func (m *memStore) Put(_ context.Context, id string, raw []byte, t int64) (*Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.seq++
	meta := Meta{ID: id, Time: t, CreatedAt: time.Unix(int64(m.seq), 0).UTC().Format(time.RFC3339)}
	m.rows[id] = Record{Meta: meta, Raw: append([]byte(nil), raw...)}
	return &meta, nil
}

func (m *memStore) List(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return &NotFoundError{Kind: "snapshot", ID: id}
	}
	delete(m.rows, id)
	return nil
}

func newTestService(store Store) *Service {
	fixed := time.UnixMilli(1_700_000_000_000)
	return NewService(store, zap.NewNop()).
		WithMetrics(monitoring.NewMetrics()).
		WithClock(func() time.Time { return fixed })
}

func TestServiceUpload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	t.Run("document id and time are used", func(t *testing.T) {
		meta, err := svc.Upload(ctx, []byte(`{"id": "s1", "time": 1690000000000, "tabs": []}`))
		require.NoError(t, err)
		assert.Equal(t, "s1", meta.ID)
		assert.Equal(t, int64(1690000000000), meta.Time)
	})

	t.Run("missing id and time are generated", func(t *testing.T) {
		meta, err := svc.Upload(ctx, []byte(`{"tabs": []}`))
		require.NoError(t, err)
		assert.Len(t, meta.ID, 36)
		assert.Equal(t, int64(1_700_000_000_000), meta.Time)
	})

	t.Run("document is stored verbatim", func(t *testing.T) {
		body := `{"id": "s2", "tabs": [], "unknown": {"big": 12345678901234567890}}`
		_, err := svc.Upload(ctx, []byte(body))
		require.NoError(t, err)
		rec, err := svc.Raw(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, body, string(rec.Raw))
	})

	t.Run("malformed input", func(t *testing.T) {
		for _, body := range []string{"", "[1,2]", "{", `"str"`} {
			_, err := svc.Upload(ctx, []byte(body))
			assert.True(t, IsMalformed(err), body)
		}
	})

	t.Run("unusable ids and nesting are rejected", func(t *testing.T) {
		_, err := svc.Upload(ctx, []byte(`{"id": "a/b", "tabs": []}`))
		assert.True(t, IsMalformed(err))

		deep := strings.Repeat("[", utils.MaxDocumentDepth+2) + strings.Repeat("]", utils.MaxDocumentDepth+2)
		_, err = svc.Upload(ctx, []byte(`{"tabs": `+deep+`}`))
		assert.True(t, IsMalformed(err))

		_, err = svc.Replace(ctx, "s1", []byte(`{"x": `+deep+`}`), nil)
		assert.True(t, IsMalformed(err))
	})

	t.Run("storage errors pass through", func(t *testing.T) {
		failing := newMemStore()
		failing.putErr = &StorageError{Op: "put", Err: errors.New("disk full")}
		_, err := newTestService(failing).Upload(ctx, []byte(`{}`))
		assert.Same(t, failing.putErr, err)
	})
}

func TestServiceListPreview(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Upload(ctx, []byte(`{"id": "old", "tabs": [[[{"title": "Old"}]]]}`))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, []byte(`{"id": "new", "tabs": [[[{"url": "https://new"}]]]}`))
	require.NoError(t, err)
	store.rows["broken"] = Record{Meta: Meta{ID: "broken", CreatedAt: "0"}, Raw: []byte("{")}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "https://new", list[0].PreviewTitle)
	assert.Equal(t, "Old", list[1].PreviewTitle)
	assert.Equal(t, "", list[2].PreviewTitle)
}

func TestServiceParsed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Upload(ctx, []byte(outlineDoc))
	require.NoError(t, err)

	v, err := svc.Parsed(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, v.Panels, 1)
	assert.Len(t, v.Panels[0].Groups[0].Tree, 2)

	_, err = svc.Parsed(ctx, "missing")
	assert.True(t, IsNotFound(err))

	store.rows["bad"] = Record{Meta: Meta{ID: "bad", Time: 5}, Raw: []byte("not json")}
	v, err = svc.Parsed(ctx, "bad")
	require.NoError(t, err, "unreadable documents degrade instead of failing")
	assert.Empty(t, v.Panels)
	assert.Equal(t, "bad", v.ID)
}

func TestServiceReplace(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore())

	at := int64(42)
	meta, err := svc.Replace(ctx, "s9", []byte(`{"tabs": []}`), &at)
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.Time)

	meta, err = svc.Replace(ctx, "s9", []byte(`{"time": 77}`), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(77), meta.Time)

	_, err = svc.Replace(ctx, "s9", []byte(`[]`), nil)
	assert.True(t, IsMalformed(err))
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore())

	_, err := svc.Upload(ctx, []byte(outlineDoc))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "s1"))
	assert.True(t, IsNotFound(svc.Delete(ctx, "s1")))
}

func TestServiceDeletePanel(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Upload(ctx, []byte(`{"id": "s1", "time": 10, "tabs": [[
		[{"url": "a", "panelId": "p1"}],
		[{"url": "b", "panelId": "p2"}]
	]]}`))
	require.NoError(t, err)

	deleted, err := svc.DeletePanel(ctx, "s1", "p1")
	require.NoError(t, err)
	assert.False(t, deleted)

	v, err := svc.Parsed(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, panelIDs(v))
	rec, _ := store.Get(ctx, "s1")
	assert.Equal(t, int64(10), rec.Time)

	deleted, err = svc.DeletePanel(ctx, "s1", "p2")
	require.NoError(t, err)
	assert.True(t, deleted, "removing the last panel deletes the snapshot")

	_, err = svc.Raw(ctx, "s1")
	assert.True(t, IsNotFound(err))

	_, err = svc.DeletePanel(ctx, "s1", "p2")
	assert.True(t, IsNotFound(err))
}

func TestServiceDeleteNode(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore())

	_, err := svc.Upload(ctx, []byte(outlineDoc))
	require.NoError(t, err)

	v, err := svc.DeleteNode(ctx, "s1", NodeAddress{PanelID: "p1", IndexInGroup: 0, Level: intPtr(0)}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, titles(v.Panels[0].Groups[0].Raw))

	// The stored document reflects the edit, extra fields included.
	v, err = svc.Parsed(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, levels(v.Panels[0].Groups[0].Raw))

	// The address is stale now: index 0 holds b at level 0, not a.
	_, err = svc.DeleteNode(ctx, "s1", NodeAddress{PanelID: "p1", IndexInGroup: 2, Level: intPtr(1)}, true)
	assert.True(t, IsNotFound(err))

	_, err = svc.DeleteNode(ctx, "missing", NodeAddress{PanelID: "p1"}, true)
	assert.True(t, IsNotFound(err))
}
