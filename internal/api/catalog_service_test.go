package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"kinescope/internal/catalog"
)

type mockCatalogReader struct {
	entries  []*catalog.Entry
	stats    map[catalog.Origin]int
	entryErr error
	statsErr error
}

func (m *mockCatalogReader) List(context.Context, ...catalog.Origin) ([]*catalog.Entry, error) {
	return m.entries, m.entryErr
}

func (m *mockCatalogReader) Stats(context.Context) (map[catalog.Origin]int, error) {
	return m.stats, m.statsErr
}

func (m *mockCatalogReader) GetByID(context.Context, int64) (*catalog.Entry, error) {
	if len(m.entries) == 0 {
		return nil, m.entryErr
	}
	return m.entries[0], m.entryErr
}

func TestCatalogServiceList(t *testing.T) {
	now := time.Now().UTC()
	reader := &mockCatalogReader{
		entries: []*catalog.Entry{{
			ID:          1,
			RecordingID: "rec-1",
			Title:       "Example",
			Origin:      catalog.OriginSession,
			CreatedAt:   now,
			UpdatedAt:   now,
		}},
	}
	svc := NewCatalogService(reader)
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected recording count: %d", len(got))
	}
	if got[0].Title != "Example" {
		t.Fatalf("unexpected title: %q", got[0].Title)
	}
	if got[0].Origin != string(catalog.OriginSession) {
		t.Fatalf("unexpected origin: %q", got[0].Origin)
	}
	if got[0].CreatedAt == "" || got[0].UpdatedAt == "" {
		t.Fatal("expected timestamps to be formatted")
	}
}

func TestCatalogServiceListError(t *testing.T) {
	wantErr := errors.New("boom")
	svc := NewCatalogService(&mockCatalogReader{entryErr: wantErr})
	if _, err := svc.List(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestCatalogServiceStats(t *testing.T) {
	svc := NewCatalogService(&mockCatalogReader{
		stats: map[catalog.Origin]int{catalog.OriginRecovered: 2},
	})
	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if got["recovered"] != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestCatalogServiceDescribeMissing(t *testing.T) {
	svc := NewCatalogService(&mockCatalogReader{})
	got, err := svc.Describe(context.Background(), 42)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil recording for missing entry, got %+v", got)
	}
}

func TestCatalogServiceNilReader(t *testing.T) {
	if svc := NewCatalogService(nil); svc != nil {
		t.Fatal("expected nil service for nil reader")
	}
	var svc *CatalogService
	if got, err := svc.List(context.Background()); err != nil || got != nil {
		t.Fatalf("expected nil results from nil service, got %v / %v", got, err)
	}
}
