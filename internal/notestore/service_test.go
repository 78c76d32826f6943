package notestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/geonote/internal/apperr"
	"github.com/starford/geonote/internal/geo"
	"github.com/starford/geonote/internal/models"
	"github.com/starford/geonote/internal/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	slot, err := storage.NewFileSlot(filepath.Join(t.TempDir(), "notes.json"))
	if err != nil {
		t.Fatalf("NewFileSlot: %v", err)
	}
	svc := NewService(slot, nil, nil, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return svc
}

func TestCreateThenListIncludesNote(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Lunch spot", 21.0285, 105.8542)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Error("created note has zero id")
	}
	if created.Address != "" {
		t.Errorf("address = %q, want absent at creation", created.Address)
	}

	notes := svc.List(ctx)
	if len(notes) != 1 {
		t.Fatalf("List = %d notes, want 1", len(notes))
	}
	n := notes[0]
	if n.ID != created.ID || n.Content != "Lunch spot" || n.Lat != 21.0285 || n.Lng != 105.8542 {
		t.Errorf("listed note = %+v", n)
	}
}

func TestCreateRejectsBlankContent(t *testing.T) {
	svc := testService(t)
	if _, err := svc.Create(context.Background(), "   \t ", 21, 105); err == nil {
		t.Fatal("expected validation error for blank content")
	}
}

func TestCreateRejectsOutOfRangeCoordinates(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, "bad", 91, 0); err == nil {
		t.Error("lat 91 accepted")
	}
	if _, err := svc.Create(ctx, "bad", 0, -181); err == nil {
		t.Error("lng -181 accepted")
	}
}

func TestCreateAllocatesUniqueIDsUnderBurst(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	seen := make(map[int64]struct{})
	for i := 0; i < 20; i++ {
		n, err := svc.Create(ctx, fmt.Sprintf("note %d", i), 21, 105)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, dup := seen[n.ID]; dup {
			t.Fatalf("duplicate id %d", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	n, _ := svc.Create(ctx, "bye", 21, 105)
	if err := svc.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	// Second delete is a no-op, not a failure.
	if err := svc.Delete(ctx, n.ID); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSetAddressOnDeletedNoteIsSilentNoop(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	n, _ := svc.Create(ctx, "ephemeral", 21, 105)
	_ = svc.Delete(ctx, n.ID)

	if err := svc.SetAddress(ctx, n.ID, "Somewhere"); err != nil {
		t.Fatalf("SetAddress on deleted id: %v", err)
	}
	if got := svc.List(ctx); len(got) != 0 {
		t.Errorf("late enrichment reintroduced the note: %+v", got)
	}
}

func TestSetAddressPersists(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	n, _ := svc.Create(ctx, "enriched", 21.0285, 105.8542)
	if err := svc.SetAddress(ctx, n.ID, "Hoan Kiem, Hanoi"); err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	got, err := svc.Get(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != "Hoan Kiem, Hanoi" {
		t.Errorf("address = %q", got.Address)
	}
}

func TestListSortsByTimestampDescending(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	// Seed notes with out-of-order timestamps directly through the slot.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.mu.Lock()
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		svc.notes = append(svc.notes, noteAt(int64(i+1), fmt.Sprintf("n%d", i+1), base.Add(offset)))
	}
	svc.mu.Unlock()

	notes := svc.List(ctx)
	if len(notes) != 3 {
		t.Fatalf("List = %d notes", len(notes))
	}
	if notes[0].ID != 1 || notes[1].ID != 3 || notes[2].ID != 2 {
		t.Errorf("order = %d, %d, %d; want 1, 3, 2", notes[0].ID, notes[1].ID, notes[2].ID)
	}
}

func TestFilterByRadius(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	lunch, _ := svc.Create(ctx, "Lunch spot", 21.0285, 105.8542)
	if _, err := svc.Create(ctx, "Museum", 21.0077, 105.8431); err != nil {
		t.Fatal(err)
	}

	center := geo.Point{Lat: 21.0285, Lng: 105.8542}
	museumDist := geo.Distance(center, geo.Point{Lat: 21.0077, Lng: 105.8431})

	// Radius between the two exact distances keeps only the lunch spot.
	within := svc.FilterByRadius(ctx, center, museumDist/2)
	if len(within) != 1 || within[0].ID != lunch.ID {
		t.Errorf("FilterByRadius(small) = %+v, want only lunch spot", within)
	}

	// The boundary is inclusive: a radius of exactly museumDist includes both.
	boundary := svc.FilterByRadius(ctx, center, museumDist)
	if len(boundary) != 2 {
		t.Errorf("FilterByRadius(boundary) = %d notes, want 2", len(boundary))
	}

	// The sentinel bypasses filtering entirely.
	all := svc.FilterByRadius(ctx, center, RadiusAll)
	if len(all) != 2 {
		t.Errorf("FilterByRadius(all) = %d notes, want 2", len(all))
	}
}

func TestExportCSV(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.mu.Lock()
	n1 := noteAt(1, `say "hello"`, base)
	n1.Lat, n1.Lng = 21.0285, 105.8542
	n1.Address = "Hoan Kiem, Hanoi"
	svc.notes = append(svc.notes, n1)
	svc.mu.Unlock()

	out, err := svc.ExportCSV(ctx)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 row", len(lines))
	}
	if lines[0] != "Nội dung,Latitude,Longitude,Địa chỉ,Thời gian" {
		t.Errorf("header = %q", lines[0])
	}
	want := `"say ""hello""",21.0285,105.8542,"Hoan Kiem, Hanoi","01/06/2025, 12:00"`
	if lines[1] != want {
		t.Errorf("row = %q\nwant  %q", lines[1], want)
	}
}

func TestExportCSVEmptyCollectionRejected(t *testing.T) {
	svc := testService(t)
	if _, err := svc.ExportCSV(context.Background()); !errors.Is(err, apperr.ErrEmptyExport) {
		t.Fatalf("err = %v, want ErrEmptyExport", err)
	}
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	if got := ExportFilename(at); got != "geo-notes-2025-06-01.csv" {
		t.Errorf("ExportFilename = %q", got)
	}
}

func TestWriteThroughPersistence(t *testing.T) {
	slot, err := storage.NewFileSlot(filepath.Join(t.TempDir(), "notes.json"))
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(slot, nil, nil, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	n, _ := svc.Create(ctx, "durable", 21, 105)

	// A fresh service over the same slot sees the note.
	svc2 := NewService(slot, nil, nil, nil, nil)
	if err := svc2.Load(); err != nil {
		t.Fatal(err)
	}
	got, err := svc2.Get(ctx, n.ID)
	if err != nil {
		t.Fatalf("Get from fresh service: %v", err)
	}
	if got.Content != "durable" {
		t.Errorf("content = %q", got.Content)
	}
}

// fakeGeocoder resolves every coordinate to a fixed address and records calls.
type fakeGeocoder struct {
	mu    sync.Mutex
	addr  string
	err   error
	calls int
}

func (f *fakeGeocoder) Reverse(_ context.Context, _, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.addr, f.err
}

func TestCreateEnrichesAddressInBackground(t *testing.T) {
	slot, err := storage.NewFileSlot(filepath.Join(t.TempDir(), "notes.json"))
	if err != nil {
		t.Fatal(err)
	}
	gc := &fakeGeocoder{addr: "36 Hang Trong, Hanoi"}
	svc := NewService(slot, nil, gc, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	n, err := svc.Create(ctx, "enrich me", 21.0285, 105.8542)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.Get(ctx, n.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Address == "36 Hang Trong, Hanoi" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("address never enriched, note = %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEnrichmentFailureLeavesAddressAbsent(t *testing.T) {
	slot, err := storage.NewFileSlot(filepath.Join(t.TempDir(), "notes.json"))
	if err != nil {
		t.Fatal(err)
	}
	gc := &fakeGeocoder{err: errors.New("service unreachable")}
	svc := NewService(slot, nil, gc, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	n, _ := svc.Create(ctx, "no address", 21, 105)

	time.Sleep(100 * time.Millisecond)
	got, err := svc.Get(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Address != "" {
		t.Errorf("address = %q, want absent after failed enrichment", got.Address)
	}
}

func TestReloadIfChanged(t *testing.T) {
	slotPath := filepath.Join(t.TempDir(), "notes.json")
	slot, err := storage.NewFileSlot(slotPath)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(slot, nil, nil, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = svc.Create(ctx, "mine", 21, 105)

	// Our own write does not trigger a reload.
	reloaded, err := svc.ReloadIfChanged()
	if err != nil || reloaded {
		t.Fatalf("ReloadIfChanged after own write = %v, %v; want false, nil", reloaded, err)
	}

	// An external write does.
	external, err := storage.NewFileSlot(slotPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := external.Save(nil); err != nil {
		t.Fatal(err)
	}
	reloaded, err = svc.ReloadIfChanged()
	if err != nil || !reloaded {
		t.Fatalf("ReloadIfChanged after external write = %v, %v; want true, nil", reloaded, err)
	}
	if svc.Count(ctx) != 0 {
		t.Errorf("count = %d, want 0 after external truncate", svc.Count(ctx))
	}
}

func TestReloadAfterCorruptExternalEditKeepsCollection(t *testing.T) {
	slotPath := filepath.Join(t.TempDir(), "notes.json")
	slot, err := storage.NewFileSlot(slotPath)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(slot, nil, nil, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	n, _ := svc.Create(ctx, "survivor", 21, 105)

	// Another process clobbers the slot with garbage.
	if err := os.WriteFile(slotPath, []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The watcher sees the write, then the corrupt-recovery rename; neither
	// reload may adopt the empty state.
	for i := 0; i < 2; i++ {
		reloaded, err := svc.ReloadIfChanged()
		if err != nil {
			t.Fatalf("reload %d: %v", i+1, err)
		}
		if reloaded {
			t.Fatalf("reload %d swapped the collection", i+1)
		}
		if svc.Count(ctx) != 1 {
			t.Fatalf("reload %d: count = %d, want 1", i+1, svc.Count(ctx))
		}
	}

	// The slot file has been restored from memory: a fresh service sees the note.
	svc2 := NewService(slot, nil, nil, nil, nil)
	if err := svc2.Load(); err != nil {
		t.Fatal(err)
	}
	if _, err := svc2.Get(ctx, n.ID); err != nil {
		t.Errorf("note lost after corrupt external edit: %v", err)
	}
}

func TestReloadAfterSlotDeletionRestoresFile(t *testing.T) {
	slotPath := filepath.Join(t.TempDir(), "notes.json")
	slot, err := storage.NewFileSlot(slotPath)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(slot, nil, nil, nil, nil)
	if err := svc.Load(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_, _ = svc.Create(ctx, "still here", 21, 105)

	if err := os.Remove(slotPath); err != nil {
		t.Fatal(err)
	}

	reloaded, err := svc.ReloadIfChanged()
	if err != nil || reloaded {
		t.Fatalf("ReloadIfChanged after deletion = %v, %v; want false, nil", reloaded, err)
	}
	if svc.Count(ctx) != 1 {
		t.Fatalf("count = %d, want 1", svc.Count(ctx))
	}
	if _, err := os.Stat(slotPath); err != nil {
		t.Errorf("slot file not restored: %v", err)
	}
}

func noteAt(id int64, content string, ts time.Time) models.Note {
	return models.Note{ID: id, Content: content, Lat: 21, Lng: 105, Timestamp: ts}
}
