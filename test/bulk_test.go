package queries_test

import (
	"context"
	"errors"
	"testing"

	queries "github.com/Nigel2392/go-django-queryset/src"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
)

func TestBulkCreate(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	var albums = []*Album{
		{Title: "one"},
		{Title: "two"},
		{Title: "three"},
	}

	created, err := queries.Objects(&Album{}).BulkCreate(ctx, albums)
	if err != nil {
		t.Fatalf("failed to bulk create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 albums, got %d", len(created))
	}

	for i, album := range created {
		if album.ID == 0 {
			t.Fatalf("expected primary key on album %d to be set", i)
		}
		if !album.Saved() {
			t.Fatalf("expected album %d to be flagged as saved", i)
		}
		if i > 0 && created[i-1].ID >= album.ID {
			t.Fatalf("expected ascending primary keys, got %d then %d", created[i-1].ID, album.ID)
		}
	}

	count, err := queries.Objects(&Album{}).AllRows().Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 albums in the database, got %d", count)
	}
}

func TestBulkUpdate(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	var a = createAlbum(t, "old a")
	var b = createAlbum(t, "old b")

	a.Title = "new a"
	b.Title = "new b"

	affected, err := queries.Objects(&Album{}).BulkUpdate(ctx, []*Album{a, b}, "Title")
	if err != nil {
		t.Fatalf("failed to bulk update: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 rows affected, got %d", affected)
	}

	fresh, err := queries.Objects(&Album{}).Get(ctx, "ID", a.ID)
	if err != nil {
		t.Fatalf("failed to get album: %v", err)
	}
	if fresh.Title != "new a" {
		t.Fatalf("expected updated title, got %q", fresh.Title)
	}
}

func TestBulkUpdateUnsaved(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	var saved = createAlbum(t, "saved")
	saved.Title = "changed"
	var unsaved = &Album{Title: "never stored"}

	var _, err = queries.Objects(&Album{}).BulkUpdate(ctx, []*Album{saved, unsaved}, "Title")
	if !errors.Is(err, query_errors.ErrObjectNotSaved) {
		t.Fatalf("expected ErrObjectNotSaved, got %v", err)
	}

	// the unsaved object must fail the whole batch before anything is written
	fresh, err := queries.Objects(&Album{}).Get(ctx, "ID", saved.ID)
	if err != nil {
		t.Fatalf("failed to get album: %v", err)
	}
	if fresh.Title != "saved" {
		t.Fatalf("expected title to be untouched, got %q", fresh.Title)
	}
}

func TestBulkUpdateDefaultFieldSet(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	var album = createAlbum(t, "deluxe")
	var track = &Track{Title: "take 1", Duration: 100, Album: album}
	if _, err := queries.Objects(track).Create(ctx, track); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}

	track.Title = "take 2"
	track.Duration = 140

	affected, err := queries.Objects(&Track{}).BulkUpdate(ctx, []*Track{track})
	if err != nil {
		t.Fatalf("failed to bulk update: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 row affected, got %d", affected)
	}

	fresh, err := queries.Objects(&Track{}).Get(ctx, "ID", track.ID)
	if err != nil {
		t.Fatalf("failed to get track: %v", err)
	}
	if fresh.Title != "take 2" || fresh.Duration != 140 {
		t.Fatalf("expected all editable fields updated, got %+v", fresh)
	}
}
