package queries_test

import (
	"context"
	"testing"

	queries "github.com/Nigel2392/go-django-queryset/src"
)

func createAlbum(t *testing.T, title string, trackTitles ...string) *Album {
	t.Helper()
	var ctx = context.Background()
	var album = &Album{Title: title}
	if _, err := queries.Objects(album).Create(ctx, album); err != nil {
		t.Fatalf("failed to create album: %v", err)
	}
	for i, trackTitle := range trackTitles {
		var track = &Track{
			Title:    trackTitle,
			Duration: (i + 1) * 60,
			Album:    album,
		}
		if _, err := queries.Objects(track).Create(ctx, track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
	}
	return album
}

func createUserGraph(t *testing.T, name string) *User {
	t.Helper()
	var ctx = context.Background()

	var image = &Image{Path: "/img/" + name + ".png"}
	if _, err := queries.Objects(image).Create(ctx, image); err != nil {
		t.Fatalf("failed to create image: %v", err)
	}

	var profile = &Profile{
		Name:  name,
		Email: name + "@example.com",
		Image: image,
	}
	if _, err := queries.Objects(profile).Create(ctx, profile); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	var user = &User{Name: name, Profile: profile}
	if _, err := queries.Objects(user).Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func TestSelectRelatedForward(t *testing.T) {
	clearTables(t, "todos", "users", "profiles", "images")
	var ctx = context.Background()

	var user = createUserGraph(t, "walter")
	createTodo(t, "deep joins", false, user)

	todo, err := queries.Objects(&Todo{}).
		SelectRelated("User.Profile.Image").
		Get(ctx, "Title", "deep joins")
	if err != nil {
		t.Fatalf("failed to get todo: %v", err)
	}

	if todo.User == nil {
		t.Fatalf("expected user to be joined in")
	}
	if todo.User.Name != "walter" {
		t.Fatalf("expected full user object, got %+v", todo.User)
	}
	if todo.User.Profile == nil || todo.User.Profile.Email != "walter@example.com" {
		t.Fatalf("expected full profile object, got %+v", todo.User.Profile)
	}
	if todo.User.Profile.Image == nil || todo.User.Profile.Image.Path != "/img/walter.png" {
		t.Fatalf("expected full image object, got %+v", todo.User.Profile.Image)
	}
}

func TestSelectRelatedNullForeignKey(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	createTodo(t, "orphan", false, nil)

	todo, err := queries.Objects(&Todo{}).
		SelectRelated("User").
		Get(ctx, "Title", "orphan")
	if err != nil {
		t.Fatalf("failed to get todo: %v", err)
	}
	if todo.User != nil {
		t.Fatalf("expected nil user on join miss, got %+v", todo.User)
	}
}

func TestSelectRelatedReverseMerge(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	createAlbum(t, "first", "intro", "middle", "outro")
	createAlbum(t, "second", "only")
	createAlbum(t, "empty")

	albums, err := queries.Objects(&Album{}).
		SelectRelated("Tracks").
		OrderBy("ID", "Tracks.ID").
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query albums: %v", err)
	}

	// rows fan out per track but must merge back into one object per album
	if len(albums) != 3 {
		t.Fatalf("expected 3 albums, got %d", len(albums))
	}

	if len(albums[0].Tracks) != 3 {
		t.Fatalf("expected 3 tracks on %q, got %d", albums[0].Title, len(albums[0].Tracks))
	}
	if albums[0].Tracks[0].Title != "intro" || albums[0].Tracks[2].Title != "outro" {
		t.Fatalf("unexpected track order: %+v", albums[0].Tracks)
	}
	if len(albums[1].Tracks) != 1 || albums[1].Tracks[0].Title != "only" {
		t.Fatalf("unexpected tracks on %q: %+v", albums[1].Title, albums[1].Tracks)
	}
	if len(albums[2].Tracks) != 0 {
		t.Fatalf("expected no tracks on %q, got %+v", albums[2].Title, albums[2].Tracks)
	}
}

func TestLimitIsLogicalWithMultiValuedJoin(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	createAlbum(t, "first", "a", "b", "c")
	createAlbum(t, "second", "d")

	albums, err := queries.Objects(&Album{}).
		SelectRelated("Tracks").
		OrderBy("ID", "Tracks.ID").
		Limit(1).
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query albums: %v", err)
	}

	if len(albums) != 1 {
		t.Fatalf("expected a single album, got %d", len(albums))
	}
	if len(albums[0].Tracks) != 3 {
		t.Fatalf("expected the limit to count albums, not rows: got %d tracks", len(albums[0].Tracks))
	}

	// with the limit applied to raw rows the album loses tracks
	albums, err = queries.Objects(&Album{}).
		SelectRelated("Tracks").
		OrderBy("ID", "Tracks.ID").
		Limit(1).
		LimitRawSQL(true).
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query albums: %v", err)
	}
	if len(albums) != 1 || len(albums[0].Tracks) != 1 {
		t.Fatalf("expected 1 album with 1 track under raw limit, got %+v", albums)
	}
}

func TestFilterAcrossRelation(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	createAlbum(t, "short", "a")
	createAlbum(t, "long", "a", "b", "c")

	albums, err := queries.Objects(&Album{}).
		Filter("Tracks.Duration__gte", 120).
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query albums: %v", err)
	}
	if len(albums) != 1 || albums[0].Title != "long" {
		t.Fatalf("expected only the long album, got %+v", albums)
	}

	// fan-out rows must not inflate the count
	count, err := queries.Objects(&Album{}).
		Filter("Tracks.Duration__gte", 60).
		Count(ctx)
	if err != nil {
		t.Fatalf("failed to count albums: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct albums, got %d", count)
	}
}

func TestPrefetchRelatedForward(t *testing.T) {
	clearTables(t, "todos", "users", "profiles", "images")
	var ctx = context.Background()

	var user = createUserGraph(t, "xena")
	createTodo(t, "prefetch me", false, user)

	list, err := queries.Objects(&Todo{}).
		PrefetchRelated("User.Profile").
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query todos: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 todo, got %d", len(list))
	}

	var todo = list[0]
	if todo.User == nil || todo.User.Name != "xena" {
		t.Fatalf("expected full user object, got %+v", todo.User)
	}
	if todo.User.Profile == nil || todo.User.Profile.Email != "xena@example.com" {
		t.Fatalf("expected full profile object, got %+v", todo.User.Profile)
	}
}

func TestPrefetchRelatedReverse(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	createAlbum(t, "first", "a", "b")
	createAlbum(t, "second", "c")

	albums, err := queries.Objects(&Album{}).
		PrefetchRelated("Tracks").
		OrderBy("ID").
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query albums: %v", err)
	}
	if len(albums) != 2 {
		t.Fatalf("expected 2 albums, got %d", len(albums))
	}
	if len(albums[0].Tracks) != 2 {
		t.Fatalf("expected 2 tracks on %q, got %d", albums[0].Title, len(albums[0].Tracks))
	}
	if len(albums[1].Tracks) != 1 {
		t.Fatalf("expected 1 track on %q, got %d", albums[1].Title, len(albums[1].Tracks))
	}
}

func TestFieldMasks(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "yuri")
	createTodo(t, "masked", false, user)

	todo, err := queries.Objects(&Todo{}).
		Fields("Title").
		Get(ctx, "Title", "masked")
	if err != nil {
		t.Fatalf("failed to get todo: %v", err)
	}
	if todo.Title != "masked" {
		t.Fatalf("expected title to be selected, got %q", todo.Title)
	}
	if todo.Description != "" {
		t.Fatalf("expected description to be left out, got %q", todo.Description)
	}
	if todo.ID == 0 {
		t.Fatalf("expected primary key to be selected regardless of mask")
	}

	todo, err = queries.Objects(&Todo{}).
		ExcludeFields("User").
		Get(ctx, "Title", "masked")
	if err != nil {
		t.Fatalf("failed to get todo: %v", err)
	}
	if todo.User != nil {
		t.Fatalf("expected user to be excluded, got %+v", todo.User)
	}

	_, err = queries.Objects(&Todo{}).
		ExcludeFields("Description").
		Get(ctx, "Title", "masked")
	if err == nil {
		t.Fatalf("expected error when excluding a non-nullable field")
	}
}
