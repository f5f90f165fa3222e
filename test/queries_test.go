package queries_test

import (
	"context"
	"errors"
	"testing"

	queries "github.com/Nigel2392/go-django-queryset/src"
	"github.com/Nigel2392/go-django-queryset/src/query_errors"
)

func clearTables(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		if _, err := testDB.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to clear table %s: %v", table, err)
		}
	}
}

func createUser(t *testing.T, name string) *User {
	t.Helper()
	var user = &User{Name: name}
	var _, err = queries.Objects(user).Create(context.Background(), user)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTodo(t *testing.T, title string, done bool, user *User) *Todo {
	t.Helper()
	var todo = &Todo{
		Title:       title,
		Description: "description of " + title,
		Done:        done,
		User:        user,
	}
	var _, err = queries.Objects(todo).Create(context.Background(), todo)
	if err != nil {
		t.Fatalf("failed to create todo: %v", err)
	}
	return todo
}

func TestCreateAndGet(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "alice")
	if user.ID == 0 {
		t.Fatalf("expected primary key to be set after create")
	}
	if !user.Saved() {
		t.Fatalf("expected user to be flagged as saved")
	}

	var todo = createTodo(t, "write tests", false, user)
	if todo.ID == 0 {
		t.Fatalf("expected primary key to be set after create")
	}

	fetched, err := queries.Objects(&Todo{}).Get(ctx, "ID", todo.ID)
	if err != nil {
		t.Fatalf("failed to get todo: %v", err)
	}

	if fetched.Title != "write tests" {
		t.Fatalf("expected title %q, got %q", "write tests", fetched.Title)
	}
	if fetched.Description != "description of write tests" {
		t.Fatalf("unexpected description %q", fetched.Description)
	}
	if fetched.Done {
		t.Fatalf("expected todo not to be done")
	}
	if fetched.User == nil || fetched.User.ID != user.ID {
		t.Fatalf("expected user stub with pk %d, got %+v", user.ID, fetched.User)
	}
}

func TestQuerySetImmutability(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "bob")
	createTodo(t, "one", true, user)
	createTodo(t, "two", false, user)
	createTodo(t, "three", false, user)

	var base = queries.Objects(&Todo{})
	var derived = base.Filter("Done", false)

	baseCount, err := base.AllRows().Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	derivedCount, err := derived.Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}

	if baseCount != 3 {
		t.Fatalf("expected base queryset to stay unfiltered, got %d", baseCount)
	}
	if derivedCount != 2 {
		t.Fatalf("expected 2 undone todos, got %d", derivedCount)
	}
}

func TestFilterOperators(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "carol")
	createTodo(t, "Buy groceries", false, user)
	createTodo(t, "Clean house", true, user)
	createTodo(t, "Read book", false, user)

	var cases = []struct {
		name   string
		lookup string
		value  any
		want   int64
	}{
		{"exact", "Title", "Clean house", 1},
		{"exact explicit", "Title__exact", "Read book", 1},
		{"iexact", "Title__iexact", "clean HOUSE", 1},
		{"contains", "Title__contains", "ou", 2},
		{"icontains", "Title__icontains", "READ", 1},
		{"startswith", "Title__startswith", "Buy", 1},
		{"istartswith", "Title__istartswith", "buy", 1},
		{"endswith", "Title__endswith", "book", 1},
		{"iendswith", "Title__iendswith", "BOOK", 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var count, err = queries.Objects(&Todo{}).
				Filter(c.lookup, c.value).
				Count(ctx)
			if err != nil {
				t.Fatalf("failed to count: %v", err)
			}
			if count != c.want {
				t.Fatalf("expected %d results for %s, got %d", c.want, c.lookup, count)
			}
		})
	}
}

func TestFilterComparisons(t *testing.T) {
	clearTables(t, "tracks", "albums")
	var ctx = context.Background()

	for _, d := range []int{100, 200, 300, 400} {
		var track = &Track{Title: "t", Duration: d}
		if _, err := queries.Objects(track).Create(ctx, track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
	}

	var cases = []struct {
		name   string
		lookup string
		values []any
		want   int64
	}{
		{"gt", "Duration__gt", []any{200}, 2},
		{"gte", "Duration__gte", []any{200}, 3},
		{"lt", "Duration__lt", []any{200}, 1},
		{"lte", "Duration__lte", []any{200}, 2},
		{"in", "Duration__in", []any{100, 300}, 2},
		{"in slice", "Duration__in", []any{[]int{100, 300, 400}}, 3},
		{"range", "Duration__range", []any{150, 350}, 2},
		{"isnull", "Album__isnull", []any{true}, 4},
		{"not null", "Album__isnull", []any{false}, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var count, err = queries.Objects(&Track{}).
				Filter(c.lookup, c.values...).
				Count(ctx)
			if err != nil {
				t.Fatalf("failed to count: %v", err)
			}
			if count != c.want {
				t.Fatalf("expected %d results for %s, got %d", c.want, c.lookup, count)
			}
		})
	}
}

func TestExcludeNegatesConjunction(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "dave")
	createTodo(t, "alpha", true, user)
	createTodo(t, "beta", true, user)
	createTodo(t, "alpha", false, user)

	// NOT (done AND title = alpha) keeps the done beta and the undone alpha
	var list, err = queries.Objects(&Todo{}).
		Exclude(map[string]any{
			"Done":  true,
			"Title": "alpha",
		}).
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(list))
	}
	for _, todo := range list {
		if todo.Done && todo.Title == "alpha" {
			t.Fatalf("excluded todo came back: %+v", todo)
		}
	}
}

func TestGetErrors(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "erin")
	createTodo(t, "same", false, user)
	createTodo(t, "same", false, user)

	var _, err = queries.Objects(&Todo{}).Get(ctx, "Title", "missing")
	if !errors.Is(err, query_errors.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}

	_, err = queries.Objects(&Todo{}).Get(ctx, "Title", "same")
	if !errors.Is(err, query_errors.ErrMultipleRows) {
		t.Fatalf("expected ErrMultipleRows, got %v", err)
	}
}

func TestFirstAndLast(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "frank")
	var first = createTodo(t, "first", false, user)
	createTodo(t, "middle", false, user)
	var last = createTodo(t, "last", false, user)

	got, err := queries.Objects(&Todo{}).First(ctx)
	if err != nil {
		t.Fatalf("failed to get first: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected first todo %d, got %d", first.ID, got.ID)
	}

	got, err = queries.Objects(&Todo{}).Last(ctx)
	if err != nil {
		t.Fatalf("failed to get last: %v", err)
	}
	if got.ID != last.ID {
		t.Fatalf("expected last todo %d, got %d", last.ID, got.ID)
	}
}

func TestOrderByAndReverse(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "grace")
	createTodo(t, "b", false, user)
	createTodo(t, "a", false, user)
	createTodo(t, "c", false, user)

	list, err := queries.Objects(&Todo{}).OrderBy("Title").All(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(list) != 3 || list[0].Title != "a" || list[2].Title != "c" {
		t.Fatalf("unexpected ascending order: %+v", titles(list))
	}

	list, err = queries.Objects(&Todo{}).OrderBy("Title").Reverse().All(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(list) != 3 || list[0].Title != "c" || list[2].Title != "a" {
		t.Fatalf("unexpected descending order: %+v", titles(list))
	}

	list, err = queries.Objects(&Todo{}).OrderBy("-Title").All(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if list[0].Title != "c" {
		t.Fatalf("unexpected order with '-' prefix: %+v", titles(list))
	}
}

func titles(list []*Todo) []string {
	var out = make([]string, len(list))
	for i, todo := range list {
		out[i] = todo.Title
	}
	return out
}

func TestLimitOffset(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "heidi")
	for _, title := range []string{"a", "b", "c", "d"} {
		createTodo(t, title, false, user)
	}

	list, err := queries.Objects(&Todo{}).
		OrderBy("Title").
		Limit(2).
		Offset(1).
		All(ctx)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(list) != 2 || list[0].Title != "b" || list[1].Title != "c" {
		t.Fatalf("unexpected page: %+v", titles(list))
	}
}

func TestUpdateRequiresWhere(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "ivan")
	createTodo(t, "keep", false, user)
	createTodo(t, "keep2", false, user)

	var _, err = queries.Objects(&Todo{}).Update(ctx, map[string]any{"Done": true})
	if !errors.Is(err, query_errors.ErrNoWhereClause) {
		t.Fatalf("expected ErrNoWhereClause, got %v", err)
	}

	count, err := queries.Objects(&Todo{}).AllRows().Update(ctx, map[string]any{"Done": true})
	if err != nil {
		t.Fatalf("failed to update all rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows updated, got %d", count)
	}
}

func TestDeleteRequiresWhere(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "judy")
	createTodo(t, "gone", false, user)
	createTodo(t, "gone2", false, user)

	var _, err = queries.Objects(&Todo{}).Delete(ctx)
	if !errors.Is(err, query_errors.ErrNoWhereClause) {
		t.Fatalf("expected ErrNoWhereClause, got %v", err)
	}

	count, err := queries.Objects(&Todo{}).AllRows().Delete(ctx)
	if err != nil {
		t.Fatalf("failed to delete all rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", count)
	}

	exists, err := queries.Objects(&Todo{}).AllRows().Exists(ctx)
	if err != nil {
		t.Fatalf("failed to check existence: %v", err)
	}
	if exists {
		t.Fatalf("expected no todos after delete")
	}
}

func TestUpdateValues(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "kate")
	createTodo(t, "open", false, user)
	createTodo(t, "open", false, user)
	createTodo(t, "closed", true, user)

	count, err := queries.Objects(&Todo{}).
		Filter("Title", "open").
		Update(ctx, map[string]any{"Done": true})
	if err != nil {
		t.Fatalf("failed to update: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows updated, got %d", count)
	}

	doneCount, err := queries.Objects(&Todo{}).Filter("Done", true).Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if doneCount != 3 {
		t.Fatalf("expected 3 done todos, got %d", doneCount)
	}
}

func TestCountAndExists(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "liam")
	createTodo(t, "x", false, user)
	createTodo(t, "y", true, user)

	count, err := queries.Objects(&Todo{}).Filter("Done", true).Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 done todo, got %d", count)
	}

	exists, err := queries.Objects(&Todo{}).Filter("Title", "x").Exists(ctx)
	if err != nil {
		t.Fatalf("failed to check existence: %v", err)
	}
	if !exists {
		t.Fatalf("expected todo 'x' to exist")
	}

	exists, err = queries.Objects(&Todo{}).Filter("Title", "z").Exists(ctx)
	if err != nil {
		t.Fatalf("failed to check existence: %v", err)
	}
	if exists {
		t.Fatalf("expected no todo 'z'")
	}
}

func TestGetOrCreate(t *testing.T) {
	clearTables(t, "users")
	var ctx = context.Background()

	user, created, err := queries.Objects(&User{}).GetOrCreate(ctx, map[string]any{
		"Name": "mallory",
	})
	if err != nil {
		t.Fatalf("failed to get or create: %v", err)
	}
	if !created {
		t.Fatalf("expected user to be created")
	}
	if user.ID == 0 {
		t.Fatalf("expected primary key to be set")
	}

	again, created, err := queries.Objects(&User{}).GetOrCreate(ctx, map[string]any{
		"Name": "mallory",
	})
	if err != nil {
		t.Fatalf("failed to get or create: %v", err)
	}
	if created {
		t.Fatalf("expected existing user to be returned")
	}
	if again.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, again.ID)
	}
}

func TestUpdateOrCreate(t *testing.T) {
	clearTables(t, "users")
	var ctx = context.Background()

	user, err := queries.Objects(&User{}).UpdateOrCreate(ctx, map[string]any{
		"Name": "nancy",
	})
	if err != nil {
		t.Fatalf("failed to update or create: %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("expected primary key to be set")
	}

	updated, err := queries.Objects(&User{}).UpdateOrCreate(ctx, map[string]any{
		"ID":   user.ID,
		"Name": "nancy II",
	})
	if err != nil {
		t.Fatalf("failed to update or create: %v", err)
	}
	if updated.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, updated.ID)
	}
	if updated.Name != "nancy II" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}

	count, err := queries.Objects(&User{}).AllRows().Count(ctx)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single user, got %d", count)
	}
}

func TestHelpers(t *testing.T) {
	clearTables(t, "todos", "users")
	var ctx = context.Background()

	var user = createUser(t, "oscar")

	got, err := queries.GetObject[*User](ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to get object: %v", err)
	}
	if got.Name != "oscar" {
		t.Fatalf("expected name %q, got %q", "oscar", got.Name)
	}

	got.Name = "oscar II"
	if _, err := queries.UpdateObject(ctx, got); err != nil {
		t.Fatalf("failed to update object: %v", err)
	}

	count, err := queries.CountObjects(ctx, &User{})
	if err != nil {
		t.Fatalf("failed to count objects: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 user, got %d", count)
	}

	list, err := queries.ListObjects[*User](ctx, 0, 10)
	if err != nil {
		t.Fatalf("failed to list objects: %v", err)
	}
	if len(list) != 1 || list[0].Name != "oscar II" {
		t.Fatalf("unexpected list result: %+v", list)
	}

	if _, err := queries.DeleteObject(ctx, got); err != nil {
		t.Fatalf("failed to delete object: %v", err)
	}

	count, err = queries.CountObjects(ctx, &User{})
	if err != nil {
		t.Fatalf("failed to count objects: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no users after delete, got %d", count)
	}
}
