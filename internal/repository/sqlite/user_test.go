package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, u *UserDB, email, externalID string) *model.User {
	t.Helper()
	user := &model.User{
		Email:      email,
		Name:       "Test " + externalID,
		ExternalID: externalID,
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	u := newTestDB(t).Users()

	user := &model.User{Email: "a@x.com", Name: "A", ExternalID: "s1"}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
	if user.Favorites == nil {
		t.Error("Create() should default favorites to an empty list")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	u := newTestDB(t).Users()
	createTestUser(t, u, "dup@x.com", "s1")

	err := u.Create(context.Background(), &model.User{Email: "dup@x.com", Name: "B", ExternalID: "s2"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	if err.Error() != "User with this email already exists" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUserCreate_DuplicateExternalID(t *testing.T) {
	u := newTestDB(t).Users()
	createTestUser(t, u, "one@x.com", "same")

	err := u.Create(context.Background(), &model.User{Email: "two@x.com", Name: "B", ExternalID: "same"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestUserLookups(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "look@x.com", "ext-42")
	ctx := context.Background()

	byID, err := u.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Email != "look@x.com" {
		t.Errorf("Email = %q", byID.Email)
	}

	byExt, err := u.GetByExternalID(ctx, "ext-42")
	if err != nil {
		t.Fatalf("GetByExternalID() error = %v", err)
	}
	if byExt.ID != created.ID {
		t.Errorf("ID = %q, want %q", byExt.ID, created.ID)
	}

	byEmail, err := u.GetByEmail(ctx, "look@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if byEmail.ExternalID != "ext-42" {
		t.Errorf("ExternalID = %q", byEmail.ExternalID)
	}
}

func TestUserLookups_NotFound(t *testing.T) {
	u := newTestDB(t).Users()
	ctx := context.Background()

	if _, err := u.GetByID(ctx, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if _, err := u.GetByExternalID(ctx, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByExternalID() error = %v, want ErrNotFound", err)
	}
	if _, err := u.GetByEmail(ctx, "nope@x.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserUpdate(t *testing.T) {
	u := newTestDB(t).Users()
	user := createTestUser(t, u, "edit@x.com", "s9")
	ctx := context.Background()

	if _, err := u.AddFavorite(ctx, user.ID, "n1"); err != nil {
		t.Fatalf("AddFavorite() error = %v", err)
	}

	// user still holds the stale, empty favorites slice.
	user.Name = "Renamed"
	user.Bio = "I write."
	if err := u.Update(ctx, user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	found, err := u.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Name != "Renamed" || found.Bio != "I write." {
		t.Errorf("profile not updated: %+v", found)
	}
	if len(found.Favorites) != 1 || found.Favorites[0] != "n1" {
		t.Errorf("Favorites = %v, want profile edit to leave [n1] in place", found.Favorites)
	}
}

func TestUserFavorites(t *testing.T) {
	u := newTestDB(t).Users()
	user := createTestUser(t, u, "fav@x.com", "s10")
	ctx := context.Background()

	steps := []struct {
		name string
		op   func(ctx context.Context, userID, novelID string) (*model.User, error)
		id   string
		want []string
	}{
		{name: "add n2", op: u.AddFavorite, id: "n2", want: []string{"n2"}},
		{name: "add n1", op: u.AddFavorite, id: "n1", want: []string{"n2", "n1"}},
		{name: "add n2 again", op: u.AddFavorite, id: "n2", want: []string{"n2", "n1"}},
		{name: "add n3", op: u.AddFavorite, id: "n3", want: []string{"n2", "n1", "n3"}},
		{name: "remove n1", op: u.RemoveFavorite, id: "n1", want: []string{"n2", "n3"}},
		{name: "remove absent", op: u.RemoveFavorite, id: "n9", want: []string{"n2", "n3"}},
	}

	for _, tt := range steps {
		got, err := tt.op(ctx, user.ID, tt.id)
		if err != nil {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
		if !slices.Equal(got.Favorites, tt.want) {
			t.Errorf("%s: returned favorites = %v, want %v", tt.name, got.Favorites, tt.want)
		}
		stored, _ := u.GetByID(ctx, user.ID)
		if !slices.Equal(stored.Favorites, tt.want) {
			t.Errorf("%s: stored favorites = %v, want %v", tt.name, stored.Favorites, tt.want)
		}
	}

	if _, err := u.AddFavorite(ctx, "ghost", "n1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("AddFavorite(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestUserAddFavorite_ConcurrentAddsAllLand(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "favorites.db"))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	u := db.Users()
	user := createTestUser(t, u, "race@x.com", "s11")
	ctx := context.Background()

	const adds = 20
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := u.AddFavorite(ctx, user.ID, fmt.Sprintf("novel-%02d", i)); err != nil {
				t.Errorf("AddFavorite() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	found, err := u.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(found.Favorites) != adds {
		t.Errorf("len(Favorites) = %d after %d concurrent adds, want %d", len(found.Favorites), adds, adds)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	u := newTestDB(t).Users()
	err := u.Update(context.Background(), &model.User{ID: "ghost", Name: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}
