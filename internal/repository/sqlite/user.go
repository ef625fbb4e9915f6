package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores User documents in the users table.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, email, name, image, bio, external_id, favorites, created_at, updated_at`

// Create inserts a new user, generating its ID and timestamps.
// The UNIQUE constraints on email and external_id surface as
// apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	if user.Favorites == nil {
		user.Favorites = []string{}
	}

	favorites, err := json.Marshal(user.Favorites)
	if err != nil {
		return fmt.Errorf("sqlite: encoding favorites: %w", err)
	}

	_, err = u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.Image,
		user.Bio,
		user.ExternalID,
		string(favorites),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "external_id") {
				return apperror.Conflict("User with this identity already exists")
			}
			return apperror.Conflict("User with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getBy(ctx, "id", id)
}

// GetByExternalID retrieves a user by identity-provider ID.
func (u *UserDB) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return u.getBy(ctx, "external_id", externalID)
}

// GetByEmail retrieves a user by email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getBy(ctx, "email", email)
}

// getBy looks up one user by a fixed, code-controlled column name.
func (u *UserDB) getBy(ctx context.Context, column, value string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return user, nil
}

// Update writes name, image and bio. The favorites column is not touched,
// so a profile edit cannot undo a concurrent AddFavorite.
func (u *UserDB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := u.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, image = ?, bio = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Image,
		user.Bio,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// AddFavorite appends novelID to the favorites array unless present.
//
// READ-MODIFY-WRITE IN ONE TRANSACTION:
// The favorites live in a JSON column, so adding one means decoding the
// array, appending and writing it back. Doing that inside one transaction
// keeps two concurrent adds from both reading the old array and one of
// them losing its write.
func (u *UserDB) AddFavorite(ctx context.Context, userID, novelID string) (*model.User, error) {
	return u.editFavorites(ctx, userID, func(favorites []string) ([]string, bool) {
		if slices.Contains(favorites, novelID) {
			return favorites, false
		}
		return append(favorites, novelID), true
	})
}

// RemoveFavorite drops novelID from the favorites array, keeping the order
// of the remaining entries.
func (u *UserDB) RemoveFavorite(ctx context.Context, userID, novelID string) (*model.User, error) {
	return u.editFavorites(ctx, userID, func(favorites []string) ([]string, bool) {
		if !slices.Contains(favorites, novelID) {
			return favorites, false
		}
		return slices.DeleteFunc(favorites, func(f string) bool { return f == novelID }), true
	})
}

// editFavorites loads the user inside a transaction, applies edit, and
// writes the favorites back when edit reports a change.
func (u *UserDB) editFavorites(ctx context.Context, userID string, edit func([]string) ([]string, bool)) (*model.User, error) {
	var user *model.User
	err := withTx(ctx, u.conn, func(tx *sql.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = ?`, userID,
		))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("user", userID)
			}
			return fmt.Errorf("sqlite: getting user %s: %w", userID, err)
		}

		favorites, changed := edit(user.Favorites)
		if !changed {
			return nil
		}
		encoded, err := json.Marshal(favorites)
		if err != nil {
			return fmt.Errorf("sqlite: encoding favorites: %w", err)
		}

		user.Favorites = favorites
		user.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET favorites = ?, updated_at = ? WHERE id = ?`,
			string(encoded), user.UpdatedAt, userID,
		); err != nil {
			return fmt.Errorf("sqlite: writing favorites of %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user      model.User
		favorites string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Image,
		&user.Bio,
		&user.ExternalID,
		&favorites,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(favorites), &user.Favorites); err != nil {
		return nil, fmt.Errorf("decoding favorites: %w", err)
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	return &user, nil
}
