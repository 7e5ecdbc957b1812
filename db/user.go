package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/teal-fm/beacon/models"
)

// ErrUserNotFound is returned by updates that matched no row
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, access_token, refresh_token, session_token, enabled,
	name, type, platform, state, details, large_image, large_text, small_image, small_text,
	btn1_text, btn1_url, btn2_text, btn2_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var kind string
	var platform sql.NullString

	err := row.Scan(
		&user.ID, &user.AccessToken, &user.RefreshToken, &user.SessionToken, &user.Enabled,
		&user.Name, &kind, &platform, &user.State, &user.Details,
		&user.LargeImage, &user.LargeText, &user.SmallImage, &user.SmallText,
		&user.Button1Text, &user.Button1URL, &user.Button2Text, &user.Button2URL,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.Type = models.ActivityKind(kind)
	if platform.Valid {
		user.Platform = models.ParsePlatform(platform.String)
	}

	return user, nil
}

// CreateUser adds a new user to the database
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()

	kind := user.Type
	if kind == "" {
		kind = models.ActivityPlaying
	}

	_, err := db.ExecContext(ctx, `
	INSERT INTO users (id, access_token, refresh_token, session_token, enabled,
		name, type, platform, state, details, large_image, large_text, small_image, small_text,
		btn1_text, btn1_url, btn2_text, btn2_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.AccessToken, user.RefreshToken, user.SessionToken, user.Enabled,
		user.Name, string(kind), platformValue(user.Platform), user.State, user.Details,
		user.LargeImage, user.LargeText, user.SmallImage, user.SmallText,
		user.Button1Text, user.Button1URL, user.Button2Text, user.Button2URL,
		now, now)

	return err
}

// GetUserByID retrieves a user by their Discord ID, returning nil when absent
func (db *DB) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ListEnabledUsers returns every user with presence enabled
func (db *DB) ListEnabledUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE enabled = 1
    ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// UpdateUserCredentials replaces a user's access and refresh token pair
func (db *DB) UpdateUserCredentials(ctx context.Context, userID, accessToken, refreshToken string) error {
	res, err := db.ExecContext(ctx, `
	UPDATE users
	SET access_token = ?, refresh_token = ?, updated_at = ?
	WHERE id = ?`,
		accessToken, refreshToken, time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	return expectRow(res)
}

// UpdateSessionToken stores the headless session token. A nil token clears it.
func (db *DB) UpdateSessionToken(ctx context.Context, userID string, token *string) error {
	res, err := db.ExecContext(ctx, `
	UPDATE users
	SET session_token = ?, updated_at = ?
	WHERE id = ?`,
		token, time.Now().UTC(), userID)
	if err != nil {
		return err
	}

	return expectRow(res)
}

// UpdatePresenceSettings stores the user's presence configuration and enabled flag
func (db *DB) UpdatePresenceSettings(ctx context.Context, user *models.User) error {
	kind := user.Type
	if kind == "" {
		kind = models.ActivityPlaying
	}

	res, err := db.ExecContext(ctx, `
	UPDATE users
	SET enabled = ?,
		name = ?,
		type = ?,
		platform = ?,
		state = ?,
		details = ?,
		large_image = ?,
		large_text = ?,
		small_image = ?,
		small_text = ?,
		btn1_text = ?,
		btn1_url = ?,
		btn2_text = ?,
		btn2_url = ?,
		updated_at = ?
	WHERE id = ?`,
		user.Enabled, user.Name, string(kind), platformValue(user.Platform),
		user.State, user.Details, user.LargeImage, user.LargeText, user.SmallImage, user.SmallText,
		user.Button1Text, user.Button1URL, user.Button2Text, user.Button2URL,
		time.Now().UTC(), user.ID)
	if err != nil {
		return err
	}

	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func platformValue(p *models.Platform) any {
	if p == nil {
		return nil
	}
	return string(*p)
}
