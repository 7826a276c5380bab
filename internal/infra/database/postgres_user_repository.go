package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"appointment_reminders/internal/domain/user"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, email, role, first_name, last_name, phone_number, chat_id, preferences, push_subscription, created_at, updated_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

// phoneLookupQuery compares numbers the way user.PhoneMatches does, preferring
// an exact digit match over a national trunk-0 match.
var phoneLookupQuery = fmt.Sprintf(`
WITH candidates AS (
	SELECT %s, regexp_replace(regexp_replace(phone_number, '[^0-9]', '', 'g'), '^00', '') AS digits
	FROM users
	WHERE phone_number <> ''
)
SELECT %s FROM candidates
WHERE digits = $1
   OR (digits LIKE '0%%' AND length(digits) > %d AND $1 LIKE ('%%' || substr(digits, 2)))
ORDER BY (digits = $1) DESC, created_at
LIMIT 1`, userColumns, userColumns, user.MinTrunkDigits)

func (r *PostgresUserRepository) GetByPhone(ctx context.Context, phone string) (*user.User, error) {
	digits := user.NormalizePhone(phone)
	if digits == "" {
		return nil, ErrUserNotFound
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, phoneLookupQuery, digits))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by phone: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) LinkChat(ctx context.Context, userID string, chatID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET chat_id = $1, updated_at = NOW() WHERE id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("error linking chat for user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error linking chat for user %s: %w", userID, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AppendNotificationHistory inserts the entry and trims the user's history to
// the newest user.HistoryLimit rows in one transaction.
func (r *PostgresUserRepository) AppendNotificationHistory(ctx context.Context, userID string, entry user.HistoryEntry) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for notification history: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	var appointmentID sql.NullString
	if entry.AppointmentID != "" {
		appointmentID = sql.NullString{String: entry.AppointmentID, Valid: true}
	}
	_, err = txn.ExecContext(ctx,
		`INSERT INTO notification_history (user_id, channel, appointment_id, sent_at, status, error)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, entry.Channel, appointmentID, entry.SentAt, entry.Status, entry.Error)
	if err != nil {
		return fmt.Errorf("error inserting notification history for user %s: %w", userID, err)
	}

	_, err = txn.ExecContext(ctx,
		`DELETE FROM notification_history
         WHERE user_id = $1
           AND id NOT IN (SELECT id FROM notification_history WHERE user_id = $1 ORDER BY id DESC LIMIT $2)`,
		userID, user.HistoryLimit)
	if err != nil {
		return fmt.Errorf("error trimming notification history for user %s: %w", userID, err)
	}

	return txn.Commit()
}

// ListNotificationHistory returns the user's history, oldest first.
func (r *PostgresUserRepository) ListNotificationHistory(ctx context.Context, userID string) ([]user.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, channel, COALESCE(appointment_id, ''), sent_at, status, error
         FROM notification_history WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying notification history: %w", err)
	}
	defer rows.Close()

	entries := make([]user.HistoryEntry, 0)
	for rows.Next() {
		var e user.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Channel, &e.AppointmentID, &e.SentAt, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("error scanning notification history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification history rows: %w", err)
	}
	return entries, nil
}

func scanUser(row rowScanner) (*user.User, error) {
	u := &user.User{}
	var chatID sql.NullInt64
	var prefs, push []byte
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.FirstName, &u.LastName, &u.PhoneNumber,
		&chatID, &prefs, &push, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ChatID = chatID.Int64

	u.Preferences = user.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("error decoding preferences of user %s: %w", u.ID, err)
		}
	}
	if len(push) > 0 {
		sub := &user.PushSubscription{}
		if err := json.Unmarshal(push, sub); err != nil {
			return nil, fmt.Errorf("error decoding push subscription of user %s: %w", u.ID, err)
		}
		if sub.Endpoint != "" {
			u.PushSubscription = sub
		}
	}
	return u, nil
}
