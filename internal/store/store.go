// Package store reads calendar events from PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appLog "bizcal/internal/log"
	"bizcal/internal/model"
)

const selectEvents = `
	SELECT id, title, start_date, end_date, category, notification, participants
	FROM calendar_events
	WHERE start_date >= $1 AND start_date <= $2`

// DB wraps a database connection and serves events to the alert engine.
type DB struct {
	conn    *sql.DB
	ownerID string
}

// NewDB opens and pings a PostgreSQL connection.
func NewDB(dsn, ownerID string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	appLog.Info("connected to PostgreSQL", "owner_id", ownerID)
	return New(conn, ownerID), nil
}

// New wraps an existing connection. An empty ownerID reads every owner's events.
func New(conn *sql.DB, ownerID string) *DB {
	return &DB{conn: conn, ownerID: ownerID}
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// FetchUpcomingEvents returns events whose start_date lies in [start, end],
// ordered by start_date.
func (db *DB) FetchUpcomingEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	query := selectEvents
	args := []any{start, end}
	if db.ownerID != "" {
		query += ` AND owner_id = $3`
		args = append(args, db.ownerID)
	}
	query += ` ORDER BY start_date ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		var (
			ev           model.Event
			id, title    sql.NullString
			category     sql.NullString
			startDate    sql.NullTime
			endDate      sql.NullTime
			notification sql.NullString
			participants pq.StringArray
		)
		if err := rows.Scan(
			&id,
			&title,
			&startDate,
			&endDate,
			&category,
			&notification,
			&participants,
		); err != nil {
			// One unreadable row must not hide the rest.
			appLog.Warn("calendar event row skipped", "reason", err)
			continue
		}
		ev.ID = id.String
		ev.Title = title.String
		if startDate.Valid {
			ev.StartDate = startDate.Time
		}
		if endDate.Valid {
			ev.EndDate = endDate.Time
		}
		ev.Category = model.ParseCategory(category.String)
		ev.Notification = notification.String
		ev.Participants = model.NormalizeParticipants(participants)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read calendar events: %w", err)
	}
	return events, nil
}
