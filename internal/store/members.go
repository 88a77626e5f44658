package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DateLayout is the on-disk format of last_active.
const DateLayout = "2006-01-02"

// ActivityRecord is the tracked state of one member in one chat.
type ActivityRecord struct {
	MemberID       int64
	ConversationID int64
	DisplayName    string
	LastActive     time.Time // UTC midnight
	Warned         bool
}

// Day truncates t to midnight of its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string as a UTC date.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// UpsertActivity creates the record or refreshes it. last_active keeps the
// later of the stored and given dates; warned is cleared unless the given
// date is older than the stored one.
func (db *DB) UpsertActivity(ctx context.Context, rec ActivityRecord) error {
	unlock := db.locks.lock(rec.MemberID, rec.ConversationID)
	defer unlock()

	_, err := db.ExecContext(ctx, `
		INSERT INTO members (member_id, chat_id, display_name, last_active, warned)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(member_id, chat_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE members.display_name END,
			warned       = CASE WHEN excluded.last_active >= members.last_active THEN 0 ELSE members.warned END,
			last_active  = MAX(members.last_active, excluded.last_active)
	`, rec.MemberID, rec.ConversationID, rec.DisplayName, Day(rec.LastActive).Format(DateLayout))
	if err != nil {
		return fmt.Errorf("upsert activity: %w", err)
	}
	return nil
}

// MarkWarned sets warned on the record, provided last_active still equals
// the value the caller evaluated. It returns false when the record is gone
// or has been refreshed since.
func (db *DB) MarkWarned(ctx context.Context, memberID, chatID int64, lastActive time.Time) (bool, error) {
	unlock := db.locks.lock(memberID, chatID)
	defer unlock()

	result, err := db.ExecContext(ctx, `
		UPDATE members SET warned = 1
		WHERE member_id = ? AND chat_id = ? AND last_active = ?
	`, memberID, chatID, Day(lastActive).Format(DateLayout))
	if err != nil {
		return false, fmt.Errorf("mark warned: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Remove deletes the record. It returns false if there was nothing to delete.
func (db *DB) Remove(ctx context.Context, memberID, chatID int64) (bool, error) {
	unlock := db.locks.lock(memberID, chatID)
	defer unlock()

	result, err := db.ExecContext(ctx,
		`DELETE FROM members WHERE member_id = ? AND chat_id = ?`, memberID, chatID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Get returns a single record, or nil if it does not exist.
func (db *DB) Get(ctx context.Context, memberID, chatID int64) (*ActivityRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT member_id, chat_id, display_name, last_active, warned
		FROM members WHERE member_id = ? AND chat_id = ?
	`, memberID, chatID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &rec, nil
}

// ListConversations returns every chat with at least one record.
func (db *DB) ListConversations(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT chat_id FROM members ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var chats []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		chats = append(chats, id)
	}
	return chats, rows.Err()
}

// ListMembers returns all records for a chat, oldest activity first.
func (db *DB) ListMembers(ctx context.Context, chatID int64) ([]ActivityRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT member_id, chat_id, display_name, last_active, warned
		FROM members WHERE chat_id = ?
		ORDER BY last_active ASC, member_id ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var recs []ActivityRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (ActivityRecord, error) {
	var (
		rec    ActivityRecord
		day    string
		warned int
	)
	if err := s.Scan(&rec.MemberID, &rec.ConversationID, &rec.DisplayName, &day, &warned); err != nil {
		return ActivityRecord{}, err
	}
	t, err := ParseDay(day)
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("parse last_active %q: %w", day, err)
	}
	rec.LastActive = t
	rec.Warned = warned != 0
	return rec, nil
}
