package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/monbridge/internal/bridge"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const sessionColumns = `id, spec, spec_hash, outputs, frame_policy, engine_version, ir_version, created_at, released_at`

// ReadSession returns one session by ID.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, err
}

// ListSessions returns every session ordered by creation, oldest first.
// Ties are broken by ID for deterministic output.
//
// Returns an empty slice (not nil) if there are no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadCalls returns a session's calls ordered by seq.
//
// Returns an empty slice (not nil) if the session has no calls.
func (s *Store) ReadCalls(ctx context.Context, sessionID string) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, mode, payload, result, status
		FROM calls
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess        Session
		outputsJSON string
		createdAt   string
		releasedAt  sql.NullString
	)
	err := row.Scan(
		&sess.ID,
		&sess.Spec,
		&sess.SpecHash,
		&outputsJSON,
		&sess.FramePolicy,
		&sess.EngineVersion,
		&sess.IRVersion,
		&createdAt,
		&releasedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sess, err
		}
		return sess, fmt.Errorf("scan session: %w", err)
	}

	if sess.Outputs, err = unmarshalOutputs(outputsJSON); err != nil {
		return sess, err
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return sess, fmt.Errorf("scan session: created_at: %w", err)
	}
	if releasedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, releasedAt.String)
		if err != nil {
			return sess, fmt.Errorf("scan session: released_at: %w", err)
		}
		sess.ReleasedAt = &t
	}
	return sess, nil
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c       Call
		mode    string
		payload string
		result  string
	)
	if err := row.Scan(&c.SessionID, &c.Seq, &mode, &payload, &result, &c.Status); err != nil {
		return c, fmt.Errorf("scan call: %w", err)
	}
	c.Mode = bridge.MarshalMode(mode)

	if err := unmarshalPayload(&c, payload); err != nil {
		return c, err
	}
	values, err := unmarshalResult(result)
	if err != nil {
		return c, err
	}
	c.Result = values
	return c, nil
}
