package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/monbridge/internal/ir"
)

// CreateSession inserts a session record and returns it with ID, versions
// and CreatedAt filled in where they were empty.
func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = s.ids.Generate()
	}
	if sess.SpecHash == "" {
		sess.SpecHash = ir.SpecHash(sess.Spec)
	}
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	if sess.IRVersion == "" {
		sess.IRVersion = ir.IRVersion
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}

	outputsJSON, err := marshalOutputs(sess.Outputs)
	if err != nil {
		return sess, fmt.Errorf("create session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, spec, spec_hash, outputs, frame_policy, engine_version, ir_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID,
		sess.Spec,
		sess.SpecHash,
		outputsJSON,
		sess.FramePolicy,
		sess.EngineVersion,
		sess.IRVersion,
		formatTime(sess.CreatedAt),
	)
	if err != nil {
		return sess, fmt.Errorf("create session: %w", err)
	}

	return sess, nil
}

// ReleaseSession marks a session as released. Releasing twice keeps the
// first release time.
func (s *Store) ReleaseSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET released_at = ?
		WHERE id = ? AND released_at IS NULL
	`, formatTime(s.now().UTC()), id)
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	if n == 0 {
		if _, err := s.ReadSession(ctx, id); err != nil {
			return fmt.Errorf("release session: %w", err)
		}
	}
	return nil
}

// WriteCall inserts a call record.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same
// (session, seq) is silently ignored.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteCall(ctx context.Context, c Call) error {
	payload, err := marshalPayload(c)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	result, err := marshalResult(c.Result)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls
		(session_id, seq, mode, payload, result, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		c.SessionID,
		c.Seq,
		string(c.Mode),
		payload,
		result,
		c.Status,
	)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
