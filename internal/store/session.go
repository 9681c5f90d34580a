package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState is a device-auth session's position in its state machine.
type SessionState string

const (
	SessionPending   SessionState = "pending"
	SessionApproved  SessionState = "approved"
	SessionDenied    SessionState = "denied"
	SessionExchanged SessionState = "exchanged"
	SessionExpired   SessionState = "expired"
)

// AuthSession is a device-auth handshake in progress.
type AuthSession struct {
	ID                  uuid.UUID
	State               SessionState
	Code                string
	CodeChallenge       string
	CodeChallengeMethod string
	CallbackURL         string
	ClientInfo          string // opaque, caller-supplied
	SubjectUserID       *uuid.UUID
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// SessionStore provides database operations over cli_auth_sessions.
type SessionStore struct {
	db DBTX
}

// NewSessionStore creates a SessionStore backed by dbtx.
func NewSessionStore(dbtx DBTX) *SessionStore {
	return &SessionStore{db: dbtx}
}

const sessionColumns = `id, state, code, code_challenge, code_challenge_method,
	callback_url, client_info, subject_user_id, created_at, expires_at`

// Create inserts a new pending session.
func (s *SessionStore) Create(ctx context.Context, sess *AuthSession) error {
	query := fmt.Sprintf(`
		INSERT INTO cli_auth_sessions (id, state, code, code_challenge, code_challenge_method,
			callback_url, client_info, subject_user_id, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),$9)
		RETURNING %s`, sessionColumns)

	row := s.db.QueryRow(ctx, query, sess.ID, sess.State, sess.Code, sess.CodeChallenge,
		sess.CodeChallengeMethod, sess.CallbackURL, sess.ClientInfo, sess.SubjectUserID, sess.ExpiresAt)
	out, err := scanSession(row)
	if err != nil {
		return fmt.Errorf("creating auth session: %w", err)
	}
	*sess = out
	return nil
}

// FindByCode looks up a session by its one-time code.
func (s *SessionStore) FindByCode(ctx context.Context, code string) (AuthSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM cli_auth_sessions WHERE code = $1`, sessionColumns)
	return scanSession(s.db.QueryRow(ctx, query, code))
}

// FindByID looks up a session by its id (used by the approval endpoint the
// browser hits, outside this repository's HTTP surface but sharing storage).
func (s *SessionStore) FindByID(ctx context.Context, id uuid.UUID) (AuthSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM cli_auth_sessions WHERE id = $1`, sessionColumns)
	return scanSession(s.db.QueryRow(ctx, query, id))
}

// TransitionState performs a compare-and-set state transition, returning
// false (no error) if the session was not in expectedFrom.
func (s *SessionStore) TransitionState(ctx context.Context, id uuid.UUID, expectedFrom, to SessionState, subjectUserID *uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE cli_auth_sessions SET state = $3, subject_user_id = COALESCE($4, subject_user_id)
		WHERE id = $1 AND state = $2`,
		id, expectedFrom, to, subjectUserID)
	if err != nil {
		return false, fmt.Errorf("transitioning session state: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpirePending marks every pending or approved session past its expires_at
// as expired. Run
// opportunistically; a read of an expired-but-unmarked session is still
// treated as expired by its ExpiresAt check.
func (s *SessionStore) ExpirePending(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		UPDATE cli_auth_sessions SET state = 'expired'
		WHERE state IN ('pending', 'approved') AND expires_at < now()`)
	return err
}

func scanSession(row interface{ Scan(...any) error }) (AuthSession, error) {
	var sess AuthSession
	err := row.Scan(&sess.ID, &sess.State, &sess.Code, &sess.CodeChallenge, &sess.CodeChallengeMethod,
		&sess.CallbackURL, &sess.ClientInfo, &sess.SubjectUserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return AuthSession{}, err
	}
	return sess, nil
}
