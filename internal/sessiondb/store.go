package sessiondb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/courtside-data/playerlock/geom"
)

// Event kinds recorded in lock_events.
const (
	EventTransition = "transition"
	EventIDSwitch   = "id_switch"
	EventPending    = "pending"
)

// Session is one lock run over a detection log.
type Session struct {
	SessionID         string          `json:"session_id"`
	MasterID          string          `json:"master_id"`
	Source            string          `json:"source,omitempty"`
	ConfigJSON        json.RawMessage `json:"config_json,omitempty"`
	StartedUnixNanos  int64           `json:"started_unix_nanos"`
	FinishedUnixNanos *int64          `json:"finished_unix_nanos,omitempty"`
	FinalState        string          `json:"final_state,omitempty"`
	MetricsJSON       json.RawMessage `json:"metrics_json,omitempty"`
}

// Observation is the outcome of a single lock update. MatchedID is empty and
// MatchScore and the raw center are NaN when the update was a miss.
type Observation struct {
	SessionID  string        `json:"session_id"`
	Timeline   time.Duration `json:"timeline"`
	State      string        `json:"state"`
	Box        geom.Box      `json:"box"`
	Confidence float32       `json:"confidence"`
	MatchedID  string        `json:"matched_id,omitempty"`
	MatchScore float32       `json:"match_score"`
	ExactMatch bool          `json:"exact_match"`
	RawCenterX float32       `json:"raw_center_x"`
	RawCenterY float32       `json:"raw_center_y"`
}

// Event is a notable moment in a session: a state transition, an identity
// switch, or hysteresis activity.
type Event struct {
	SessionID string        `json:"session_id"`
	Timeline  time.Duration `json:"timeline"`
	Kind      string        `json:"kind"`
	FromValue string        `json:"from_value,omitempty"`
	ToValue   string        `json:"to_value,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// SessionStore provides persistence for lock sessions.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session. If sess.SessionID is empty a new id is
// generated; if StartedUnixNanos is zero the current time is used. Both are
// written back to sess.
func (s *SessionStore) Create(sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = NewSessionID()
	}
	if sess.StartedUnixNanos == 0 {
		sess.StartedUnixNanos = time.Now().UnixNano()
	}

	query := `
		INSERT INTO lock_sessions (
			session_id, master_id, source, config_json,
			started_unix_nanos, finished_unix_nanos, final_state, metrics_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		sess.SessionID,
		sess.MasterID,
		sess.Source,
		nullString(string(sess.ConfigJSON)),
		sess.StartedUnixNanos,
		nullInt64(sess.FinishedUnixNanos),
		nullString(sess.FinalState),
		nullString(string(sess.MetricsJSON)),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Finish marks a session complete with its final state and metrics snapshot.
func (s *SessionStore) Finish(sessionID string, finishedUnixNanos int64, finalState string, metricsJSON json.RawMessage) error {
	query := `
		UPDATE lock_sessions SET
			finished_unix_nanos = ?,
			final_state = ?,
			metrics_json = ?
		WHERE session_id = ?
	`

	_, err := s.db.Exec(query,
		finishedUnixNanos,
		nullString(finalState),
		nullString(string(metricsJSON)),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}

	return nil
}

// InsertObservation inserts a single lock update outcome.
func (s *SessionStore) InsertObservation(obs *Observation) error {
	query := `
		INSERT INTO lock_observations (
			session_id, timeline_ms, state,
			x, y, width, height, confidence,
			matched_id, match_score, exact_match, raw_center_x, raw_center_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		obs.SessionID,
		timelineMs(obs.Timeline),
		obs.State,
		obs.Box.X, obs.Box.Y, obs.Box.Width, obs.Box.Height,
		obs.Confidence,
		nullString(obs.MatchedID),
		nullFloat32(obs.MatchScore),
		obs.ExactMatch,
		nullFloat32(obs.RawCenterX),
		nullFloat32(obs.RawCenterY),
	)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}

	return nil
}

// InsertObservations inserts a batch of observations in one transaction.
func (s *SessionStore) InsertObservations(observations []*Observation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin observations tx: %w", err)
	}

	query := `
		INSERT INTO lock_observations (
			session_id, timeline_ms, state,
			x, y, width, height, confidence,
			matched_id, match_score, exact_match, raw_center_x, raw_center_y
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, obs := range observations {
		if _, err := tx.Exec(query,
			obs.SessionID,
			timelineMs(obs.Timeline),
			obs.State,
			obs.Box.X, obs.Box.Y, obs.Box.Width, obs.Box.Height,
			obs.Confidence,
			nullString(obs.MatchedID),
			nullFloat32(obs.MatchScore),
			obs.ExactMatch,
			nullFloat32(obs.RawCenterX),
			nullFloat32(obs.RawCenterY),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit observations tx: %w", err)
	}

	return nil
}

// InsertEvent inserts a single session event.
func (s *SessionStore) InsertEvent(ev *Event) error {
	query := `
		INSERT INTO lock_events (
			session_id, timeline_ms, kind, from_value, to_value, detail
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		ev.SessionID,
		timelineMs(ev.Timeline),
		ev.Kind,
		nullString(ev.FromValue),
		nullString(ev.ToValue),
		nullString(ev.Detail),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// GetSession retrieves a session by id.
func (s *SessionStore) GetSession(sessionID string) (*Session, error) {
	query := `
		SELECT session_id, master_id, source, config_json,
		       started_unix_nanos, finished_unix_nanos, final_state, metrics_json
		FROM lock_sessions
		WHERE session_id = ?
	`

	var sess Session
	var configJSON, finalState, metricsJSON sql.NullString
	var finishedNanos sql.NullInt64

	err := s.db.QueryRow(query, sessionID).Scan(
		&sess.SessionID,
		&sess.MasterID,
		&sess.Source,
		&configJSON,
		&sess.StartedUnixNanos,
		&finishedNanos,
		&finalState,
		&metricsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if configJSON.Valid && configJSON.String != "" {
		sess.ConfigJSON = json.RawMessage(configJSON.String)
	}
	if finishedNanos.Valid {
		v := finishedNanos.Int64
		sess.FinishedUnixNanos = &v
	}
	if finalState.Valid {
		sess.FinalState = finalState.String
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		sess.MetricsJSON = json.RawMessage(metricsJSON.String)
	}

	return &sess, nil
}

// ListSessions retrieves sessions newest first. A non-positive limit
// defaults to 100.
func (s *SessionStore) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT session_id, master_id, source, config_json,
		       started_unix_nanos, finished_unix_nanos, final_state, metrics_json
		FROM lock_sessions
		ORDER BY started_unix_nanos DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var configJSON, finalState, metricsJSON sql.NullString
		var finishedNanos sql.NullInt64

		err := rows.Scan(
			&sess.SessionID,
			&sess.MasterID,
			&sess.Source,
			&configJSON,
			&sess.StartedUnixNanos,
			&finishedNanos,
			&finalState,
			&metricsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		if configJSON.Valid && configJSON.String != "" {
			sess.ConfigJSON = json.RawMessage(configJSON.String)
		}
		if finishedNanos.Valid {
			v := finishedNanos.Int64
			sess.FinishedUnixNanos = &v
		}
		if finalState.Valid {
			sess.FinalState = finalState.String
		}
		if metricsJSON.Valid && metricsJSON.String != "" {
			sess.MetricsJSON = json.RawMessage(metricsJSON.String)
		}

		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions rows: %w", err)
	}

	return sessions, nil
}

// Observations retrieves every observation for a session in timeline order.
func (s *SessionStore) Observations(sessionID string) ([]*Observation, error) {
	query := `
		SELECT session_id, timeline_ms, state,
		       x, y, width, height, confidence,
		       matched_id, match_score, exact_match, raw_center_x, raw_center_y
		FROM lock_observations
		WHERE session_id = ?
		ORDER BY timeline_ms ASC
	`

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []*Observation
	for rows.Next() {
		obs := &Observation{}
		var ms float64
		var matchedID sql.NullString
		var score, rawCX, rawCY sql.NullFloat64

		err := rows.Scan(
			&obs.SessionID,
			&ms,
			&obs.State,
			&obs.Box.X, &obs.Box.Y, &obs.Box.Width, &obs.Box.Height,
			&obs.Confidence,
			&matchedID,
			&score,
			&obs.ExactMatch,
			&rawCX,
			&rawCY,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}

		obs.Timeline = timelineDuration(ms)
		if matchedID.Valid {
			obs.MatchedID = matchedID.String
		}
		obs.MatchScore = float32OrNaN(score)
		obs.RawCenterX = float32OrNaN(rawCX)
		obs.RawCenterY = float32OrNaN(rawCY)

		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// Events retrieves every event for a session in timeline order.
func (s *SessionStore) Events(sessionID string) ([]*Event, error) {
	query := `
		SELECT session_id, timeline_ms, kind, from_value, to_value, detail
		FROM lock_events
		WHERE session_id = ?
		ORDER BY timeline_ms ASC, event_id ASC
	`

	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev := &Event{}
		var ms float64
		var fromValue, toValue, detail sql.NullString

		err := rows.Scan(
			&ev.SessionID,
			&ms,
			&ev.Kind,
			&fromValue,
			&toValue,
			&detail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Timeline = timelineDuration(ms)
		if fromValue.Valid {
			ev.FromValue = fromValue.String
		}
		if toValue.Valid {
			ev.ToValue = toValue.String
		}
		if detail.Valid {
			ev.Detail = detail.String
		}

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

func timelineMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func timelineDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Helper functions for nullable values

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat32(f float32) interface{} {
	if math.IsNaN(float64(f)) {
		return nil
	}
	return f
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func float32OrNaN(v sql.NullFloat64) float32 {
	if !v.Valid {
		return float32(math.NaN())
	}
	return float32(v.Float64)
}
