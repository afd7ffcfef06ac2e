package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openrail/provision-agent/internal/models"
)

// SessionStore persists the single wizard session so an interrupted
// agent can resume where the user left off.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// sessionState is the JSON shape persisted in the state column.
type sessionState struct {
	ToolchainPath  string                   `json:"toolchain_path,omitempty"`
	Device         *models.Device           `json:"device,omitempty"`
	Product        string                   `json:"product,omitempty"`
	Version        *models.VersionSelection `json:"version,omitempty"`
	Config         models.ConfigurationSet  `json:"config,omitempty"`
	ConfigImported bool                     `json:"config_imported,omitempty"`
	Flashed        bool                     `json:"flashed,omitempty"`
}

// Get retrieves the persisted session, or ErrNotFound.
func (s *SessionStore) Get(ctx context.Context) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, queryGetSession)

	var (
		id        string
		stage     string
		raw       string
		updatedAt time.Time
	)
	err := row.Scan(&id, &stage, &raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	var state sessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:             sessionID,
		Stage:          models.Stage(stage),
		ToolchainPath:  state.ToolchainPath,
		Device:         state.Device,
		Product:        state.Product,
		Version:        state.Version,
		Config:         state.Config,
		ConfigImported: state.ConfigImported,
		Flashed:        state.Flashed,
	}
	if session.Config == nil {
		session.Config = models.ConfigurationSet{}
	}
	return session, nil
}

// Save stores or updates the session.
func (s *SessionStore) Save(ctx context.Context, session *models.Session) error {
	state := sessionState{
		ToolchainPath:  session.ToolchainPath,
		Device:         session.Device,
		Product:        session.Product,
		Version:        session.Version,
		Config:         session.Config,
		ConfigImported: session.ConfigImported,
		Flashed:        session.Flashed,
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryUpsertSession,
		session.ID.String(), string(session.Stage), string(raw))
	return err
}

// Delete removes the persisted session.
func (s *SessionStore) Delete(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, queryDeleteSession)
	return err
}
