package store

import "database/sql"

// Store provides access to all storage repositories.
type Store struct {
	db          *sql.DB
	products    *ProductStore
	signatures  *SignatureStore
	sessions    *SessionStore
	preferences *PreferenceStore
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		products:    NewProductStore(db),
		signatures:  NewSignatureStore(db),
		sessions:    NewSessionStore(db),
		preferences: NewPreferenceStore(db),
	}
}

func (s *Store) Products() *ProductStore {
	return s.products
}

func (s *Store) Signatures() *SignatureStore {
	return s.signatures
}

func (s *Store) Sessions() *SessionStore {
	return s.sessions
}

func (s *Store) Preferences() *PreferenceStore {
	return s.preferences
}

func (s *Store) Close() error {
	return s.db.Close()
}
