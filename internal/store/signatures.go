package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Signature is one known vendor/product identifier pair and the board it
// classifies to.
type Signature struct {
	VendorID  string
	ProductID string
	Board     string
	FQBN      string
}

// SignatureStore serves the table of known device signatures, seeded by
// migrations.
type SignatureStore struct {
	db *sql.DB
}

func NewSignatureStore(db *sql.DB) *SignatureStore {
	return &SignatureStore{db: db}
}

// Lookup finds the signature for a vendor/product pair. Identifiers are
// matched case-insensitively; returns ErrNotFound for unknown pairs.
func (s *SignatureStore) Lookup(ctx context.Context, vendorID, productID string) (*Signature, error) {
	row := s.db.QueryRowContext(ctx, queryLookupSignature,
		strings.ToUpper(vendorID), strings.ToUpper(productID))

	var sig Signature
	err := row.Scan(&sig.VendorID, &sig.ProductID, &sig.Board, &sig.FQBN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// List returns the full signature table.
func (s *SignatureStore) List(ctx context.Context) ([]Signature, error) {
	rows, err := s.db.QueryContext(ctx, queryListSignatures)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sigs []Signature
	for rows.Next() {
		var sig Signature
		if err := rows.Scan(&sig.VendorID, &sig.ProductID, &sig.Board, &sig.FQBN); err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}
