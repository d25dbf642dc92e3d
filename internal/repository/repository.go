package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coparent/internal/database"
)

// ErrDuplicate is returned when an insert or update hits a unique constraint
var ErrDuplicate = errors.New("duplicate record")

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func int64Arg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// affectedOne reports whether exactly one row was changed
func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// familyOf runs a single-column family_id lookup; no row yields 0
func familyOf(ctx context.Context, db database.DBTX, query string, id int64) (int64, error) {
	var familyID int64
	err := db.QueryRowContext(ctx, query, id).Scan(&familyID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up owning family: %w", err)
	}
	return familyID, nil
}
