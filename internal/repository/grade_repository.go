package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/iliyamo/venue-reservation/internal/model"
)

const defaultGradeKey = "default-grade"

// GradeRepo reads user grades.  The system default grade changes rarely
// and is looked up on every booking without a customer grade, so it is
// kept in a short-lived in-process cache.
type GradeRepo struct {
	db    *sql.DB
	cache *gocache.Cache
}

// NewGradeRepo returns a GradeRepo caching the default grade for ttl.  A
// non-positive ttl disables the cache.
func NewGradeRepo(db *sql.DB, ttl time.Duration) *GradeRepo {
	r := &GradeRepo{db: db}
	if ttl > 0 {
		r.cache = gocache.New(ttl, 2*ttl)
	}
	return r
}

const gradeCols = `g.id, g.grade_name, g.grade_code, g.deposit_discount_percent, g.priority, g.is_default`

func scanGrade(row rowScanner) (*model.UserGrade, error) {
	var g model.UserGrade
	var code sql.NullString
	if err := row.Scan(&g.ID, &g.Name, &code, &g.DepositDiscountPercent, &g.Priority, &g.IsDefault); err != nil {
		return nil, err
	}
	g.Code = stringPtr(code)
	return &g, nil
}

// ForUser returns the grade assigned to the user, or nil when the user
// has none.
func (r *GradeRepo) ForUser(ctx context.Context, userID uint64) (*model.UserGrade, error) {
	const q = `SELECT ` + gradeCols + `
               FROM users u
               JOIN user_grades g ON g.id = u.grade_id
               WHERE u.id = ?`
	g, err := scanGrade(r.db.QueryRowContext(ctx, q, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return g, err
}

// Default returns the default grade with the lowest priority, or nil
// when no grade is marked default.
func (r *GradeRepo) Default(ctx context.Context) (*model.UserGrade, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(defaultGradeKey); ok {
			return v.(*model.UserGrade), nil
		}
	}
	const q = `SELECT ` + gradeCols + `
               FROM user_grades g
               WHERE g.is_default = 1
               ORDER BY g.priority ASC, g.id ASC
               LIMIT 1`
	g, err := scanGrade(r.db.QueryRowContext(ctx, q))
	if errors.Is(err, sql.ErrNoRows) {
		g, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.SetDefault(defaultGradeKey, g)
	}
	return g, nil
}

// Invalidate drops the cached default grade.
func (r *GradeRepo) Invalidate() {
	if r.cache != nil {
		r.cache.Delete(defaultGradeKey)
	}
}
