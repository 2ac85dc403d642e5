package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vendor-vault/internal/model"
)

const vendorColumns = `id, name, COALESCE(description, ''), website, email, phone, address, city, state, zip,
	country, industry, category, tax_id, status, risk_level, created_by, created_at, updated_at`

// sortableVendorColumns whitelists ORDER BY targets; anything else falls
// back to created_at.
var sortableVendorColumns = map[string]bool{
	"name": true, "status": true, "category": true, "risk_level": true,
	"industry": true, "created_at": true, "updated_at": true,
}

// VendorFilter defines filters, ordering and pagination for listing vendors.
type VendorFilter struct {
	Name      string
	Status    string
	Category  string
	RiskLevel string
	Industry  string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// likeEscaper makes LIKE wildcards in user input literal; backslash is
// MySQL's default LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where builds the WHERE clause shared by the count and data queries.
func (f VendorFilter) where() (string, []any) {
	where := []string{}
	args := []any{}
	if f.Name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(f.Name))+"%")
	}
	for _, eq := range []struct{ col, val string }{
		{"status", f.Status},
		{"category", f.Category},
		{"risk_level", f.RiskLevel},
		{"industry", f.Industry},
	} {
		if eq.val != "" {
			where = append(where, eq.col+" = ?")
			args = append(args, eq.val)
		}
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// orderBy returns a safe ORDER BY expression.
func (f VendorFilter) orderBy() string {
	col := f.SortBy
	if !sortableVendorColumns[col] {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

// VendorRepo encapsulates all database queries related to vendors.
type VendorRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewVendorRepo(db *sql.DB) *VendorRepo {
	return &VendorRepo{db: db, now: time.Now}
}

// Create assigns an id and timestamps and inserts the vendor.
func (r *VendorRepo) Create(ctx context.Context, v *model.Vendor) error {
	now := r.now().UTC().Truncate(time.Second)
	v.ID = uuid.NewString()
	v.CreatedAt, v.UpdatedAt = now, now
	if v.Status == "" {
		v.Status = model.VendorActive
	}
	if v.RiskLevel == "" {
		v.RiskLevel = model.RiskMedium
	}
	const q = `INSERT INTO vendors (id, name, description, website, email, phone, address, city, state, zip,
		country, industry, category, tax_id, status, risk_level, created_by, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		v.ID, v.Name, v.Description, v.Website, v.Email, v.Phone, v.Address, v.City, v.State, v.Zip,
		v.Country, v.Industry, v.Category, v.TaxID, v.Status, v.RiskLevel, v.CreatedBy, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert vendor: %w", err)
	}
	return nil
}

// GetByID fetches a vendor, returning ErrVendorNotFound when absent.
func (r *VendorRepo) GetByID(ctx context.Context, id string) (*model.Vendor, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE id = ?", id)
	return scanVendor(row)
}

// Assignment is one column = value pair of a vendor update.
type Assignment struct {
	Column string
	Value  any
}

// writableVendorColumns lists the columns an update may touch.
var writableVendorColumns = map[string]bool{
	"name": true, "description": true, "website": true, "email": true, "phone": true,
	"address": true, "city": true, "state": true, "zip": true, "country": true,
	"industry": true, "category": true, "tax_id": true, "status": true, "risk_level": true,
}

// Update applies the assignments in order and bumps updated_at.
func (r *VendorRepo) Update(ctx context.Context, id string, set []Assignment) (*model.Vendor, error) {
	sets := []string{"updated_at = ?"}
	args := []any{r.now().UTC().Truncate(time.Second)}
	for _, a := range set {
		if !writableVendorColumns[a.Column] {
			return nil, fmt.Errorf("update vendor: column %q is not writable", a.Column)
		}
		sets = append(sets, a.Column+" = ?")
		args = append(args, a.Value)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE vendors SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update vendor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrVendorNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a vendor.
func (r *VendorRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM vendors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete vendor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVendorNotFound
	}
	return nil
}

// List returns one page of vendors matching f and the filtered total.
func (r *VendorRepo) List(ctx context.Context, f VendorFilter) ([]model.Vendor, int64, error) {
	cond, args := f.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vendors WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vendors: %w", err)
	}

	dataSQL := "SELECT " + vendorColumns + " FROM vendors WHERE " + cond +
		" ORDER BY " + f.orderBy() + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	out := make([]model.Vendor, 0, f.Limit)
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Metrics aggregates vendor counts overall, by status, by category and by
// risk level.
func (r *VendorRepo) Metrics(ctx context.Context) (model.VendorMetrics, error) {
	var m model.VendorMetrics
	const qTotals = `SELECT COUNT(*),
		COALESCE(SUM(status = 'active'), 0),
		COALESCE(SUM(status = 'inactive'), 0)
		FROM vendors`
	if err := r.db.QueryRowContext(ctx, qTotals).Scan(&m.TotalVendors, &m.ActiveVendors, &m.InactiveVendors); err != nil {
		return m, fmt.Errorf("vendor totals: %w", err)
	}

	m.VendorsByCategory = []model.CategoryCount{}
	if err := r.groupCount(ctx, "category", func(k string, n int64) {
		m.VendorsByCategory = append(m.VendorsByCategory, model.CategoryCount{Category: k, Count: n})
	}); err != nil {
		return m, err
	}
	m.VendorsByRiskLevel = []model.RiskCount{}
	if err := r.groupCount(ctx, "risk_level", func(k string, n int64) {
		m.VendorsByRiskLevel = append(m.VendorsByRiskLevel, model.RiskCount{RiskLevel: k, Count: n})
	}); err != nil {
		return m, err
	}
	return m, nil
}

// groupCount runs COUNT(*) GROUP BY col; col is a trusted constant.
func (r *VendorRepo) groupCount(ctx context.Context, col string, add func(string, int64)) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+col+", COUNT(*) FROM vendors GROUP BY "+col+" ORDER BY "+col)
	if err != nil {
		return fmt.Errorf("vendors by %s: %w", col, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			k string
			n int64
		)
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		add(k, n)
	}
	return rows.Err()
}

func scanVendor(s rowScanner) (*model.Vendor, error) {
	var v model.Vendor
	err := s.Scan(&v.ID, &v.Name, &v.Description, &v.Website, &v.Email, &v.Phone, &v.Address, &v.City,
		&v.State, &v.Zip, &v.Country, &v.Industry, &v.Category, &v.TaxID, &v.Status, &v.RiskLevel,
		&v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("scan vendor: %w", err)
	}
	return &v, nil
}
