package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
)

// GuardianRepository provides database access for guardians.
type GuardianRepository struct {
	db *sqlx.DB
}

// NewGuardianRepository creates a new instance of GuardianRepository.
func NewGuardianRepository(db *sqlx.DB) *GuardianRepository {
	return &GuardianRepository{db: db}
}

// FindByID returns a guardian with the count of linked students.
func (r *GuardianRepository) FindByID(ctx context.Context, id string) (*models.GuardianDetail, error) {
	const query = `SELECT g.id, g.full_name, g.email, g.phone, g.address, g.created_at, g.updated_at,
	(SELECT COUNT(*) FROM students s WHERE s.guardian_id = g.id) AS student_count
FROM guardians g WHERE g.id = $1 LIMIT 1`
	var guardian models.GuardianDetail
	if err := r.db.GetContext(ctx, &guardian, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find guardian: %w", err)
	}
	return &guardian, nil
}

// ListStudents returns all students linked to a guardian.
func (r *GuardianRepository) ListStudents(ctx context.Context, guardianID string) ([]models.Student, error) {
	const query = `SELECT id, code, full_name, gender, birth_date, address, phone, guardian_id, discount_percentage, active, created_at, updated_at
FROM students WHERE guardian_id = $1 ORDER BY full_name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, guardianID); err != nil {
		return nil, fmt.Errorf("list guardian students: %w", err)
	}
	return students, nil
}

// List returns guardians matching the filter with a total count.
func (r *GuardianRepository) List(ctx context.Context, filter models.GuardianFilter) ([]models.GuardianDetail, int, error) {
	baseQuery := `FROM guardians g WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(g.full_name) LIKE $%d OR LOWER(g.email) LIKE $%d OR g.phone LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "full_name"
	}
	allowedSorts := map[string]string{
		"full_name":  "g.full_name",
		"created_at": "g.created_at",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "g.full_name"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT g.id, g.full_name, g.email, g.phone, g.address, g.created_at, g.updated_at,
	(SELECT COUNT(*) FROM students s WHERE s.guardian_id = g.id) AS student_count %s ORDER BY %s %s LIMIT %d OFFSET %d`, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var guardians []models.GuardianDetail
	if err := r.db.SelectContext(ctx, &guardians, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list guardians: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count guardians: %w", err)
	}

	return guardians, total, nil
}

// Create inserts a new guardian.
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	if guardian.ID == "" {
		guardian.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	guardian.CreatedAt = now
	guardian.UpdatedAt = now
	const query = `INSERT INTO guardians (id, full_name, email, phone, address, created_at, updated_at)
VALUES (:id, :full_name, :email, :phone, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, guardian); err != nil {
		return fmt.Errorf("create guardian: %w", err)
	}
	return nil
}

// Update persists mutable fields of a guardian.
func (r *GuardianRepository) Update(ctx context.Context, guardian *models.Guardian) error {
	guardian.UpdatedAt = time.Now().UTC()
	const query = `UPDATE guardians SET full_name = :full_name, email = :email, phone = :phone, address = :address, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, guardian)
	if err != nil {
		return fmt.Errorf("update guardian: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update guardian rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a guardian.
func (r *GuardianRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM guardians WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete guardian: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete guardian rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
