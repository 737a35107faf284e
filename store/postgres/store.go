// Package postgres provides a PostgreSQL implementation of the authz
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/decisionlog"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
	"github.com/retreathq/authz/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite authz store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("authz: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("authz: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get role: %w", err)
	}
	return roleFromModel(m), nil
}

func (s *Store) GetRoleBySlug(ctx context.Context, slug string) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("slug = ?", slug).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role slug %q: %w", slug, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get role by slug: %w", err)
	}
	return roleFromModel(m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("authz: update role: %w", err)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	// Junction rows and global bindings cascade via foreign keys.
	// Assignments that still reference the role are left in place; the
	// engine treats their stale role IDs as granting nothing.
	_, err := s.pgdb.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.pgdb.NewSelect(&models).OrderExpr("slug ASC")
	if filter != nil {
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(slug) LIKE LOWER(?))", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authz: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(slug) LIKE LOWER(?))", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: list role permissions: %w", err)
	}
	result := make([]id.PermissionID, 0, len(models))
	for _, m := range models {
		pid, err := id.ParsePermissionID(m.PermissionID)
		if err == nil {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (s *Store) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	m := &rolePermissionModel{
		RoleID:       roleID.String(),
		PermissionID: permID.String(),
	}
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(role_id, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: attach permission: %w", err)
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.pgdb.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("permission_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: detach permission: %w", err)
	}
	return nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("authz: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: clear role permissions: %w", err)
	}

	if len(permIDs) > 0 {
		models := make([]rolePermissionModel, len(permIDs))
		for i, pid := range permIDs {
			models[i] = rolePermissionModel{
				RoleID:       roleID.String(),
				PermissionID: pid.String(),
			}
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("authz: set role permissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authz: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetGlobalRole(ctx context.Context, userID string) (id.RoleID, error) {
	m := new(globalRoleModel)
	err := s.pgdb.NewSelect(m).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return id.Nil, nil
		}
		return id.Nil, fmt.Errorf("authz: get global role: %w", err)
	}
	rid, err := id.ParseRoleID(m.RoleID)
	if err != nil {
		return id.Nil, fmt.Errorf("authz: get global role: %w", err)
	}
	return rid, nil
}

func (s *Store) SetGlobalRole(ctx context.Context, userID string, roleID id.RoleID) error {
	m := &globalRoleModel{
		UserID: userID,
		RoleID: roleID.String(),
	}
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(user_id) DO UPDATE SET role_id = EXCLUDED.role_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: set global role: %w", err)
	}
	return nil
}

func (s *Store) ClearGlobalRole(ctx context.Context, userID string) error {
	_, err := s.pgdb.NewDelete((*globalRoleModel)(nil)).
		Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: clear global role: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	m := permissionToModel(p)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get permission: %w", err)
	}
	return permissionFromModel(m), nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("permission %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get permission by name: %w", err)
	}
	return permissionFromModel(m), nil
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	// Junction rows cascade via foreign keys.
	_, err := s.pgdb.NewDelete((*permissionModel)(nil)).
		Where("id = ?", permID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete permission: %w", err)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC")
	if filter != nil {
		if filter.Resource != "" {
			q = q.Where("resource = ?", filter.Resource)
		}
		if filter.Operation != "" {
			q = q.Where("operation = ?", filter.Operation)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authz: list permissions: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*permissionModel)(nil))
	if filter != nil {
		if filter.Resource != "" {
			q = q.Where("resource = ?", filter.Resource)
		}
		if filter.Operation != "" {
			q = q.Where("operation = ?", filter.Operation)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count permissions: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) SaveAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(user_id, retreat_id) DO UPDATE SET " +
			"role_id = EXCLUDED.role_id, status = EXCLUDED.status, " +
			"invited_by = EXCLUDED.invited_by, invited_at = EXCLUDED.invited_at, " +
			"expires_at = EXCLUDED.expires_at, overrides = EXCLUDED.overrides, " +
			"updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: save assignment: %w", err)
	}

	// The conflict path keeps the existing row ID; read it back so the
	// caller observes the stored identity.
	stored := new(assignmentModel)
	err = s.pgdb.NewSelect(stored).
		Where("user_id = ?", a.UserID).
		Where("retreat_id = ?", a.RetreatID).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("authz: save assignment: %w", err)
	}
	aid, err := id.ParseAssignmentID(stored.ID)
	if err != nil {
		return fmt.Errorf("authz: save assignment: %w", err)
	}
	a.ID = aid
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", assID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment %s: %w", assID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get assignment: %w", err)
	}
	return assignmentFromModel(m), nil
}

func (s *Store) GetAssignmentForUser(ctx context.Context, userID, retreatID string) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.pgdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("retreat_id = ?", retreatID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("assignment for user %s in retreat %s: %w", userID, retreatID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get assignment for user: %w", err)
	}
	return assignmentFromModel(m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	res, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: update assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("authz: update assignment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, assID id.AssignmentID) error {
	_, err := s.pgdb.NewDelete((*assignmentModel)(nil)).
		Where("id = ?", assID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete assignment: %w", err)
	}
	return nil
}

func (s *Store) DeleteAssignmentsForUser(ctx context.Context, userID string) error {
	_, err := s.pgdb.NewDelete((*assignmentModel)(nil)).
		Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete assignments for user: %w", err)
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.pgdb.NewSelect(&models).OrderExpr("invited_at DESC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RetreatID != "" {
			q = q.Where("retreat_id = ?", filter.RetreatID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authz: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*assignmentModel)(nil))
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RetreatID != "" {
			q = q.Where("retreat_id = ?", filter.RetreatID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count assignments: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role request operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRequest(ctx context.Context, r *request.Request) error {
	// The partial unique index on (user_id, retreat_id) WHERE
	// status='pending' is the authoritative guard; the pre-check lets us
	// surface the dedicated sentinel instead of a driver error.
	pending, err := s.pgdb.NewSelect((*requestModel)(nil)).
		Where("user_id = ?", r.UserID).
		Where("retreat_id = ?", r.RetreatID).
		Where("status = ?", string(request.StatusPending)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("authz: create request: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("user %s in retreat %s: %w", r.UserID, r.RetreatID, store.ErrDuplicatePending)
	}

	m := requestToModel(r)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, requestID id.RequestID) (*request.Request, error) {
	m := new(requestModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", requestID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get request: %w", err)
	}
	return requestFromModel(m), nil
}

func (s *Store) MarkRejected(ctx context.Context, requestID id.RequestID, resolvedBy, reason string, at time.Time) (*request.Request, error) {
	res, err := s.pgdb.NewUpdate((*requestModel)(nil)).
		Set("status = ?", string(request.StatusRejected)).
		Set("resolved_by = ?", resolvedBy).
		Set("reason = ?", reason).
		Set("resolved_at = ?", at).
		Where("id = ?", requestID.String()).
		Where("status = ?", string(request.StatusPending)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: mark rejected: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("authz: mark rejected: %w", err)
	}
	if n == 0 {
		r, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, store.ErrNotPending)
	}
	return s.GetRequest(ctx, requestID)
}

func (s *Store) ApproveRequest(ctx context.Context, requestID id.RequestID, approvedBy string, at time.Time) (*request.Request, *assignment.Assignment, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("authz: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewUpdate((*requestModel)(nil)).
		Set("status = ?", string(request.StatusApproved)).
		Set("resolved_by = ?", approvedBy).
		Set("resolved_at = ?", at).
		Where("id = ?", requestID.String()).
		Where("status = ?", string(request.StatusPending)).
		Exec(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}
	if n == 0 {
		r, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, store.ErrNotPending)
	}

	rm := new(requestModel)
	if err := tx.NewSelect(rm).Where("id = ?", requestID.String()).Scan(ctx); err != nil {
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}
	r := requestFromModel(rm)

	a := &assignment.Assignment{
		ID:        id.NewAssignmentID(),
		UserID:    r.UserID,
		RetreatID: r.RetreatID,
		RoleID:    r.RoleID,
		Status:    assignment.StatusActive,
		InvitedBy: approvedBy,
		InvitedAt: at,
		UpdatedAt: at,
	}
	am := assignmentToModel(a)
	_, err = tx.NewInsert(am).
		OnConflict("(user_id, retreat_id) DO UPDATE SET " +
			"role_id = EXCLUDED.role_id, status = EXCLUDED.status, " +
			"invited_by = EXCLUDED.invited_by, invited_at = EXCLUDED.invited_at, " +
			"expires_at = EXCLUDED.expires_at, overrides = EXCLUDED.overrides, " +
			"updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}

	stored := new(assignmentModel)
	err = tx.NewSelect(stored).
		Where("user_id = ?", a.UserID).
		Where("retreat_id = ?", a.RetreatID).
		Scan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("authz: commit tx: %w", err)
	}
	return r, assignmentFromModel(stored), nil
}

func (s *Store) DeleteRequest(ctx context.Context, requestID id.RequestID) error {
	_, err := s.pgdb.NewDelete((*requestModel)(nil)).
		Where("id = ?", requestID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete request: %w", err)
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	var models []requestModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RetreatID != "" {
			q = q.Where("retreat_id = ?", filter.RetreatID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authz: list requests: %w", err)
	}
	result := make([]*request.Request, len(models))
	for i := range models {
		result[i] = requestFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRequests(ctx context.Context, filter *request.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*requestModel)(nil))
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RetreatID != "" {
			q = q.Where("retreat_id = ?", filter.RetreatID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count requests: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Decision log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateEntry(ctx context.Context, e *decisionlog.Entry) error {
	m := decisionLogToModel(e)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create decision log: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID id.DecisionLogID) (*decisionlog.Entry, error) {
	m := new(decisionLogModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", entryID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("decision log %s: %w", entryID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get decision log: %w", err)
	}
	return decisionLogFromModel(m), nil
}

func (s *Store) ListEntries(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	var models []decisionLogModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RetreatID != "" {
			q = q.Where("retreat_id = ?", filter.RetreatID)
		}
		if filter.Permission != "" {
			q = q.Where("permission = ?", filter.Permission)
		}
		if filter.Allowed != nil {
			q = q.Where("allowed = ?", *filter.Allowed)
		}
		if filter.Since != nil {
			q = q.Where("created_at >= ?", *filter.Since)
		}
		if filter.Until != nil {
			q = q.Where("created_at <= ?", *filter.Until)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("authz: list decision logs: %w", err)
	}
	result := make([]*decisionlog.Entry, len(models))
	for i := range models {
		result[i] = decisionLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	q := s.pgdb.NewSelect((*decisionLogModel)(nil))
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RetreatID != "" {
			q = q.Where("retreat_id = ?", filter.RetreatID)
		}
		if filter.Permission != "" {
			q = q.Where("permission = ?", filter.Permission)
		}
		if filter.Allowed != nil {
			q = q.Where("allowed = ?", *filter.Allowed)
		}
		if filter.Since != nil {
			q = q.Where("created_at >= ?", *filter.Since)
		}
		if filter.Until != nil {
			q = q.Where("created_at <= ?", *filter.Until)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count decision logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*decisionLogModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: purge decision logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("authz: purge decision logs: %w", err)
	}
	return n, nil
}
