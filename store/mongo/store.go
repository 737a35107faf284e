// Package mongo provides a MongoDB implementation of the authz composite
// store using grove ORM. Migrations create the collection indexes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/decisionlog"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
	"github.com/retreathq/authz/store"
)

// Collection name constants.
const (
	colRoles           = "authz_roles"
	colPermissions     = "authz_permissions"
	colRolePermissions = "authz_role_permissions"
	colGlobalRoles     = "authz_global_roles"
	colAssignments     = "authz_assignments"
	colRequests        = "authz_requests"
	colDecisionLogs    = "authz_decision_logs"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite authz store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all authz collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("authz/mongo: migrate %s indexes: %w", col, err)
		}
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all authz collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colRoles: {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "is_system", Value: 1}}},
		},
		colPermissions: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "operation", Value: 1}}},
		},
		colRolePermissions: {
			{
				Keys:    bson.D{{Key: "role_id", Value: 1}, {Key: "permission_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
			{Keys: bson.D{{Key: "permission_id", Value: 1}}},
		},
		colGlobalRoles: {
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
		},
		colAssignments: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "retreat_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "retreat_id", Value: 1}}},
			{Keys: bson.D{{Key: "role_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colRequests: {
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "retreat_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "pending"}),
			},
			{Keys: bson.D{{Key: "retreat_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colDecisionLogs: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "retreat_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get role: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleBySlug(ctx context.Context, slug string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role slug %q: %w", slug, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get role by slug: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m := roleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: update role: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	_, err := s.mdb.NewDelete((*roleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete role: %w", err)
	}

	// No foreign keys here; drop the junction rows and global bindings
	// that referenced the role ourselves.
	_, err = s.mdb.NewDelete((*rolePermissionModel)(nil)).
		Many().
		Filter(bson.M{"role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete role permissions: %w", err)
	}
	_, err = s.mdb.NewDelete((*globalRoleModel)(nil)).
		Many().
		Filter(bson.M{"role_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete role bindings: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	f := bson.M{}
	if filter != nil {
		if filter.IsSystem != nil {
			f["is_system"] = *filter.IsSystem
		}
		if filter.Search != "" {
			f["$or"] = []bson.M{
				{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
				{"slug": bson.M{"$regex": filter.Search, "$options": "i"}},
			}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "slug", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	f := bson.M{}
	if filter != nil {
		if filter.IsSystem != nil {
			f["is_system"] = *filter.IsSystem
		}
		if filter.Search != "" {
			f["$or"] = []bson.M{
				{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
				{"slug": bson.M{"$regex": filter.Search, "$options": "i"}},
			}
		}
	}
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count roles: %w", err)
	}
	return count, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"role_id": roleID.String()}).
		Scan(ctx); err != nil {
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return nil // already attached
		}
		return fmt.Errorf("authz: attach permission: %w", err)
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.mdb.NewDelete((*rolePermissionModel)(nil)).
		Filter(bson.M{"role_id": roleID.String(), "permission_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: detach permission: %w", err)
	}
	return nil
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	_, err := s.mdb.NewDelete((*rolePermissionModel)(nil)).
		Many().
		Filter(bson.M{"role_id": roleID.String()}).
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
		if _, err := s.mdb.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("authz: set role permissions: %w", err)
		}
	}
	return nil
}

func (s *Store) GetGlobalRole(ctx context.Context, userID string) (id.RoleID, error) {
	var m globalRoleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
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
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": userID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: set global role: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("authz: set global role: %w", err)
		}
	}
	return nil
}

func (s *Store) ClearGlobalRole(ctx context.Context, userID string) error {
	_, err := s.mdb.NewDelete((*globalRoleModel)(nil)).
		Filter(bson.M{"_id": userID}).
		Exec(ctx)
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": permID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get permission: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("permission %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get permission by name: %w", err)
	}
	return permissionFromModel(&m), nil
}

func (s *Store) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	_, err := s.mdb.NewDelete((*permissionModel)(nil)).
		Filter(bson.M{"_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete permission: %w", err)
	}
	_, err = s.mdb.NewDelete((*rolePermissionModel)(nil)).
		Many().
		Filter(bson.M{"permission_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete permission links: %w", err)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	f := bson.M{}
	if filter != nil {
		if filter.Resource != "" {
			f["resource"] = filter.Resource
		}
		if filter.Operation != "" {
			f["operation"] = filter.Operation
		}
		if filter.IsSystem != nil {
			f["is_system"] = *filter.IsSystem
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "name", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	f := bson.M{}
	if filter != nil {
		if filter.Resource != "" {
			f["resource"] = filter.Resource
		}
		if filter.Operation != "" {
			f["operation"] = filter.Operation
		}
		if filter.IsSystem != nil {
			f["is_system"] = *filter.IsSystem
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
	}
	count, err := s.mdb.NewFind((*permissionModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count permissions: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) SaveAssignment(ctx context.Context, a *assignment.Assignment) error {
	// One assignment per (user, retreat); an existing document keeps its
	// identity across saves.
	var existing assignmentModel
	err := s.mdb.NewFind(&existing).
		Filter(bson.M{"user_id": a.UserID, "retreat_id": a.RetreatID}).
		Scan(ctx)
	switch {
	case err == nil:
		aid, perr := id.ParseAssignmentID(existing.ID)
		if perr != nil {
			return fmt.Errorf("authz: save assignment: %w", perr)
		}
		a.ID = aid
		m := assignmentToModel(a)
		res, uerr := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.ID}).
			Exec(ctx)
		if uerr != nil {
			return fmt.Errorf("authz: save assignment: %w", uerr)
		}
		if res.MatchedCount() == 0 {
			return fmt.Errorf("assignment %s: %w", a.ID, store.ErrNotFound)
		}
		return nil
	case isNoDocuments(err):
		m := assignmentToModel(a)
		if _, ierr := s.mdb.NewInsert(m).Exec(ctx); ierr != nil {
			return fmt.Errorf("authz: save assignment: %w", ierr)
		}
		return nil
	default:
		return fmt.Errorf("authz: save assignment: %w", err)
	}
}

func (s *Store) GetAssignment(ctx context.Context, assID id.AssignmentID) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": assID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assignment %s: %w", assID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get assignment: %w", err)
	}
	return assignmentFromModel(&m), nil
}

func (s *Store) GetAssignmentForUser(ctx context.Context, userID, retreatID string) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID, "retreat_id": retreatID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("assignment for user %s in retreat %s: %w", userID, retreatID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get assignment for user: %w", err)
	}
	return assignmentFromModel(&m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: update assignment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, assID id.AssignmentID) error {
	_, err := s.mdb.NewDelete((*assignmentModel)(nil)).
		Filter(bson.M{"_id": assID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete assignment: %w", err)
	}
	return nil
}

func (s *Store) DeleteAssignmentsForUser(ctx context.Context, userID string) error {
	_, err := s.mdb.NewDelete((*assignmentModel)(nil)).
		Many().
		Filter(bson.M{"user_id": userID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete assignments for user: %w", err)
	}
	return nil
}

func assignmentFilterDoc(filter *assignment.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.RetreatID != "" {
		f["retreat_id"] = filter.RetreatID
	}
	if filter.RoleID != nil {
		f["role_id"] = filter.RoleID.String()
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	return f
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.mdb.NewFind(&models).
		Filter(assignmentFilterDoc(filter)).
		Sort(bson.D{{Key: "invited_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*assignmentModel)(nil)).
		Filter(assignmentFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count assignments: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role request operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRequest(ctx context.Context, r *request.Request) error {
	// The partial unique index on (user_id, retreat_id) for pending
	// documents is the authoritative guard; the pre-check lets us surface
	// the dedicated sentinel instead of a driver error.
	pending, err := s.mdb.NewFind((*requestModel)(nil)).
		Filter(bson.M{
			"user_id":    r.UserID,
			"retreat_id": r.RetreatID,
			"status":     string(request.StatusPending),
		}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("authz: create request: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("user %s in retreat %s: %w", r.UserID, r.RetreatID, store.ErrDuplicatePending)
	}

	m := requestToModel(r)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s in retreat %s: %w", r.UserID, r.RetreatID, store.ErrDuplicatePending)
		}
		return fmt.Errorf("authz: create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, requestID id.RequestID) (*request.Request, error) {
	var m requestModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": requestID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get request: %w", err)
	}
	return requestFromModel(&m), nil
}

func (s *Store) MarkRejected(ctx context.Context, requestID id.RequestID, resolvedBy, reason string, at time.Time) (*request.Request, error) {
	res, err := s.mdb.NewUpdate((*requestModel)(nil)).
		Set("status", string(request.StatusRejected)).
		Set("resolved_by", resolvedBy).
		Set("reason", reason).
		Set("resolved_at", at).
		Filter(bson.M{"_id": requestID.String(), "status": string(request.StatusPending)}).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: mark rejected: %w", err)
	}
	if res.MatchedCount() == 0 {
		r, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, store.ErrNotPending)
	}
	return s.GetRequest(ctx, requestID)
}

func (s *Store) ApproveRequest(ctx context.Context, requestID id.RequestID, approvedBy string, at time.Time) (*request.Request, *assignment.Assignment, error) {
	res, err := s.mdb.NewUpdate((*requestModel)(nil)).
		Set("status", string(request.StatusApproved)).
		Set("resolved_by", approvedBy).
		Set("resolved_at", at).
		Filter(bson.M{"_id": requestID.String(), "status": string(request.StatusPending)}).
		Exec(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("authz: approve request: %w", err)
	}
	if res.MatchedCount() == 0 {
		r, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, store.ErrNotPending)
	}

	r, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

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
	if err := s.SaveAssignment(ctx, a); err != nil {
		// Put the request back so the approval can be retried.
		_, rerr := s.mdb.NewUpdate((*requestModel)(nil)).
			Set("status", string(request.StatusPending)).
			Set("resolved_by", "").
			Set("resolved_at", nil).
			Filter(bson.M{"_id": requestID.String()}).
			Exec(ctx)
		if rerr != nil {
			return nil, nil, errors.Join(err, fmt.Errorf("authz: revert request: %w", rerr))
		}
		return nil, nil, err
	}
	return r, a, nil
}

func (s *Store) DeleteRequest(ctx context.Context, requestID id.RequestID) error {
	_, err := s.mdb.NewDelete((*requestModel)(nil)).
		Filter(bson.M{"_id": requestID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("authz: delete request: %w", err)
	}
	return nil
}

func requestFilterDoc(filter *request.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.RetreatID != "" {
		f["retreat_id"] = filter.RetreatID
	}
	if filter.RoleID != nil {
		f["role_id"] = filter.RoleID.String()
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	return f
}

func (s *Store) ListRequests(ctx context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	var models []requestModel
	q := s.mdb.NewFind(&models).
		Filter(requestFilterDoc(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*requestModel)(nil)).
		Filter(requestFilterDoc(filter)).
		Count(ctx)
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("authz: create decision log: %w", err)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, entryID id.DecisionLogID) (*decisionlog.Entry, error) {
	var m decisionLogModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("decision log %s: %w", entryID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("authz: get decision log: %w", err)
	}
	return decisionLogFromModel(&m), nil
}

func entryFilterDoc(filter *decisionlog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.UserID != "" {
		f["user_id"] = filter.UserID
	}
	if filter.RetreatID != "" {
		f["retreat_id"] = filter.RetreatID
	}
	if filter.Permission != "" {
		f["permission"] = filter.Permission
	}
	if filter.Allowed != nil {
		f["allowed"] = *filter.Allowed
	}
	created := bson.M{}
	if filter.Since != nil {
		created["$gte"] = *filter.Since
	}
	if filter.Until != nil {
		created["$lte"] = *filter.Until
	}
	if len(created) > 0 {
		f["created_at"] = created
	}
	return f
}

func (s *Store) ListEntries(ctx context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	var models []decisionLogModel
	q := s.mdb.NewFind(&models).
		Filter(entryFilterDoc(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*decisionLogModel)(nil)).
		Filter(entryFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: count decision logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*decisionLogModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("authz: purge decision logs: %w", err)
	}
	return res.DeletedCount(), nil
}
