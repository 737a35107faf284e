// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

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

// Store is a thread-safe in-memory store for all authz entities.
type Store struct {
	mu sync.RWMutex

	roles           map[string]*role.Role
	permissions     map[string]*permission.Permission
	rolePermissions map[string]map[string]struct{} // roleID -> set of permIDs
	globalRoles     map[string]string              // userID -> roleID
	assignments     map[string]*assignment.Assignment
	requests        map[string]*request.Request
	decisionLogs    map[string]*decisionlog.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		roles:           make(map[string]*role.Role),
		permissions:     make(map[string]*permission.Permission),
		rolePermissions: make(map[string]map[string]struct{}),
		globalRoles:     make(map[string]string),
		assignments:     make(map[string]*assignment.Assignment),
		requests:        make(map[string]*request.Request),
		decisionLogs:    make(map[string]*decisionlog.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleBySlug(_ context.Context, slug string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Slug == slug {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role slug %q: %w", slug, store.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID.String()]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := roleID.String()
	delete(s.roles, rk)
	delete(s.rolePermissions, rk)
	for user, bound := range s.globalRoles {
		if bound == rk {
			delete(s.globalRoles, user)
		}
	}
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return paginate(result, filterPage(filter)), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	list, err := s.ListRoles(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) ListRolePermissions(_ context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms, ok := s.rolePermissions[roleID.String()]
	if !ok {
		return nil, nil
	}
	result := make([]id.PermissionID, 0, len(perms))
	for pid := range perms {
		parsed, err := id.ParsePermissionID(pid)
		if err == nil {
			result = append(result, parsed)
		}
	}
	return result, nil
}

func (s *Store) AttachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := roleID.String()
	if s.rolePermissions[rk] == nil {
		s.rolePermissions[rk] = make(map[string]struct{})
	}
	s.rolePermissions[rk][permID.String()] = struct{}{}
	return nil
}

func (s *Store) DetachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perms, ok := s.rolePermissions[roleID.String()]; ok {
		delete(perms, permID.String())
	}
	return nil
}

func (s *Store) SetRolePermissions(_ context.Context, roleID id.RoleID, permIDs []id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make(map[string]struct{}, len(permIDs))
	for _, pid := range permIDs {
		perms[pid.String()] = struct{}{}
	}
	s.rolePermissions[roleID.String()] = perms
	return nil
}

func (s *Store) GetGlobalRole(_ context.Context, userID string) (id.RoleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bound, ok := s.globalRoles[userID]
	if !ok {
		return id.Nil, nil
	}
	return id.ParseRoleID(bound)
}

func (s *Store) SetGlobalRole(_ context.Context, userID string, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID.String()]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	s.globalRoles[userID] = roleID.String()
	return nil
}

func (s *Store) ClearGlobalRole(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.globalRoles, userID)
	return nil
}

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, store.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) GetPermissionByName(_ context.Context, name string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Name == name {
			return copyPermission(p), nil
		}
	}
	return nil, fmt.Errorf("permission %q: %w", name, store.ErrNotFound)
}

func (s *Store) DeletePermission(_ context.Context, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pk := permID.String()
	delete(s.permissions, pk)
	for _, perms := range s.rolePermissions {
		delete(perms, pk)
	}
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.Resource != "" && p.Resource != filter.Resource {
				continue
			}
			if filter.Operation != "" && p.Operation != filter.Operation {
				continue
			}
			if filter.IsSystem != nil && p.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return paginate(result, permPage(filter)), nil
}

func (s *Store) CountPermissions(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	list, err := s.ListPermissions(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Assignment Store
// ──────────────────────────────────────────────────

func (s *Store) SaveAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveAssignmentLocked(a)
	return nil
}

// saveAssignmentLocked upserts by (UserID, RetreatID), keeping the
// existing row's ID. Caller must hold the write lock.
func (s *Store) saveAssignmentLocked(a *assignment.Assignment) {
	c := copyAssignment(a)
	for k, existing := range s.assignments {
		if existing.UserID == a.UserID && existing.RetreatID == a.RetreatID {
			c.ID = existing.ID
			s.assignments[k] = c
			a.ID = existing.ID
			return
		}
	}
	s.assignments[a.ID.String()] = c
}

func (s *Store) GetAssignment(_ context.Context, assignmentID id.AssignmentID) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assignmentID.String()]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", assignmentID, store.ErrNotFound)
	}
	return copyAssignment(a), nil
}

func (s *Store) GetAssignmentForUser(_ context.Context, userID, retreatID string) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.UserID == userID && a.RetreatID == retreatID {
			return copyAssignment(a), nil
		}
	}
	return nil, fmt.Errorf("assignment for user %q in retreat %q: %w", userID, retreatID, store.ErrNotFound)
}

func (s *Store) UpdateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID.String()]; !ok {
		return fmt.Errorf("assignment %s: %w", a.ID, store.ErrNotFound)
	}
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, assignmentID id.AssignmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, assignmentID.String())
	return nil
}

func (s *Store) DeleteAssignmentsForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range s.assignments {
		if a.UserID == userID {
			delete(s.assignments, k)
		}
	}
	return nil
}

func (s *Store) ListAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*assignment.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if filter != nil {
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.RetreatID != "" && a.RetreatID != filter.RetreatID {
				continue
			}
			if filter.RoleID != nil && a.RoleID != *filter.RoleID {
				continue
			}
			if filter.Status != "" && a.Status != filter.Status {
				continue
			}
		}
		result = append(result, copyAssignment(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].InvitedAt.After(result[j].InvitedAt) })
	return paginate(result, assignPage(filter)), nil
}

func (s *Store) CountAssignments(ctx context.Context, filter *assignment.ListFilter) (int64, error) {
	list, err := s.ListAssignments(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Request Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRequest(_ context.Context, r *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.UserID == r.UserID && existing.RetreatID == r.RetreatID && existing.Status == request.StatusPending {
			return fmt.Errorf("request for user %q in retreat %q: %w", r.UserID, r.RetreatID, store.ErrDuplicatePending)
		}
	}
	s.requests[r.ID.String()] = copyRequest(r)
	return nil
}

func (s *Store) GetRequest(_ context.Context, requestID id.RequestID) (*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID.String()]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
	}
	return copyRequest(r), nil
}

func (s *Store) MarkRejected(_ context.Context, requestID id.RequestID, resolvedBy, reason string, at time.Time) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID.String()]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
	}
	if r.Status != request.StatusPending {
		return nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, store.ErrNotPending)
	}
	r.Status = request.StatusRejected
	r.ResolvedBy = resolvedBy
	r.Reason = reason
	r.ResolvedAt = &at
	return copyRequest(r), nil
}

func (s *Store) DeleteRequest(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, requestID.String())
	return nil
}

func (s *Store) ListRequests(_ context.Context, filter *request.ListFilter) ([]*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*request.Request, 0, len(s.requests))
	for _, r := range s.requests {
		if filter != nil {
			if filter.UserID != "" && r.UserID != filter.UserID {
				continue
			}
			if filter.RetreatID != "" && r.RetreatID != filter.RetreatID {
				continue
			}
			if filter.RoleID != nil && r.RoleID != *filter.RoleID {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
		}
		result = append(result, copyRequest(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, requestPage(filter)), nil
}

func (s *Store) CountRequests(ctx context.Context, filter *request.ListFilter) (int64, error) {
	list, err := s.ListRequests(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Composite operations
// ──────────────────────────────────────────────────

func (s *Store) ApproveRequest(_ context.Context, requestID id.RequestID, approvedBy string, at time.Time) (*request.Request, *assignment.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID.String()]
	if !ok {
		return nil, nil, fmt.Errorf("request %s: %w", requestID, store.ErrNotFound)
	}
	if r.Status != request.StatusPending {
		return nil, nil, fmt.Errorf("request %s is %s: %w", requestID, r.Status, store.ErrNotPending)
	}
	r.Status = request.StatusApproved
	r.ResolvedBy = approvedBy
	r.ResolvedAt = &at

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
	s.saveAssignmentLocked(a)
	return copyRequest(r), copyAssignment(a), nil
}

// ──────────────────────────────────────────────────
// Decision Log Store
// ──────────────────────────────────────────────────

func (s *Store) CreateEntry(_ context.Context, e *decisionlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisionLogs[e.ID.String()] = copyEntry(e)
	return nil
}

func (s *Store) GetEntry(_ context.Context, entryID id.DecisionLogID) (*decisionlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.decisionLogs[entryID.String()]
	if !ok {
		return nil, fmt.Errorf("decision log %s: %w", entryID, store.ErrNotFound)
	}
	return copyEntry(e), nil
}

func (s *Store) ListEntries(_ context.Context, filter *decisionlog.QueryFilter) ([]*decisionlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*decisionlog.Entry, 0, len(s.decisionLogs))
	for _, e := range s.decisionLogs {
		if filter != nil {
			if filter.UserID != "" && e.UserID != filter.UserID {
				continue
			}
			if filter.RetreatID != "" && e.RetreatID != filter.RetreatID {
				continue
			}
			if filter.Permission != "" && e.Permission != filter.Permission {
				continue
			}
			if filter.Allowed != nil && e.Allowed != *filter.Allowed {
				continue
			}
			if filter.Since != nil && e.CreatedAt.Before(*filter.Since) {
				continue
			}
			if filter.Until != nil && e.CreatedAt.After(*filter.Until) {
				continue
			}
		}
		result = append(result, copyEntry(e))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, logPage(filter)), nil
}

func (s *Store) CountEntries(ctx context.Context, filter *decisionlog.QueryFilter) (int64, error) {
	list, err := s.ListEntries(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeEntries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.decisionLogs {
		if e.CreatedAt.Before(before) {
			delete(s.decisionLogs, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyRole(r *role.Role) *role.Role {
	c := *r
	return &c
}

func copyPermission(p *permission.Permission) *permission.Permission {
	c := *p
	return &c
}

func copyAssignment(a *assignment.Assignment) *assignment.Assignment {
	c := *a
	if a.Overrides != nil {
		c.Overrides = make([]assignment.Override, len(a.Overrides))
		copy(c.Overrides, a.Overrides)
	}
	return &c
}

func copyRequest(r *request.Request) *request.Request {
	c := *r
	return &c
}

func copyEntry(e *decisionlog.Entry) *decisionlog.Entry {
	c := *e
	return &c
}

type pagOpts struct{ limit, offset int }

func paginate[T any](items []*T, p pagOpts) []*T {
	if p.offset >= len(items) {
		return nil
	}
	if p.offset > 0 {
		items = items[p.offset:]
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

func filterPage(f *role.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func permPage(f *permission.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func assignPage(f *assignment.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func requestPage(f *request.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func logPage(f *decisionlog.QueryFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}
