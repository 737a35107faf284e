package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/decisionlog"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
)

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:authz_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Slug            string    `grove:"slug,notnull"`
	Description     string    `grove:"description"`
	IsSystem        bool      `grove:"is_system,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.Role{
		ID:          rid,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:authz_permissions"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Resource        string    `grove:"resource,notnull"`
	Operation       string    `grove:"operation,notnull"`
	Description     string    `grove:"description"`
	IsSystem        bool      `grove:"is_system,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Resource:    p.Resource,
		Operation:   p.Operation,
		Description: p.Description,
		IsSystem:    p.IsSystem,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &permission.Permission{
		ID:          pid,
		Name:        m.Name,
		Resource:    m.Resource,
		Operation:   m.Operation,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role-Permission junction model
// ──────────────────────────────────────────────────

type rolePermissionModel struct {
	grove.BaseModel `grove:"table:authz_role_permissions"`
	RoleID          string `grove:"role_id,pk"`
	PermissionID    string `grove:"permission_id,pk"`
}

// ──────────────────────────────────────────────────
// Global role binding model
// ──────────────────────────────────────────────────

type globalRoleModel struct {
	grove.BaseModel `grove:"table:authz_global_roles"`
	UserID          string `grove:"user_id,pk"`
	RoleID          string `grove:"role_id,notnull"`
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:authz_assignments"`
	ID              string                `grove:"id,pk"`
	UserID          string                `grove:"user_id,notnull"`
	RetreatID       string                `grove:"retreat_id,notnull"`
	RoleID          string                `grove:"role_id,notnull"`
	Status          string                `grove:"status,notnull"`
	InvitedBy       string                `grove:"invited_by"`
	InvitedAt       time.Time             `grove:"invited_at,notnull"`
	ExpiresAt       *time.Time            `grove:"expires_at"`
	Overrides       []assignment.Override `grove:"overrides,type:jsonb"`
	UpdatedAt       time.Time             `grove:"updated_at,notnull"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	return &assignmentModel{
		ID:        a.ID.String(),
		UserID:    a.UserID,
		RetreatID: a.RetreatID,
		RoleID:    a.RoleID.String(),
		Status:    string(a.Status),
		InvitedBy: a.InvitedBy,
		InvitedAt: a.InvitedAt,
		ExpiresAt: a.ExpiresAt,
		Overrides: a.Overrides,
		UpdatedAt: a.UpdatedAt,
	}
}

func assignmentFromModel(m *assignmentModel) *assignment.Assignment {
	aid, _ := id.ParseAssignmentID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID)   //nolint:errcheck // stored IDs are always valid
	return &assignment.Assignment{
		ID:        aid,
		UserID:    m.UserID,
		RetreatID: m.RetreatID,
		RoleID:    rid,
		Status:    assignment.Status(m.Status),
		InvitedBy: m.InvitedBy,
		InvitedAt: m.InvitedAt,
		ExpiresAt: m.ExpiresAt,
		Overrides: m.Overrides,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role request model
// ──────────────────────────────────────────────────

type requestModel struct {
	grove.BaseModel `grove:"table:authz_requests"`
	ID              string     `grove:"id,pk"`
	UserID          string     `grove:"user_id,notnull"`
	RetreatID       string     `grove:"retreat_id,notnull"`
	RoleID          string     `grove:"role_id,notnull"`
	Status          string     `grove:"status,notnull"`
	Message         string     `grove:"message"`
	ResolvedBy      string     `grove:"resolved_by"`
	Reason          string     `grove:"reason"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	ResolvedAt      *time.Time `grove:"resolved_at"`
}

func requestToModel(r *request.Request) *requestModel {
	return &requestModel{
		ID:         r.ID.String(),
		UserID:     r.UserID,
		RetreatID:  r.RetreatID,
		RoleID:     r.RoleID.String(),
		Status:     string(r.Status),
		Message:    r.Message,
		ResolvedBy: r.ResolvedBy,
		Reason:     r.Reason,
		CreatedAt:  r.CreatedAt,
		ResolvedAt: r.ResolvedAt,
	}
}

func requestFromModel(m *requestModel) *request.Request {
	rqid, _ := id.ParseRequestID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID) //nolint:errcheck // stored IDs are always valid
	return &request.Request{
		ID:         rqid,
		UserID:     m.UserID,
		RetreatID:  m.RetreatID,
		RoleID:     rid,
		Status:     request.Status(m.Status),
		Message:    m.Message,
		ResolvedBy: m.ResolvedBy,
		Reason:     m.Reason,
		CreatedAt:  m.CreatedAt,
		ResolvedAt: m.ResolvedAt,
	}
}

// ──────────────────────────────────────────────────
// Decision log model
// ──────────────────────────────────────────────────

type decisionLogModel struct {
	grove.BaseModel `grove:"table:authz_decision_logs"`
	ID              string    `grove:"id,pk"`
	UserID          string    `grove:"user_id,notnull"`
	RetreatID       string    `grove:"retreat_id"`
	Permission      string    `grove:"permission,notnull"`
	Allowed         bool      `grove:"allowed,notnull"`
	Decision        string    `grove:"decision,notnull"`
	Reason          string    `grove:"reason"`
	EvalTimeNs      int64     `grove:"eval_time_ns,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func decisionLogToModel(e *decisionlog.Entry) *decisionLogModel {
	return &decisionLogModel{
		ID:         e.ID.String(),
		UserID:     e.UserID,
		RetreatID:  e.RetreatID,
		Permission: e.Permission,
		Allowed:    e.Allowed,
		Decision:   e.Decision,
		Reason:     e.Reason,
		EvalTimeNs: e.EvalTimeNs,
		CreatedAt:  e.CreatedAt,
	}
}

func decisionLogFromModel(m *decisionLogModel) *decisionlog.Entry {
	dlid, _ := id.ParseDecisionLogID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &decisionlog.Entry{
		ID:         dlid,
		UserID:     m.UserID,
		RetreatID:  m.RetreatID,
		Permission: m.Permission,
		Allowed:    m.Allowed,
		Decision:   m.Decision,
		Reason:     m.Reason,
		EvalTimeNs: m.EvalTimeNs,
		CreatedAt:  m.CreatedAt,
	}
}
