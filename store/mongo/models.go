package mongo

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
	ID              string    `grove:"id,pk"           bson:"_id"`
	Name            string    `grove:"name"            bson:"name"`
	Slug            string    `grove:"slug"            bson:"slug"`
	Description     string    `grove:"description"     bson:"description"`
	IsSystem        bool      `grove:"is_system"       bson:"is_system"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"      bson:"updated_at"`
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
	ID              string    `grove:"id,pk"           bson:"_id"`
	Name            string    `grove:"name"            bson:"name"`
	Resource        string    `grove:"resource"        bson:"resource"`
	Operation       string    `grove:"operation"       bson:"operation"`
	Description     string    `grove:"description"     bson:"description"`
	IsSystem        bool      `grove:"is_system"       bson:"is_system"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"      bson:"updated_at"`
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
	RoleID          string `grove:"role_id,pk"       bson:"role_id"`
	PermissionID    string `grove:"permission_id,pk" bson:"permission_id"`
}

// ──────────────────────────────────────────────────
// Global role binding model
// ──────────────────────────────────────────────────

type globalRoleModel struct {
	grove.BaseModel `grove:"table:authz_global_roles"`
	UserID          string `grove:"user_id,pk" bson:"_id"`
	RoleID          string `grove:"role_id"    bson:"role_id"`
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type overrideModel struct {
	Resource  string     `bson:"resource"`
	Operation string     `bson:"operation"`
	Granted   bool       `bson:"granted"`
	Reason    string     `bson:"reason,omitempty"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

type assignmentModel struct {
	grove.BaseModel `grove:"table:authz_assignments"`
	ID              string          `grove:"id,pk"           bson:"_id"`
	UserID          string          `grove:"user_id"         bson:"user_id"`
	RetreatID       string          `grove:"retreat_id"      bson:"retreat_id"`
	RoleID          string          `grove:"role_id"         bson:"role_id"`
	Status          string          `grove:"status"          bson:"status"`
	InvitedBy       string          `grove:"invited_by"      bson:"invited_by"`
	InvitedAt       time.Time       `grove:"invited_at"      bson:"invited_at"`
	ExpiresAt       *time.Time      `grove:"expires_at"      bson:"expires_at,omitempty"`
	Overrides       []overrideModel `grove:"overrides"       bson:"overrides,omitempty"`
	UpdatedAt       time.Time       `grove:"updated_at"      bson:"updated_at"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	overrides := make([]overrideModel, len(a.Overrides))
	for i, o := range a.Overrides {
		overrides[i] = overrideModel{
			Resource:  o.Resource,
			Operation: o.Operation,
			Granted:   o.Granted,
			Reason:    o.Reason,
			ExpiresAt: o.ExpiresAt,
		}
	}
	return &assignmentModel{
		ID:        a.ID.String(),
		UserID:    a.UserID,
		RetreatID: a.RetreatID,
		RoleID:    a.RoleID.String(),
		Status:    string(a.Status),
		InvitedBy: a.InvitedBy,
		InvitedAt: a.InvitedAt,
		ExpiresAt: a.ExpiresAt,
		Overrides: overrides,
		UpdatedAt: a.UpdatedAt,
	}
}

func assignmentFromModel(m *assignmentModel) *assignment.Assignment {
	aid, _ := id.ParseAssignmentID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID)   //nolint:errcheck // stored IDs are always valid
	var overrides []assignment.Override
	if len(m.Overrides) > 0 {
		overrides = make([]assignment.Override, len(m.Overrides))
		for i, o := range m.Overrides {
			overrides[i] = assignment.Override{
				Resource:  o.Resource,
				Operation: o.Operation,
				Granted:   o.Granted,
				Reason:    o.Reason,
				ExpiresAt: o.ExpiresAt,
			}
		}
	}
	return &assignment.Assignment{
		ID:        aid,
		UserID:    m.UserID,
		RetreatID: m.RetreatID,
		RoleID:    rid,
		Status:    assignment.Status(m.Status),
		InvitedBy: m.InvitedBy,
		InvitedAt: m.InvitedAt,
		ExpiresAt: m.ExpiresAt,
		Overrides: overrides,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role request model
// ──────────────────────────────────────────────────

type requestModel struct {
	grove.BaseModel `grove:"table:authz_requests"`
	ID              string     `grove:"id,pk"           bson:"_id"`
	UserID          string     `grove:"user_id"         bson:"user_id"`
	RetreatID       string     `grove:"retreat_id"      bson:"retreat_id"`
	RoleID          string     `grove:"role_id"         bson:"role_id"`
	Status          string     `grove:"status"          bson:"status"`
	Message         string     `grove:"message"         bson:"message"`
	ResolvedBy      string     `grove:"resolved_by"     bson:"resolved_by"`
	Reason          string     `grove:"reason"          bson:"reason"`
	CreatedAt       time.Time  `grove:"created_at"      bson:"created_at"`
	ResolvedAt      *time.Time `grove:"resolved_at"     bson:"resolved_at,omitempty"`
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
	ID              string    `grove:"id,pk"           bson:"_id"`
	UserID          string    `grove:"user_id"         bson:"user_id"`
	RetreatID       string    `grove:"retreat_id"      bson:"retreat_id"`
	Permission      string    `grove:"permission"      bson:"permission"`
	Allowed         bool      `grove:"allowed"         bson:"allowed"`
	Decision        string    `grove:"decision"        bson:"decision"`
	Reason          string    `grove:"reason"          bson:"reason"`
	EvalTimeNs      int64     `grove:"eval_time_ns"    bson:"eval_time_ns"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
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
