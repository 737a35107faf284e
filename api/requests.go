package api

// ──────────────────────────────────────────────────
// Decision requests
// ──────────────────────────────────────────────────

// DecideRequest is the request body for an authorization decision.
type DecideRequest struct {
	UserID     string `json:"user_id" description:"User identifier"`
	Permission string `json:"permission" description:"Permission name (e.g. retreat:update)"`
	RetreatID  string `json:"retreat_id,omitempty" description:"Retreat scope (empty for global-only evaluation)"`
}

// BatchDecideRequest contains multiple decisions.
type BatchDecideRequest struct {
	Queries []DecideRequest `json:"queries" description:"List of authorization queries"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Name        string `json:"name" description:"Role name"`
	Slug        string `json:"slug" description:"URL-safe slug"`
	Description string `json:"description,omitempty" description:"Human-readable description"`
	IsSystem    bool   `json:"is_system,omitempty" description:"System role flag"`
}

// UpdateRoleRequest is the body for updating a role.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty" description:"Role name"`
	Description *string `json:"description,omitempty" description:"Human-readable description"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	Search string `query:"search" description:"Search by name or slug"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// AttachPermissionRequest is the body for attaching a permission to a role.
type AttachPermissionRequest struct {
	PermissionID string `json:"permission_id" description:"Permission ID to attach"`
}

// SetRolePermissionsRequest replaces a role's permission set.
type SetRolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" description:"Full permission ID set for the role"`
}

// SetGlobalRoleRequest is the body for binding a user's global role.
type SetGlobalRoleRequest struct {
	RoleID string `json:"role_id" description:"Role ID to bind globally"`
}

// GetGlobalRoleRequest is the path parameter for global role endpoints.
type GetGlobalRoleRequest struct {
	UserID string `path:"userId" description:"User identifier"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// CreatePermissionRequest is the body for creating a permission.
type CreatePermissionRequest struct {
	Resource    string `json:"resource" description:"Resource name (e.g. retreat)"`
	Operation   string `json:"operation" description:"Operation name (e.g. update)"`
	Description string `json:"description,omitempty" description:"Human-readable description"`
	IsSystem    bool   `json:"is_system,omitempty" description:"System permission flag"`
}

// GetPermissionRequest is the path parameter for getting a permission.
type GetPermissionRequest struct {
	PermissionID string `path:"permissionId" description:"Permission ID"`
}

// ListPermissionsRequest holds query parameters.
type ListPermissionsRequest struct {
	Resource string `query:"resource" description:"Filter by resource"`
	Search   string `query:"search" description:"Search by name"`
	Limit    int    `query:"limit" description:"Maximum results"`
	Offset   int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Assignment requests
// ──────────────────────────────────────────────────

// InviteRequest is the body for inviting a user to a retreat role.
type InviteRequest struct {
	UserID    string `json:"user_id" description:"User to invite"`
	RoleID    string `json:"role_id" description:"Role to assign"`
	InvitedBy string `json:"invited_by,omitempty" description:"Inviting user"`
	ExpiresAt string `json:"expires_at,omitempty" description:"Expiration time (RFC3339)"`
	Replace   bool   `json:"replace,omitempty" description:"Overwrite an active assignment"`
}

// GetAssignmentRequest identifies a user's assignment within a retreat.
type GetAssignmentRequest struct {
	RetreatID string `path:"retreatId" description:"Retreat ID"`
	UserID    string `path:"userId" description:"User identifier"`
}

// SetOverridesRequest replaces the per-assignment permission overrides.
type SetOverridesRequest struct {
	Overrides []OverrideInput `json:"overrides" description:"Full override set for the assignment"`
}

// OverrideInput is the input format for a permission override.
type OverrideInput struct {
	Resource  string `json:"resource" description:"Resource name"`
	Operation string `json:"operation" description:"Operation name"`
	Granted   bool   `json:"granted" description:"true grants, false denies"`
	Reason    string `json:"reason,omitempty" description:"Why the override exists"`
	ExpiresAt string `json:"expires_at,omitempty" description:"Expiration time (RFC3339)"`
}

// ListAssignmentsRequest holds query parameters.
type ListAssignmentsRequest struct {
	UserID string `query:"user_id" description:"Filter by user"`
	RoleID string `query:"role_id" description:"Filter by role ID"`
	Status string `query:"status" description:"Filter by stored status (pending, active, expired, revoked)"`
	Limit  int    `query:"limit" description:"Maximum results"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role request requests
// ──────────────────────────────────────────────────

// FileRequestRequest is the body for filing a role request.
type FileRequestRequest struct {
	UserID  string `json:"user_id" description:"Requesting user"`
	RoleID  string `json:"role_id" description:"Requested role"`
	Message string `json:"message,omitempty" description:"Optional message to approvers"`
}

// GetRoleRequestRequest is the path parameter for a role request.
type GetRoleRequestRequest struct {
	RequestID string `path:"requestId" description:"Request ID"`
}

// ApproveRequestRequest is the body for approving a role request.
type ApproveRequestRequest struct {
	ApprovedBy string `json:"approved_by" description:"Approving user"`
}

// RejectRequestRequest is the body for rejecting a role request.
type RejectRequestRequest struct {
	RejectedBy string `json:"rejected_by" description:"Rejecting user"`
	Reason     string `json:"reason,omitempty" description:"Rejection reason"`
}

// ListRoleRequestsRequest holds query parameters.
type ListRoleRequestsRequest struct {
	UserID    string `query:"user_id" description:"Filter by user"`
	RetreatID string `query:"retreat_id" description:"Filter by retreat"`
	RoleID    string `query:"role_id" description:"Filter by role ID"`
	Status    string `query:"status" description:"Filter by status (pending, approved, rejected)"`
	Limit     int    `query:"limit" description:"Maximum results"`
	Offset    int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Decision log requests
// ──────────────────────────────────────────────────

// ListDecisionLogsRequest holds query parameters for querying decision logs.
type ListDecisionLogsRequest struct {
	UserID     string `query:"user_id" description:"Filter by user"`
	RetreatID  string `query:"retreat_id" description:"Filter by retreat"`
	Permission string `query:"permission" description:"Filter by permission name"`
	Allowed    string `query:"allowed" description:"Filter by outcome (true/false)"`
	Since      string `query:"since" description:"Lower bound timestamp (RFC3339)"`
	Until      string `query:"until" description:"Upper bound timestamp (RFC3339)"`
	Limit      int    `query:"limit" description:"Maximum results"`
	Offset     int    `query:"offset" description:"Results to skip"`
}

// PurgeDecisionLogsRequest holds query parameters for pruning old entries.
type PurgeDecisionLogsRequest struct {
	Before string `query:"before" description:"Delete entries created before this timestamp (RFC3339)"`
}
