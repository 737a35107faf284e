package plugin

import (
	"context"
	"log/slog"

	"github.com/retreathq/authz/assignment"
	"github.com/retreathq/authz/id"
	"github.com/retreathq/authz/permission"
	"github.com/retreathq/authz/request"
	"github.com/retreathq/authz/role"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeDecideEntry struct {
	name string
	hook BeforeDecide
}
type afterDecideEntry struct {
	name string
	hook AfterDecide
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleUpdatedEntry struct {
	name string
	hook RoleUpdated
}
type roleDeletedEntry struct {
	name string
	hook RoleDeleted
}
type permissionCreatedEntry struct {
	name string
	hook PermissionCreated
}
type permissionDeletedEntry struct {
	name string
	hook PermissionDeleted
}
type permissionAttachedEntry struct {
	name string
	hook PermissionAttached
}
type permissionDetachedEntry struct {
	name string
	hook PermissionDetached
}
type userInvitedEntry struct {
	name string
	hook UserInvited
}
type invitationAcceptedEntry struct {
	name string
	hook InvitationAccepted
}
type assignmentRevokedEntry struct {
	name string
	hook AssignmentRevoked
}
type overridesChangedEntry struct {
	name string
	hook OverridesChanged
}
type requestFiledEntry struct {
	name string
	hook RequestFiled
}
type requestApprovedEntry struct {
	name string
	hook RequestApproved
}
type requestRejectedEntry struct {
	name string
	hook RequestRejected
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeDecide       []beforeDecideEntry
	afterDecide        []afterDecideEntry
	roleCreated        []roleCreatedEntry
	roleUpdated        []roleUpdatedEntry
	roleDeleted        []roleDeletedEntry
	permissionCreated  []permissionCreatedEntry
	permissionDeleted  []permissionDeletedEntry
	permissionAttached []permissionAttachedEntry
	permissionDetached []permissionDetachedEntry
	userInvited        []userInvitedEntry
	invitationAccepted []invitationAcceptedEntry
	assignmentRevoked  []assignmentRevokedEntry
	overridesChanged   []overridesChangedEntry
	requestFiled       []requestFiledEntry
	requestApproved    []requestApprovedEntry
	requestRejected    []requestRejectedEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeDecide); ok {
		r.beforeDecide = append(r.beforeDecide, beforeDecideEntry{name, h})
	}
	if h, ok := p.(AfterDecide); ok {
		r.afterDecide = append(r.afterDecide, afterDecideEntry{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(RoleUpdated); ok {
		r.roleUpdated = append(r.roleUpdated, roleUpdatedEntry{name, h})
	}
	if h, ok := p.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, roleDeletedEntry{name, h})
	}
	if h, ok := p.(PermissionCreated); ok {
		r.permissionCreated = append(r.permissionCreated, permissionCreatedEntry{name, h})
	}
	if h, ok := p.(PermissionDeleted); ok {
		r.permissionDeleted = append(r.permissionDeleted, permissionDeletedEntry{name, h})
	}
	if h, ok := p.(PermissionAttached); ok {
		r.permissionAttached = append(r.permissionAttached, permissionAttachedEntry{name, h})
	}
	if h, ok := p.(PermissionDetached); ok {
		r.permissionDetached = append(r.permissionDetached, permissionDetachedEntry{name, h})
	}
	if h, ok := p.(UserInvited); ok {
		r.userInvited = append(r.userInvited, userInvitedEntry{name, h})
	}
	if h, ok := p.(InvitationAccepted); ok {
		r.invitationAccepted = append(r.invitationAccepted, invitationAcceptedEntry{name, h})
	}
	if h, ok := p.(AssignmentRevoked); ok {
		r.assignmentRevoked = append(r.assignmentRevoked, assignmentRevokedEntry{name, h})
	}
	if h, ok := p.(OverridesChanged); ok {
		r.overridesChanged = append(r.overridesChanged, overridesChangedEntry{name, h})
	}
	if h, ok := p.(RequestFiled); ok {
		r.requestFiled = append(r.requestFiled, requestFiledEntry{name, h})
	}
	if h, ok := p.(RequestApproved); ok {
		r.requestApproved = append(r.requestApproved, requestApprovedEntry{name, h})
	}
	if h, ok := p.(RequestRejected); ok {
		r.requestRejected = append(r.requestRejected, requestRejectedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Decision event emitters
// ──────────────────────────────────────────────────

// EmitBeforeDecide notifies all plugins that implement BeforeDecide.
func (r *Registry) EmitBeforeDecide(ctx context.Context, q any) {
	for _, e := range r.beforeDecide {
		if err := e.hook.OnBeforeDecide(ctx, q); err != nil {
			r.logHookError("OnBeforeDecide", e.name, err)
		}
	}
}

// EmitAfterDecide notifies all plugins that implement AfterDecide.
func (r *Registry) EmitAfterDecide(ctx context.Context, q, verdict any) {
	for _, e := range r.afterDecide {
		if err := e.hook.OnAfterDecide(ctx, q, verdict); err != nil {
			r.logHookError("OnAfterDecide", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleUpdated notifies all plugins that implement RoleUpdated.
func (r *Registry) EmitRoleUpdated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleUpdated {
		if err := e.hook.OnRoleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRoleUpdated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all plugins that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Permission event emitters
// ──────────────────────────────────────────────────

// EmitPermissionCreated notifies all plugins that implement PermissionCreated.
func (r *Registry) EmitPermissionCreated(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionCreated {
		if err := e.hook.OnPermissionCreated(ctx, p); err != nil {
			r.logHookError("OnPermissionCreated", e.name, err)
		}
	}
}

// EmitPermissionDeleted notifies all plugins that implement PermissionDeleted.
func (r *Registry) EmitPermissionDeleted(ctx context.Context, permID id.PermissionID) {
	for _, e := range r.permissionDeleted {
		if err := e.hook.OnPermissionDeleted(ctx, permID); err != nil {
			r.logHookError("OnPermissionDeleted", e.name, err)
		}
	}
}

// EmitPermissionAttached notifies all plugins that implement PermissionAttached.
func (r *Registry) EmitPermissionAttached(ctx context.Context, roleID id.RoleID, permID id.PermissionID) {
	for _, e := range r.permissionAttached {
		if err := e.hook.OnPermissionAttached(ctx, roleID, permID); err != nil {
			r.logHookError("OnPermissionAttached", e.name, err)
		}
	}
}

// EmitPermissionDetached notifies all plugins that implement PermissionDetached.
func (r *Registry) EmitPermissionDetached(ctx context.Context, roleID id.RoleID, permID id.PermissionID) {
	for _, e := range r.permissionDetached {
		if err := e.hook.OnPermissionDetached(ctx, roleID, permID); err != nil {
			r.logHookError("OnPermissionDetached", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Assignment event emitters
// ──────────────────────────────────────────────────

// EmitUserInvited notifies all plugins that implement UserInvited.
func (r *Registry) EmitUserInvited(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.userInvited {
		if err := e.hook.OnUserInvited(ctx, a); err != nil {
			r.logHookError("OnUserInvited", e.name, err)
		}
	}
}

// EmitInvitationAccepted notifies all plugins that implement InvitationAccepted.
func (r *Registry) EmitInvitationAccepted(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.invitationAccepted {
		if err := e.hook.OnInvitationAccepted(ctx, a); err != nil {
			r.logHookError("OnInvitationAccepted", e.name, err)
		}
	}
}

// EmitAssignmentRevoked notifies all plugins that implement AssignmentRevoked.
func (r *Registry) EmitAssignmentRevoked(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.assignmentRevoked {
		if err := e.hook.OnAssignmentRevoked(ctx, a); err != nil {
			r.logHookError("OnAssignmentRevoked", e.name, err)
		}
	}
}

// EmitOverridesChanged notifies all plugins that implement OverridesChanged.
func (r *Registry) EmitOverridesChanged(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.overridesChanged {
		if err := e.hook.OnOverridesChanged(ctx, a); err != nil {
			r.logHookError("OnOverridesChanged", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role request event emitters
// ──────────────────────────────────────────────────

// EmitRequestFiled notifies all plugins that implement RequestFiled.
func (r *Registry) EmitRequestFiled(ctx context.Context, req *request.Request) {
	for _, e := range r.requestFiled {
		if err := e.hook.OnRequestFiled(ctx, req); err != nil {
			r.logHookError("OnRequestFiled", e.name, err)
		}
	}
}

// EmitRequestApproved notifies all plugins that implement RequestApproved.
func (r *Registry) EmitRequestApproved(ctx context.Context, req *request.Request, a *assignment.Assignment) {
	for _, e := range r.requestApproved {
		if err := e.hook.OnRequestApproved(ctx, req, a); err != nil {
			r.logHookError("OnRequestApproved", e.name, err)
		}
	}
}

// EmitRequestRejected notifies all plugins that implement RequestRejected.
func (r *Registry) EmitRequestRejected(ctx context.Context, req *request.Request) {
	for _, e := range r.requestRejected {
		if err := e.hook.OnRequestRejected(ctx, req); err != nil {
			r.logHookError("OnRequestRejected", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
