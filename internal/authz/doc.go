// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package authz resolves per-event role precedence on top of the identity
// internal/auth attaches to a request: superadmin, event staff, a viewer
// promoted to a speaking role for one event, and the plain viewer default.
//
// # Architecture
//
//	Request -> Auth Middleware -> Authz Service -> Handler / Gateway dispatch
//	               |                    |
//	          Authenticate      CanAccess / RequireStaff (Casbin)
//	           (internal/auth)      (this package)
//
// # RBAC Model
//
// The package uses Casbin's RBAC model with role inheritance:
//
//	[request_definition]
//	r = sub, obj, act
//
//	[policy_definition]
//	p = sub, obj, act
//
//	[role_definition]
//	g = _, _
//
//	[policy_effect]
//	e = some(where (p.eft == allow))
//
//	[matchers]
//	m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
//
// # Policy Definition
//
// Policies are defined in CSV format (see policy.csv):
//
//	# Role permissions
//	p, superadmin, /*, *
//	p, staff, /api/v1/events/*/qa/*, *
//	p, viewer, /api/v1/events/*/chat, GET
//
//	# Role assignments
//	g, alice, staff
//	g, bob, viewer
//
// # Usage Example
//
// Creating an enforcer and a service on top of it:
//
//	enforcer, err := authz.NewEnforcer(ctx, authz.DefaultEnforcerConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer enforcer.Close()
//
//	svc, err := authz.NewService(enforcer, roleStore, authz.DefaultServiceConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	allowed, err := svc.CanAccess(ctx, subject, "/api/v1/events/evt-1/qa/moderate", "POST")
//
// Role precedence is resolved as: superadmin (platform-wide) beats any
// event-scoped staff assignment, which beats a viewer promoted for that one
// event, which beats the plain viewer default. internal/auth attaches the
// subject's global roles and its session's EventID; this package combines
// that with the persisted per-event role (via the RoleProvider interface,
// backed by internal/store) to reach the final decision.
//
// # Embedded Policies
//
// The package embeds default model and policy files for zero-configuration
// setup:
//   - model.conf: RBAC model with role hierarchy
//   - policy.csv: default policies for viewer/staff/superadmin
//
// # Caching
//
// The enforcer includes an enforcement decision cache:
//   - Cache key: (subject, object, action) tuple
//   - Automatic invalidation on policy/role changes
//   - Configurable TTL with periodic cleanup
//
// # Thread Safety
//
// All components are safe for concurrent use: Casbin's SyncedEnforcer
// provides its own synchronization, and the decision cache and role cache
// use sync.RWMutex.
//
// # See Also
//
//   - internal/auth: authentication (runs before authorization)
//   - internal/gateway: its RoleResolver consults IsSuperadmin when
//     resolving the role a socket connects with
package authz
