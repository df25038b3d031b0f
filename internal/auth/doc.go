// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package auth provides session management and security middleware for the
event platform's HTTP and WebSocket-upgrade surface.

Every visitor is issued an opaque, cookie-carried session on first contact.
Anonymous viewers and authenticated event staff share the same session
record and the same cookie; what differs is whether the session carries a
username, roles, and an identity the viewer chose to register. There is no
OIDC and no password form in this package; event staff identity comes from
whatever issues the cookie upstream of Middleware.Authenticate (out of
scope for this package), and internal/registration only gates whether a
viewer's join is within an event's registration window and under its
capacity — it issues no sessions of its own. The one non-cookie path this
package supports is a signed JWT bearer token (BearerManager), for
service-to-service callers that cannot hold a cookie jar.

Key Components:

  - Session / SessionStore: the opaque-token session record and its storage
    interface, backed by either MemorySessionStore (tests, single instance)
    or BadgerSessionStore (persistent, survives restarts)
  - AuthSubject: the resolved identity attached to the request context by
    Middleware.Authenticate
  - Middleware: session resolution, rate limiting, CORS, and security headers
  - RateLimiter: per-IP token bucket rate limiter with periodic cleanup

Authentication Modes:

  - AuthModeAnon: an unauthenticated viewer, issued an ephemeral session on
    first connect. No credentials are required and none are checked.
  - AuthModeCookie: a session tied to a registered identity — event staff,
    or a viewer promoted to a speaking role by staff. Always resolved from
    the same opaque cookie as the anonymous case; the distinction lives in
    the session record, not the transport.
  - AuthModeBearer: a signed JWT presented in an Authorization header,
    checked only when Middleware.WithBearerManager configured one; falls
    through to cookie resolution when no bearer token is present.

Usage Example - Middleware:

	store, err := auth.NewSessionStoreFactory(auth.SessionStoreBadger, dataDir)
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	middleware := auth.NewMiddleware(
	    store.CreateStore(),
	    24*time.Hour,        // session lifetime
	    100,                 // requests per window
	    time.Minute,         // window duration
	    false,               // rate limiting disabled?
	    []string{"*"},       // CORS origins
	    []string{},          // trusted proxies
	)

	http.HandleFunc("/ws",
	    middleware.CORS(
	        middleware.RateLimit(
	            middleware.Authenticate(wsUpgradeHandler),
	        ),
	    ),
	)

	http.HandleFunc("/api/v1/events/{id}/staff",
	    middleware.RequireRole("staff", handler),
	)

Authenticate never rejects a request outright: a missing, unknown, or
expired cookie results in a fresh anonymous session rather than an error
response, matching a platform where any visitor can watch and participate
without registering. RequireRole is the only point that turns away a
request, and only for the specific privileged routes that call it;
finer-grained per-event role precedence (event staff, promoted viewer,
superadmin) is resolved by internal/authz on top of the roles and EventID
this package attaches to the subject.

Security Features:

  - Session tokens: opaque, store-generated identifiers carried in an
    HTTP-only, SameSite=Lax cookie
  - Rate Limiting: token bucket algorithm (configurable requests per window)
  - CORS: configurable origins with credentials support
  - CSP: nonce-based Content Security Policy
  - Security Headers: HSTS, X-Frame-Options, X-Content-Type-Options
  - IP Extraction: X-Forwarded-For / X-Real-IP with trusted proxy validation

Thread Safety:

All components are safe for concurrent use. RateLimiter and the in-memory
session store use sync.RWMutex internally; Middleware itself holds no
mutable state after construction.

See Also:

  - internal/authz: per-event role precedence on top of AuthSubject
  - internal/registration: registration-window and capacity checks
    consulted by internal/gateway before a viewer joins an event
  - internal/gateway: resolves AuthSubject for WebSocket upgrades
*/
package auth
