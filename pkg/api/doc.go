// Package api exposes the broker over HTTP.
//
// # Overview
//
// The login endpoints drive the redirect dance with the SSO service and
// hand everything else to the request-scoped broker. Responses are JSON
// descriptions of what the host application may render; failure bodies
// carry one generic message so they cannot be used to probe for
// accounts.
//
// # Routes
//
//	GET  /auth/login        start a login: SSO redirect or "render the form"
//	POST /auth/login        authenticate a submitted credential form
//	GET  /auth/sso/callback finish an SSO redirect flow
//	POST /auth/logout       fan out external logouts, clear the session
//	GET  /auth/session      describe the caller's session
//
// Health and metrics endpoints are served separately by the health
// listener in cmd/centralauth.
//
// # Related Packages
//
//   - pkg/broker: runs the login attempt
//   - pkg/session: holds established sessions
package api
