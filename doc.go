// Package mettle provides the session and authentication shell for the
// METTLE assessment application: a typed client for the hosted
// auth/database backend plus the view-model layer that keeps UI state in
// sync with it.
//
// Backend access:
//   - Client speaks the backend's REST surface (auth endpoints and table
//     reads/writes) using an endpoint URL and public API key supplied via
//     Config. BrowserClient layers session persistence and background
//     token refresh on top, emitting auth-state events so long-lived
//     views can follow sign-ins, sign-outs, and refreshes.
//   - Everything consumes the BackendClient interface, so tests and local
//     development can substitute the bun/sqlite provider in
//     provider/local without touching the hosted service.
//
// View models:
//   - SessionSync owns a mounted view's copy of the current user: one
//     initial fetch, one auth-state subscription per mount, released on
//     Unmount so no callback ever fires into a torn-down view. It also
//     manages the profile menu's open/closed state, closing it on pointer
//     activity outside the menu region.
//   - LoginFlow models the credential form: idle, loading, and error
//     states plus redirect resolution after a successful sign-in.
//
// Progress helpers map assessment step positions to completion state and
// carry no state of their own.
package mettle
