// Package contracts/api describes the bug-tracking REST API the client talks to.
// The server is external; this file records the shapes the client relies on.
//
// Base URL: {baseUrl}, e.g. http://localhost:3000/api
// Auth: Authorization: Bearer <token> on every /bugs route
package contracts

// Envelope:
//   Success bodies are { "data": X }. A bare X (no data member) is accepted too.
//   Error bodies are { "message": "..." } or { "error": "..." }.
//   A 2xx response with an empty body or "data": null decodes to the zero value.
//
// Login:
//   POST /auth/login
//   Body: { email, password }
//   Returns: { data: { token, user: { id, name, email, role } } }
//   401 with { message: "Invalid credentials" } on a bad password.
//
// Register:
//   POST /users/register
//   Body: { name, email, password, role }   role: tester | developer | admin
//   Returns: { data: { user, token? } }
//   The token is optional; without it the account must log in separately.
//
// ListBugs:
//   GET /bugs
//   Returns: { data: [Bug] }
//
// GetBug:
//   GET /bugs/{id}
//   404 with { message: "Bug not found" }.
//
// CreateBug:
//   POST /bugs
//   Body: { title, description, status: "open", created_by, screenshots: [] }
//   Returns: { data: { id } } at minimum. A response without an id is a failure.
//
// UpdateBug:
//   PATCH /bugs/{id}
//   Body: { title, description, status, created_by, screenshots: [url] }
//   Every field is sent; the client keeps status, reporter and screenshots.
//
// UpdateBugStatus:
//   PATCH /bugs/{id}/status
//   Body: { status }
//   The server decides which transitions are legal and answers 400 otherwise.
//
// UploadScreenshot:
//   POST /bugs/upload
//   multipart/form-data: screenshot (file part), bug_id (field)
//   Returns: { data: { url } } or { url }. Files over 5 MiB are refused client-side.
//
// Bug:
//   { id: string|number, title, description, status, created_by,
//     creator_name?, created_at (RFC 3339)?, screenshots: [url | { url }] }
//   Missing created_at groups the bug under the current day.
//   Missing creator_name is shown as "Unknown".
//
// Status values:
//   open, in_progress, closed, reopened
//   Unknown values are displayed verbatim and offer every known status.
