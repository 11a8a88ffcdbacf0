// Package http exposes the ERP automation operations over a chi router.
//
// Every /api route requires either an `Authorization: Bearer <jwt>` header or
// an `X-API-Key` header. The authenticated principal is passed to the
// application services and becomes the sender of any notification they send.
//
//   - POST /api/force-cancel: body {"doctype","id"}. Always answers
//     {"success","message"} unless the caller is not an administrator.
//   - POST /api/schedules, GET /api/schedules/{id}: recurring meeting
//     schedules exchanging the `scheduleDTO` payload from schedule_handler.go.
//   - POST /api/schedules/{id}/test-meeting: creates a meeting dated today.
//   - GET /api/schedules/{id}/preview?count=N and /preview.ics: upcoming
//     occurrences as JSON or as an iCalendar feed.
//   - PUT /api/sketches/{id}, POST /api/sketches/{id}/assignments,
//     POST /api/sketches/{id}/refresh-statuses,
//     PUT /api/engineering-tasks/{id}/status: the engineering workflow.
//   - POST /api/jobs/{name}/run: runs a scheduled job now (administrators).
//   - GET /api/meetings/conflicts: overlapping planned meetings.
//
// GET /healthz and GET /metrics are served without authentication.
//
// Validation failures answer 422 with an `errors` map keyed by field.
package http
