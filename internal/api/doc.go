// Package api serves the job API over HTTP. Handlers decode and validate
// requests, call the job service, and translate domain errors into
// sanitized JSON responses.
package api
