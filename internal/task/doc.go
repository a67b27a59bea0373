// Package task manages background job queuing, processing, and lifecycle.
// It runs long generations outside HTTP request handling, lets a single
// job be cancelled while it is queued or running, and recovers unfinished
// work after a restart.
package task
