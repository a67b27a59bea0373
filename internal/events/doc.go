// Package events decouples job producers from the background runner.
//
// A service emits an Event when a job is accepted or changes state; the
// emitter fans it out to every handler registered for that event type.
// Handlers live in other packages (the task package submits generation
// tasks, the metrics package counts outcomes) so the emitting service
// never imports them.
package events
