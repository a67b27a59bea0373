// Package service holds the generation use cases and the job lifecycle.
//
// SlideService, SummaryService and ReviewService turn a document into
// structured output through a Generator, which owns provider selection and
// the retry engine. JobExecutor dispatches a stored job to the matching
// service, and JobService accepts jobs, persists them and hands them to the
// background runner through events.
//
// Services depend on repository interfaces from internal/store and never
// on a concrete database.
package service
