// Package errors provides the classified error type used across docsync.
//
// A ClassifiedError carries a category, a severity and a retry hint next to
// the usual message and cause. The pipeline uses four failure kinds built on
// top of it: SyncFailure and PublishFailure abort a run, MirrorFailure and
// RenderFailure are contained to the file that produced them.
//
//	err := errors.NewError(errors.CategoryGit, "clone failed").
//		WithCause(cause).
//		WithContext("url", remoteURL).
//		Build()
package errors
