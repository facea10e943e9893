// Package git wraps go-git with the handful of operations docsync needs on a
// working copy: clone, fast-forward pull, stage, status, commit and push of
// the master branch of origin.
//
// Every working copy is bound to the remote "origin" and the branch "master".
// Network failures are mapped onto typed errors (AuthError, NotFoundError,
// RemoteDivergedError, ...) so callers can branch with errors.As instead of
// parsing messages.
package git
