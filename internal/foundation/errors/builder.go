package errors

// ErrorBuilder assembles a ClassifiedError step by step.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// NewError starts a builder with error severity and no retry.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError starts a builder around an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithContext attaches one key/value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder   { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }

func (b *ErrorBuilder) Retryable() *ErrorBuilder  { return b.WithRetry(RetryBackoff) }
func (b *ErrorBuilder) RateLimit() *ErrorBuilder  { return b.WithRetry(RetryRateLimit) }
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the finished error. The builder may not be reused afterwards.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Generic constructors.

func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message)
}

func AuthError(message string) *ErrorBuilder {
	return NewError(CategoryAuth, message).UserAction()
}

func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

func FileSystemError(message string) *ErrorBuilder {
	return NewError(CategoryFileSystem, message)
}

func HistoryError(message string) *ErrorBuilder {
	return NewError(CategoryHistory, message)
}

func ForgeError(message string) *ErrorBuilder {
	return NewError(CategoryForge, message)
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}

// Pipeline failure kinds.

// SyncFailure reports that a working copy could not be brought up to date
// by either clone or pull. It aborts the run for that repository.
func SyncFailure(repository string, cause error) *ErrorBuilder {
	return WrapError(cause, CategoryGit, "repository sync failed").
		Fatal().
		WithContext("repository", repository)
}

// MirrorFailure reports one or more wiki copy or mapping entries that failed.
// The remaining entries and later stages still run.
func MirrorFailure(cause error) *ErrorBuilder {
	return WrapError(cause, CategoryFileSystem, "wiki mirror incomplete").Warning()
}

// RenderFailure reports a Markdown file that stayed stale after its retry.
func RenderFailure(path string, cause error) *ErrorBuilder {
	return WrapError(cause, CategoryRender, "markdown render failed").
		Warning().
		WithContext("path", path)
}

// PublishFailure reports a failed stage, commit or push. It is never retried
// automatically; the next event acts as the retry.
func PublishFailure(op, path string, cause error) *ErrorBuilder {
	return WrapError(cause, CategoryGit, "publish failed").
		Fatal().
		WithContext("op", op).
		WithContext("path", path)
}
