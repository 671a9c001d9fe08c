package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *ClassifiedError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Persistence errors

// StoreUnavailable marks a persistence failure. Workers treat it as fatal.
func StoreUnavailable(operation string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryStore, SeverityFatal, "build store unavailable").
		WithContext("operation", operation)
}

// Queue errors

func QueueUnavailable(host string, cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryQueue, SeverityError, "queue unavailable").
		WithContext("host", host)
}

// Build errors

func BuildFailed(buildID int64, cause error) *ClassifiedError {
	return Wrap(cause, CategoryBuild, SeverityError, "build failed").
		WithContext("build_id", buildID)
}

func CleanupFailed(path string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryFileSystem, SeverityWarning, "filesystem cleanup failed").
		WithContext("path", path)
}

// Internal errors

func InternalError(message string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
