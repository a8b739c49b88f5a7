package pipeline

import "errors"

// ErrVerificationFailed wraps any unhandled stage error. It means
// verification itself could not run to a decision; callers must not
// conflate it with a concluded "rejected" result.
var ErrVerificationFailed = errors.New("verification failed to complete")
