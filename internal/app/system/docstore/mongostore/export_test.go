package mongostore

// SetAfterQueryHook installs fn between the initial query and the first
// delivery of Subscribe and returns a function that removes it.
func SetAfterQueryHook(fn func()) (restore func()) {
	testHookAfterQuery = fn
	return func() { testHookAfterQuery = nil }
}
