//go:build avldebug

package tree

// Built with -tags avldebug, precondition violations panic early.
const avlDebug = true
