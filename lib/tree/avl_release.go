//go:build !avldebug

package tree

const avlDebug = false
