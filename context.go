package hsmx

import "github.com/comalice/hsmx/internal/merge"

// cloneCtx deep-copies a context tree for exposure to callers or history.
func cloneCtx(c Context) Context {
	return merge.Clone(c)
}

// mergePatch applies an action's partial update. A nil patch leaves the
// context untouched.
func mergePatch(c Context, patch Context) Context {
	if patch == nil {
		return c
	}
	return merge.Merge(c, patch)
}
