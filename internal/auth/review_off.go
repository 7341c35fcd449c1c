//go:build !review

package auth

import "context"

// ReviewBypass is unreachable in production builds. The working
// implementation is compiled only under the review tag.
func (f *Flow) ReviewBypass(context.Context, string, string) error {
	return ErrBypassDisabled
}
