//go:build !cgofuse

package channel

import "fmt"

// NewProjectionAttach reports that this build was compiled without the
// cgofuse build tag, so the projection variant of Channel is unavailable.
// The mount package calls this from the same call site regardless of build
// tag, so ChannelAttach doesn't need its own build-tagged files.
func NewProjectionAttach(backend Backend) (Channel, error) {
	return nil, fmt.Errorf("channel: projection driver requires building with the cgofuse tag")
}
