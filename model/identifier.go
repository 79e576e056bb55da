package model

import (
	"github.com/google/uuid"
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"strings"
)

// VirtualSpoutIdentifier names a running virtual spout. It correlates logs,
// metrics and acknowledgements; it is never a storage key.
type VirtualSpoutIdentifier string

func NewVirtualSpoutIdentifier(prefix string) VirtualSpoutIdentifier {
	return VirtualSpoutIdentifier(prefix + ":" + uuid.New().String())
}

func (v VirtualSpoutIdentifier) String() string {
	return string(v)
}

// SidelineIdentifier names a sideline request and keys its persisted state.
type SidelineIdentifier string

func NewSidelineIdentifier() SidelineIdentifier {
	return SidelineIdentifier(uuid.New().String())
}

func (s SidelineIdentifier) String() string {
	return string(s)
}

// EndingBoundary is the key holding the ending state of a stopped request.
func (s SidelineIdentifier) EndingBoundary() SidelineIdentifier {
	return s + SidelineIdentifier(constant.SidelineEndingSuffix)
}

func (s SidelineIdentifier) IsEndingBoundary() bool {
	return strings.HasSuffix(string(s), constant.SidelineEndingSuffix)
}

// VirtualSpoutId derives the identifier of the spout replaying this request.
func (s SidelineIdentifier) VirtualSpoutId() VirtualSpoutIdentifier {
	return VirtualSpoutIdentifier(constant.SidelineSpoutIdPrefix + ":" + string(s))
}
