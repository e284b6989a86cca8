package robot

import (
	"fmt"

	"github.com/taigrr/urdfview/pkg/assetdb"
)

// DiagKind classifies a per-asset problem. Neither kind aborts a load.
type DiagKind int

const (
	AssetNotFound DiagKind = iota
	DecodeFailure
)

func (k DiagKind) String() string {
	if k == DecodeFailure {
		return "decode failure"
	}
	return "asset not found"
}

// Diagnostic records a mesh reference that left its link without geometry.
type Diagnostic struct {
	Link string
	Ref  string
	Key  assetdb.Key
	Kind DiagKind
	Err  error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %q: %v", d.Link, d.Kind, d.Ref, d.Err)
}
