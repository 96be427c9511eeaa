package builtin

import (
	"testing"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// TestLibraryInterfaceRejectsMissingPathname covers the init-time
// validation path. Exercising a real load requires an actual .so built
// via `go build -buildmode=plugin`, which is out of reach without
// running the toolchain; the error path is still fully testable.
func TestLibraryInterfaceRejectsMissingPathname(t *testing.T) {
	ifacePtr := context.Wrap(LibraryInterface, ptr.Alloc(func() {}))
	_, status := context.Initialize(ifacePtr, nil)
	if status != errcode.EValue {
		t.Fatalf("Initialize with no pathname = %v, want EValue", status)
	}
}

func TestLibraryInterfaceRejectsEmptyPathname(t *testing.T) {
	sparams := params.ViewPrepend(nil, "pathname", ptr.String(""))
	ifacePtr := context.Wrap(LibraryInterface, ptr.Alloc(func() {}))
	_, status := context.Initialize(ifacePtr, sparams)
	if status != errcode.EValue {
		t.Fatalf("Initialize with empty pathname = %v, want EValue", status)
	}
}
