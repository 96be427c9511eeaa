package builtin

import (
	"testing"
	"unsafe"

	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// TestGPUPipelineDispatchRoundTrip uses `cat` as a stand-in child
// process: it echoes its stdin back to stdout unchanged, so a
// length-framed request comes back byte-for-byte as the response,
// exercising gpuPipeline.dispatch's framing without depending on any
// real GPU tooling being present.
func TestGPUPipelineDispatchRoundTrip(t *testing.T) {
	sparams := params.ViewPrepend(nil, "command", ptr.String("cat"))
	ifacePtr := context.Wrap(GPUPipelineInterface, ptr.Alloc(func() {}))

	ctx, status := context.Initialize(ifacePtr, sparams)
	if status.IsError() {
		t.Fatalf("Initialize: %v", status)
	}
	defer ctx.Release()

	req := []byte("hello pipeline")
	reqVal := ptr.Pointer{
		Data:    unsafe.Pointer(&req[0]),
		Element: ptr.Layout{NumOf: 1, Size: uint64(len(req)), Alignment: 1},
	}
	dispatchParams := params.ViewPrepend(nil, "request", reqVal)

	resultVal, status := context.Act(ctx, context.SlotDesignator{Name: "dispatch"}, dispatchParams)
	if status != errcode.OK {
		t.Fatalf("Act dispatch: %v", status)
	}
	if resultVal.Data == nil {
		t.Fatal("dispatch returned no response data")
	}
	got := unsafe.Slice((*byte)(resultVal.Data), resultVal.Element.Size)
	if string(got) != string(req) {
		t.Fatalf("response = %q, want %q", got, req)
	}
}

func TestGPUPipelineRejectsMissingCommand(t *testing.T) {
	ifacePtr := context.Wrap(GPUPipelineInterface, ptr.Alloc(func() {}))
	_, status := context.Initialize(ifacePtr, nil)
	if status != errcode.EValue {
		t.Fatalf("Initialize with no command = %v, want EValue", status)
	}
}
