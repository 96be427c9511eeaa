package builtin

import (
	"encoding/binary"
	"io"
	"os/exec"
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/archipelago-rt/runtime/pkg/archlog"
	"github.com/archipelago-rt/runtime/pkg/context"
	"github.com/archipelago-rt/runtime/pkg/errcode"
	"github.com/archipelago-rt/runtime/pkg/params"
	"github.com/archipelago-rt/runtime/pkg/ptr"
)

// GPUPipelineInterface is a domain-plugin example: a context whose
// init starts a long-running child process talking over stdin/stdout
// pipes, and whose act("dispatch", params) writes a length-framed
// request and reads back a length-framed response — an opaque
// byte-slice request/response so it fits the context protocol's
// untyped params/Pointer model. The framing is a little-endian
// uint32 length header followed by the payload.
var GPUPipelineInterface = &context.Interface{
	Init: gpuInit,
	Final: func(data ptr.Pointer) {
		unwrapGPU(data).close()
	},
	Act: gpuAct,
}

type gpuPipeline struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	mu     sync.Mutex
	log    *zap.SugaredLogger
}

func gpuInit(sparams params.List) (ptr.Pointer, errcode.Code) {
	pathVal, ok := params.Get(sparams, "command")
	if !ok {
		return ptr.Pointer{}, errcode.EValue
	}
	command := ptr.ToString(pathVal)
	if command == "" {
		return ptr.Pointer{}, errcode.EValue
	}

	var args []string
	for n := sparams; n != nil; n = n.Next {
		if n.Name == "arg" {
			args = append(args, ptr.ToString(n.Value))
		}
	}

	log := archlog.Nop()
	if v, ok := params.Get(sparams, "log"); ok {
		if l := unwrapLogger(v); l != nil {
			log = l
		}
	}

	cmd := exec.Command(command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return ptr.Pointer{}, errcode.EResource
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return ptr.Pointer{}, errcode.EResource
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return ptr.Pointer{}, errcode.EResource
	}

	g := &gpuPipeline{cmd: cmd, stdin: stdin, stdout: stdout, log: log}
	return ptr.Pointer{
		Data:     unsafe.Pointer(g),
		RefCount: ptr.Alloc(func() {}),
	}, errcode.OK
}

// WrapLogger lifts a *zap.SugaredLogger into a Pointer for use as the
// "log" init parameter of GPUPipelineInterface.
func WrapLogger(l *zap.SugaredLogger) ptr.Pointer {
	return ptr.Pointer{Data: unsafe.Pointer(l)}
}

func unwrapLogger(p ptr.Pointer) *zap.SugaredLogger {
	return (*zap.SugaredLogger)(p.Data)
}

func unwrapGPU(data ptr.Pointer) *gpuPipeline {
	return (*gpuPipeline)(data.Data)
}

func (g *gpuPipeline) close() {
	g.stdin.Close()
	g.cmd.Wait()
}

// dispatch writes req framed with a little-endian uint32 length
// header, then reads and returns a like-framed response.
func (g *gpuPipeline) dispatch(req []byte) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := binary.Write(g.stdin, binary.LittleEndian, uint32(len(req))); err != nil {
		return nil, err
	}
	if len(req) > 0 {
		if _, err := g.stdin.Write(req); err != nil {
			return nil, err
		}
	}

	var respLen uint32
	if err := binary.Read(g.stdout, binary.LittleEndian, &respLen); err != nil {
		return nil, err
	}
	if respLen == 0 {
		return nil, nil
	}
	resp := make([]byte, respLen)
	if _, err := io.ReadFull(g.stdout, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func gpuAct(data *ptr.Pointer, actionSlot context.SlotDesignator, sparams params.List) (ptr.Pointer, errcode.Code) {
	if actionSlot.Name != "dispatch" {
		return ptr.Pointer{}, errcode.EKey
	}
	g := unwrapGPU(*data)

	reqVal, ok := params.Get(sparams, "request")
	if !ok {
		return ptr.Pointer{}, errcode.EValue
	}
	req := make([]byte, reqVal.Element.Size)
	if reqVal.Element.Size > 0 {
		copy(req, unsafe.Slice((*byte)(reqVal.Data), reqVal.Element.Size))
	}

	correlationID := uuid.NewString()
	g.log.Debugw("gpu dispatch starting", "correlation_id", correlationID, "request_bytes", len(req))
	resp, err := g.dispatch(req)
	if err != nil {
		g.log.Errorw("gpu dispatch failed", "correlation_id", correlationID, "error", err)
		return ptr.Pointer{}, errcode.EResource
	}
	g.log.Debugw("gpu dispatch finished", "correlation_id", correlationID, "response_bytes", len(resp))

	if len(resp) == 0 {
		return ptr.Pointer{}, errcode.OK
	}
	return ptr.Pointer{
		Data:    unsafe.Pointer(&resp[0]),
		Element: ptr.Layout{NumOf: 1, Size: uint64(len(resp)), Alignment: 1},
	}, errcode.OK
}
