package loader

import (
	"context"
	"encoding/json"
	"os"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"

	"github.com/uniconv/uniconv/pkg/etl"
	"github.com/uniconv/uniconv/pkg/manifest"
)

// apiVersion is the C ABI version this driver speaks, matching
// UNICONV_API_VERSION in the plugin header. A library reporting a different
// version is rejected rather than loaded.
const apiVersion = 1

const (
	symPluginInfo      = "uniconv_plugin_info"
	symPluginExecute   = "uniconv_plugin_execute"
	symPluginFreeResult = "uniconv_plugin_free_result"
)

// cPluginInfo mirrors UniconvPluginInfo field-for-field so it can be read
// straight out of the library's memory via unsafe.Pointer.
type cPluginInfo struct {
	name         *byte
	group        *byte
	etl          int32
	_            [4]byte // padding to align the next pointer on 64-bit
	version      *byte
	description  *byte
	targets      **byte
	inputFormats **byte
	apiVersion   int32
}

// cRequest mirrors UniconvRequest. The option-getter callbacks are not
// supported by this loader: getCore, getPlugin and optionsCtx are always
// left zero, and no other field carries options, so a native plugin sees
// only the source, target, output, force and dry-run fields. Core and
// plugin-specific options reach CLI plugins only.
type cRequest struct {
	etl        int32
	_          [4]byte
	source     *byte
	target     *byte
	output     *byte
	force      int32
	dryRun     int32
	getCore    uintptr
	getPlugin  uintptr
	optionsCtx uintptr
}

type cResult struct {
	status     int32
	_          [4]byte
	output     *byte
	outputSize uint64
	errorMsg   *byte
	extraJSON  *byte
}

// NativePlugin loads a shared library plugin via dlopen/dlsym (through
// purego, which needs no cgo) and calls its exported C-ABI functions.
type NativePlugin struct {
	manifest *manifest.Manifest
	handle   uintptr

	info        func() uintptr
	execute     func(req uintptr) uintptr
	freeResult  func(result uintptr)
}

// NewNativePlugin opens the shared library named by m.Library (resolved
// relative to the plugin directory when not absolute) and validates its ABI
// version before returning.
func NewNativePlugin(m *manifest.Manifest) (*NativePlugin, error) {
	libPath := m.Library
	if !isAbs(libPath) {
		libPath = m.PluginDir + string(os.PathSeparator) + libPath
	}

	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Wrapf(err, "loading native plugin library %s", libPath)
	}

	p := &NativePlugin{manifest: m, handle: handle}
	purego.RegisterLibFunc(&p.info, handle, symPluginInfo)
	purego.RegisterLibFunc(&p.execute, handle, symPluginExecute)
	purego.RegisterLibFunc(&p.freeResult, handle, symPluginFreeResult)

	infoPtr := p.info()
	if infoPtr == 0 {
		return nil, errors.Errorf("native plugin %s returned no info", libPath)
	}
	cinfo := (*cPluginInfo)(unsafe.Pointer(infoPtr))
	if cinfo.apiVersion != apiVersion {
		return nil, errors.Errorf("native plugin %s ABI version %d does not match host version %d",
			libPath, cinfo.apiVersion, apiVersion)
	}

	return p, nil
}

func isAbs(p string) bool {
	return len(p) > 0 && (p[0] == '/' || (len(p) > 2 && p[1] == ':'))
}

func (p *NativePlugin) Info() etl.Info {
	infoPtr := p.info()
	cinfo := (*cPluginInfo)(unsafe.Pointer(infoPtr))
	return etl.Info{
		ID:           p.manifest.ID(),
		Group:        goString(cinfo.group),
		ETL:          etl.Type(cinfo.etl),
		Targets:      goStringArray(cinfo.targets),
		InputFormats: goStringArray(cinfo.inputFormats),
		Version:      goString(cinfo.version),
		Description:  goString(cinfo.description),
	}
}

func (p *NativePlugin) SupportsTarget(target string) bool { return p.manifest.SupportsTarget(target) }
func (p *NativePlugin) SupportsInput(format string) bool  { return p.manifest.SupportsInput(format) }

func (p *NativePlugin) Execute(ctx context.Context, req etl.Request) (etl.Result, error) {
	cReq := cRequest{
		etl:    int32(req.ETL),
		source: cString(req.Source),
		target: cString(req.Target),
		force:  boolToInt(req.Core.Force),
		dryRun: boolToInt(req.Core.DryRun),
	}
	if req.Core.Output != "" {
		cReq.output = cString(req.Core.Output)
	}

	resultPtr := p.execute(uintptr(unsafe.Pointer(&cReq)))
	if resultPtr == 0 {
		return etl.Failure(req.ETL, req.Target, req.Source, "native plugin returned no result"), nil
	}
	defer p.freeResult(resultPtr)

	cres := (*cResult)(unsafe.Pointer(resultPtr))

	result := etl.Result{
		ETL:        req.ETL,
		Target:     req.Target,
		PluginUsed: p.manifest.Group,
		Input:      req.Source,
	}
	switch cres.status {
	case 0:
		result.Status = etl.StatusSuccess
	case 2:
		result.Status = etl.StatusSkipped
	default:
		result.Status = etl.StatusError
	}
	if cres.errorMsg != nil {
		result.Error = goString(cres.errorMsg)
	}
	if cres.output != nil {
		result.Output = goString(cres.output)
		result.HasOutput = true
		result.OutputSize = int64(cres.outputSize)
	}
	if cres.extraJSON != nil {
		var extra map[string]any
		if err := json.Unmarshal([]byte(goString(cres.extraJSON)), &extra); err == nil {
			result.Extra = extra
		}
	}

	if fi, err := os.Stat(req.Source); err == nil {
		result.InputSize = fi.Size()
	}
	return result, nil
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// cString returns a pointer to a NUL-terminated copy of s, leaked
// intentionally: plugin calls are infrequent relative to process lifetime
// and the alternative (pinning/freeing across the cgo-free boundary) is not
// worth the complexity here.
func cString(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}

func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for {
		c := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
		if c == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice(p, n))
}

func goStringArray(pp **byte) []string {
	if pp == nil {
		return nil
	}
	var out []string
	for i := 0; ; i++ {
		elem := *(**byte)(unsafe.Pointer(uintptr(unsafe.Pointer(pp)) + uintptr(i)*unsafe.Sizeof(pp)))
		if elem == nil {
			break
		}
		out = append(out, goString(elem))
	}
	return out
}
