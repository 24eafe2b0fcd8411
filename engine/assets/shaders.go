package assets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/naga"
	"github.com/spaghettifunk/umbra/engine/core"
)

// CompiledShaderSuffix is appended to a shader source path to name its
// compiled SPIR-V artifact, which lives next to the source.
const CompiledShaderSuffix = ".spv"

const spirvMagic uint32 = 0x07230203

// CompileFunc turns the shader source at path into SPIR-V bytes.
type CompileFunc func(path string) ([]byte, error)

/**
 * @brief Compiles shader sources to SPIR-V and caches the result on disk.
 * A cached artifact is reused as long as it is not older than its source.
 */
type ShaderCompiler struct {
	mu        sync.Mutex
	compilers map[string]CompileFunc
}

func NewShaderCompiler() *ShaderCompiler {
	sc := &ShaderCompiler{
		compilers: make(map[string]CompileFunc),
	}
	for _, ext := range []string{".vert", ".frag", ".glsl"} {
		sc.RegisterCompiler(ext, compileGLSL)
	}
	sc.RegisterCompiler(".wgsl", compileWGSL)
	return sc
}

// RegisterCompiler sets the compiler used for sources with the given extension.
func (sc *ShaderCompiler) RegisterCompiler(ext string, fn CompileFunc) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.compilers[strings.ToLower(ext)] = fn
}

// IsShaderSource reports whether path has an extension with a registered compiler.
func (sc *ShaderCompiler) IsShaderSource(path string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.compilers[strings.ToLower(filepath.Ext(path))]
	return ok
}

func CompiledPath(source string) string {
	return source + CompiledShaderSuffix
}

// NeedsCompile is true when the compiled artifact is missing or older than
// the source.
func NeedsCompile(source string) (bool, error) {
	src, err := os.Stat(source)
	if err != nil {
		return false, err
	}
	bin, err := os.Stat(CompiledPath(source))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return bin.ModTime().Before(src.ModTime()), nil
}

// Load returns the SPIR-V words for source, compiling and persisting them
// first when the cached artifact is stale.
func (sc *ShaderCompiler) Load(source string) ([]uint32, error) {
	stale, err := NeedsCompile(source)
	if err != nil {
		return nil, core.NewError(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Load", err)
	}
	if stale {
		if err := sc.Compile(source); err != nil {
			return nil, err
		}
	} else {
		core.LogDebug("using cached shader `%s`", CompiledPath(source))
	}

	data, err := os.ReadFile(CompiledPath(source))
	if err != nil {
		return nil, core.NewError(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Load", err)
	}
	words, err := BytesToWords(data)
	if err != nil {
		return nil, core.NewError(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Load", fmt.Errorf("%s: %w", CompiledPath(source), err))
	}
	return words, nil
}

// Compile compiles source unconditionally and writes the artifact next to it.
func (sc *ShaderCompiler) Compile(source string) error {
	sc.mu.Lock()
	fn, ok := sc.compilers[strings.ToLower(filepath.Ext(source))]
	sc.mu.Unlock()
	if !ok {
		return core.Errorf(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Compile", "no compiler registered for `%s`", source)
	}

	core.LogInfo("compiling shader `%s`", source)
	data, err := fn(source)
	if err != nil {
		err = core.NewError(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Compile", fmt.Errorf("%s: %w", source, err))
		core.LogError(err.Error())
		return err
	}
	if _, err := BytesToWords(data); err != nil {
		return core.NewError(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Compile", fmt.Errorf("%s: %w", source, err))
	}
	if err := os.WriteFile(CompiledPath(source), data, 0o644); err != nil {
		return core.NewError(core.ErrorKindShaderCompileFailed, "assets.ShaderCompiler.Compile", err)
	}
	return nil
}

// BytesToWords converts a little-endian SPIR-V blob into 32-bit words and
// checks its magic number.
func BytesToWords(data []byte) ([]uint32, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V size %d", len(data))
	}
	words := make([]uint32, len(data)/4)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, words); err != nil {
		return nil, err
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("invalid SPIR-V magic 0x%08x", words[0])
	}
	return words, nil
}

// compileGLSL runs glslc, which infers the stage from the file extension.
func compileGLSL(path string) ([]byte, error) {
	out, err := os.CreateTemp("", "umbra-*.spv")
	if err != nil {
		return nil, err
	}
	out.Close()
	defer os.Remove(out.Name())

	var stderr bytes.Buffer
	cmd := exec.Command("glslc", path, "-o", out.Name())
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("glslc: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return os.ReadFile(out.Name())
}

func compileWGSL(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return naga.Compile(string(src))
}
