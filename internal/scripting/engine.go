package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for worldgen logic. Unlike game-loop
// scripting, worldgen hooks are called from worker goroutines, so every call
// takes the VM mutex. Hot-reload planned via atomic swap.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. A missing directory is not an error; the engine then answers
// every hook lookup with "not defined" and callers use their Go defaults.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, sub := range []string{"worldgen", "blocks"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// ColumnContext holds pre-packed data for one terrain column shaping call.
type ColumnContext struct {
	WorldX  int
	WorldZ  int
	Height  int     // surface height from the noise pass
	Biome   string  // "plains", "desert", "mountains", "ocean"
	Moisture float64 // 0..1
}

// ColumnResult is returned by the Lua shape_column function.
type ColumnResult struct {
	Height       int
	SurfaceBlock string // block name from the block table, "" = keep default
	FillBlock    string
}

// HasShapeColumn reports whether the loaded scripts define shape_column.
// Checked once at generator construction so the per-column fast path can skip
// the VM entirely.
func (e *Engine) HasShapeColumn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.GetGlobal("shape_column") != lua.LNil
}

// ShapeColumn calls the Lua shape_column function for one terrain column.
// Returns ok=false when the function is missing or errors; the caller then
// keeps its Go-side defaults.
func (e *Engine) ShapeColumn(ctx ColumnContext) (ColumnResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("shape_column")
	if fn == lua.LNil {
		return ColumnResult{}, false
	}

	t := e.vm.NewTable()
	t.RawSetString("x", lua.LNumber(ctx.WorldX))
	t.RawSetString("z", lua.LNumber(ctx.WorldZ))
	t.RawSetString("height", lua.LNumber(ctx.Height))
	t.RawSetString("biome", lua.LString(ctx.Biome))
	t.RawSetString("moisture", lua.LNumber(ctx.Moisture))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua shape_column error", zap.Error(err),
			zap.Int("x", ctx.WorldX), zap.Int("z", ctx.WorldZ))
		return ColumnResult{}, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua shape_column returned non-table")
		return ColumnResult{}, false
	}

	return ColumnResult{
		Height:       lInt(rt, "height"),
		SurfaceBlock: lStr(rt, "surface_block"),
		FillBlock:    lStr(rt, "fill_block"),
	}, true
}

// WorldSeedOverride calls Lua world_seed() if defined. Returns ok=false when
// the scripts do not override the configured seed.
func (e *Engine) WorldSeedOverride() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("world_seed")
	if fn == lua.LNil {
		return 0, false
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		e.log.Error("lua world_seed error", zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return int64(lua.LVAsNumber(result)), true
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
