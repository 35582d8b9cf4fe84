package luahook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/pluginhost/internal/plugin/api"
	"github.com/dshills/pluginhost/internal/plugin/command"
	"github.com/dshills/pluginhost/internal/plugin/dom"
	"github.com/dshills/pluginhost/internal/plugin/event"
	"github.com/dshills/pluginhost/internal/plugin/store"
)

type stubResolver map[string]api.PluginView

func (r stubResolver) Lookup(name string) (api.PluginView, bool) {
	v, ok := r[name]
	return v, ok
}

func newTestContext() *api.Context {
	return &api.Context{
		Commands: command.NewRegistry(),
		Events:   event.NewBus(),
		Config:   store.New(nil),
		Assets:   dom.NewInjector(dom.NewMemoryDocument()),
		Plugins:  stubResolver{},
	}
}

func loadHooks(t *testing.T, script string) *Hooks {
	t.Helper()
	h, err := LoadString(script)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Destroy(context.Background()) })
	return h
}

func enable(t *testing.T, h *Hooks, capi *api.Capability) {
	t.Helper()
	if err := h.Enable(context.Background(), capi); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
}

func TestLoadStringBrokenScript(t *testing.T) {
	if _, err := LoadString("this is not lua"); err == nil {
		t.Fatal("LoadString() accepted a broken script")
	}
}

func TestEnableWithoutFunctionIsNoop(t *testing.T) {
	h := loadHooks(t, `-- nothing defined`)
	enable(t, h, api.New("p", newTestContext()))
}

func TestEnableError(t *testing.T) {
	h := loadHooks(t, `function enable() error("refused") end`)

	err := h.Enable(context.Background(), api.New("p", newTestContext()))
	if err == nil {
		t.Fatal("Enable() error = nil, want script failure")
	}
}

func TestLuaCommandRegistration(t *testing.T) {
	ctx := newTestContext()
	h := loadHooks(t, `
		function enable()
			host.register_command("greet", function(name)
				return "hello " .. name
			end)
		end
	`)
	enable(t, h, api.New("greeter", ctx))

	if owner, _ := ctx.Commands.Owner("greet"); owner != "greeter" {
		t.Fatalf("command owner = %q, want greeter", owner)
	}

	result, err := ctx.Commands.Execute("greet", "bob")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "hello bob" {
		t.Errorf("Execute() = %v, want %q", result, "hello bob")
	}
}

func TestLuaCommandError(t *testing.T) {
	ctx := newTestContext()
	h := loadHooks(t, `
		function enable()
			host.register_command("fail", function()
				error("command exploded")
			end)
		end
	`)
	enable(t, h, api.New("p", ctx))

	if _, err := ctx.Commands.Execute("fail"); err == nil {
		t.Error("Execute() error = nil, want the Lua error")
	}
}

func TestLuaUnregisterCommand(t *testing.T) {
	ctx := newTestContext()
	h := loadHooks(t, `
		function enable()
			host.register_command("temp", function() return 1 end)
			host.unregister_command("temp")
		end
	`)
	enable(t, h, api.New("p", ctx))

	if ctx.Commands.Has("temp") {
		t.Error("command still registered after host.unregister_command")
	}
}

func TestLuaEventRoundTrip(t *testing.T) {
	ctx := newTestContext()
	h := loadHooks(t, `
		function enable()
			host.on("doc.saved", function(path)
				host.config_set("last_saved", path)
			end)
		end
	`)
	enable(t, h, api.New("watcher", ctx))

	ctx.Events.Emit("doc.saved", "main.go")

	if v, ok := ctx.Config.ConfigValue("watcher", "last_saved"); !ok || v != "main.go" {
		t.Errorf("last_saved = %v, %v, want main.go, true", v, ok)
	}
}

func TestLuaOff(t *testing.T) {
	ctx := newTestContext()
	h := loadHooks(t, `
		function enable()
			local token = host.on("tick", function()
				host.config_set("ticked", true)
			end)
			host.off(token)
		end
	`)
	enable(t, h, api.New("p", ctx))

	ctx.Events.Emit("tick")

	if _, ok := ctx.Config.ConfigValue("p", "ticked"); ok {
		t.Error("handler ran after host.off")
	}
}

func TestLuaEmit(t *testing.T) {
	ctx := newTestContext()

	var got []any
	ctx.Events.Subscribe("plugin.ready", "host", func(args ...any) {
		got = append(got, args...)
	})

	h := loadHooks(t, `
		function enable()
			host.emit("plugin.ready", "announcer", 2)
		end
	`)
	enable(t, h, api.New("announcer", ctx))

	if len(got) != 2 || got[0] != "announcer" || got[1] != float64(2) {
		t.Errorf("emit args = %v, want [announcer 2]", got)
	}
}

func TestLuaConfigGet(t *testing.T) {
	ctx := newTestContext()
	ctx.Config.SetConfigValue("p", "interval", 25)

	h := loadHooks(t, `
		function enable()
			host.config_set("doubled", host.config_get("interval") * 2)
		end
	`)
	enable(t, h, api.New("p", ctx))

	if v, _ := ctx.Config.ConfigValue("p", "doubled"); v != float64(50) {
		t.Errorf("doubled = %v, want 50", v)
	}
}

func TestLuaPluginLookup(t *testing.T) {
	ctx := newTestContext()
	ctx.Plugins = stubResolver{
		"base": {Name: "base", Version: "1.2.0", Status: "enabled"},
	}

	h := loadHooks(t, `
		function enable()
			local info = host.plugin("base")
			host.config_set("base_version", info.version)
			host.config_set("ghost_found", host.plugin("ghost") ~= nil)
		end
	`)
	enable(t, h, api.New("p", ctx))

	if v, _ := ctx.Config.ConfigValue("p", "base_version"); v != "1.2.0" {
		t.Errorf("base_version = %v, want 1.2.0", v)
	}
	if v, _ := ctx.Config.ConfigValue("p", "ghost_found"); v != false {
		t.Errorf("ghost_found = %v, want false", v)
	}
}

func TestLuaAssets(t *testing.T) {
	ctx := newTestContext()
	h := loadHooks(t, `
		function enable()
			host.config_set("css_id", host.load_css(".x {}"))
			host.load_js("void 0")
		end
	`)
	enable(t, h, api.New("styler", ctx))

	nodes := ctx.Assets.NodesByOwner("styler")
	if len(nodes) != 2 {
		t.Fatalf("styler owns %d nodes, want 2", len(nodes))
	}
	if v, ok := ctx.Config.ConfigValue("styler", "css_id"); !ok || v == "" {
		t.Error("load_css did not return an ID")
	}
}

func TestDisableAndDestroy(t *testing.T) {
	ctx := newTestContext()
	h, err := LoadString(`
		function enable() host.config_set("phase", "enabled") end
		function disable() host.config_set("phase", "disabled") end
		function destroy() end
	`)
	if err != nil {
		t.Fatal(err)
	}

	capi := api.New("p", ctx)
	enable(t, h, capi)
	if err := h.Disable(context.Background()); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if v, _ := ctx.Config.ConfigValue("p", "phase"); v != "disabled" {
		t.Errorf("phase = %v, want disabled", v)
	}

	if err := h.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	// The state is closed; further hook calls are inert.
	if h.state.HasFunction("enable") {
		t.Error("state still answers after Destroy")
	}
}

func TestDestroyError(t *testing.T) {
	h, err := LoadString(`function destroy() error("cleanup failed") end`)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Destroy(context.Background()); err == nil {
		t.Error("Destroy() error = nil, want the script failure")
	}
}

func TestSandboxExcludesUnsafeLibraries(t *testing.T) {
	// io, os, debug, and package never open; only the host module reaches out.
	_, err := LoadString(`
		assert(io == nil, "io is open")
		assert(os == nil, "os is open")
		assert(debug == nil, "debug is open")
		assert(string ~= nil, "string should be open")
		assert(math ~= nil, "math should be open")
		assert(table ~= nil, "table should be open")
	`)
	if err != nil {
		t.Fatalf("sandbox check failed: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.lua")
	script := `function enable() host.config_set("loaded", true) end`
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Destroy(context.Background()) })

	if h.Path() != path {
		t.Errorf("Path() = %q, want %q", h.Path(), path)
	}

	ctx := newTestContext()
	enable(t, h, api.New("p", ctx))
	if v, _ := ctx.Config.ConfigValue("p", "loaded"); v != true {
		t.Errorf("loaded = %v, want true", v)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Fatal("Load() accepted a missing file")
	}
}
