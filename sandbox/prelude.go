package sandbox

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// DefaultPreload is the fixed module set loaded when the configuration does
// not name one.
var DefaultPreload = []string{"path", "text", "assert"}

// preludeSources holds the guest-visible helper modules that ship with the
// runtime. They are plain scripts installing globals; loading them is part
// of the one-time warm start.
var preludeSources = map[string]string{
	"path": `
globalThis.path = {
	join: function() {
		var parts = [];
		for (var i = 0; i < arguments.length; i++) {
			if (arguments[i] !== "") parts.push(arguments[i]);
		}
		return parts.join("/").replace(/\/+/g, "/");
	},
	dirname: function(p) {
		var i = p.lastIndexOf("/");
		if (i < 0) return ".";
		if (i === 0) return "/";
		return p.slice(0, i);
	},
	basename: function(p) {
		var i = p.lastIndexOf("/");
		return i < 0 ? p : p.slice(i + 1);
	}
};
`,
	"text": `
globalThis.text = {
	lines: function(s) {
		if (s === "") return [];
		return s.replace(/\n$/, "").split("\n");
	},
	trim: function(s) { return s.trim(); },
	pad: function(s, n) {
		s = String(s);
		while (s.length < n) s = " " + s;
		return s;
	}
};
`,
	"assert": `
globalThis.assert = function(cond, msg) {
	if (!cond) throw new Error(msg || "assertion failed");
};
`,
}

var (
	preludeMu       sync.Mutex
	preludePrograms = map[string]*goja.Program{}
)

// preludeProgram compiles the named module once per process and caches the
// compiled form so additional Runtime instances (tests, pools) reuse it.
func preludeProgram(name string) (*goja.Program, error) {
	preludeMu.Lock()
	defer preludeMu.Unlock()

	if prog, ok := preludePrograms[name]; ok {
		return prog, nil
	}
	src, ok := preludeSources[name]
	if !ok {
		return nil, fmt.Errorf("unknown prelude module: %s", name)
	}
	prog, err := goja.Compile(name+".js", src, true)
	if err != nil {
		return nil, err
	}
	preludePrograms[name] = prog
	return prog, nil
}

// PreludeModules lists the module names available for preloading.
func PreludeModules() []string {
	names := make([]string, 0, len(preludeSources))
	for name := range preludeSources {
		names = append(names, name)
	}
	return names
}
