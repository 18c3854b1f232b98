package imports

import (
	_ "embed"
	"strings"
)

//go:embed stdlib/builtins.txt
var builtinModuleData string

//go:embed stdlib/python.txt
var pythonStdlibData string

// builtinModules are compiled into the interpreter and have no source file.
var builtinModules = map[string]bool{}

// pythonStdlib holds standard library modules and their root packages.
var pythonStdlib = map[string]bool{}

func init() {
	for _, line := range strings.Split(builtinModuleData, "\n") {
		registerModuleLine(builtinModules, line)
	}
	for _, line := range strings.Split(pythonStdlibData, "\n") {
		registerModuleLine(pythonStdlib, line)
	}
}

func registerModuleLine(dst map[string]bool, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	dst[line] = true
	// Add base name: e.g. urllib.request -> urllib
	dst[strings.Split(line, ".")[0]] = true
}

// IsBuiltinModule reports whether the root component of name is compiled
// into the interpreter.
func IsBuiltinModule(name string) bool {
	return builtinModules[rootOf(name)]
}

// IsStdlibModule reports whether the root component of name belongs to the
// standard library.
func IsStdlibModule(name string) bool {
	return pythonStdlib[rootOf(name)] || builtinModules[rootOf(name)]
}

func rootOf(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
