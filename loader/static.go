package loader

import (
	"fmt"
	"os"
	goplugin "plugin"
)

// SymbolTable is an in-process module: exported names mapped to values.
// It lets statically linked plugins go through the same resolution path as
// shared objects.
type SymbolTable map[string]goplugin.Symbol

func (t SymbolTable) Lookup(name string) (goplugin.Symbol, error) {
	sym, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found in static module", name)
	}
	return sym, nil
}

// StaticOpener returns an OpenFunc serving modules from tables keyed by path.
func StaticOpener(tables map[string]SymbolTable) OpenFunc {
	return func(path string) (Symbols, error) {
		t, ok := tables[path]
		if !ok {
			return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
		}
		return t, nil
	}
}
