// Package loader opens plugin modules and resolves their factory.
//
// A module is a Go plugin built with -buildmode=plugin whose main package
// exports
//
//	func MakePlugin(r *plugin.Registry) plugin.Plugin
//
// or a variable of type plugin.Factory under the same name. Go cannot unload
// plugins, so an opened module stays mapped until the process exits.
package loader

import (
	stderrors "errors"
	"os"
	goplugin "plugin"

	"github.com/leeforge/xrcore/errors"
	"github.com/leeforge/xrcore/plugin"
)

// FactorySymbol is the name every module exports its factory under.
const FactorySymbol = "MakePlugin"

// VersionSymbol optionally names a string variable holding the module version.
const VersionSymbol = "Version"

var (
	// ErrSymbolNotFound is returned when a module does not export FactorySymbol.
	ErrSymbolNotFound = stderrors.New("factory symbol not found")

	// ErrSymbolType is returned when FactorySymbol has the wrong type.
	ErrSymbolType = stderrors.New("factory symbol has the wrong type")
)

// Symbols is an opened module. *plugin.Plugin from the standard library
// satisfies it.
type Symbols interface {
	Lookup(name string) (goplugin.Symbol, error)
}

// OpenFunc opens the module at path.
type OpenFunc func(path string) (Symbols, error)

// Module is an opened module and its resolved factory.
type Module struct {
	Path    string
	Factory plugin.Factory

	symbols Symbols
}

// Lookup resolves any other exported symbol of the module.
func (m *Module) Lookup(name string) (goplugin.Symbol, error) {
	return m.symbols.Lookup(name)
}

// Version returns the module's exported Version string, or "" when it has
// none.
func (m *Module) Version() string {
	sym, err := m.Lookup(VersionSymbol)
	if err != nil {
		return ""
	}
	switch v := sym.(type) {
	case *string:
		if v != nil {
			return *v
		}
	case string:
		return v
	}
	return ""
}

// Loader opens modules through an OpenFunc.
type Loader struct {
	open OpenFunc
}

// New returns a Loader using open. A nil open uses the Go plugin runtime.
func New(open OpenFunc) *Loader {
	if open == nil {
		open = OpenShared
	}
	return &Loader{open: open}
}

// Open opens the module at path and resolves its factory. Every failure is a
// configuration error.
func (l *Loader) Open(path string) (*Module, error) {
	symbols, err := l.open(path)
	if err != nil {
		return nil, errors.WrapWithType(err, errors.ErrorTypeConfiguration, "cannot open plugin module").
			WithCode("module_open_failed").
			WithDetail("path", path)
	}

	sym, err := symbols.Lookup(FactorySymbol)
	if err != nil {
		return nil, errors.WrapWithType(stderrors.Join(ErrSymbolNotFound, err), errors.ErrorTypeConfiguration,
			"plugin module does not export "+FactorySymbol).
			WithCode("symbol_not_found").
			WithDetail("path", path)
	}

	factory, ok := factoryOf(sym)
	if !ok {
		return nil, errors.WrapWithType(ErrSymbolType, errors.ErrorTypeConfiguration,
			FactorySymbol+" must be a func(*plugin.Registry) plugin.Plugin").
			WithCode("symbol_type").
			WithDetail("path", path)
	}

	return &Module{Path: path, Factory: factory, symbols: symbols}, nil
}

// OpenAll opens every path before returning, so a deployment with any broken
// module yields no modules at all. All failures are joined into the error.
func (l *Loader) OpenAll(paths []string) ([]*Module, error) {
	modules := make([]*Module, 0, len(paths))
	var errs []error
	for _, p := range paths {
		m, err := l.Open(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		modules = append(modules, m)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return modules, nil
}

// OpenShared opens a -buildmode=plugin shared object.
func OpenShared(path string) (Symbols, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func factoryOf(sym goplugin.Symbol) (plugin.Factory, bool) {
	switch f := sym.(type) {
	case func(*plugin.Registry) plugin.Plugin:
		return f, f != nil
	case plugin.Factory:
		return f, f != nil
	case *plugin.Factory:
		if f == nil || *f == nil {
			return nil, false
		}
		return *f, true
	case *func(*plugin.Registry) plugin.Plugin:
		if f == nil || *f == nil {
			return nil, false
		}
		return *f, true
	}
	return nil, false
}
