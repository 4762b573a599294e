// Package ramulator binds the Ramulator2 C wrapper as a bridge engine.
//
// The binding is only compiled with the ramulator build tag and needs
// libwrapper and libramulator on the linker path:
//
//	CGO_LDFLAGS="-L/path/to/ramulator2" go build -tags ramulator ./...
//
// Importing the package registers the engine under config.EngineRamulator.
// The engine reads its configuration file itself, so the bridge must be
// initialized with a config.File.
package ramulator
