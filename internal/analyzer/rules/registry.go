package rules

import "github.com/mfbotde/tracker/internal/analyzer"

// NewDefaultRegistry returns a fresh Registry with all built-in detection
// rules. Must be called per analysis run: the redefinition rule accumulates
// state across migrations.
func NewDefaultRegistry() *analyzer.Registry {
	r := analyzer.NewRegistry()
	r.Register(NewCreateIndexRule())
	r.Register(NewDropTableRule())
	r.Register(NewRenameRule())
	r.Register(NewRedefineTableRule())

	return r
}
