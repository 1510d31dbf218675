package ops

// BuiltinSet is a bitmask selecting which built-in operator families get
// bulk-registered into the global registry on first use, the Go analogue
// of the original's cfg-gated register_executor_factories calls.
type BuiltinSet uint32

const (
	BuiltinFunctions BuiltinSet = 1 << iota
	BuiltinSources
	BuiltinTargets

	BuiltinAll = BuiltinFunctions | BuiltinSources | BuiltinTargets
)

// enabledBuiltins is read once by registerBuiltins at first Global() call.
// Hosts that need a narrower set should call EnableBuiltins before any
// operator lookup forces initialization.
var enabledBuiltins = BuiltinAll

// EnableBuiltins overrides which built-in families are registered. Must be
// called before the first use of Global(); a no-op afterward since
// registration only runs once.
func EnableBuiltins(set BuiltinSet) {
	enabledBuiltins = set
}

// builtinRegistrars is populated by internal/ops/builtin's init() via
// RegisterBuiltinHook, keeping the dependency edge one-directional
// (internal/ops/builtin imports internal/ops, never the reverse).
var builtinRegistrars []func(*Registry, BuiltinSet)

// RegisterBuiltinHook lets a builtin package contribute its registration
// function without internal/ops importing it directly.
func RegisterBuiltinHook(fn func(*Registry, BuiltinSet)) {
	builtinRegistrars = append(builtinRegistrars, fn)
}

func registerBuiltins(r *Registry) {
	for _, fn := range builtinRegistrars {
		fn(r, enabledBuiltins)
	}
}
