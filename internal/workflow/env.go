package workflow

// Env is a named environment (test/staging/prod) carrying its own args
// and config overrides, selected at Execute time via
// ExecuteOptions.Environment.
type Env struct {
	Name        string
	Description string
	Args        map[string]ArgValue
	Config      map[string]any
}
