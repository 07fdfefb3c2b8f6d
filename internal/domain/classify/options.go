package classify

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTable sets the initial classification table.
func WithTable(t *Table) Option {
	return func(e *Engine) {
		if t != nil {
			e.table.Store(t)
		}
	}
}

// WithRules sets the initial table from a direct lookup and ordered rules.
func WithRules(direct map[string]Result, rules []Rule) Option {
	return func(e *Engine) {
		e.table.Store(NewTable(direct, rules))
	}
}
