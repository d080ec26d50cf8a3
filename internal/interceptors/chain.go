package interceptors

import (
	"fmt"
	"sort"
)

// Chain constructs middleware for every configured interceptor, in
// name order so the chain is deterministic. A block with enabled =
// false is skipped. Unknown interceptor names fail fast.
func Chain(cfgs map[string]map[string]any, deps Deps) ([]Middleware, error) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	var chain []Middleware
	for _, name := range names {
		conf := cfgs[name]
		if enabled, ok := conf["enabled"].(bool); ok && !enabled {
			continue
		}

		ctor, ok := Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown interceptor %q (registered: %v)", name, Names())
		}
		mw, err := ctor(conf, deps)
		if err != nil {
			return nil, fmt.Errorf("interceptor %s: %w", name, err)
		}
		chain = append(chain, mw)
	}
	return chain, nil
}
