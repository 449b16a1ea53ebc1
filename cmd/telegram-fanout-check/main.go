package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/hybridz/telegram-fanout/internal/config"
	"github.com/hybridz/telegram-fanout/internal/routing"
)

// Config linter: loads the service config and the modules document, builds
// the registry, and prints what the router would run with. Exits non-zero on
// any malformed rule so deploys can gate on it.
func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			fail("load config: %v", err)
		}
		cfg.Validate()
		path = cfg.Modules.File
	}

	doc, err := routing.LoadModulesFile(path)
	if err != nil {
		fail("%v", err)
	}

	registry, err := routing.BuildRegistry(doc)
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("%s: %d module(s)\n", path, len(registry.Modules()))
	for _, m := range registry.Modules() {
		fmt.Printf("  %s -> %s\n", m.Name, m.Endpoint.URL())
	}

	allowed := registry.AllowedTypes()
	names := make([]string, 0, len(allowed))
	for _, t := range allowed {
		names = append(names, string(t))
	}
	sort.Strings(names)
	fmt.Printf("  allowed updates: %v\n", names)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "telegram-fanout-check: "+format+"\n", args...)
	os.Exit(1)
}
