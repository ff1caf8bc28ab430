// Command typegen writes TypeScript definitions of the wire types in pkg/ for
// the browser editor.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	tygo "github.com/gzuidhof/tygo/tygo"
)

const modulePath = "github.com/nikhildhole/mermaid-visualizer"

var wirePackages = map[string]string{
	"pkg/realtime": "realtime.ts",
	"pkg/api":      "api.ts",
}

func main() {
	root, err := findModuleRoot()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	outDir := filepath.Join(root, "web", "src", "types", "generated")
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	packages := make([]*tygo.PackageConfig, 0, len(wirePackages))
	for pkg, file := range wirePackages {
		packages = append(packages, &tygo.PackageConfig{
			Path:             modulePath + "/" + pkg,
			OutputPath:       filepath.Join(outDir, file),
			PreserveComments: "default",
		})
	}

	gen := tygo.New(&tygo.Config{
		TypeMappings: map[string]string{
			"time.Time": "string",
		},
		Packages: packages,
	})
	if err := gen.Generate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d files to %s\n", len(packages), outDir)
}

func findModuleRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("unable to resolve generator path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		return "", fmt.Errorf("module root not found: %w", err)
	}
	return root, nil
}
