package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/veldt-engine/asset-runtime/asset"
	"github.com/veldt-engine/asset-runtime/cache"
	"github.com/veldt-engine/asset-runtime/importers/model"
	"github.com/veldt-engine/asset-runtime/importers/texture"
)

func main() {
	var (
		dir         = flag.String("dir", ".", "Asset root directory")
		load        = flag.String("load", "", "Assets to import (comma-separated paths)")
		list        = flag.Bool("list", false, "List the imported records and exit")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *load == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: assetview -dir <root> -load <a.png,b.obj> [-list]")
		fmt.Fprintln(os.Stderr, "       assetview -dir <root> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*dir, splitPaths(*load), *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*dir, splitPaths(*load), *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitPaths(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newManager(dir string, verbose bool) (*asset.Manager, error) {
	log := zap.NewNop()
	if verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
	}

	content, err := cache.NewContent(256, cache.Dir(dir))
	if err != nil {
		return nil, fmt.Errorf("content cache: %w", err)
	}

	m := asset.NewManager(
		asset.WithLogger(log),
		asset.WithSourceReader(content),
		asset.WithLeakCheck(verbose),
	)
	m.Importers().Register(texture.New(), ".png", ".jpg", ".jpeg")
	m.Importers().Register(model.New(), ".obj")
	return m, nil
}

func run(dir string, paths []string, listOnly, verbose bool) error {
	m, err := newManager(dir, verbose)
	if err != nil {
		return err
	}
	defer m.Close()

	for _, p := range paths {
		rec, err := m.Import(p)
		if err != nil {
			return fmt.Errorf("import %s: %w", p, err)
		}
		fmt.Printf("Imported: %s\n", p)
		fmt.Printf("  ID: %s\n", rec.ExternalID)
		fmt.Printf("  Main: %s (%T)\n", rec.Main().Name(), rec.Main())
		for i, sub := range rec.Subs() {
			fmt.Printf("  Sub %d: %s (%T)\n", i+1, sub.Name(), sub)
		}
	}

	if listOnly {
		fmt.Printf("\nRecords: %d, live resources: %d\n", len(m.Records()), m.LiveResources())
		for _, rec := range m.Records() {
			fmt.Printf("  %-30s refs=%d subs=%d  %s\n",
				rec.SourcePath, rec.RefCount(), len(rec.Subs()), rec.ExternalID)
		}
	}
	return nil
}
