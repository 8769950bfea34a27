package asset

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/veldt-engine/asset-runtime/errors"
)

// Importer turns one source file into a main resource plus optional
// sub-resources, reported through the ImportContext. Importers are
// registered explicitly during startup composition.
type Importer interface {
	Import(ctx *ImportContext) error
}

// ImporterRegistry maps file extensions to importers. Extensions are
// case-insensitive and normalized to exactly one leading dot.
type ImporterRegistry struct {
	log   *zap.Logger
	byExt map[string]Importer
}

func newImporterRegistry(log *zap.Logger) *ImporterRegistry {
	return &ImporterRegistry{
		log:   log,
		byExt: make(map[string]Importer),
	}
}

// Register binds imp to the given extensions. Exactly one importer per
// extension: registering an extension twice replaces the previous
// importer, last registered wins, with a logged warning.
func (r *ImporterRegistry) Register(imp Importer, exts ...string) {
	for _, ext := range exts {
		key, err := normalizeExt(ext)
		if err != nil {
			r.log.Warn("skipping importer registration",
				zap.String("ext", ext), zap.Error(err))
			continue
		}
		if _, exists := r.byExt[key]; exists {
			r.log.Warn("importer conflict, last registered wins",
				zap.String("ext", key))
		}
		r.byExt[key] = imp
	}
}

// Lookup resolves the importer for an extension (with or without the
// leading dot).
func (r *ImporterRegistry) Lookup(ext string) (Importer, bool) {
	key, err := normalizeExt(ext)
	if err != nil {
		return nil, false
	}
	imp, ok := r.byExt[key]
	return imp, ok
}

// Extensions returns the registered extensions, sorted.
func (r *ImporterRegistry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(ext))
	e = strings.TrimLeft(e, ".")
	if e == "" {
		return "", errors.InvalidInput(errors.PhaseImport, "empty file extension")
	}
	return "." + e, nil
}
