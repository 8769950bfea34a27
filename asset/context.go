package asset

import (
	"path"

	"github.com/google/uuid"

	"github.com/veldt-engine/asset-runtime/errors"
)

// ImportContext is the transient builder used while importing one source
// file. It collects exactly one main resource plus zero or more
// sub-resources, each addressed by (external identity, sub-index), and
// the dependencies the imported record keeps alive.
type ImportContext struct {
	mgr        *Manager
	sourcePath string
	externalID uuid.UUID
	data       []byte
	main       Resource
	subs       []Resource
	deps       []Ref[Resource]
}

// Path returns the project-relative path of the file being imported.
func (c *ImportContext) Path() string { return c.sourcePath }

// ExternalID returns the identity the imported record will be filed
// under.
func (c *ImportContext) ExternalID() uuid.UUID { return c.externalID }

// ReadSource returns the raw bytes of the file being imported.
func (c *ImportContext) ReadSource() ([]byte, error) {
	if c.data != nil {
		return c.data, nil
	}
	return c.mgr.readSource(c.sourcePath)
}

// SetMain sets the record's main resource. Fails if a main resource is
// already set or if res is already registered as a sub-resource.
func (c *ImportContext) SetMain(res Resource) error {
	if c.main != nil {
		return errors.DuplicateAsset(c.sourcePath, "main resource already set")
	}
	for _, s := range c.subs {
		if s == res {
			return errors.DuplicateAsset(c.sourcePath, "resource is already a sub-asset")
		}
	}
	c.adopt(res, path.Base(c.sourcePath))
	c.main = res
	return nil
}

// AddSub appends a sub-resource, assigning the next sequential sub-index
// (main is fixed at 0, subs start at 1). The returned handle is bound to
// the pending identity and sub-index; it owns no reference yet.
func (c *ImportContext) AddSub(res Resource) (Ref[Resource], error) {
	if res == c.main {
		return Ref[Resource]{}, errors.DuplicateAsset(c.sourcePath, "resource is already the main asset")
	}
	for _, s := range c.subs {
		if s == res {
			return Ref[Resource]{}, errors.DuplicateAsset(c.sourcePath, "resource is already a sub-asset")
		}
	}
	c.subs = append(c.subs, res)
	sub := len(c.subs)
	c.adopt(res, path.Base(c.sourcePath))
	return Ref[Resource]{
		mgr:      c.mgr,
		cached:   res,
		extID:    c.externalID,
		subIndex: sub,
	}, nil
}

// AddDependency records a handle kept alive for the lifetime of the
// imported record, e.g. a model referencing shared textures. The context
// clones the handle; dependencies are released when the record is torn
// down.
func (c *ImportContext) AddDependency(ref Ref[Resource]) {
	c.deps = append(c.deps, ref.Clone())
}

// LoadDependency imports another external asset this import needs,
// records it as a dependency, and returns a non-owning handle to it.
func (c *ImportContext) LoadDependency(p string) (Ref[Resource], error) {
	res, err := Load[Resource](c.mgr, p)
	if err != nil {
		return Ref[Resource]{}, err
	}
	id, sub, _ := res.ExternalID()
	owned := Ref[Resource]{mgr: c.mgr, cached: res, extID: id, subIndex: sub, acquired: true}
	c.deps = append(c.deps, owned)
	return Ref[Resource]{mgr: c.mgr, cached: res, extID: id, subIndex: sub}, nil
}

// adopt registers res with the manager if the importer has not done so
// already, defaulting the debug name to the source file name.
func (c *ImportContext) adopt(res Resource, defaultName string) {
	b := res.base()
	if b.id == 0 {
		name := b.name
		if name == "" {
			name = defaultName
		}
		c.mgr.Register(res, name)
	}
}
