package coordinator

import (
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/dingodb/dingokv/meta"
	"github.com/dingodb/dingokv/status"
)

// ValidateSchema reports whether the schema exists.
func (c *Control) ValidateSchema(schemaID uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.schemaMap[schemaID]
	return ok
}

// CreateSchema creates a schema under the root and returns its id.
// Schema names are unique across the cluster.
func (c *Control) CreateSchema(parentID uint64, name string) (uint64, error) {
	if parentID != RootSchemaID {
		return 0, status.New(status.IllegalParameters,
			"schemas can only be created under the root, got parent %d", parentID).Err()
	}
	if name == "" {
		return 0, status.New(status.IllegalParameters, "schema name must not be empty").Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	inc := new(MetaIncrement)
	newID := c.getNextID(IDNextSchema, inc)
	if !c.stagingSchemaNames.PutIfAbsent(name, newID) {
		return 0, status.New(status.SchemaExists, "schema %q already exists", name).Err()
	}

	c.getNextID(EpochSchema, inc)
	inc.Schemas = append(inc.Schemas, SchemaIncrement{
		Op:     OpCreate,
		Schema: meta.Schema{ID: newID, Name: name, ParentID: RootSchemaID},
	})
	if err := c.submitMetaIncrement(inc); err != nil {
		c.stagingSchemaNames.Erase(name)
		return 0, err
	}
	log.Info("schema created", zap.Uint64("schemaID", newID), zap.String("name", name))
	return newID, nil
}

// DropSchema removes an empty, non-reserved schema.
func (c *Control) DropSchema(parentID, schemaID uint64) error {
	if parentID != RootSchemaID {
		return status.New(status.IllegalParameters,
			"schemas live under the root, got parent %d", parentID).Err()
	}
	if schemaID <= ReservedSchemaIDMax {
		return status.New(status.IllegalParameters,
			"schema %d is reserved and cannot be dropped", schemaID).Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}
	if len(schema.TableIDs) > 0 || len(schema.IndexIDs) > 0 {
		return status.New(status.SchemaNotEmpty,
			"schema %d holds %d tables and %d indexes", schemaID,
			len(schema.TableIDs), len(schema.IndexIDs)).Err()
	}

	inc := new(MetaIncrement)
	c.getNextID(EpochSchema, inc)
	inc.Schemas = append(inc.Schemas, SchemaIncrement{Op: OpDelete, Schema: *schema})
	if err := c.submitMetaIncrement(inc); err != nil {
		return err
	}
	c.stagingSchemaNames.Erase(schema.Name)
	log.Info("schema dropped", zap.Uint64("schemaID", schemaID), zap.String("name", schema.Name))
	return nil
}

// GetSchema returns a copy of the schema.
func (c *Control) GetSchema(schemaID uint64) (*meta.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	schema, ok := c.schemaMap[schemaID]
	if !ok {
		return nil, status.New(status.SchemaNotFound, "schema %d not found", schemaID).Err()
	}
	out := *schema
	out.TableIDs = append([]uint64(nil), schema.TableIDs...)
	out.IndexIDs = append([]uint64(nil), schema.IndexIDs...)
	return &out, nil
}

// GetSchemas lists the schemas under the given parent, sorted by id.
func (c *Control) GetSchemas(parentID uint64) ([]*meta.Schema, error) {
	if parentID != RootSchemaID {
		return nil, status.New(status.IllegalParameters,
			"only the root schema has sub-schemas, got %d", parentID).Err()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var schemas []*meta.Schema
	for _, schema := range c.schemaMap {
		if schema.ID == RootSchemaID {
			continue
		}
		out := *schema
		out.TableIDs = append([]uint64(nil), schema.TableIDs...)
		out.IndexIDs = append([]uint64(nil), schema.IndexIDs...)
		schemas = append(schemas, &out)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].ID < schemas[j].ID })
	return schemas, nil
}

// GetSchemaByName resolves a schema through the authoritative name map.
func (c *Control) GetSchemaByName(name string) (*meta.Schema, error) {
	c.mu.RLock()
	id, ok := c.schemaNameMap[name]
	c.mu.RUnlock()
	if !ok {
		return nil, status.New(status.SchemaNotFound, "schema %q not found", name).Err()
	}
	return c.GetSchema(id)
}
