package placement

import "github.com/xraph/placement/id"

// ID is the primary identifier type for all placement entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
