package remote

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/pos-sync/internal/model"
)

// collections maps logical entity types to remote collection names. Unknown
// types fall back to the lowercase type name + "s".
var collections = map[string]string{
	model.EntityProduct:         "products",
	model.EntityTransaction:     "transactions",
	model.EntityTransactionItem: "transaction_items",
}

// CollectionFor resolves the remote collection for an entity type.
func CollectionFor(entityType string) string {
	if c, ok := collections[entityType]; ok {
		return c
	}

	return strings.ToLower(entityType) + "s"
}

// ValidateCollections sanity-checks the table at startup.
func ValidateCollections() error {
	seen := make(map[string]string, len(collections))
	for typ, col := range collections {
		if strings.TrimSpace(typ) == "" || strings.TrimSpace(col) == "" {
			return fmt.Errorf("collection table: empty entry for %q -> %q", typ, col)
		}
		if prev, dup := seen[col]; dup {
			return fmt.Errorf("collection table: %q and %q both map to %q", prev, typ, col)
		}
		seen[col] = typ
	}

	return nil
}
