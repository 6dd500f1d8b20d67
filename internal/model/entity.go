package model

import "encoding/json"

// Logical entity types transported by the sync engine. The engine never
// inspects payloads; types only select the remote collection.
const (
	EntityProduct         = "Product"
	EntityTransaction     = "Transaction"
	EntityTransactionItem = "TransactionItem"
)

// OriginLocal is the provenance marker stamped on every entity this node
// mutates before it is enqueued. Inbound notifications carrying it are this
// node's own writes echoing back.
const OriginLocal = "local"

// ChangeNotification is one inbound change from the remote realtime feed.
type ChangeNotification struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Operation  string          `json:"operation"`
	Origin     string          `json:"last_updated_by"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
