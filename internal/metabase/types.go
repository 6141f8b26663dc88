package metabase

import "encoding/json"

// Card carries the card fields kept by collection search.
type Card struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	CollectionID *int    `json:"collection_id"`
	UpdatedAt    string  `json:"updated_at"`
	CreatedAt    string  `json:"created_at"`
}

// Collection is a collection row from the collection listing. The root
// collection reports the string id "root", so IDs stay raw JSON.
type Collection struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	ParentID    json.RawMessage `json:"parent_id"`
	Archived    bool            `json:"archived"`
}

// CollectionMatch is one ranked entry returned by FindCandidateCollections.
type CollectionMatch struct {
	CollectionID   json.RawMessage `json:"collection_id"`
	CollectionName string          `json:"collection_name"`
	Description    *string         `json:"description"`
	ParentID       json.RawMessage `json:"parent_id"`
	Archived       bool            `json:"archived"`
}

// Table is a table descriptor from database metadata.
type Table struct {
	ID          int     `json:"id"`
	DisplayName string  `json:"display_name"`
	Description *string `json:"description"`
	EntityType  *string `json:"entity_type"`
}

// CreateCardRequest describes a new native-SQL card.
type CreateCardRequest struct {
	Name                  string
	DatabaseID            int
	Query                 string
	Description           string
	CollectionID          *int
	VisualizationSettings map[string]interface{}
}

// CreateCollectionRequest describes a new collection.
type CreateCollectionRequest struct {
	Name        string
	Description string
	Color       string
	ParentID    *int
}

// SearchRequest carries the parameters of the native search endpoint.
type SearchRequest struct {
	Query             string
	Limit             int
	Models            []string
	Archived          bool
	SearchNativeQuery bool
}
