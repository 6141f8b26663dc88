package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/metabase-mcp/internal/metabase"
)

// cardPagination is the pagination block of list_cards_paginated. The card
// endpoint has no native pagination, so the window is cut client-side.
type cardPagination struct {
	Limit          int  `json:"limit"`
	Offset         int  `json:"offset"`
	Returned       int  `json:"returned"`
	TotalAvailable int  `json:"total_available"`
	HasMore        bool `json:"has_more"`
}

type paginatedCards struct {
	Cards      []json.RawMessage `json:"cards"`
	Pagination cardPagination    `json:"pagination"`
	Filter     string            `json:"filter"`
}

// paginateCards slices one window out of the full card page.
func paginateCards(page *metabase.Page, limit, offset int, filterType string) paginatedCards {
	window := page.Slice(limit, offset)
	cards := window.Items
	if cards == nil {
		cards = []json.RawMessage{}
	}
	return paginatedCards{
		Cards: cards,
		Pagination: cardPagination{
			Limit:          window.Limit,
			Offset:         window.Offset,
			Returned:       len(window.Items),
			TotalAvailable: page.Total,
			HasMore:        window.HasMore(),
		},
		Filter: filterType,
	}
}

type collectionCardList struct {
	Cards        []json.RawMessage `json:"cards"`
	CollectionID int               `json:"collection_id"`
	Count        int               `json:"count"`
	Message      string            `json:"message"`
}

func collectionCards(cards []json.RawMessage, collectionID int) collectionCardList {
	if cards == nil {
		cards = []json.RawMessage{}
	}
	return collectionCardList{
		Cards:        cards,
		CollectionID: collectionID,
		Count:        len(cards),
		Message:      fmt.Sprintf("Found %d cards in collection %d", len(cards), collectionID),
	}
}

// injectSearchInfo adds the search_info block to a native search response.
// A bare-list response is wrapped so the block has somewhere to live.
func injectSearchInfo(body json.RawMessage, query string, limit int, models []string) (interface{}, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"data":        items,
			"search_info": searchInfo(query, limit, models, len(items)),
		}, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	total := 0
	if data, ok := result["data"].([]interface{}); ok {
		total = len(data)
	}
	result["search_info"] = searchInfo(query, limit, models, total)
	return result, nil
}

func searchInfo(query string, limit int, models []string, totalResults int) map[string]interface{} {
	return map[string]interface{}{
		"query":         query,
		"limit":         limit,
		"models":        models,
		"total_results": totalResults,
	}
}

// formatTablesMarkdown renders the table listing of one database as a
// markdown table sorted by display name. Pipe characters in names and
// descriptions are escaped so cell content cannot break the table layout.
func formatTablesMarkdown(databaseID int, tables []metabase.Table) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Tables in Database %d\n\n", databaseID))
	sb.WriteString(fmt.Sprintf("**Total Tables:** %d\n\n", len(tables)))

	if len(tables) == 0 {
		sb.WriteString("*No tables found in this database.*\n")
		return sb.String()
	}

	sorted := make([]metabase.Table, len(tables))
	copy(sorted, tables)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayName < sorted[j].DisplayName
	})

	sb.WriteString("| Table ID | Display Name | Description | Entity Type |\n")
	sb.WriteString("|----------|--------------|-------------|--------------|\n")

	for _, t := range sorted {
		description := "No description"
		if t.Description != nil && *t.Description != "" {
			description = *t.Description
		}
		entityType := "N/A"
		if t.EntityType != nil && *t.EntityType != "" {
			entityType = *t.EntityType
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			t.ID, escapePipes(t.DisplayName), escapePipes(description), entityType))
	}

	return sb.String()
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// truncateTableFields caps the fields list of a table metadata object and
// marks the result as truncated. Responses without an oversized fields
// list pass through untouched.
func truncateTableFields(body json.RawMessage, limit int) interface{} {
	var meta map[string]interface{}
	if err := json.Unmarshal(body, &meta); err != nil {
		return body
	}
	fields, ok := meta["fields"].([]interface{})
	if !ok || limit <= 0 || len(fields) <= limit {
		return meta
	}
	meta["fields"] = fields[:limit]
	meta["_truncated"] = true
	meta["_total_fields"] = len(fields)
	meta["_limit_applied"] = limit
	return meta
}
