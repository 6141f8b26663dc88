package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/metabase-mcp/internal/common"
	"github.com/bobmcallan/metabase-mcp/internal/config"
	"github.com/bobmcallan/metabase-mcp/internal/metabase"
)

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// resultJSON marshals v as indented JSON and wraps it in a text result.
func resultJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Error encoding response: %v", err)), nil
	}
	return textResult(string(data)), nil
}

func getString(request mcp.CallToolRequest, key, defaultVal string) string {
	return request.GetString(key, defaultVal)
}

func getInt(request mcp.CallToolRequest, key string, defaultVal int) int {
	return request.GetInt(key, defaultVal)
}

func getBool(request mcp.CallToolRequest, key string, defaultVal bool) bool {
	return request.GetBool(key, defaultVal)
}

func getStringSlice(request mcp.CallToolRequest, key string) []string {
	return request.GetStringSlice(key, nil)
}

func requireString(request mcp.CallToolRequest, key string) (string, error) {
	return request.RequireString(key)
}

// getIntPtr returns the argument as an int pointer, nil when absent. JSON
// numbers arrive as float64.
func getIntPtr(request mcp.CallToolRequest, key string) *int {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		i := n
		return &i
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
	}
	return nil
}

// getIntSlice returns the argument as an int slice. The second return is
// false when the argument is absent or not a list of numbers; an empty
// list is present and valid.
func getIntSlice(request mcp.CallToolRequest, key string) ([]int, bool) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return nil, false
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		default:
			return nil, false
		}
	}
	return out, true
}

func getObject(request mcp.CallToolRequest, key string) map[string]interface{} {
	if v, ok := request.GetArguments()[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func getArray(request mcp.CallToolRequest, key string) []interface{} {
	if v, ok := request.GetArguments()[key].([]interface{}); ok {
		return v
	}
	return nil
}

// toolContext stamps a correlation id on the invocation context and returns
// a logger scoped to it. Calls arriving over HTTP inherit the id set by the
// correlation middleware; stdio calls get a fresh one.
func toolContext(ctx context.Context, logger *common.Logger) (context.Context, *common.Logger) {
	ctx, id := common.EnsureCorrelationID(ctx)
	return ctx, logger.WithCorrelationId(id)
}

// --- Handlers ---
//
// Failures are logged here, once, with the tool name; the client layer
// only emits Debug traces. Validation failures return an error result
// without touching the network.

func handleFindCandidateCollections(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		query, err := requireString(request, "query")
		if err != nil || strings.TrimSpace(query) == "" {
			log.Warn().Str("tool", "find_candidate_collections").Msg("query parameter missing")
			return errorResult("Error: query parameter is required"), nil
		}
		limitCollections := getInt(request, "limit_collections", 10)

		result, err := client.FindCandidateCollections(ctx, query, limitCollections)
		if err != nil {
			log.Error().Err(err).Str("tool", "find_candidate_collections").Str("query", query).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(result)
	}
}

func handleSearchCardsInCollections(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		query, err := requireString(request, "query")
		if err != nil || strings.TrimSpace(query) == "" {
			log.Warn().Str("tool", "search_cards_in_collections").Msg("query parameter missing")
			return errorResult("Error: query parameter is required"), nil
		}
		collectionIDs, ok := getIntSlice(request, "collection_ids")
		if !ok {
			log.Warn().Str("tool", "search_cards_in_collections").Msg("collection_ids parameter missing")
			return errorResult("Error: collection_ids parameter is required (list of collection IDs)"), nil
		}
		limit := getInt(request, "limit", 25)
		offset := getInt(request, "offset", 0)

		result, err := client.SearchCardsInCollections(ctx, query, collectionIDs, limit, offset)
		if err != nil {
			log.Error().Err(err).Str("tool", "search_cards_in_collections").Str("query", query).
				Str("collection_ids", fmt.Sprintf("%v", collectionIDs)).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(result)
	}
}

func handleSearchMetabase(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		query, err := requireString(request, "query")
		if err != nil || strings.TrimSpace(query) == "" {
			log.Warn().Str("tool", "search_metabase").Msg("query parameter missing")
			return errorResult("Error: query parameter is required"), nil
		}
		limit := getInt(request, "limit", 20)
		models := getStringSlice(request, "models")

		body, err := client.Search(ctx, metabase.SearchRequest{
			Query:             query,
			Limit:             limit,
			Models:            models,
			Archived:          getBool(request, "archived", false),
			SearchNativeQuery: getBool(request, "search_native_query", false),
		})
		if err != nil {
			log.Error().Err(err).Str("tool", "search_metabase").Str("query", query).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		result, err := injectSearchInfo(body, query, limit, models)
		if err != nil {
			log.Error().Err(err).Str("tool", "search_metabase").Msg("failed to decode search response")
			return errorResult(fmt.Sprintf("Error parsing response: %v", err)), nil
		}
		return resultJSON(result)
	}
}

func handleListDatabases(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		page, err := client.ListDatabases(ctx)
		if err != nil {
			log.Error().Err(err).Str("tool", "list_databases").Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(page.Envelope())
	}
}

func handleListCards(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		page, err := client.ListCards(ctx, "")
		if err != nil {
			log.Error().Err(err).Str("tool", "list_cards").Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(page.Envelope())
	}
}

func handleListCardsPaginated(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		limit := getInt(request, "limit", 50)
		offset := getInt(request, "offset", 0)
		if limit < 0 {
			log.Warn().Str("tool", "list_cards_paginated").Int("limit", limit).Msg("negative limit")
			return errorResult("Error: limit must not be negative"), nil
		}
		if offset < 0 {
			log.Warn().Str("tool", "list_cards_paginated").Int("offset", offset).Msg("negative offset")
			return errorResult("Error: offset must not be negative"), nil
		}
		filterType := getString(request, "filter_type", "all")

		page, err := client.ListCards(ctx, filterType)
		if err != nil {
			log.Error().Err(err).Str("tool", "list_cards_paginated").Str("filter_type", filterType).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(paginateCards(page, limit, offset, filterType))
	}
}

func handleListCardsByCollection(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		collectionID := getInt(request, "collection_id", 0)
		if collectionID <= 0 {
			log.Warn().Str("tool", "list_cards_by_collection").Msg("collection_id parameter missing")
			return errorResult("Error: collection_id parameter is required"), nil
		}

		cards, err := client.CardsByCollection(ctx, collectionID)
		if err != nil {
			log.Error().Err(err).Str("tool", "list_cards_by_collection").Int("collection_id", collectionID).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(collectionCards(cards, collectionID))
	}
}

func handleExecuteCard(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		cardID := getInt(request, "card_id", 0)
		if cardID <= 0 {
			log.Warn().Str("tool", "execute_card").Msg("card_id parameter missing")
			return errorResult("Error: card_id parameter is required"), nil
		}
		parameters := getObject(request, "parameters")

		body, err := client.ExecuteCard(ctx, cardID, parameters)
		if err != nil {
			log.Error().Err(err).Str("tool", "execute_card").Int("card_id", cardID).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(body)
	}
}

func handleExecuteQuery(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		databaseID := getInt(request, "database_id", 0)
		if databaseID <= 0 {
			log.Warn().Str("tool", "execute_query").Msg("database_id parameter missing")
			return errorResult("Error: database_id parameter is required"), nil
		}
		query, err := requireString(request, "query")
		if err != nil || strings.TrimSpace(query) == "" {
			log.Warn().Str("tool", "execute_query").Msg("query parameter missing")
			return errorResult("Error: query parameter is required"), nil
		}
		nativeParameters := getArray(request, "native_parameters")

		body, err := client.ExecuteQuery(ctx, databaseID, query, nativeParameters)
		if err != nil {
			log.Error().Err(err).Str("tool", "execute_query").Int("database_id", databaseID).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(body)
	}
}

func handleCreateCard(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		name, err := requireString(request, "name")
		if err != nil || strings.TrimSpace(name) == "" {
			log.Warn().Str("tool", "create_card").Msg("name parameter missing")
			return errorResult("Error: name parameter is required"), nil
		}
		databaseID := getInt(request, "database_id", 0)
		if databaseID <= 0 {
			log.Warn().Str("tool", "create_card").Msg("database_id parameter missing")
			return errorResult("Error: database_id parameter is required"), nil
		}
		query, err := requireString(request, "query")
		if err != nil || strings.TrimSpace(query) == "" {
			log.Warn().Str("tool", "create_card").Msg("query parameter missing")
			return errorResult("Error: query parameter is required"), nil
		}

		body, err := client.CreateCard(ctx, metabase.CreateCardRequest{
			Name:                  name,
			DatabaseID:            databaseID,
			Query:                 query,
			Description:           getString(request, "description", ""),
			CollectionID:          getIntPtr(request, "collection_id"),
			VisualizationSettings: getObject(request, "visualization_settings"),
		})
		if err != nil {
			log.Error().Err(err).Str("tool", "create_card").Str("name", name).Int("database_id", databaseID).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(body)
	}
}

func handleListCollections(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		page, err := client.ListCollections(ctx)
		if err != nil {
			log.Error().Err(err).Str("tool", "list_collections").Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(page.Envelope())
	}
}

func handleCreateCollection(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		name, err := requireString(request, "name")
		if err != nil || strings.TrimSpace(name) == "" {
			log.Warn().Str("tool", "create_collection").Msg("name parameter missing")
			return errorResult("Error: name parameter is required"), nil
		}

		body, err := client.CreateCollection(ctx, metabase.CreateCollectionRequest{
			Name:        name,
			Description: getString(request, "description", ""),
			Color:       getString(request, "color", ""),
			ParentID:    getIntPtr(request, "parent_id"),
		})
		if err != nil {
			log.Error().Err(err).Str("tool", "create_collection").Str("name", name).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(body)
	}
}

func handleListTables(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		databaseID := getInt(request, "database_id", 0)
		if databaseID <= 0 {
			log.Warn().Str("tool", "list_tables").Msg("database_id parameter missing")
			return errorResult("Error: database_id parameter is required"), nil
		}

		tables, err := client.DatabaseMetadata(ctx, databaseID)
		if err != nil {
			log.Error().Err(err).Str("tool", "list_tables").Int("database_id", databaseID).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return textResult(formatTablesMarkdown(databaseID, tables)), nil
	}
}

func handleGetTableFields(client *metabase.Client, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, log := toolContext(ctx, logger)

		tableID := getInt(request, "table_id", 0)
		if tableID <= 0 {
			log.Warn().Str("tool", "get_table_fields").Msg("table_id parameter missing")
			return errorResult("Error: table_id parameter is required"), nil
		}
		limit := getInt(request, "limit", 20)

		body, err := client.TableQueryMetadata(ctx, tableID)
		if err != nil {
			log.Error().Err(err).Str("tool", "get_table_fields").Int("table_id", tableID).Msg("tool failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return resultJSON(truncateTableFields(body, limit))
	}
}

func handleGetServerVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info := config.GetVersionInfo()
		result := fmt.Sprintf("Metabase MCP Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			info.Version, info.Build, info.GitCommit)
		return textResult(result), nil
	}
}
