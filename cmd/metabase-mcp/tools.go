package main

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/metabase-mcp/internal/common"
	"github.com/bobmcallan/metabase-mcp/internal/metabase"
)

// registerTools registers all MCP tools on the server, wiring each to a
// handler that calls the Metabase REST API via the client.
func registerTools(s *server.MCPServer, client *metabase.Client, logger *common.Logger) {
	s.AddTool(createFindCandidateCollectionsTool(), handleFindCandidateCollections(client, logger))
	s.AddTool(createSearchCardsInCollectionsTool(), handleSearchCardsInCollections(client, logger))
	s.AddTool(createSearchMetabaseTool(), handleSearchMetabase(client, logger))
	s.AddTool(createListDatabasesTool(), handleListDatabases(client, logger))
	s.AddTool(createListCardsTool(), handleListCards(client, logger))
	s.AddTool(createListCardsPaginatedTool(), handleListCardsPaginated(client, logger))
	s.AddTool(createListCardsByCollectionTool(), handleListCardsByCollection(client, logger))
	s.AddTool(createExecuteCardTool(), handleExecuteCard(client, logger))
	s.AddTool(createExecuteQueryTool(), handleExecuteQuery(client, logger))
	s.AddTool(createCreateCardTool(), handleCreateCard(client, logger))
	s.AddTool(createListCollectionsTool(), handleListCollections(client, logger))
	s.AddTool(createCreateCollectionTool(), handleCreateCollection(client, logger))
	s.AddTool(createListTablesTool(), handleListTables(client, logger))
	s.AddTool(createGetTableFieldsTool(), handleGetTableFields(client, logger))
	s.AddTool(createGetServerVersionTool(), handleGetServerVersion())
}

// --- Tool definitions ---

func createFindCandidateCollectionsTool() mcp.Tool {
	return mcp.NewTool("find_candidate_collections",
		mcp.WithDescription("Find collections whose names or descriptions contain the query. Fast narrowing step; always call this before search_cards_in_collections."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for in collection names and descriptions")),
		mcp.WithNumber("limit_collections", mcp.Description("Max collections to return (default: 10)")),
	)
}

func createSearchCardsInCollectionsTool() mcp.Tool {
	return mcp.NewTool("search_cards_in_collections",
		mcp.WithDescription("Search for cards within specific collections by name and description. Use find_candidate_collections first to narrow the collection list."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for in card names and descriptions")),
		mcp.WithArray("collection_ids", mcp.Required(), mcp.Description("Collection IDs to search within")),
		mcp.WithNumber("limit", mcp.Description("Max cards to return per page (default: 25)")),
		mcp.WithNumber("offset", mcp.Description("Number of matches to skip (default: 0)")),
	)
}

func createSearchMetabaseTool() mcp.Tool {
	return mcp.NewTool("search_metabase",
		mcp.WithDescription("Search for items in Metabase using the native search API. Imprecise over large card sets; prefer the two-stage collection search for cards."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search term to find in item names and descriptions")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results to return (default: 20)")),
		mcp.WithArray("models", mcp.WithStringItems(), mcp.Description("Item types to filter by (e.g., ['card', 'dashboard', 'collection'])")),
		mcp.WithBoolean("archived", mcp.Description("Include archived items in results (default: false)")),
		mcp.WithBoolean("search_native_query", mcp.Description("Search within native SQL query text (default: false)")),
	)
}

func createListDatabasesTool() mcp.Tool {
	return mcp.NewTool("list_databases",
		mcp.WithDescription("List all databases in Metabase"),
	)
}

func createListCardsTool() mcp.Tool {
	return mcp.NewTool("list_cards",
		mcp.WithDescription("List all questions/cards in Metabase (WARNING: large dataset, may timeout; prefer list_cards_paginated)"),
	)
}

func createListCardsPaginatedTool() mcp.Tool {
	return mcp.NewTool("list_cards_paginated",
		mcp.WithDescription("List cards with pagination and filtering to avoid timeout issues"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of cards to return (default: 50)")),
		mcp.WithNumber("offset", mcp.Description("Number of cards to skip (default: 0)")),
		mcp.WithString("filter_type", mcp.Description("Filter type: 'all', 'mine', 'bookmarked', 'archived' (default: 'all')")),
	)
}

func createListCardsByCollectionTool() mcp.Tool {
	return mcp.NewTool("list_cards_by_collection",
		mcp.WithDescription("List cards in a specific collection (smaller, focused dataset)"),
		mcp.WithNumber("collection_id", mcp.Required(), mcp.Description("ID of the collection to filter by")),
	)
}

func createExecuteCardTool() mcp.Tool {
	return mcp.NewTool("execute_card",
		mcp.WithDescription("Execute a Metabase question/card and get results"),
		mcp.WithNumber("card_id", mcp.Required(), mcp.Description("ID of the card to execute")),
		mcp.WithObject("parameters", mcp.Description("Optional parameter substitutions for the card")),
	)
}

func createExecuteQueryTool() mcp.Tool {
	return mcp.NewTool("execute_query",
		mcp.WithDescription("Execute a SQL query against a Metabase database"),
		mcp.WithNumber("database_id", mcp.Required(), mcp.Description("ID of the database to query")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Native SQL to execute")),
		mcp.WithArray("native_parameters", mcp.Description("Optional template parameters for the query")),
	)
}

func createCreateCardTool() mcp.Tool {
	return mcp.NewTool("create_card",
		mcp.WithDescription("Create a new question/card in Metabase from a native SQL query"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name for the new card")),
		mcp.WithNumber("database_id", mcp.Required(), mcp.Description("ID of the database the query runs against")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Native SQL for the card")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithNumber("collection_id", mcp.Description("Optional collection to file the card under")),
		mcp.WithObject("visualization_settings", mcp.Description("Optional visualization settings object")),
	)
}

func createListCollectionsTool() mcp.Tool {
	return mcp.NewTool("list_collections",
		mcp.WithDescription("List all collections in Metabase"),
	)
}

func createCreateCollectionTool() mcp.Tool {
	return mcp.NewTool("create_collection",
		mcp.WithDescription("Create a new collection in Metabase"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name for the new collection")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("color", mcp.Description("Optional display color (hex)")),
		mcp.WithNumber("parent_id", mcp.Description("Optional parent collection ID for nesting")),
	)
}

func createListTablesTool() mcp.Tool {
	return mcp.NewTool("list_tables",
		mcp.WithDescription("List all tables in a database with formatted markdown output"),
		mcp.WithNumber("database_id", mcp.Required(), mcp.Description("ID of the database")),
	)
}

func createGetTableFieldsTool() mcp.Tool {
	return mcp.NewTool("get_table_fields",
		mcp.WithDescription("Get all fields/columns in a table"),
		mcp.WithNumber("table_id", mcp.Required(), mcp.Description("The ID of the table")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of fields to return (default: 20)")),
	)
}

func createGetServerVersionTool() mcp.Tool {
	return mcp.NewTool("get_server_version",
		mcp.WithDescription("Get the Metabase MCP server version and status. Use this to verify connectivity."),
	)
}
