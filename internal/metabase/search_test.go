package metabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFindCandidateCollections_RanksNameAboveDescription(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/collection" {
			t.Errorf("Expected /api/collection, got %s", r.URL.Path)
		}
		io.WriteString(w, `[
			{"id":1,"name":"Operations","description":"Revenue dashboards live here"},
			{"id":2,"name":"Revenue","description":"Core revenue reporting"},
			{"id":3,"name":"Revenue Archive","description":null},
			{"id":4,"name":"People","description":"HR reports"}
		]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.FindCandidateCollections(context.Background(), "revenue", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Collections) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(result.Collections))
	}
	// Name+description match first, then name-only matches in name order,
	// then the description-only match.
	expected := []string{"Revenue", "Revenue Archive", "Operations"}
	for i, name := range expected {
		if result.Collections[i].CollectionName != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, result.Collections[i].CollectionName)
		}
	}

	if result.Results.TotalCollectionsSearched != 4 {
		t.Errorf("Expected 4 collections searched, got %d", result.Results.TotalCollectionsSearched)
	}
	if result.Results.MatchedCollections != 3 {
		t.Errorf("Expected 3 matched, got %d", result.Results.MatchedCollections)
	}
	if result.Results.ReturnedCollections != 3 {
		t.Errorf("Expected 3 returned, got %d", result.Results.ReturnedCollections)
	}
	if result.Note != "Collections matching query in name or description. Use search_cards_in_collections next." {
		t.Errorf("Unexpected note: %s", result.Note)
	}
}

func TestFindCandidateCollections_TieBreakByName(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":1,"name":"Zeta Revenue","description":null},
			{"id":2,"name":"Alpha Revenue","description":null}
		]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.FindCandidateCollections(context.Background(), "revenue", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Collections) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(result.Collections))
	}
	if result.Collections[0].CollectionName != "Alpha Revenue" {
		t.Errorf("Expected Alpha Revenue first, got %s", result.Collections[0].CollectionName)
	}
}

func TestFindCandidateCollections_LimitApplied(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":1,"name":"Revenue A"},
			{"id":2,"name":"Revenue B"},
			{"id":3,"name":"Revenue C"}
		]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.FindCandidateCollections(context.Background(), "revenue", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Collections) != 2 {
		t.Errorf("Expected 2 returned, got %d", len(result.Collections))
	}
	if result.Results.MatchedCollections != 3 {
		t.Errorf("Expected 3 matched, got %d", result.Results.MatchedCollections)
	}
	if result.Results.ReturnedCollections != 2 {
		t.Errorf("Expected 2 returned in stats, got %d", result.Results.ReturnedCollections)
	}
}

func TestFindCandidateCollections_SkipsNullEntries(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[null,{"id":"root","name":"Our analytics","description":"Everything"}]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.FindCandidateCollections(context.Background(), "analytics", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Collections) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Collections))
	}
	if string(result.Collections[0].CollectionID) != `"root"` {
		t.Errorf("Expected root id preserved as string, got %s", string(result.Collections[0].CollectionID))
	}
	if result.Results.TotalCollectionsSearched != 2 {
		t.Errorf("Expected 2 searched including null entry, got %d", result.Results.TotalCollectionsSearched)
	}
}

func TestFindCandidateCollections_NegativeLimitSkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	_, err := client.FindCandidateCollections(context.Background(), "revenue", -1)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("Expected zero network calls, got %d", n)
	}
}

func TestSearchCards_EmptyCollectionIDsSkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.SearchCardsInCollections(context.Background(), "revenue", nil, 10, 0)
	if err != nil {
		t.Fatalf("Expected empty result, got error: %v", err)
	}

	if result.Pagination.TotalFound != 0 {
		t.Errorf("Expected total_found 0, got %d", result.Pagination.TotalFound)
	}
	if len(result.Cards) != 0 {
		t.Errorf("Expected no cards, got %d", len(result.Cards))
	}
	if result.Pagination.HasMore {
		t.Error("Expected has_more false")
	}
	if result.Note != "Searched 0 collections for 'revenue'. Found 0 matching cards." {
		t.Errorf("Unexpected note: %s", result.Note)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("Expected zero network calls for empty collection list, got %d", n)
	}
}

func TestSearchCards_ConcatenatesInSuppliedOrder(t *testing.T) {
	var requests atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, `[
			{"id":10,"name":"Revenue weekly","collection_id":1},
			{"id":20,"name":"Revenue monthly","collection_id":2},
			{"id":11,"name":"Revenue yearly","collection_id":1},
			{"id":30,"name":"Churn","collection_id":1}
		]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.SearchCardsInCollections(context.Background(), "revenue", []int{2, 1}, 10, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if n := requests.Load(); n != 2 {
		t.Errorf("Expected one request per collection, got %d", n)
	}

	expectedIDs := []int{20, 10, 11}
	if len(result.Cards) != len(expectedIDs) {
		t.Fatalf("Expected %d cards, got %d", len(expectedIDs), len(result.Cards))
	}
	for i, id := range expectedIDs {
		if result.Cards[i].ID != id {
			t.Errorf("Position %d: expected card %d, got %d", i, id, result.Cards[i].ID)
		}
	}
	if result.Note != "Searched 2 collections for 'revenue'. Found 3 matching cards." {
		t.Errorf("Unexpected note: %s", result.Note)
	}
}

func TestSearchCards_MatchesDescription(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":1,"name":"Weekly numbers","description":"Tracks revenue by week","collection_id":5},
			{"id":2,"name":"Weekly signups","description":null,"collection_id":5}
		]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	result, err := client.SearchCardsInCollections(context.Background(), "REVENUE", []int{5}, 10, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Cards) != 1 {
		t.Fatalf("Expected 1 match via description, got %d", len(result.Cards))
	}
	if result.Cards[0].ID != 1 {
		t.Errorf("Expected card 1, got %d", result.Cards[0].ID)
	}
}

func TestSearchCards_PaginationWindow(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":1,"name":"revenue 1","collection_id":5},
			{"id":2,"name":"revenue 2","collection_id":5},
			{"id":3,"name":"revenue 3","collection_id":5},
			{"id":4,"name":"revenue 4","collection_id":5},
			{"id":5,"name":"revenue 5","collection_id":5}
		]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)

	result, err := client.SearchCardsInCollections(context.Background(), "revenue", []int{5}, 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Pagination.Returned != 2 {
		t.Errorf("Expected 2 returned, got %d", result.Pagination.Returned)
	}
	if result.Pagination.TotalFound != 5 {
		t.Errorf("Expected total_found 5, got %d", result.Pagination.TotalFound)
	}
	if !result.Pagination.HasMore {
		t.Error("Expected has_more true at offset 2 of 5")
	}
	if result.Cards[0].ID != 3 || result.Cards[1].ID != 4 {
		t.Errorf("Expected cards 3,4 in window, got %d,%d", result.Cards[0].ID, result.Cards[1].ID)
	}

	last, err := client.SearchCardsInCollections(context.Background(), "revenue", []int{5}, 2, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if last.Pagination.Returned != 1 {
		t.Errorf("Expected 1 returned on last page, got %d", last.Pagination.Returned)
	}
	if last.Pagination.HasMore {
		t.Error("Expected has_more false on last page")
	}
	if last.Pagination.Offset+last.Pagination.Returned > last.Pagination.TotalFound {
		t.Errorf("Pagination inconsistent: offset %d + returned %d > total %d",
			last.Pagination.Offset, last.Pagination.Returned, last.Pagination.TotalFound)
	}

	past, err := client.SearchCardsInCollections(context.Background(), "revenue", []int{5}, 2, 50)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if past.Pagination.Returned != 0 {
		t.Errorf("Expected 0 returned past the end, got %d", past.Pagination.Returned)
	}
	if past.Pagination.Offset+past.Pagination.Returned > past.Pagination.TotalFound {
		t.Errorf("Pagination inconsistent past the end: offset %d + returned %d > total %d",
			past.Pagination.Offset, past.Pagination.Returned, past.Pagination.TotalFound)
	}
}

func TestSearchCards_FetchFailurePropagates(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"boom"}`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)
	_, err := client.SearchCardsInCollections(context.Background(), "revenue", []int{1, 2, 3}, 10, 0)
	if err == nil {
		t.Fatal("Expected error when a collection fetch fails")
	}

	var apiErr *RemoteAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected RemoteAPIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500 preserved, got %d", apiErr.StatusCode)
	}
}

func TestSearchCards_NegativeWindowSkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, `[]`)
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)

	var vErr *ValidationError
	if _, err := client.SearchCardsInCollections(context.Background(), "x", []int{1}, -1, 0); !errors.As(err, &vErr) {
		t.Errorf("Expected ValidationError for negative limit, got %v", err)
	}
	if _, err := client.SearchCardsInCollections(context.Background(), "x", []int{1}, 10, -1); !errors.As(err, &vErr) {
		t.Errorf("Expected ValidationError for negative offset, got %v", err)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("Expected zero network calls, got %d", n)
	}
}
