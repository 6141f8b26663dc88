package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CollectionSearchStats summarizes a collection search pass.
type CollectionSearchStats struct {
	TotalCollectionsSearched int `json:"total_collections_searched"`
	MatchedCollections       int `json:"matched_collections"`
	ReturnedCollections      int `json:"returned_collections"`
}

// CollectionSearchResult is the payload of find_candidate_collections.
type CollectionSearchResult struct {
	Query       string                `json:"query"`
	Collections []CollectionMatch     `json:"collections"`
	Results     CollectionSearchStats `json:"results"`
	Note        string                `json:"note"`
}

// Pagination describes a window over matched cards.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Returned   int  `json:"returned"`
	TotalFound int  `json:"total_found"`
	HasMore    bool `json:"has_more"`
}

// CardSearchResult is the payload of search_cards_in_collections.
type CardSearchResult struct {
	Query               string     `json:"query"`
	CollectionsSearched []int      `json:"collections_searched"`
	Pagination          Pagination `json:"pagination"`
	Cards               []Card     `json:"cards"`
	Note                string     `json:"note"`
}

// FindCandidateCollections ranks collections whose name or description
// contains the query, case-insensitively. A name match outranks a
// description-only match; ties order by lowercase name so equal inputs
// always rank identically. This is the narrowing stage of the two-stage
// card search: the native search endpoint is imprecise over large card
// sets, so callers narrow to candidate collections first.
func (c *Client) FindCandidateCollections(ctx context.Context, query string, limitCollections int) (*CollectionSearchResult, error) {
	if limitCollections < 0 {
		return nil, &ValidationError{Op: "find_candidate_collections", Reason: "limit_collections must not be negative"}
	}

	body, err := c.do(ctx, "find_candidate_collections", http.MethodGet, "/collection", nil, nil)
	if err != nil {
		return nil, err
	}
	page, err := normalizePage("find_candidate_collections", body)
	if err != nil {
		return nil, err
	}

	searchTerm := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		match CollectionMatch
		score int
		name  string
	}
	matched := make([]scored, 0)
	for _, item := range page.Items {
		if isJSONNull(item) {
			continue
		}
		var col Collection
		if err := json.Unmarshal(item, &col); err != nil {
			continue
		}

		name := strings.ToLower(col.Name)
		desc := ""
		if col.Description != nil {
			desc = strings.ToLower(*col.Description)
		}

		score := 0
		if strings.Contains(name, searchTerm) {
			score += 2
		}
		if strings.Contains(desc, searchTerm) {
			score++
		}
		if score == 0 {
			continue
		}

		matched = append(matched, scored{
			match: CollectionMatch{
				CollectionID:   col.ID,
				CollectionName: col.Name,
				Description:    col.Description,
				ParentID:       col.ParentID,
				Archived:       col.Archived,
			},
			score: score,
			name:  name,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return matched[i].name < matched[j].name
	})

	limited := matched
	if limitCollections < len(matched) {
		limited = matched[:limitCollections]
	}

	collections := make([]CollectionMatch, 0, len(limited))
	for _, s := range limited {
		collections = append(collections, s.match)
	}

	return &CollectionSearchResult{
		Query:       query,
		Collections: collections,
		Results: CollectionSearchStats{
			TotalCollectionsSearched: len(page.Items),
			MatchedCollections:       len(matched),
			ReturnedCollections:      len(collections),
		},
		Note: "Collections matching query in name or description. Use search_cards_in_collections next.",
	}, nil
}

// SearchCardsInCollections fetches the card list once per collection id,
// concurrently, keeps the cards of that collection whose name or
// description contains the query, and returns the window
// [offset, offset+limit) over the matches. Matches concatenate in the
// order the collection ids were supplied. The first failed fetch cancels
// the rest and propagates.
func (c *Client) SearchCardsInCollections(ctx context.Context, query string, collectionIDs []int, limit, offset int) (*CardSearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit < 0 {
		return nil, &ValidationError{Op: "search_cards_in_collections", Reason: "limit must not be negative"}
	}
	if offset < 0 {
		return nil, &ValidationError{Op: "search_cards_in_collections", Reason: "offset must not be negative"}
	}

	searchTerm := strings.ToLower(strings.TrimSpace(query))

	// No candidate collections is an empty result, not an error, and
	// issues no network calls.
	if len(collectionIDs) == 0 {
		return &CardSearchResult{
			Query:               query,
			CollectionsSearched: []int{},
			Pagination:          Pagination{Limit: limit, Offset: offset},
			Cards:               []Card{},
			Note:                searchNote(0, query, 0),
		}, nil
	}

	perCollection := make([][]Card, len(collectionIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range collectionIDs {
		g.Go(func() error {
			matches, err := c.collectionCardMatches(gctx, searchTerm, id)
			if err != nil {
				return err
			}
			perCollection[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	allMatches := make([]Card, 0)
	for _, matches := range perCollection {
		allMatches = append(allMatches, matches...)
	}

	totalFound := len(allMatches)
	start := offset
	if start > totalFound {
		start = totalFound
	}
	end := start + limit
	if end > totalFound {
		end = totalFound
	}
	window := allMatches[start:end]

	return &CardSearchResult{
		Query:               query,
		CollectionsSearched: collectionIDs,
		Pagination: Pagination{
			Limit:      limit,
			Offset:     start,
			Returned:   len(window),
			TotalFound: totalFound,
			HasMore:    start+limit < totalFound,
		},
		Cards: window,
		Note:  searchNote(len(collectionIDs), query, totalFound),
	}, nil
}

// collectionCardMatches pulls the card list and keeps the cards of one
// collection matching the search term.
func (c *Client) collectionCardMatches(ctx context.Context, searchTerm string, collectionID int) ([]Card, error) {
	body, err := c.do(ctx, "search_cards_in_collections", http.MethodGet, "/card", nil, nil)
	if err != nil {
		return nil, err
	}
	page, err := normalizePage("search_cards_in_collections", body)
	if err != nil {
		return nil, err
	}

	var matches []Card
	for _, item := range page.Items {
		var card Card
		if err := json.Unmarshal(item, &card); err != nil {
			continue
		}
		if card.CollectionID == nil || *card.CollectionID != collectionID {
			continue
		}

		name := strings.ToLower(card.Name)
		desc := ""
		if card.Description != nil {
			desc = strings.ToLower(*card.Description)
		}
		if strings.Contains(name, searchTerm) || strings.Contains(desc, searchTerm) {
			matches = append(matches, card)
		}
	}
	return matches, nil
}

func searchNote(collections int, query string, totalFound int) string {
	return fmt.Sprintf("Searched %d collections for '%s'. Found %d matching cards.", collections, query, totalFound)
}

func isJSONNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
