package ingest

import (
	"context"
	"fmt"

	"github.com/justmedia/kodisync/internal/catalog"
)

// MatchKind says how an incoming record was resolved to a stored media item.
type MatchKind int

const (
	// MatchNone means no stored item corresponds to the record.
	MatchNone MatchKind = iota
	// MatchExact means a stored item holds exactly the same identifier
	// combination, NULLs included.
	MatchExact
	// MatchSubset means a stored item's identifiers are a strict subset of the
	// record's, so the record widens the item's identity.
	MatchSubset
)

// Match is the resolver's verdict for one record.
type Match struct {
	Kind MatchKind
	Item *catalog.MediaItem
}

// ResolveIdentity finds the stored media item an incoming identifier set
// belongs to. Exact matches are tried first; failing that, a subset match is
// selected among candidates that share at least one identifier without
// conflicts.
//
// Subset candidates are ranked: one holding a kinopoisk or imdb id ranks
// highest, one missing both while the record supplies them ranks below
// eligibility, anything else ranks neutral. The first candidate with the
// strictly highest rank wins.
func ResolveIdentity(ctx context.Context, q *catalog.Queries, ids catalog.ExternalIDs) (Match, error) {
	item, err := q.FindMediaItemByIDs(ctx, ids)
	if err != nil {
		return Match{}, fmt.Errorf("exact match lookup: %w", err)
	}
	if item != nil {
		return Match{Kind: MatchExact, Item: item}, nil
	}

	candidates, err := q.FindSubsetCandidates(ctx, ids)
	if err != nil {
		return Match{}, fmt.Errorf("subset candidate lookup: %w", err)
	}

	incoming := ids.NonEmpty()
	var best *catalog.MediaItem
	bestPriority := -1

	for _, cand := range candidates {
		candIDs := cand.IDs.NonEmpty()
		if len(candIDs) == 0 {
			continue
		}

		// The SQL filter guarantees no conflicting values, but a candidate
		// loaded mid-update could still disagree. Recheck before trusting it.
		subset := true
		for field, value := range candIDs {
			if incoming[field] != value {
				subset = false
				break
			}
		}
		if !subset {
			continue
		}

		// The record must bring at least one identifier the candidate lacks,
		// otherwise it would have been an exact match.
		introducesNew := false
		for field := range incoming {
			if _, ok := candIDs[field]; !ok {
				introducesNew = true
				break
			}
		}
		if !introducesNew {
			continue
		}

		priority := 0
		if cand.IDs.HasPriorityID() {
			priority = 1
		} else if ids.HasPriorityID() {
			priority = -1
		}

		if priority > bestPriority {
			bestPriority = priority
			best = cand
		}
	}

	if best == nil {
		return Match{Kind: MatchNone}, nil
	}
	return Match{Kind: MatchSubset, Item: best}, nil
}
