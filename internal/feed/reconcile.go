package feed

import (
	"sort"

	"podcast-publisher/internal/models"
)

// Merge combines episode lists into the publish order: duplicates are
// dropped by GUID with the earliest occurrence winning, then episodes are
// sorted newest first. The sort is stable, so episodes sharing a pub date
// keep their relative input order. Merge is idempotent.
func Merge(lists ...[]models.EpisodeRecord) []models.EpisodeRecord {
	seen := make(map[string]struct{})
	var merged []models.EpisodeRecord

	for _, list := range lists {
		for _, ep := range list {
			if _, dup := seen[ep.GUID]; dup {
				continue
			}
			seen[ep.GUID] = struct{}{}
			merged = append(merged, ep)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PubDate.After(merged[j].PubDate)
	})

	return merged
}
