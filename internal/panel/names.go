package panel

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"recipeshare/internal/model"
)

// missingAuthors returns the distinct author ids of records that are not in
// the name cache yet.
func (p *Panel) missingAuthors(records []model.Comment) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool)
	var ids []string
	for _, c := range records {
		if c.AuthorID == "" || seen[c.AuthorID] {
			continue
		}
		seen[c.AuthorID] = true
		if _, ok := p.names[c.AuthorID]; !ok {
			ids = append(ids, c.AuthorID)
		}
	}
	return ids
}

// resolveNames looks up display names in parallel. Concurrent batches share
// in-flight lookups, so an id is fetched once even when two batches race.
// Missing names become the anonymous placeholder; failed lookups are left out
// and retried by the next batch that needs them.
func (p *Panel) resolveNames(ctx context.Context, ids []string) map[string]string {
	if len(ids) == 0 {
		return nil
	}

	var mu sync.Mutex
	names := make(map[string]string, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupParallelism)
	for _, id := range ids {
		g.Go(func() error {
			v, err, _ := p.lookups.Do(id, func() (any, error) {
				name, err := p.profiles.DisplayName(gctx, id)
				if err != nil {
					return "", err
				}
				if name == "" {
					name = p.anonymous
				}
				return name, nil
			})
			if err != nil {
				log.Printf("[Panel] DisplayName FAILED: user=%s err=%v", id, err)
				return nil
			}
			mu.Lock()
			names[id] = v.(string)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return names
}

// mergeNamesLocked adds names to the append-only cache. Ids already cached
// keep their first value.
func (p *Panel) mergeNamesLocked(names map[string]string) {
	if p.names == nil {
		return
	}
	for id, name := range names {
		if _, ok := p.names[id]; !ok {
			p.names[id] = name
		}
	}
}

// fetchReplyCounts counts the replies of each comment in parallel. Failed
// counts are logged and left out.
func (p *Panel) fetchReplyCounts(ctx context.Context, itemID string, commentIDs []string) map[string]int {
	if len(commentIDs) == 0 {
		return nil
	}

	var mu sync.Mutex
	counts := make(map[string]int, len(commentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupParallelism)
	for _, id := range commentIDs {
		g.Go(func() error {
			n, err := p.comments.CountReplies(gctx, itemID, id)
			if err != nil {
				log.Printf("[Panel] CountReplies FAILED: item=%s comment=%s err=%v", itemID, id, err)
				return nil
			}
			mu.Lock()
			counts[id] = n
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return counts
}
