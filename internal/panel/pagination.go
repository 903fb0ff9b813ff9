package panel

import (
	"context"
	"fmt"
	"log"
	"time"

	"recipeshare/internal/model"
)

// LoadMore fetches the next page in the current sort order. It is a no-op
// while a page fetch is in flight or when no more pages exist. The first page
// after a reset replaces the list; later pages are appended.
func (p *Panel) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return model.ErrPanelClosed
	}
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	version := p.version
	item, sort, cursor := p.itemID, p.sort, p.cursor
	known := make(map[string]bool, len(p.replyCounts))
	for id := range p.replyCounts {
		known[id] = true
	}
	p.mu.Unlock()

	startTime := time.Now()
	page, next, more, err := p.comments.ListComments(ctx, item, sort, cursor, p.pageSize)
	if err != nil {
		p.mu.Lock()
		if version == p.version {
			p.loading = false
		}
		p.mu.Unlock()
		log.Printf("[Panel] LoadMore FAILED: item=%s sort=%s err=%v", item, sort, err)
		return fmt.Errorf("load comments: %w", err)
	}

	// Reply counts and author names are resolved before the page is committed,
	// so every row appears fully annotated.
	var countIDs []string
	for _, c := range page {
		if !known[c.ID] {
			countIDs = append(countIDs, c.ID)
		}
	}
	counts := p.fetchReplyCounts(ctx, item, countIDs)
	names := p.resolveNames(ctx, p.missingAuthors(page))

	p.mu.Lock()
	defer p.mu.Unlock()
	if version != p.version {
		log.Printf("[Panel] LoadMore discarded stale page: item=%s sort=%s count=%d", item, sort, len(page))
		return nil
	}

	// A reset empties the list, so for a first page it holds only comments
	// created locally while the page was in flight.
	p.list = appendNew(p.list, page)
	if next != nil {
		p.cursor = next
	}
	p.hasMore = more
	p.loading = false
	for id, n := range counts {
		if _, ok := p.replyCounts[id]; !ok {
			p.replyCounts[id] = n
		}
	}
	p.mergeNamesLocked(names)

	log.Printf("[Panel] LoadMore OK: item=%s sort=%s count=%d hasMore=%t duration=%v",
		item, sort, len(page), more, time.Since(startTime))
	return nil
}

// SetSort switches the sort order and loads a fresh first page. Switching to
// the current order is a no-op.
func (p *Panel) SetSort(ctx context.Context, sort model.SortMode) error {
	if _, err := model.ParseSortMode(string(sort)); err != nil || sort == "" {
		return model.ErrInvalidSort
	}

	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return model.ErrPanelClosed
	}
	if sort == p.sort {
		p.mu.Unlock()
		return nil
	}
	p.sort = sort
	p.version++
	p.list = nil
	p.cursor = nil
	p.hasMore = true
	p.loading = false
	p.mu.Unlock()

	log.Printf("[Panel] SetSort: sort=%s", sort)
	return p.LoadMore(ctx)
}

// appendNew appends the page entries not already listed. A comment created
// locally can reappear in a later page.
func appendNew(list, page []model.Comment) []model.Comment {
	seen := make(map[string]bool, len(list))
	for _, c := range list {
		seen[c.ID] = true
	}
	for _, c := range page {
		if !seen[c.ID] {
			list = append(list, c)
		}
	}
	return list
}
