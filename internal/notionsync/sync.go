package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jomei/notionapi"

	"github.com/dkrasnov/pennyworth/internal/logger"
)

// SyncResult summarizes what one sync pass did.
type SyncResult struct {
	Created int
	Deleted int
	Skipped int
}

// SyncTransactions exports a user's transactions in [from, to] to a Notion
// database. The Transaction ID title is used for idempotency: pages already
// present are skipped, and pages whose ID is no longer in the active set are
// archived. With dryRun set, the sync only logs what it would do.
func SyncTransactions(ctx context.Context, source TransactionSource, notionClient NotionService, notionDBID string, userID uuid.UUID, from, to time.Time, dryRun bool) (*SyncResult, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", userID.String()).
		Time("from", from).
		Time("to", to).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	transactions, err := source.ListForUserInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	validIDs := make(map[string]bool, len(transactions))
	for _, tx := range transactions {
		validIDs[tx.ID.String()] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().
		Int("transaction_count", len(transactions)).
		Int("notion_page_count", len(pages)).
		Msg("Loaded sync inputs")

	existingIDs := make(map[string]bool, len(pages))
	result := &SyncResult{}

	// Archive pages whose transaction is gone from the active set, and pages
	// with no recognizable title.
	for _, page := range pages {
		txID := extractTransactionID(page)
		if txID != "" && validIDs[txID] {
			existingIDs[txID] = true
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			result.Deleted++
			continue
		}

		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		result.Deleted++
	}

	for _, tx := range transactions {
		if existingIDs[tx.ID.String()] {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", tx.ID.String()).
				Msg("[DRY RUN] Would create Notion page")
			result.Created++
			continue
		}

		props := TransactionToNotionProperties(tx)
		if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", tx.ID.String()).
				Msg("Failed to create Notion page")
			continue
		}
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Msg("Transaction sync finished")

	return result, nil
}

// queryAllNotionPages pages through the full database contents.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, notionDBID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    100,
		}

		resp, err := notionClient.QueryDatabase(ctx, notionDBID, req)
		if err != nil {
			return nil, err
		}

		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// extractTransactionID pulls the transaction UUID out of a page's title
// property. Returns "" when the page has no usable title.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties["Transaction ID"]
	if !ok {
		return ""
	}

	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}

	id := title.Title[0].PlainText
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
