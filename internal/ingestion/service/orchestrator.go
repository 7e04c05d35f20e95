package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"homeledger/internal/ingestion/models"
	"homeledger/internal/ingestion/policy"
	"homeledger/internal/recurring/matcher"
	id "homeledger/pkg/domain"
	dErrors "homeledger/pkg/domain-errors"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/requestcontext"
)

// IngestBatch processes one delta batch synchronously: per item it runs raw
// deduplication, the needs-review policy, the enriched-transaction upsert and
// the recurring-match attempt, then commits everything in a single durable
// transaction. The whole batch observes one request time.
//
// Resubmitting an identical batch is a no-op apart from sighting timestamps:
// every item reports raw_duplicate and no transaction row changes.
func (s *Service) IngestBatch(ctx context.Context, input models.BatchInput) (*models.BatchSummary, error) {
	if input.AccountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	source := models.NormalizeSource(input.Source)
	cursor := models.NormalizeCursor(input.Cursor)
	now := requestcontext.Now(ctx)
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, "ingestion.IngestBatch", trace.WithAttributes(
		attribute.String("ingestion.source", source),
		attribute.String("ingestion.cursor", cursor),
		attribute.Int("ingestion.items", len(input.Items)),
	))
	defer span.End()

	householdID, err := s.directory.HouseholdForAccount(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "account is not linked to a household")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolving household for account")
	}

	state := newBatchState()
	summary := &models.BatchSummary{Items: make([]models.ItemOutcome, 0, len(input.Items))}

	for i, item := range input.Items {
		outcome, err := s.processItem(ctx, state, batchScope{
			source:      source,
			cursor:      cursor,
			accountID:   input.AccountID,
			householdID: householdID,
			now:         now,
		}, item)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "processing batch item "+itemLabel(i, item))
		}
		summary.Items = append(summary.Items, outcome)
	}

	if err := s.commit(ctx, state); err != nil {
		return nil, err
	}
	s.notifyEmbeddings(ctx, state)

	for _, out := range summary.Items {
		switch out.Disposition {
		case models.DispositionInserted:
			summary.Inserted++
		case models.DispositionUpdated:
			summary.Updated++
		case models.DispositionUnchanged:
			summary.Unchanged++
		}
		if out.RawDuplicate {
			summary.RawDuplicate++
		}
	}
	summary.RawStored = len(input.Items) - summary.RawDuplicate

	s.metrics.ObserveBatch(time.Since(started).Seconds(), len(input.Items))
	if s.logger != nil {
		s.logger.InfoContext(ctx, "ingestion batch committed",
			"source", source,
			"cursor", cursor,
			"account_id", input.AccountID,
			"items", len(input.Items),
			"raw_stored", summary.RawStored,
			"raw_duplicate", summary.RawDuplicate,
			"inserted", summary.Inserted,
			"updated", summary.Updated,
			"unchanged", summary.Unchanged,
		)
	}
	return summary, nil
}

// batchScope carries the per-batch constants down the per-item call chain.
type batchScope struct {
	source      string
	cursor      string
	accountID   id.AccountID
	householdID id.HouseholdID
	now         time.Time
}

func (s *Service) processItem(ctx context.Context, state *batchState, scope batchScope, item models.BatchItem) (models.ItemOutcome, error) {
	sourceTxID := strings.TrimSpace(item.SourceTransactionID)
	if sourceTxID == "" {
		return models.ItemOutcome{}, dErrors.New(dErrors.CodeValidation, "source transaction id is required")
	}

	key := models.RawKey{
		Source:              scope.source,
		Cursor:              scope.cursor,
		SourceTransactionID: sourceTxID,
		PayloadHash:         models.HashPayload(item.Payload),
	}

	entry, err := state.rawEntry(ctx, s.raw, key)
	if err != nil {
		return models.ItemOutcome{}, err
	}
	rawDuplicate := entry != nil
	if entry == nil {
		entry = state.addRaw(models.NewRawIngestionRecord(key, scope.accountID, item.Payload, scope.now), true)
		s.metrics.IncRawStored()
	} else {
		entry.rec.Touch(scope.accountID, scope.now)
		s.metrics.IncRawDuplicate()
	}

	classification := policy.Classify(item)

	txe, err := state.txEntry(ctx, s.transactions, sourceTxID)
	if err != nil {
		return models.ItemOutcome{}, err
	}
	disposition := models.DispositionUnchanged
	if txe == nil {
		row := models.NewEnrichedTransaction(scope.accountID, sourceTxID, item.Description, item.Amount, item.Date, scope.now)
		if classification.NeedsReview {
			row.EnsureNeedsReview(classification.Reason)
		}
		txe = state.addTransaction(row, true)
		disposition = models.DispositionInserted
	} else {
		changed := txe.row.ApplyFields(scope.accountID, item.Description, item.Amount, item.Date)
		if classification.NeedsReview && txe.row.EnsureNeedsReview(classification.Reason) {
			changed = true
		}
		if changed {
			txe.row.MarkModified(scope.now)
			txe.dirty = true
			disposition = models.DispositionUpdated
		}
	}

	matched, err := s.attemptRecurringMatch(ctx, state, scope, txe, item, classification)
	if err != nil {
		return models.ItemOutcome{}, err
	}
	if matched && disposition == models.DispositionUnchanged {
		disposition = models.DispositionUpdated
	}

	s.metrics.IncDisposition(string(disposition))
	entry.rec.RecordOutcome(txe.row.ID, disposition, txe.row.ReviewReason)

	return models.ItemOutcome{
		SourceTransactionID: sourceTxID,
		TransactionID:       txe.row.ID,
		RawDuplicate:        rawDuplicate,
		Disposition:         disposition,
		ReviewStatus:        txe.row.ReviewStatus,
		ReviewReason:        txe.row.ReviewReason,
	}, nil
}

// attemptRecurringMatch tries to link the transaction to exactly one recurring
// item. Transactions already linked, routed to NeedsReview, or flagged
// ambiguous by the caller never participate. An ambiguous match outcome links
// nothing and is not an error.
func (s *Service) attemptRecurringMatch(ctx context.Context, state *batchState, scope batchScope, txe *txEntry, item models.BatchItem, classification policy.Classification) (bool, error) {
	row := txe.row
	if row.RecurringItemID != nil || row.ReviewStatus == models.ReviewStatusNeedsReview || classification.NeedsReview || item.Ambiguous {
		return false, nil
	}

	items, err := state.recurringCandidates(ctx, s.recurring, scope.householdID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "loading recurring candidates")
	}
	if len(items) == 0 {
		return false, nil
	}

	candidates := make([]matcher.Candidate, 0, len(items))
	for _, rec := range items {
		lastObserved, err := state.lastObservedFor(ctx, s.recurring, rec.ID)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "loading last observation")
		}
		candidates = append(candidates, matcher.Candidate{Item: rec, LastObserved: lastObserved})
	}

	eval, outcome := matcher.Match(matcher.Input{
		Date:        row.Date,
		Amount:      row.Amount,
		Description: row.Description,
	}, candidates)

	switch outcome {
	case matcher.OutcomeMatched:
		if err := row.LinkRecurring(eval.Item.ID); err != nil {
			return false, err
		}
		eval.Item.AdvanceDueDate(scope.now)
		state.markRecurringDirty(eval.Item)
		state.setLastObserved(eval.Item.ID, row.Date)
		row.MarkModified(scope.now)
		txe.dirty = true
		s.metrics.IncRecurringMatch()
		if s.logger != nil {
			s.logger.DebugContext(ctx, "recurring item matched",
				"transaction_id", row.ID,
				"recurring_item_id", eval.Item.ID,
				"weighted_score", eval.WeightedScore,
			)
		}
		return true, nil
	case matcher.OutcomeAmbiguous:
		s.metrics.IncRecurringDeclined()
		if s.logger != nil {
			s.logger.InfoContext(ctx, "recurring match declined as ambiguous",
				"transaction_id", row.ID,
			)
		}
	}
	return false, nil
}

// commit applies every staged write inside one durable transaction, in the
// order entries were first touched. A unique-key conflict means another
// request committed the same delta concurrently; the caller retries the batch.
func (s *Service) commit(ctx context.Context, state *batchState) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, key := range state.rawOrder {
			entry := state.raw[key]
			if entry.isNew {
				if err := s.raw.Insert(ctx, entry.rec); err != nil {
					return err
				}
				continue
			}
			if err := s.raw.Update(ctx, entry.rec); err != nil {
				return err
			}
		}
		for _, externalID := range state.txOrder {
			entry := state.transactions[externalID]
			switch {
			case entry.isNew:
				if err := s.transactions.Insert(ctx, entry.row); err != nil {
					return err
				}
			case entry.dirty:
				if err := s.transactions.Update(ctx, entry.row); err != nil {
					return err
				}
			}
		}
		for _, itemID := range state.recurringOrder {
			if err := s.recurring.UpdateDueDate(ctx, state.dirtyRecurring[itemID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent ingestion for the same delta; retry the batch")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "committing ingestion batch")
	}
	return nil
}

// notifyEmbeddings enqueues inserted and updated transactions after commit.
// Fire-and-forget: a queue failure is logged and never fails the batch.
func (s *Service) notifyEmbeddings(ctx context.Context, state *batchState) {
	if s.embeddings == nil {
		return
	}
	for _, externalID := range state.txOrder {
		entry := state.transactions[externalID]
		if !entry.isNew && !entry.dirty {
			continue
		}
		if err := s.embeddings.EnqueueTransaction(ctx, entry.row); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "embedding enqueue failed",
				"transaction_id", entry.row.ID,
				"error", err,
			)
		}
	}
}

func itemLabel(index int, item models.BatchItem) string {
	if trimmed := strings.TrimSpace(item.SourceTransactionID); trimmed != "" {
		return trimmed
	}
	return "#" + strconv.Itoa(index)
}
