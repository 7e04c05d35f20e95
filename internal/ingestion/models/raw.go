package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	id "homeledger/pkg/domain"
)

// RawKey is the content-addressed idempotency key for a raw ingestion record.
// Two sightings of the same vendor transaction only collide when the payload
// bytes are identical; a changed payload under the same (source, cursor,
// transaction id) produces a new record.
type RawKey struct {
	Source              string
	Cursor              string
	SourceTransactionID string
	PayloadHash         string
}

// HashPayload computes the hex-encoded SHA-256 digest of a raw payload.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// RawIngestionRecord is the durable trace of every payload ever seen for a
// (source, cursor, transaction id) triple. Records are created on first sight
// and refreshed on every later sighting; the engine never deletes them.
type RawIngestionRecord struct {
	ID                  uuid.UUID
	Source              string
	Cursor              string
	AccountID           id.AccountID
	SourceTransactionID string
	PayloadHash         string
	Payload             []byte
	FirstSeenAt         time.Time
	LastSeenAt          time.Time
	LastProcessedAt     time.Time
	TransactionID       *id.TransactionID
	LastDisposition     Disposition
	LastReviewReason    string
}

// NewRawIngestionRecord creates a record for the first sighting of a key.
func NewRawIngestionRecord(key RawKey, accountID id.AccountID, payload []byte, now time.Time) *RawIngestionRecord {
	return &RawIngestionRecord{
		ID:                  uuid.New(),
		Source:              key.Source,
		Cursor:              key.Cursor,
		AccountID:           accountID,
		SourceTransactionID: key.SourceTransactionID,
		PayloadHash:         key.PayloadHash,
		Payload:             payload,
		FirstSeenAt:         now,
		LastSeenAt:          now,
		LastProcessedAt:     now,
	}
}

// Key returns the record's idempotency key.
func (r *RawIngestionRecord) Key() RawKey {
	return RawKey{
		Source:              r.Source,
		Cursor:              r.Cursor,
		SourceTransactionID: r.SourceTransactionID,
		PayloadHash:         r.PayloadHash,
	}
}

// Touch refreshes the sighting timestamps and the latest account id. Called
// on every pass over the record, duplicate or not.
func (r *RawIngestionRecord) Touch(accountID id.AccountID, now time.Time) {
	r.AccountID = accountID
	r.LastSeenAt = now
	r.LastProcessedAt = now
}

// RecordOutcome stores the result of processing the item this record traces.
func (r *RawIngestionRecord) RecordOutcome(txID id.TransactionID, disposition Disposition, reviewReason string) {
	r.TransactionID = &txID
	r.LastDisposition = disposition
	r.LastReviewReason = reviewReason
}
