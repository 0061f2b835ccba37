package receipthook

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jeremylongshore/moat/pkg/moat/contracts"
)

// EvidenceArchiver persists the receipt's JSON encoding under a key derived
// from EvidenceHash, an optional artifact store backing the on-chain hash.
// The stored bytes are json.Marshal of the receipt, not the canonical field
// map EvidenceHash digests —
// SPEC_FULL.md §B: "not required for the hash itself." Submit calls an
// archiver best-effort; a failure here never blocks or fails chain
// submission.
type EvidenceArchiver interface {
	Store(ctx context.Context, evidenceHash [32]byte, receipt *contracts.Receipt) error
}

func evidenceObjectKey(evidenceHash [32]byte) string {
	return "receipts/" + hex.EncodeToString(evidenceHash[:]) + ".json"
}

// S3EvidenceArchiver writes evidence blobs to an S3 (or S3-compatible)
// bucket via aws-sdk-go-v2.
type S3EvidenceArchiver struct {
	Client *s3.Client
	Bucket string
}

func (a *S3EvidenceArchiver) Store(ctx context.Context, evidenceHash [32]byte, receipt *contracts.Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("receipthook: marshal evidence: %w", err)
	}
	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(evidenceObjectKey(evidenceHash)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("receipthook: s3 put evidence: %w", err)
	}
	return nil
}

// GCSEvidenceArchiver writes evidence blobs to a Google Cloud Storage
// bucket via cloud.google.com/go/storage.
type GCSEvidenceArchiver struct {
	Client *storage.Client
	Bucket string
}

func (a *GCSEvidenceArchiver) Store(ctx context.Context, evidenceHash [32]byte, receipt *contracts.Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("receipthook: marshal evidence: %w", err)
	}
	w := a.Client.Bucket(a.Bucket).Object(evidenceObjectKey(evidenceHash)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("receipthook: gcs write evidence: %w", err)
	}
	return w.Close()
}

// archive runs cfg.Archiver if configured, logging (never failing) on
// error.
func (h *Hook) archive(ctx context.Context, evidenceHash [32]byte, receipt *contracts.Receipt) {
	if h.cfg.Archiver == nil {
		return
	}
	if err := h.cfg.Archiver.Store(ctx, evidenceHash, receipt); err != nil {
		slog.Default().Warn("evidence archival failed", "error", err, "receipt_id", receipt.ID)
	}
}
