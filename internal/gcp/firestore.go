package gcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/titlereport/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreLedger records report runs in a Firestore collection.
type FirestoreLedger struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreLedger creates a ledger writing to collection.
func NewFirestoreLedger(ctx context.Context, projectID, collection string) (*FirestoreLedger, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &FirestoreLedger{client: client, collection: collection}, nil
}

// Start adds a new run record and returns its document ID.
func (l *FirestoreLedger) Start(ctx context.Context, run models.Run) (string, error) {
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	docRef, _, err := l.client.Collection(l.collection).Add(ctx, run)
	if err != nil {
		return "", fmt.Errorf("failed to create run record: %w", err)
	}
	return docRef.ID, nil
}

// Update sets the given fields on the run record and bumps updatedAt.
func (l *FirestoreLedger) Update(ctx context.Context, runID string, fields map[string]interface{}) error {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	updates := make([]firestore.Update, 0, len(fields)+1)
	for _, path := range paths {
		updates = append(updates, firestore.Update{Path: path, Value: fields[path]})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: time.Now()})

	if _, err := l.client.Collection(l.collection).Doc(runID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update run record %s: %w", runID, err)
	}
	return nil
}

// PreviousRun returns the ID of an earlier run of the same file, if any.
func (l *FirestoreLedger) PreviousRun(ctx context.Context, fileHash string) (string, bool, error) {
	docs, err := l.client.Collection(l.collection).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for previous runs: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

// Close releases the Firestore client.
func (l *FirestoreLedger) Close() error {
	return l.client.Close()
}
