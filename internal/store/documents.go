// Package store holds the contracts over the managed document database and
// object store, plus their Firestore and Cloud Storage implementations. All
// durable state lives behind these two interfaces; nothing is cached in
// process.
package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/identityonboardflow/internal/apperr"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Document is one record read from a collection.
type Document struct {
	ID     string
	Fields map[string]any
}

// DocumentIterator walks a one-shot, point-in-time listing. Next returns
// iterator.Done after the last document.
type DocumentIterator interface {
	Next() (Document, error)
	Stop()
}

// DocumentStore is the contract over the managed document database. Update
// performs a partial merge: only the supplied fields are replaced. Failures
// are never retried here; callers decide what a failed step means.
type DocumentStore interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Get(ctx context.Context, collection, key string) (Document, error)
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	ListAll(ctx context.Context, collection string) DocumentIterator
}

// FirestoreStore implements DocumentStore on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore store")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	docRef, _, err := s.client.Collection(collection).Add(ctx, fields)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "failed to create document", err)
	}
	return docRef.ID, nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, apperr.Newf(apperr.KindNotFound, "document %s not found in %s", key, collection)
	}
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindUpstream, "failed to read document", err)
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	_, err := s.client.Collection(collection).Doc(key).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return apperr.Newf(apperr.KindNotFound, "document %s not found in %s", key, collection)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to update document", err)
	}
	return nil
}

func (s *FirestoreStore) ListAll(ctx context.Context, collection string) DocumentIterator {
	return &firestoreIterator{iter: s.client.Collection(collection).Documents(ctx)}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreIterator struct {
	iter *firestore.DocumentIterator
}

func (it *firestoreIterator) Next() (Document, error) {
	snap, err := it.iter.Next()
	if err == iterator.Done {
		return Document{}, iterator.Done
	}
	if err != nil {
		return Document{}, apperr.Wrap(apperr.KindUpstream, "failed to iterate documents", err)
	}
	return Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (it *firestoreIterator) Stop() {
	it.iter.Stop()
}
