package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdant/esgengine/internal/contracts"
	"github.com/verdant/esgengine/pkg/config"
	"github.com/verdant/esgengine/pkg/logger"
)

type docKey struct {
	sourceID    string
	companyID   string
	publishedAt time.Time
	sourceType  contracts.SourceType
}

type fakeStorage struct {
	docs map[docKey]contracts.Document
	err  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{docs: make(map[docKey]contracts.Document)}
}

func (f *fakeStorage) InsertDocument(_ context.Context, doc contracts.Document) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := docKey{doc.SourceID, doc.CompanyID, doc.PublishedAt, doc.SourceType}
	if _, exists := f.docs[key]; exists {
		return false, nil
	}
	f.docs[key] = doc
	return true, nil
}

func (f *fakeStorage) DocumentsFor(_ context.Context, companyID string, since *time.Time) ([]contracts.Document, error) {
	var out []contracts.Document
	for _, d := range f.docs {
		if d.CompanyID != companyID {
			continue
		}
		if since != nil && d.PublishedAt.Before(*since) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type fakeMarker struct {
	marked []string
}

func (f *fakeMarker) MarkCompanyDirty(companyID string) {
	f.marked = append(f.marked, companyID)
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func validDocument() contracts.Document {
	return contracts.Document{
		SourceID:    "sec-10k-2026",
		CompanyID:   "acme",
		SourceType:  contracts.SourceFiling,
		PublishedAt: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		RawTextRef:  "s3://filings/acme/2026-10k.txt",
		E:           72,
		S:           64,
		G:           81,
		Confidence:  0.9,
	}
}

func TestIngest_Insert(t *testing.T) {
	storage := newFakeStorage()
	marker := &fakeMarker{}
	store := NewStore(storage, marker, testLogger()).WithClock(func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	result, err := store.Ingest(context.Background(), validDocument())
	require.NoError(t, err)
	assert.Equal(t, contracts.IngestInserted, result)
	assert.Equal(t, []string{"acme"}, marker.marked)

	require.Len(t, storage.docs, 1)
	for _, stored := range storage.docs {
		assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), stored.IngestedAt)
	}
}

func TestIngest_DuplicateChangesNothing(t *testing.T) {
	storage := newFakeStorage()
	marker := &fakeMarker{}
	store := NewStore(storage, marker, testLogger())

	_, err := store.Ingest(context.Background(), validDocument())
	require.NoError(t, err)

	// Same identity, different payload: skipped, not overwritten
	dup := validDocument()
	dup.E = 1
	result, err := store.Ingest(context.Background(), dup)
	require.NoError(t, err)

	assert.Equal(t, contracts.IngestDuplicate, result)
	assert.Equal(t, []string{"acme"}, marker.marked, "duplicate must not mark dirty")
	for _, stored := range storage.docs {
		assert.Equal(t, 72.0, stored.E)
	}
}

func TestIngest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*contracts.Document)
	}{
		{"missing source_id", func(d *contracts.Document) { d.SourceID = "" }},
		{"missing company_id", func(d *contracts.Document) { d.CompanyID = "" }},
		{"unknown source_type", func(d *contracts.Document) { d.SourceType = "rumor" }},
		{"zero published_at", func(d *contracts.Document) { d.PublishedAt = time.Time{} }},
		{"confidence above 1", func(d *contracts.Document) { d.Confidence = 1.2 }},
		{"negative dimension", func(d *contracts.Document) { d.G = -4 }},
		{"dimension above 100", func(d *contracts.Document) { d.S = 100.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newFakeStorage()
			marker := &fakeMarker{}
			store := NewStore(storage, marker, testLogger())

			doc := validDocument()
			tt.mutate(&doc)

			_, err := store.Ingest(context.Background(), doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrInvalidDocument)
			assert.Empty(t, storage.docs, "invalid document must not be stored")
			assert.Empty(t, marker.marked)
		})
	}
}

func TestIngest_ZeroConfidenceIsValid(t *testing.T) {
	store := NewStore(newFakeStorage(), &fakeMarker{}, testLogger())

	doc := validDocument()
	doc.Confidence = 0

	result, err := store.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, contracts.IngestInserted, result)
}

func TestIngest_StorageError(t *testing.T) {
	storage := newFakeStorage()
	storage.err = errors.New("connection reset")
	marker := &fakeMarker{}
	store := NewStore(storage, marker, testLogger())

	_, err := store.Ingest(context.Background(), validDocument())
	require.Error(t, err)
	assert.Empty(t, marker.marked, "failed insert must not mark dirty")
}
