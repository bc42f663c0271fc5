package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/VoxalyAI/voxaly-mvp/engine/semantic"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (e *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls++
	return []float32{0.1, 0.2}, e.err
}

type fakeStore struct {
	records []semantic.VectorRecord
	deleted []string
	err     error
}

func (s *fakeStore) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *fakeStore) DeleteByDocID(_ context.Context, docID string) error {
	s.deleted = append(s.deleted, docID)
	return nil
}

const kbLines = `{"doc_id":"D1","intent":"claim_opening","question":"Comment déclarer un sinistre ?","answer":"Déclarer un accident de la vie se fait..."}
{"doc_id":"D2","intent":"medical_docs","question":"Quels documents envoyer ?","answer":"Envoyer certificat, arrêt de travail..."}

not json at all
{"doc_id":"","intent":"x","question":"q","answer":"a"}
`

func TestRun(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &fakeStore{}
	ing := New(emb, store, nil)

	sum, err := ing.Run(context.Background(), strings.NewReader(kbLines))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 4 || sum.Stored != 2 || sum.Skipped != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if len(store.records) != 2 {
		t.Fatalf("stored %d records", len(store.records))
	}
	if len(store.deleted) != 2 || store.deleted[0] != "D1" {
		t.Errorf("re-ingest must clear old points first, deleted = %v", store.deleted)
	}

	rec := store.records[0]
	if rec.ID == "" {
		t.Error("record needs a point id")
	}
	if rec.Payload[semantic.PayloadDocID] != "D1" {
		t.Errorf("payload doc_id = %v", rec.Payload[semantic.PayloadDocID])
	}
	if rec.Payload[semantic.PayloadLabelIntent] != "claim_opening" {
		t.Errorf("payload label_intent = %v", rec.Payload[semantic.PayloadLabelIntent])
	}
	if rec.Payload[semantic.PayloadContent] == "" {
		t.Error("payload content missing")
	}
}

func TestRun_EmbedFailureAborts(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("ollama down")}
	ing := New(emb, &fakeStore{}, nil)

	_, err := ing.Run(context.Background(), strings.NewReader(kbLines))
	if err == nil {
		t.Fatal("embed failure must abort the run")
	}
}

func TestSnippetTruncation(t *testing.T) {
	long := strings.Repeat("à", SnippetLen*2)
	if got := snippet(long); len([]rune(got)) != SnippetLen {
		t.Errorf("snippet length = %d runes", len([]rune(got)))
	}
	if got := snippet("court"); got != "court" {
		t.Errorf("short answers pass through, got %q", got)
	}
}

func TestEmbedText(t *testing.T) {
	e := Entry{Question: "q", Answer: "a"}
	if embedText(e) != "q\na" {
		t.Errorf("embedText = %q", embedText(e))
	}
}
