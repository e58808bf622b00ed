package fulltext

import (
	"bytes"
	"testing"
)

func TestTokenizeDropsStopwordsAndStems(t *testing.T) {
	tokens := English.Tokenize("The quick brown foxes are running")
	for _, tok := range tokens {
		if tok == "the" || tok == "are" {
			t.Errorf("expected stopwords dropped, got %v", tokens)
		}
	}
	found := false
	for _, tok := range tokens {
		if tok == "run" || tok == "runn" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'running' to be stemmed, got %v", tokens)
	}
}

func TestAddDocumentAndNaiveSearch(t *testing.T) {
	ix := New(English, 4, true)
	_ = ix.AddDocument(0, "the quick brown fox jumps over the lazy dog")
	_ = ix.AddDocument(1, "the dog barks at the fox")
	_ = ix.AddDocument(2, "completely unrelated text about weather")

	results, err := ix.NaiveSearch("fox dog", 10)
	if err != nil {
		t.Fatalf("NaiveSearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matching docs, got %d: %+v", len(results), results)
	}
}

func TestBlockMaxWANDMatchesNaive(t *testing.T) {
	ix := New(English, 4, true)
	docs := []string{
		"the quick brown fox jumps over the lazy dog",
		"the dog barks at the fox every single morning",
		"completely unrelated text about weather patterns",
		"foxes and dogs sometimes share territory in forests",
		"another passage mentioning only the dog briefly",
		"a passage about foxes hunting at night in fields",
		"weather and climate change discussion article text",
		"dogs foxes and other forest animals coexist peacefully",
	}
	for i, d := range docs {
		_ = ix.AddDocument(i, d)
	}

	naive, err := ix.NaiveSearch("fox dog", 5)
	if err != nil {
		t.Fatalf("NaiveSearch: %v", err)
	}
	wand, err := ix.Search("fox dog", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(naive) != len(wand) {
		t.Fatalf("result count mismatch: naive=%d wand=%d", len(naive), len(wand))
	}
	for i := range naive {
		if naive[i].Row != wand[i].Row {
			t.Errorf("result %d row mismatch: naive=%d wand=%d", i, naive[i].Row, wand[i].Row)
		}
		diff := naive[i].Score - wand[i].Score
		if diff < -1e-3 || diff > 1e-3 {
			t.Errorf("result %d score mismatch: naive=%v wand=%v", i, naive[i].Score, wand[i].Score)
		}
	}
}

func TestPhraseSearch(t *testing.T) {
	ix := New(English, 128, true)
	_ = ix.AddDocument(0, "the quick brown fox jumps over the lazy dog")
	_ = ix.AddDocument(1, "a quick fox runs but no brown jump happens here")

	results, err := ix.PhraseSearch("quick brown fox", 10)
	if err != nil {
		t.Fatalf("PhraseSearch: %v", err)
	}
	if len(results) != 1 || results[0].Row != 0 {
		t.Errorf("expected only doc 0 to match the phrase, got %+v", results)
	}
}

func TestDeleteRemovesFromPostings(t *testing.T) {
	ix := New(English, 4, true)
	_ = ix.AddDocument(0, "fox dog fox")
	_ = ix.AddDocument(1, "fox only")
	if err := ix.Delete(0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := ix.NaiveSearch("fox", 10)
	if err != nil {
		t.Fatalf("NaiveSearch: %v", err)
	}
	if len(results) != 1 || results[0].Row != 1 {
		t.Errorf("expected only doc 1 to remain, got %+v", results)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ix := New(German, 4, true)
	_ = ix.AddDocument(0, "der schnelle braune fuchs springt")
	_ = ix.AddDocument(1, "der hund bellt den fuchs an")

	var buf bytes.Buffer
	if err := ix.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	results, err := loaded.NaiveSearch("fuchs", 10)
	if err != nil {
		t.Fatalf("NaiveSearch on loaded index: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 docs to match 'fuchs' after reload, got %d", len(results))
	}
}
