package chunker

import (
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/geraldbahati/unbowed/internal/document"
)

func testDoc() *document.Document {
	return &document.Document{ID: "doc-1", Name: "notes.pdf"}
}

// reconstruct joins chunk texts, dropping the overlap each chunk shares with its predecessor.
func reconstruct(chunks []document.Chunk, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[overlap:]
		}
		sb.WriteString(string(r))
	}
	return sb.String()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero overlap", Config{ChunkChars: 10, Overlap: 0}, false},
		{"overlap equals size", Config{ChunkChars: 10, Overlap: 10}, true},
		{"overlap exceeds size", Config{ChunkChars: 10, Overlap: 20}, true},
		{"negative overlap", Config{ChunkChars: 10, Overlap: -1}, true},
		{"zero size", Config{ChunkChars: 0, Overlap: 0}, true},
	}
	for _, tt := range tests {
		err := tt.cfg.Validate()
		if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
	}
}

func TestChunkText_RejectsInvalidConfig(t *testing.T) {
	_, err := ChunkText("some text", testDoc(), Config{ChunkChars: 5, Overlap: 5})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestChunkText_ExactlyOneWindow(t *testing.T) {
	text := strings.Repeat("x", 50)
	chunks, err := ChunkText(text, testDoc(), Config{ChunkChars: 50, Overlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("expected full text in chunk, got %q", chunks[0].Text)
	}
	if chunks[0].Name != "notes.pdf chunk 0" {
		t.Errorf("expected name %q, got %q", "notes.pdf chunk 0", chunks[0].Name)
	}
}

func TestChunkText_TwoWindowsShareOverlap(t *testing.T) {
	const size, overlap = 40, 7
	var sb strings.Builder
	for i := 0; sb.Len() < 2*size-overlap; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	text := sb.String()

	chunks, err := ChunkText(text, testDoc(), Config{ChunkChars: size, Overlap: overlap})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	first, second := chunks[0].Text, chunks[1].Text
	if first[len(first)-overlap:] != second[:overlap] {
		t.Errorf("expected second chunk to start with %q, got %q", first[len(first)-overlap:], second[:overlap])
	}
	if chunks[1].Name != "notes.pdf chunk 1" {
		t.Errorf("expected sequential name, got %q", chunks[1].Name)
	}
}

func TestChunkText_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcdefghij \nxyzé漢")

	configs := []Config{
		{ChunkChars: 1, Overlap: 0},
		{ChunkChars: 10, Overlap: 0},
		{ChunkChars: 10, Overlap: 3},
		{ChunkChars: 10, Overlap: 9},
		{ChunkChars: 64, Overlap: 16},
	}
	for _, cfg := range configs {
		for n := 0; n < 300; n += 1 + rng.Intn(13) {
			runes := make([]rune, n)
			for i := range runes {
				runes[i] = alphabet[rng.Intn(len(alphabet))]
			}
			text := string(runes)

			chunks, err := ChunkText(text, testDoc(), cfg)
			if err != nil {
				t.Fatalf("cfg=%+v n=%d: unexpected error: %v", cfg, n, err)
			}
			if got := reconstruct(chunks, cfg.Overlap); got != text {
				t.Fatalf("cfg=%+v n=%d: reconstruction mismatch\n got: %q\nwant: %q", cfg, n, got, text)
			}
			for i, c := range chunks {
				l := len([]rune(c.Text))
				if l > cfg.ChunkChars {
					t.Errorf("cfg=%+v n=%d: chunk %d has %d chars, limit %d", cfg, n, i, l, cfg.ChunkChars)
				}
				if len(chunks) > 1 && l <= cfg.Overlap {
					t.Errorf("cfg=%+v n=%d: chunk %d has %d chars, not more than overlap %d", cfg, n, i, l, cfg.Overlap)
				}
			}
		}
	}
}

func TestChunkText_ShortTextKept(t *testing.T) {
	// Shorter than the overlap: nothing was emitted before, so it must still come out.
	chunks, err := ChunkText("hi", testDoc(), Config{ChunkChars: 100, Overlap: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "hi" {
		t.Fatalf("expected single chunk %q, got %+v", "hi", chunks)
	}
}

func TestChunkUnits_ShortDocumentKept(t *testing.T) {
	units := []document.Unit{{Number: 1, Text: "a\n"}, {Number: 2, Text: "b\n"}}
	chunks, err := ChunkUnits(units, testDoc(), Config{ChunkChars: 100, Overlap: 20}, Lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "a\nb\n" {
		t.Fatalf("expected one chunk holding both lines, got %+v", chunks)
	}
}

func TestChunkText_Empty(t *testing.T) {
	chunks, err := ChunkText("", testDoc(), DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestChunkText_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("é", 12)
	chunks, err := ChunkText(text, testDoc(), Config{ChunkChars: 12, Overlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for 12 runes, got %d", len(chunks))
	}
}

func TestChunkUnits_PageRanges(t *testing.T) {
	units := []document.Unit{
		{Number: 1, Text: "aaaaaaaa"},
		{Number: 2, Text: "bbbbbbbb"},
		{Number: 3, Text: "cc"},
	}
	chunks, err := ChunkUnits(units, testDoc(), Config{ChunkChars: 10, Overlap: 2}, Pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct{ text, name string }{
		{"aaaaaaaabb", "notes.pdf pages 1-2"},
		{"bbbbbbbbcc", "notes.pdf pages 2-3"},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w.text {
			t.Errorf("chunk %d: expected text %q, got %q", i, w.text, chunks[i].Text)
		}
		if chunks[i].Name != w.name {
			t.Errorf("chunk %d: expected name %q, got %q", i, w.name, chunks[i].Name)
		}
		if chunks[i].Doc == nil || chunks[i].Doc.ID != "doc-1" {
			t.Errorf("chunk %d: expected back-reference to doc-1", i)
		}
	}
}

func TestChunkUnits_SinglePageCollapsesRange(t *testing.T) {
	units := []document.Unit{{Number: 1, Text: strings.Repeat("x", 25)}}
	chunks, err := ChunkUnits(units, testDoc(), Config{ChunkChars: 10, Overlap: 0}, Pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Name != "notes.pdf pages 1" {
			t.Errorf("chunk %d: expected collapsed range, got %q", i, c.Name)
		}
	}
}

func TestChunkUnits_EmptyPagesStillCounted(t *testing.T) {
	units := []document.Unit{
		{Number: 1, Text: "abcdef"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "ghijkl"},
	}
	chunks, err := ChunkUnits(units, testDoc(), Config{ChunkChars: 10, Overlap: 0}, Pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Name != "notes.pdf pages 1-3" {
		t.Errorf("expected %q, got %q", "notes.pdf pages 1-3", chunks[0].Name)
	}
	if chunks[1].Text != "kl" || chunks[1].Name != "notes.pdf pages 3" {
		t.Errorf("unexpected tail chunk %+v", chunks[1])
	}
}

func TestChunkUnits_LineLocatorsMonotonic(t *testing.T) {
	var units []document.Unit
	var full strings.Builder
	for i := 1; i <= 200; i++ {
		line := strings.Repeat("z", i%17) + "\n"
		units = append(units, document.Unit{Number: i, Text: line})
		full.WriteString(line)
	}

	cfg := Config{ChunkChars: 120, Overlap: 30}
	doc := &document.Document{Name: "main.go"}
	chunks, err := ChunkUnits(units, doc, cfg, Lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := reconstruct(chunks, cfg.Overlap); got != full.String() {
		t.Fatal("line chunks do not reconstruct the source")
	}

	prevFirst, prevLast := 0, 0
	for i, c := range chunks {
		rng := strings.TrimPrefix(c.Name, "main.go lines ")
		first, last, err := parseRange(rng)
		if err != nil {
			t.Fatalf("chunk %d: bad name %q: %v", i, c.Name, err)
		}
		if first < prevFirst || last < prevLast || first > last {
			t.Errorf("chunk %d: range %d-%d not monotonic after %d-%d", i, first, last, prevFirst, prevLast)
		}
		prevFirst, prevLast = first, last
	}
	if prevLast != 200 {
		t.Errorf("expected final chunk to end at line 200, got %d", prevLast)
	}
}

func parseRange(s string) (int, int, error) {
	a, b, found := strings.Cut(s, "-")
	first, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	if !found {
		return first, first, nil
	}
	last, err := strconv.Atoi(b)
	return first, last, err
}

func TestSnapChunk_BreaksOnNewline(t *testing.T) {
	text := "On Mon:\nFrom 9-11am, the unit is CS301 DS, held in RoomA.\n\nOn Tue:\nFrom 8-9am, the unit is CS302 OS, held in RoomB.\n\n"
	cfg := Config{ChunkChars: 70, Overlap: 0}
	chunks, err := SnapChunk(text, &document.Document{Name: "tt.csv"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the text to be split, got %d chunk(s)", len(chunks))
	}

	var joined strings.Builder
	for i, c := range chunks {
		if n := len([]rune(c.Text)); n > cfg.ChunkChars {
			t.Errorf("chunk %d: %d chars exceeds %d", i, n, cfg.ChunkChars)
		}
		if i < len(chunks)-1 && !strings.HasPrefix(chunks[i+1].Text, "\n") {
			t.Errorf("chunk %d: expected next part to begin at a newline, got %q", i+1, chunks[i+1].Text)
		}
		joined.WriteString(c.Text)
	}
	if joined.String() != text {
		t.Error("snapped parts do not reconstruct the text")
	}
	if chunks[0].Name != "tt.csv - Timetable Part 1" || chunks[1].Name != "tt.csv - Timetable Part 2" {
		t.Errorf("unexpected part names %q, %q", chunks[0].Name, chunks[1].Name)
	}
}

func TestSnapChunk_NoNewlineCutsAtSize(t *testing.T) {
	text := strings.Repeat("q", 25)
	chunks, err := SnapChunk(text, testDoc(), Config{ChunkChars: 10, Overlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(chunks))
	}
	if chunks[2].Text != "qqqqq" {
		t.Errorf("expected short final part, got %q", chunks[2].Text)
	}
}

func TestSnapChunk_LeadingNewlineDoesNotStall(t *testing.T) {
	text := "\n" + strings.Repeat("w", 30)
	chunks, err := SnapChunk(text, testDoc(), Config{ChunkChars: 10, Overlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total int
	for _, c := range chunks {
		total += len(c.Text)
	}
	if total != len(text) {
		t.Errorf("expected parts to cover %d chars, got %d", len(text), total)
	}
}

// runeTokenizer treats every rune as one token.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func (runeTokenizer) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}

func TestChunkTokens_MatchesCharacterWindow(t *testing.T) {
	text := strings.Repeat("tokens are counted one rune at a time. ", 20)
	cfg := Config{ChunkChars: 50, Overlap: 10}

	byTokens, err := ChunkTokens(text, testDoc(), cfg, runeTokenizer{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byChars, err := ChunkText(text, testDoc(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byTokens) != len(byChars) {
		t.Fatalf("expected %d token chunks, got %d", len(byChars), len(byTokens))
	}
	for i := range byTokens {
		if byTokens[i].Text != byChars[i].Text || byTokens[i].Name != byChars[i].Name {
			t.Errorf("chunk %d differs: %+v vs %+v", i, byTokens[i], byChars[i])
		}
	}
}

func TestChunkTokens_RequiresTokenizer(t *testing.T) {
	_, err := ChunkTokens("text", testDoc(), DefaultConfig(), nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFormatRange(t *testing.T) {
	if got := FormatRange(4, 4); got != "4" {
		t.Errorf("expected %q, got %q", "4", got)
	}
	if got := FormatRange(1, 3); got != "1-3" {
		t.Errorf("expected %q, got %q", "1-3", got)
	}
}
