package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/briefbase/briefbase-go/internal/rag"
)

func Test_Split_OverlapBoundaries(t *testing.T) {
	t.Parallel()

	// 1000 characters with size 400 / overlap 50 must produce exactly
	// [0,400), [350,750), [700,1000).
	text := strings.Repeat("x", 1000)
	chunks, err := Split(text, Config{Size: 400, Overlap: 50})
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	want := []struct{ start, end int }{
		{0, 400},
		{350, 750},
		{700, 1000},
	}
	if len(chunks) != len(want) {
		t.Fatalf("want %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		c := chunks[i]
		if c.Index != i || c.Start != w.start || c.End != w.end {
			t.Errorf("chunk %d: want [%d,%d), got index=%d [%d,%d)",
				i, w.start, w.end, c.Index, c.Start, c.End)
		}
		if c.Content != text[w.start:w.end] {
			t.Errorf("chunk %d: content is not text[start:end]", i)
		}
	}
}

func Test_Split_Coverage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		cfg  Config
	}{
		{"exact multiple", strings.Repeat("a", 800), Config{Size: 400, Overlap: 50}},
		{"short tail", strings.Repeat("b", 1001), Config{Size: 400, Overlap: 50}},
		{"no overlap", strings.Repeat("c", 950), Config{Size: 100, Overlap: 0}},
		{"heavy overlap", strings.Repeat("d", 300), Config{Size: 100, Overlap: 99}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			chunks, err := Split(tc.text, tc.cfg)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("want at least one chunk")
			}

			if chunks[0].Start != 0 {
				t.Errorf("first chunk must start at 0, got %d", chunks[0].Start)
			}
			if last := chunks[len(chunks)-1]; last.End != len(tc.text) {
				t.Errorf("last chunk must end at len(text)=%d, got %d", len(tc.text), last.End)
			}

			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d: index %d", i, c.Index)
				}
				if c.Start >= c.End || c.End > len(tc.text) {
					t.Errorf("chunk %d: invalid bounds [%d,%d)", i, c.Start, c.End)
				}
				if c.End-c.Start > tc.cfg.Size {
					t.Errorf("chunk %d: length %d exceeds size %d", i, c.End-c.Start, tc.cfg.Size)
				}
				if i > 0 {
					prev := chunks[i-1]
					if c.Start > prev.End {
						t.Errorf("gap between chunk %d (end %d) and %d (start %d)", i-1, prev.End, i, c.Start)
					}
					if c.Start <= prev.Start {
						t.Errorf("chunk %d does not advance past chunk %d", i, i-1)
					}
				}
			}
		})
	}
}

func Test_Split_Deterministic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("the quick brown fox ", 100)
	cfg := Config{Size: 250, Overlap: 30}

	first, err := Split(text, cfg)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	second, err := Split(text, cfg)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input must produce identical chunks")
	}
}

func Test_Split_ShortText(t *testing.T) {
	t.Parallel()

	chunks, err := Split("tiny", Config{Size: 400, Overlap: 50})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("want 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != 4 || chunks[0].Content != "tiny" {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func Test_Split_EmptyText(t *testing.T) {
	t.Parallel()

	chunks, err := Split("", Config{Size: 400, Overlap: 50})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("want 0 chunks for empty text, got %d", len(chunks))
	}
}

func Test_Split_ByteOffsets(t *testing.T) {
	t.Parallel()

	// Offsets are byte positions: multi-byte runes widen the text beyond its
	// rune count, and Content must still equal text[Start:End] exactly so
	// reassembling from offsets is lossless.
	text := strings.Repeat("é", 300) // 600 bytes
	chunks, err := Split(text, Config{Size: 250, Overlap: 10})
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	if last := chunks[len(chunks)-1]; last.End != len(text) {
		t.Errorf("last chunk must end at byte length %d, got %d", len(text), last.End)
	}
	for i, c := range chunks {
		if c.Content != text[c.Start:c.End] {
			t.Errorf("chunk %d: content diverges from byte offsets", i)
		}
		if c.End-c.Start > 250 {
			t.Errorf("chunk %d: byte length %d exceeds size", i, c.End-c.Start)
		}
	}
}

func Test_Config_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Size: 400, Overlap: 50}, false},
		{"zero overlap", Config{Size: 400, Overlap: 0}, false},
		{"zero size", Config{Size: 0, Overlap: 0}, true},
		{"negative size", Config{Size: -1, Overlap: 0}, true},
		{"negative overlap", Config{Size: 400, Overlap: -1}, true},
		{"overlap equals size", Config{Size: 400, Overlap: 400}, true},
		{"overlap exceeds size", Config{Size: 400, Overlap: 500}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, rag.ErrInvalidConfig) {
					t.Errorf("want ErrInvalidConfig, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func Test_Split_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := Split("some text", Config{Size: 100, Overlap: 100})
	if !errors.Is(err, rag.ErrInvalidConfig) {
		t.Errorf("want ErrInvalidConfig, got %v", err)
	}
}
