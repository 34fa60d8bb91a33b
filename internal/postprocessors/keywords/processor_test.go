package keywords

import (
	"context"
	"reflect"
	"testing"

	"github.com/custodia-labs/protosmith/internal/core/domain"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{
			name: "frequency then alphabetical",
			text: "Refunds are processed. Refunds need receipts. Receipts are kept.",
			n:    3,
			want: []string{"receipts", "refunds", "kept"},
		},
		{
			name: "stopwords numbers and short terms skipped",
			text: "Refunds must be processed within 14 days of the order",
			n:    10,
			want: []string{"days", "order", "processed", "refunds"},
		},
		{
			name: "hyphenated terms kept",
			text: "store-credit and store-credit only",
			n:    5,
			want: []string{"store-credit"},
		},
		{
			name: "empty",
			text: "",
			n:    5,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessor_Process(t *testing.T) {
	p := New(WithMax(2))
	chunks := []domain.Chunk{
		{ID: "a", Content: "refund refund policy"},
		{ID: "b", Content: "shipping", Metadata: map[string]any{"start": 0}},
	}

	out, err := p.Process(context.Background(), &domain.Document{}, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := out[0].Metadata[MetadataKey]; !reflect.DeepEqual(got, []string{"refund", "policy"}) {
		t.Errorf("chunk a keywords = %v", got)
	}
	if got := out[1].Metadata[MetadataKey]; !reflect.DeepEqual(got, []string{"shipping"}) {
		t.Errorf("chunk b keywords = %v", got)
	}
	if out[1].Metadata["start"] != 0 {
		t.Error("existing metadata should be preserved")
	}
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "keywords" {
		t.Errorf("unexpected name %q", New().Name())
	}
}
