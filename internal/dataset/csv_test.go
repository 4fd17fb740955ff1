package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `user_id,cart_abandoned_date,last_order_date,avg_order_value,sessions_last_30d,num_cart_items,engagement_score,profitability_score,class_label,region
u1,2025-06-03,2025-04-18,149.90,12,3,4.2,0.35,VIP,EMEA
u2,2025-06-05,,39.50,2,1,1.1,0.08,,NA
`

func TestReadRecords(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ReadRecords returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	r := records[0]
	if r.ID != "u1" || r.AOV != 149.90 || r.Sessions != 12 || r.CartItems != 3 {
		t.Errorf("first record = %+v", r)
	}
	if !r.AbandonedAt.Equal(date(2025, 6, 3)) {
		t.Errorf("AbandonedAt = %v, want 2025-06-03", r.AbandonedAt)
	}
	if r.LastOrderAt == nil || !r.LastOrderAt.Equal(date(2025, 4, 18)) {
		t.Errorf("LastOrderAt = %v, want 2025-04-18", r.LastOrderAt)
	}
	if r.Engagement != 4.2 || r.Profitability != 0.35 {
		t.Errorf("features = %v/%v, want 4.2/0.35", r.Engagement, r.Profitability)
	}
	if r.Archetype != "VIP" || r.Region != "EMEA" {
		t.Errorf("metadata = %q/%q, want VIP/EMEA", r.Archetype, r.Region)
	}

	// An empty last order date means a first-time customer.
	if records[1].LastOrderAt != nil {
		t.Errorf("LastOrderAt = %v, want nil for an empty cell", records[1].LastOrderAt)
	}
}

func TestReadRecords_HeaderOrderIndependent(t *testing.T) {
	shuffled := `profitability_score,user_id,engagement_score,avg_order_value,cart_abandoned_date,num_cart_items,sessions_last_30d,last_order_date
0.35,u1,4.2,149.90,2025-06-03,3,12,
`
	records, err := ReadRecords(strings.NewReader(shuffled))
	if err != nil {
		t.Fatalf("ReadRecords returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.ID != "u1" || r.AOV != 149.90 || r.Profitability != 0.35 || r.Sessions != 12 {
		t.Errorf("record = %+v, columns mapped wrong", r)
	}
}

func TestReadRecords_MissingRequiredColumn(t *testing.T) {
	noEngagement := `user_id,cart_abandoned_date,last_order_date,avg_order_value,sessions_last_30d,num_cart_items,profitability_score
u1,2025-06-03,,149.90,12,3,0.35
`
	_, err := ReadRecords(strings.NewReader(noEngagement))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if valErr.Field != "engagement_score" {
		t.Errorf("Field = %q, want engagement_score", valErr.Field)
	}
}

func TestReadRecords_OptionalColumnsAbsent(t *testing.T) {
	minimal := `user_id,cart_abandoned_date,last_order_date,avg_order_value,sessions_last_30d,num_cart_items,engagement_score,profitability_score
u1,2025-06-03,,149.90,12,3,4.2,0.35
`
	records, err := ReadRecords(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("ReadRecords returned error: %v", err)
	}
	if records[0].Archetype != "" || records[0].Region != "" {
		t.Errorf("metadata = %q/%q, want empty without the optional columns", records[0].Archetype, records[0].Region)
	}
}

func TestReadRecords_RowErrors(t *testing.T) {
	header := strings.Join(Header, ",") + "\n"

	tests := []struct {
		name      string
		row       string
		wantField string
	}{
		{"BadDate", "u1,sometime,,149.90,12,3,4.2,0.35,,", "cart_abandoned_date"},
		{"BadLastOrder", "u1,2025-06-03,recently,149.90,12,3,4.2,0.35,,", "last_order_date"},
		{"EmptyAOV", "u1,2025-06-03,,,12,3,4.2,0.35,,", "avg_order_value"},
		{"BadAOV", "u1,2025-06-03,,lots,12,3,4.2,0.35,,", "avg_order_value"},
		{"BadSessions", "u1,2025-06-03,,149.90,many,3,4.2,0.35,,", "sessions_last_30d"},
		{"BadCartItems", "u1,2025-06-03,,149.90,12,few,4.2,0.35,,", "num_cart_items"},
		{"BadEngagement", "u1,2025-06-03,,149.90,12,3,high,0.35,,", "engagement_score"},
		{"BadProfitability", "u1,2025-06-03,,149.90,12,3,4.2,negative,,", "profitability_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRecords(strings.NewReader(header + tt.row + "\n"))
			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if valErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", valErr.Field, tt.wantField)
			}
			if valErr.Row != 1 {
				t.Errorf("Row = %d, want 1", valErr.Row)
			}
		})
	}
}

func TestReadRecords_EmptyInput(t *testing.T) {
	_, err := ReadRecords(strings.NewReader(""))
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want *ValidationError for a missing header", err)
	}
}

func TestWriteRecords_RoundTrip(t *testing.T) {
	lastOrder := date(2025, 4, 18)
	in := []CustomerRecord{
		{
			ID:            "u1",
			AbandonedAt:   date(2025, 6, 3),
			LastOrderAt:   &lastOrder,
			AOV:           149.9,
			Sessions:      12,
			CartItems:     3,
			Engagement:    4.2,
			Profitability: 0.35,
			Archetype:     "VIP",
			Region:        "EMEA",
		},
		{
			ID:            "u2",
			AbandonedAt:   date(2025, 6, 5),
			AOV:           39.5,
			Sessions:      2,
			CartItems:     1,
			Engagement:    1.1,
			Profitability: 0.08,
		},
	}

	var buf bytes.Buffer
	if err := WriteRecords(&buf, in); err != nil {
		t.Fatalf("WriteRecords returned error: %v", err)
	}

	out, err := ReadRecords(&buf)
	if err != nil {
		t.Fatalf("ReadRecords returned error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d records, want %d", len(out), len(in))
	}

	for i := range in {
		want, got := in[i], out[i]
		if got.ID != want.ID || got.AOV != want.AOV || got.Sessions != want.Sessions ||
			got.CartItems != want.CartItems || got.Engagement != want.Engagement ||
			got.Profitability != want.Profitability || got.Archetype != want.Archetype ||
			got.Region != want.Region {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
		if !got.AbandonedAt.Equal(want.AbandonedAt) {
			t.Errorf("record %d AbandonedAt = %v, want %v", i, got.AbandonedAt, want.AbandonedAt)
		}
		switch {
		case want.LastOrderAt == nil:
			if got.LastOrderAt != nil {
				t.Errorf("record %d LastOrderAt = %v, want nil", i, got.LastOrderAt)
			}
		case got.LastOrderAt == nil || !got.LastOrderAt.Equal(*want.LastOrderAt):
			t.Errorf("record %d LastOrderAt = %v, want %v", i, got.LastOrderAt, want.LastOrderAt)
		}
	}
}

func TestWriteRecordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "customers.csv")
	records := []CustomerRecord{
		{ID: "u1", AbandonedAt: date(2025, 6, 3), AOV: 100, Engagement: 2, Profitability: 0.2},
	}

	if err := WriteRecordsFile(path, records); err != nil {
		t.Fatalf("WriteRecordsFile returned error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after rename")
	}

	loaded, err := CSVSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "u1" {
		t.Errorf("loaded = %+v, want the written record", loaded)
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := CSVSource{Path: filepath.Join(t.TempDir(), "absent.csv")}.Load(context.Background())
	if err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestStaticSource_Load(t *testing.T) {
	records := []CustomerRecord{
		{ID: "u1", AbandonedAt: date(2025, 6, 3)},
		{ID: "u2", AbandonedAt: date(2025, 6, 4)},
	}

	loaded, err := StaticSource(records).Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "u1" {
		t.Errorf("loaded = %+v, want the records as given", loaded)
	}
}
