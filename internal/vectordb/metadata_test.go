package vectordb

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValueFloat(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want float64
		ok   bool
	}{
		{"number", Number(12.5), 12.5, true},
		{"plain string", String("222.18"), 222.18, true},
		{"currency string", String("$1,234.50"), 1234.50, true},
		{"padded", String("  7 "), 7, true},
		{"empty", String(""), 0, false},
		{"text", String("n/a"), 0, false},
		{"nan", String("NaN"), 0, false},
		{"inf", String("Inf"), 0, false},
		{"hex float", String("0x1p4"), 0, false},
		{"underscores", String("1_000"), 0, false},
		{"exponent", String("1e3"), 0, false},
		{"negative", String("-4.50"), -4.5, true},
		{"leading dot", String(".99"), 0.99, true},
		{"bool", Bool(true), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.v.Float()
			if ok != tt.ok || got != tt.want {
				t.Errorf("Float() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMetadataSetKeepsPosition(t *testing.T) {
	var md Metadata
	md.SetString("merchant", "Costco")
	md.Set("total_amount", Number(10))
	md.SetString("merchant", "Walmart")

	entries := md.Entries()
	if len(entries) != 2 {
		t.Fatalf("Len = %d, want 2", len(entries))
	}
	if entries[0].Key != "merchant" || entries[0].Value.String() != "Walmart" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if md.Has("date") {
		t.Error("Has(date) = true for a missing key")
	}
	if md.GetString("date") != "" {
		t.Error("GetString on a missing key should be empty")
	}
}

func TestMetadataClone(t *testing.T) {
	md := NewMetadata(Entry{Key: "a", Value: String("1")})
	clone := md.Clone()
	clone.SetString("a", "2")
	if md.GetString("a") != "1" {
		t.Errorf("Clone shares storage: original now %q", md.GetString("a"))
	}
}

func TestMetadataJSON(t *testing.T) {
	md := NewMetadata(
		Entry{Key: "merchant", Value: String("Costco")},
		Entry{Key: "total_amount", Value: Number(222.18)},
		Entry{Key: "verified", Value: Bool(true)},
		Entry{Key: "date", Value: String("2026-02-11")},
	)
	raw, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"merchant":"Costco","total_amount":222.18,"verified":true,"date":"2026-02-11"}`
	if string(raw) != want {
		t.Errorf("Marshal = %s, want %s", raw, want)
	}

	var back Metadata
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	again, _ := json.Marshal(back)
	if string(again) != want {
		t.Errorf("round trip = %s, want %s", again, want)
	}
	v, _ := back.Get("total_amount")
	if v.Kind() != KindNumber {
		t.Errorf("total_amount kind = %v, want number", v.Kind())
	}
}

func TestMetadataUnmarshalDropsNullAndKeepsNested(t *testing.T) {
	var md Metadata
	if err := json.Unmarshal([]byte(`{"a":null,"items":["milk","eggs"],"b":"x"}`), &md); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if md.Has("a") {
		t.Error("null value should be dropped")
	}
	if md.GetString("items") != `["milk","eggs"]` {
		t.Errorf("items = %q", md.GetString("items"))
	}
	if md.Len() != 2 {
		t.Errorf("Len = %d, want 2", md.Len())
	}
}

func TestMetadataUnmarshalRejectsNonObject(t *testing.T) {
	var md Metadata
	if err := json.Unmarshal([]byte(`[1,2]`), &md); err == nil {
		t.Error("expected error for a JSON array")
	}
}

func TestMetadataFromMap(t *testing.T) {
	md := MetadataFromMap(map[string]any{
		"total_amount": 12,
		"merchant":     "Target",
		"date":         time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC),
		"skip":         nil,
		"paid":         false,
	})
	var keys []string
	for _, e := range md.Entries() {
		keys = append(keys, e.Key)
	}
	want := []string{"date", "merchant", "paid", "total_amount"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
	if md.GetString("date") != "2026-02-11" {
		t.Errorf("date = %q", md.GetString("date"))
	}
	if f, ok := mustGet(md, "total_amount").Float(); !ok || f != 12 {
		t.Errorf("total_amount = %v", f)
	}
}

func mustGet(md Metadata, key string) Value {
	v, _ := md.Get(key)
	return v
}

func TestFilterMatches(t *testing.T) {
	md := NewMetadata(
		Entry{Key: "merchant", Value: String("Costco Wholesale")},
		Entry{Key: "date", Value: String("2026-02-11")},
	)
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"contains ignores case", Filter{}.Contains("merchant", "COSTCO"), true},
		{"eq exact", Filter{}.Eq("date", "2026-02-11"), true},
		{"eq mismatch", Filter{}.Eq("date", "2026-02-12"), false},
		{"eq is not substring", Filter{}.Eq("merchant", "Costco"), false},
		{"missing key", Filter{}.Eq("location", "Seattle"), false},
		{"and", Filter{}.Contains("merchant", "costco").Eq("date", "2026-02-11"), true},
		{"and fails", Filter{}.Contains("merchant", "walmart").Eq("date", "2026-02-11"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(md); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterBuildersDoNotAlias(t *testing.T) {
	base := Filter{}.Eq("date", "2026-02-11")
	a := base.Contains("merchant", "costco")
	b := base.Contains("merchant", "target")
	if v, _ := a.Value("merchant"); v != "costco" {
		t.Errorf("a merchant = %q, want costco", v)
	}
	if v, _ := b.Value("merchant"); v != "target" {
		t.Errorf("b merchant = %q, want target", v)
	}
	if len(base.Conditions) != 1 {
		t.Errorf("base mutated: %+v", base.Conditions)
	}
	if m := a.Map(); m["date"] != "2026-02-11" || m["merchant"] != "costco" {
		t.Errorf("Map = %v", m)
	}
	if (Filter{}).Map() != nil {
		t.Error("empty filter Map should be nil")
	}
}
