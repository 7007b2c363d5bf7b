package searchinfo

import (
	"reflect"
	"testing"
)

func TestEpoch(t *testing.T) {
	info := New(map[string]string{
		KeyTimestamp: "1400000000.123",
		KeyEarliest:  "1399990000",
		KeyLatest:    "garbage",
		"empty":      "",
	})

	tests := []struct {
		name   string
		key    string
		want   int64
		wantOK bool
	}{
		{"fractional truncated", KeyTimestamp, 1400000000, true},
		{"integer", KeyEarliest, 1399990000, true},
		{"unparsable", KeyLatest, 0, false},
		{"empty", "empty", 0, false},
		{"missing", "_nope", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := info.Epoch(tt.key)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Epoch(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAccessors(t *testing.T) {
	info := New(map[string]string{
		KeyTimestamp: "10.5",
		KeyEarliest:  "20",
		KeyAuthToken: "tok",
	})
	if ts, ok := info.Timestamp(); !ok || ts != 10 {
		t.Errorf("Timestamp() = %d, %v", ts, ok)
	}
	if et, ok := info.EarliestTime(); !ok || et != 20 {
		t.Errorf("EarliestTime() = %d, %v", et, ok)
	}
	if _, ok := info.LatestTime(); ok {
		t.Error("LatestTime() should be absent")
	}
	if !info.IsTimeRange() {
		t.Error("IsTimeRange() = false")
	}
	if info.AuthToken() != "tok" {
		t.Errorf("AuthToken() = %q", info.AuthToken())
	}
	et, lt := info.TimeBounds()
	if et == nil || *et != 20 || lt != nil {
		t.Errorf("TimeBounds() = %v, %v", et, lt)
	}
	if got := info.Keys(); !reflect.DeepEqual(got, []string{KeyAuthToken, KeyEarliest, KeyTimestamp}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestNilSearchInfo(t *testing.T) {
	var info *SearchInfo
	if _, ok := info.Field("x"); ok {
		t.Error("nil info has no fields")
	}
	if info.IsTimeRange() || info.Len() != 0 || info.AuthToken() != "" || info.Keys() != nil {
		t.Error("nil info must behave as empty")
	}
	if _, ok := info.Timestamp(); ok {
		t.Error("nil info has no timestamp")
	}
}

func TestNew_CopiesMap(t *testing.T) {
	src := map[string]string{"a": "1"}
	info := New(src)
	src["a"] = "2"
	if v, _ := info.Field("a"); v != "1" {
		t.Errorf("Field(a) = %q", v)
	}
}
