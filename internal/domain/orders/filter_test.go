package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/labdesk/labdesk/internal/domain/doctor"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC)
}

func filterFixture() ([]*Order, doctor.Names) {
	names := doctor.Names{"d1": "Dr. Mehta", "d2": "Dr. Shah"}
	list := []*Order{
		{ID: "1", SerialNo: "UB000001", Name: "Jane Doe", ReferredBy: "d1", CreatedAt: day(1)},
		{ID: "2", SerialNo: "UB000002", Name: "John Roe", ReferredBy: "d2", CreatedAt: day(5)},
		{ID: "3", SerialNo: "UB000003", Name: "Asha Mehra", ReferredBy: "", CreatedAt: day(10)},
		{ID: "4", SerialNo: "UB000004", Name: "Ravi", ReferredBy: "gone", CreatedAt: day(15)},
	}
	return list, names
}

func ids(list []*Order) []string {
	out := make([]string, 0, len(list))
	for _, o := range list {
		out = append(out, o.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("  jane ", "2026-03-01", "2026-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Search != "jane" {
		t.Errorf("expected trimmed search, got %q", f.Search)
	}
	if !f.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected from: %s", f.From)
	}
	wantTo := time.Date(2026, 3, 5, 23, 59, 59, 999999999, time.UTC)
	if !f.To.Equal(wantTo) {
		t.Errorf("expected to at end of day, got %s", f.To)
	}
}

func TestParseFilter_RFC3339KeepsInstant(t *testing.T) {
	f, err := ParseFilter("", "", "2026-03-05T12:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.To.Equal(time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected to: %s", f.To)
	}
}

func TestParseFilter_Invalid(t *testing.T) {
	tests := []struct{ name, from, to string }{
		{"bad from", "yesterday", ""},
		{"bad to", "", "05/03/2026"},
		{"reversed", "2026-03-10", "2026-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter("", tt.from, tt.to)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestFilter_SearchMatchesNameDoctorAndSerial(t *testing.T) {
	list, names := filterFixture()
	tests := []struct {
		search string
		want   []string
	}{
		{"", []string{"1", "2", "3", "4"}},
		{"JANE", []string{"1"}},
		{"mehta", []string{"1"}},
		{"meh", []string{"1", "3"}},
		{"dr. shah", []string{"2"}},
		{"ub000003", []string{"3"}},
		{"none", []string{}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got := ids(Filter{Search: tt.search}.Apply(list, names))
			if !equalIDs(got, tt.want) {
				t.Errorf("search %q: got %v, want %v", tt.search, got, tt.want)
			}
		})
	}
}

func TestFilter_Idempotent(t *testing.T) {
	list, names := filterFixture()
	from, to := day(2), day(12)
	f := Filter{Search: "e", From: &from, To: &to}

	once := f.Apply(list, names)
	twice := f.Apply(once, names)

	if !equalIDs(ids(once), ids(twice)) {
		t.Errorf("expected idempotent filter, got %v then %v", ids(once), ids(twice))
	}
}

func TestFilter_DateRangeOnlyWhenActive(t *testing.T) {
	list, names := filterFixture()

	f := Filter{Search: "r"}
	if f.DateActive() {
		t.Fatal("expected inactive date range without bounds")
	}
	searchOnly := ids(f.Apply(list, names))

	from, to := day(5), day(10)
	dated := Filter{Search: "r", From: &from, To: &to}
	if !dated.DateActive() {
		t.Fatal("expected active date range")
	}
	got := ids(dated.Apply(list, names))
	if !equalIDs(got, []string{"2", "3"}) {
		t.Errorf("expected inclusive range to keep 2 and 3, got %v", got)
	}

	reset := ids(dated.ResetDates().Apply(list, names))
	if !equalIDs(reset, searchOnly) {
		t.Errorf("expected reset to return the search-only set %v, got %v", searchOnly, reset)
	}
}

func TestFilter_SingleBound(t *testing.T) {
	list, names := filterFixture()
	from := day(10)
	got := ids(Filter{From: &from}.Apply(list, names))
	if !equalIDs(got, []string{"3", "4"}) {
		t.Errorf("expected open-ended range, got %v", got)
	}
}

func TestQuery_MatchAgreesWithFilter(t *testing.T) {
	list, names := filterFixture()
	from, to := day(1), day(15)
	for _, search := range []string{"", "meh", "shah", "ub00000", "ravi", "x"} {
		f := Filter{Search: search, From: &from, To: &to}
		q := NewQuery(f, names, 0, 0)

		var viaQuery []string
		for _, o := range list {
			if q.Match(o) {
				viaQuery = append(viaQuery, o.ID)
			}
		}
		viaFilter := ids(f.Apply(list, names))
		if len(viaQuery) == 0 {
			viaQuery = []string{}
		}
		if !equalIDs(viaQuery, viaFilter) {
			t.Errorf("search %q: query matched %v, filter matched %v", search, viaQuery, viaFilter)
		}
	}
}

func TestLikePattern(t *testing.T) {
	if got := likePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Errorf("unexpected pattern: %s", got)
	}
}
