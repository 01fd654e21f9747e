package orders

import (
	"strings"
	"testing"
	"time"
)

func TestWhereClause_Empty(t *testing.T) {
	where, args := whereClause(Query{})
	if where != "" || len(args) != 0 {
		t.Errorf("expected no clause, got %q %v", where, args)
	}
}

func TestWhereClause_SearchAndDoctors(t *testing.T) {
	where, args := whereClause(Query{
		Filter:    Filter{Search: "jane"},
		DoctorIDs: []string{"d1", "d2"},
	})

	want := " WHERE (name ILIKE $1 OR serial_no ILIKE $1 OR referred_by = ANY($2))"
	if where != want {
		t.Errorf("unexpected clause:\n got %q\nwant %q", where, want)
	}
	if len(args) != 2 || args[0] != "%jane%" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestWhereClause_SearchWithoutDoctors(t *testing.T) {
	where, _ := whereClause(Query{Filter: Filter{Search: "ub0001"}})
	if strings.Contains(where, "referred_by") {
		t.Errorf("expected no doctor condition, got %q", where)
	}
}

func TestWhereClause_DateRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
	where, args := whereClause(Query{Filter: Filter{Search: "x", From: &from, To: &to}})

	want := " WHERE (name ILIKE $1 OR serial_no ILIKE $1) AND created_at >= $2 AND created_at <= $3"
	if where != want {
		t.Errorf("unexpected clause:\n got %q\nwant %q", where, want)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if got, ok := args[2].(time.Time); !ok || !got.Equal(to) {
		t.Errorf("unexpected to arg: %v", args[2])
	}
}

func TestCollection_FormatSerial(t *testing.T) {
	tests := []struct {
		coll Collection
		n    int64
		want string
	}{
		{Collection{Prefix: "UB"}, 1, "UB000001"},
		{Collection{Prefix: "LAB"}, 4213, "LAB004213"},
		{Collection{Prefix: "LAB"}, 1234567, "LAB1234567"},
	}
	for _, tt := range tests {
		if got := tt.coll.FormatSerial(tt.n); got != tt.want {
			t.Errorf("FormatSerial(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
