package dispatch

import "testing"

func TestIsSafeWhereClauseRejectsQuotesAndSemicolons(t *testing.T) {
	cases := []struct {
		clause string
		safe   bool
	}{
		{"score > 10 AND active = 1", true},
		{"name = 'bob'", false},
		{`name = "bob"`, false},
		{"1; DROP TABLE users", false},
	}
	for _, tc := range cases {
		if got := isSafeWhereClause(tc.clause); got != tc.safe {
			t.Errorf("isSafeWhereClause(%q) = %v, want %v", tc.clause, got, tc.safe)
		}
	}
}
