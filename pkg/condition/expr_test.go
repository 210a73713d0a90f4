package condition

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func TestExpr_Eval(t *testing.T) {
	t.Parallel()

	answers := model.Answers{
		"stage":          model.Text("idea"),
		"team_size":      model.Text(" 4 "),
		"has_bookkeeper": model.Text("true"),
		"channels":       model.Choices("email", "social"),
		"website":        model.Text("   "),
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`stage == "idea"`, true},
		{`stage != 'idea'`, false},
		{`stage == idea`, true},
		{`team_size == 4`, true},
		{`team_size != 5`, true},
		{`has_bookkeeper == true`, true},
		{`has_bookkeeper`, true},
		{`!has_bookkeeper`, false},
		{`channels == "social"`, true},
		{`channels == "print"`, false},
		{`website`, false},
		{`website == null`, true},
		{`missing == null`, true},
		{`missing == false`, true},
		{`stage == "growth" || channels == "email"`, true},
		{`stage == "idea" && (team_size == 1 || !website)`, true},
		{`!(stage == "idea")`, false},
		{``, true},
	}

	for _, tt := range tests {
		expr, err := Compile(tt.expr)
		if err != nil {
			t.Fatalf("compile %q: %v", tt.expr, err)
		}
		if got := expr.Eval(answers); got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.expr, tt.want, got)
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		`stage = "idea"`,
		`stage & other`,
		`stage | other`,
		`stage == "open`,
		`(stage == "idea"`,
		`stage ==`,
		`"idea" == stage`,
		`stage == "a" extra`,
		`team == 1.2.3`,
	} {
		if _, err := Compile(src); err == nil {
			t.Errorf("expected compile error for %q", src)
		}
	}
}

func TestExpr_Fields(t *testing.T) {
	t.Parallel()

	expr := MustCompile(`b == 1 || a || (b != 2 && !c)`)
	want := []model.FieldID{"a", "b", "c"}
	if diff := cmp.Diff(want, expr.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	var nilExpr *Expr
	if !nilExpr.Eval(nil) || nilExpr.String() != "" {
		t.Fatalf("nil expression should be an always-true no-op")
	}
}
