package filter_test

import (
	"testing"

	"github.com/netreach/gozmap/internal/fieldset"
	"github.com/netreach/gozmap/internal/filter"
)

func schema() *fieldset.Schema {
	return &fieldset.Schema{
		Fields: []fieldset.FieldDef{
			{Name: "classification", Kind: fieldset.KindString},
			{Name: "success", Kind: fieldset.KindBool},
		},
		SuccessIndex:    1,
		AppSuccessIndex: -1,
	}
}

func TestAlwaysPasses(t *testing.T) {
	fs := fieldset.New(schema())
	if !(filter.Always{}).Eval(fs) {
		t.Fatalf("Always.Eval() = false")
	}
}

func TestPredicateMatchesField(t *testing.T) {
	s := schema()
	fs := fieldset.New(s)
	fs.SetValue(s.IndexOf("classification"), "synack")

	p := filter.Predicate{Field: "classification", Want: "synack"}
	if !p.Eval(fs) {
		t.Fatalf("Predicate.Eval() = false for a matching field")
	}

	p2 := filter.Predicate{Field: "classification", Want: "rst"}
	if p2.Eval(fs) {
		t.Fatalf("Predicate.Eval() = true for a non-matching field")
	}
}

func TestAllRequiresEveryPredicate(t *testing.T) {
	s := schema()
	fs := fieldset.New(s)
	fs.SetValue(s.IndexOf("classification"), "synack")
	fs.SetValue(s.IndexOf("success"), true)

	all := filter.All{
		filter.Predicate{Field: "classification", Want: "synack"},
		filter.Predicate{Field: "success", Want: true},
	}
	if !all.Eval(fs) {
		t.Fatalf("All.Eval() = false when every predicate matches")
	}

	all2 := filter.All{
		filter.Predicate{Field: "classification", Want: "synack"},
		filter.Predicate{Field: "success", Want: false},
	}
	if all2.Eval(fs) {
		t.Fatalf("All.Eval() = true when one predicate fails")
	}
}

func TestAnyRequiresOnePredicate(t *testing.T) {
	if (filter.Any{}).Eval(fieldset.New(schema())) {
		t.Fatalf("empty Any.Eval() = true, want false")
	}
}
