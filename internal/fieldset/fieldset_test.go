package fieldset_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/netreach/gozmap/internal/fieldset"
)

func testSchema() *fieldset.Schema {
	return &fieldset.Schema{
		Fields: []fieldset.FieldDef{
			{Name: "classification", Kind: fieldset.KindString},
			{Name: "success", Kind: fieldset.KindBool},
			{Name: "app_success", Kind: fieldset.KindBool},
			{Name: "sport", Kind: fieldset.KindInt},
		},
		SuccessIndex:    1,
		AppSuccessIndex: 2,
	}
}

func TestZeroValues(t *testing.T) {
	fs := fieldset.New(testSchema())
	if fs.IsSuccess() {
		t.Fatalf("new field set must default IsSuccess() to false")
	}
	if v, ok := fs.AppSuccess(); !ok || v {
		t.Fatalf("AppSuccess() = (%v, %v), want (false, true)", v, ok)
	}
}

func TestAppSuccessAbsent(t *testing.T) {
	schema := testSchema()
	schema.AppSuccessIndex = -1
	fs := fieldset.New(schema)
	if _, ok := fs.AppSuccess(); ok {
		t.Fatalf("AppSuccess() ok=true for a schema with no app_success_index")
	}
}

func TestSetAndProject(t *testing.T) {
	schema := testSchema()
	fs := fieldset.New(schema)
	fs.System.Classification = "synack"
	fs.SetValue(schema.IndexOf("success"), true)

	fs.System.SourceIP = netip.MustParseAddr("192.0.2.1")
	fs.System.DestIP = netip.MustParseAddr("10.0.0.1")
	fs.System.SourcePort = 80
	fs.System.DestPort = 54321
	fs.System.Timestamp = time.Unix(1000, 0)
	fs.System.Repeat = false

	if !fs.IsSuccess() {
		t.Fatalf("IsSuccess() = false after setting success field true")
	}

	got := fs.Project([]string{"saddr", "daddr", "classification", "success", "sport", "missing_field"})
	want := []any{"192.0.2.1", "10.0.0.1", "synack", true, uint16(80), nil}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Project()[%d] = %#v, want %#v", i, got[i], want[i])
		}
	}
}
