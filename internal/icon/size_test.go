package icon

import (
	"reflect"
	"testing"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{in: "16", want: Size{16, 16}},
		{in: "32x32", want: Size{32, 32}},
		{in: " 48X48 ", want: Size{48, 48}},
		{in: "128", want: Size{128, 128}},
		{in: "256", wantErr: true},
		{in: "16x32", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseSize(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q) = %v, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSize(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseSizesDedupesAndSorts(t *testing.T) {
	sel, err := ParseSizes([]string{"64,16", "32x32", "16"})
	if err != nil {
		t.Fatalf("ParseSizes: %v", err)
	}
	want := Selection{{16, 16}, {32, 32}, {64, 64}}
	if !reflect.DeepEqual(sel, want) {
		t.Errorf("got %v, want %v", sel, want)
	}
	if sel.String() != "16x16,32x32,64x64" {
		t.Errorf("String() = %q", sel.String())
	}
}

func TestParseSizesEmpty(t *testing.T) {
	sel, err := ParseSizes([]string{"", " , "})
	if err != nil {
		t.Fatalf("ParseSizes: %v", err)
	}
	if len(sel) != 0 {
		t.Errorf("expected empty selection, got %v", sel)
	}
}

func TestResolve(t *testing.T) {
	all := NewSelection(Catalog()...)

	cases := []struct {
		name          string
		width, height int
		filter        bool
		want          Selection
	}{
		{
			name: "filter keeps sizes that fit", width: 50, height: 40, filter: true,
			want: Selection{{16, 16}, {32, 32}},
		},
		{
			name: "filter exact fit", width: 64, height: 64, filter: true,
			want: Selection{{16, 16}, {32, 32}, {48, 48}, {64, 64}},
		},
		{
			name: "filter falls back to 16x16", width: 8, height: 8, filter: true,
			want: Selection{FallbackSize},
		},
		{
			name: "no filter passes everything", width: 8, height: 8, filter: false,
			want: all,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(all, tc.width, tc.height, tc.filter)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Resolve = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolveFallbackWhenRequestedAllTooLarge(t *testing.T) {
	requested := NewSelection(Size{64, 64}, Size{128, 128})
	got := Resolve(requested, 32, 32, true)
	if !reflect.DeepEqual(got, Selection{{16, 16}}) {
		t.Errorf("Resolve = %v, want [16x16]", got)
	}
}

func TestResolveDoesNotAliasInput(t *testing.T) {
	requested := NewSelection(Size{32, 32})
	got := Resolve(requested, 1, 1, false)
	got[0] = Size{64, 64}
	if requested[0] != (Size{32, 32}) {
		t.Errorf("Resolve returned a slice sharing the input backing array")
	}
}
