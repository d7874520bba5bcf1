package converter

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ico-maker-go/internal/icon"
)

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", filepath.Join("nested", "c.webp")} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	exts := []string{".png", ".jpg", ".webp"}
	got := CollectImages([]string{"", dir, "explicit.txt"}, exts)
	want := []string{
		"",
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(nested, "c.webp"),
		"explicit.txt",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectImages =\n%v\nwant\n%v", got, want)
	}
}

func TestCollectImagesEmptyDirectory(t *testing.T) {
	got := CollectImages([]string{t.TempDir()}, []string{".png"})
	if len(got) != 0 {
		t.Errorf("expected nothing from an empty directory, got %v", got)
	}
}

func TestCollectImagesKeepsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	if err := os.Mkdir(locked, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(locked, "hidden.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0755)

	got := CollectImages([]string{dir}, []string{".png"})
	if !reflect.DeepEqual(got, []string{locked}) {
		t.Fatalf("CollectImages = %v, want [%s]", got, locked)
	}

	res := newTestEngine(DefaultOptions()).ConvertOne(got[0], Target{Directory: t.TempDir()}, icon.NewSelection(icon.FallbackSize))
	if FailureKind(res.Err) != "unreadable" {
		t.Errorf("unreadable directory: err = %v", res.Err)
	}
}
