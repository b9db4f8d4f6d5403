package settings

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf", "settings.yaml")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s, path := setupStore(t)
	if len(s.Keys()) != 0 {
		t.Errorf("expected empty store, got %v", s.Keys())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Open must not create the file")
	}
}

func TestEnsureDefaults(t *testing.T) {
	s, path := setupStore(t)
	if err := s.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	if got := s.Int(KeyThreshold); got != 18 {
		t.Errorf("threshold = %d, want 18", got)
	}
	if got := s.String(KeyLogDir); got != "./logs/" {
		t.Errorf("log_dir = %q", got)
	}
	if s.Bool(KeyRan) {
		t.Error("ran should default to false")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not persisted: %v", err)
	}

	// user changes survive a second EnsureDefaults
	if err := s.Set(KeyThreshold, 25); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureDefaults(); err != nil {
		t.Fatal(err)
	}
	if got := s.Int(KeyThreshold); got != 25 {
		t.Errorf("threshold = %d after EnsureDefaults, want 25", got)
	}
}

func TestSetPersists(t *testing.T) {
	s, path := setupStore(t)
	if err := s.Set(KeyAPIKey, "abc123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyLogMode, 4); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(KeyCaching, true); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.String(KeyAPIKey); got != "abc123" {
		t.Errorf("api_key = %q", got)
	}
	if got := reopened.Int(KeyLogMode); got != 4 {
		t.Errorf("log_mode = %d", got)
	}
	if !reopened.Bool(KeyCaching) {
		t.Error("caching should be true")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestGetMissing(t *testing.T) {
	s, _ := setupStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if s.String("nope") != "" || s.Int("nope") != 0 || s.Bool("nope") || s.Float("nope") != 0 {
		t.Error("typed getters should return zero values for missing keys")
	}
}

func TestTypedGetterConversions(t *testing.T) {
	s, _ := setupStore(t)
	_ = s.Set("n", "42")
	_ = s.Set("f", 2.5)
	_ = s.Set("flag", 1)
	_ = s.Set("sflag", "true")

	if s.Int("n") != 42 {
		t.Errorf("Int(\"42\") = %d", s.Int("n"))
	}
	if s.Float("f") != 2.5 || s.Int("f") != 2 {
		t.Errorf("Float/Int of 2.5 = %v/%d", s.Float("f"), s.Int("f"))
	}
	if !s.Bool("flag") || !s.Bool("sflag") {
		t.Error("expected true flags")
	}
	if s.String("f") != "2.5" {
		t.Errorf("String(2.5) = %q", s.String("f"))
	}
}

func TestDeleteAndReset(t *testing.T) {
	s, path := setupStore(t)
	_ = s.Set("custom", "x")
	if err := s.Delete("custom"); err != nil {
		t.Fatal(err)
	}
	if s.Has("custom") {
		t.Error("custom still present after Delete")
	}
	if err := s.Delete("custom"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}

	_ = s.Set("custom", "y")
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	want := Defaults()
	keys := s.Keys()
	if len(keys) != len(want) {
		t.Errorf("got %d keys after Reset, want %d", len(keys), len(want))
	}
	if s.Has("custom") {
		t.Error("Reset kept a non-default key")
	}

	reopened, _ := Open(path)
	if !reflect.DeepEqual(reopened.Keys(), keys) {
		t.Errorf("reopened keys %v differ from %v", reopened.Keys(), keys)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml\n\t- ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaultTemplatesRender(t *testing.T) {
	fields := map[string]any{
		"ts":           time.Date(2020, 3, 4, 13, 5, 9, 0, time.UTC),
		"num_replays":  2,
		"similarity":   12.345,
		"replay1_name": "a",
		"replay2_name": "b",
		"later_name":   "b",
		"check_type":   "steal",
		"s":            60,
	}
	for key, v := range Defaults() {
		tmpl, ok := v.(string)
		if !ok || !strings.HasPrefix(key, "message_") && !strings.HasPrefix(key, "string_") {
			continue
		}
		if _, err := Format(tmpl, fields); err != nil {
			t.Errorf("default %s does not render: %v", key, err)
		}
	}
}
