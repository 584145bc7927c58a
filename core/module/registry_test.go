package module

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mambaweb/mamba/core/events"
	"github.com/mambaweb/mamba/core/watch"
	"github.com/rs/zerolog"
)

type testController struct {
	name string
	gen  int
}

func (c *testController) MambaKind() string { return KindController }

// writeModule writes a module file declaring kind.
func writeModule(t *testing.T, dir, file, kind string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "// -*- mamba-file-type: " + kind + " -*-\npackage " + Name(file) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// counterLoader registers each name with a factory producing a fresh
// instance per execution.
func counterLoader(names ...string) *StaticLoader {
	l := NewStaticLoader()
	for _, name := range names {
		gen := 0
		l.Register(name, func() Symbols {
			gen++
			g := gen
			n := name
			return Symbols{FactorySymbol: Factory(func() any {
				return &testController{name: n, gen: g}
			})}
		})
	}
	return l
}

func newTestRegistry(t *testing.T, root string, loader Loader) *Registry {
	t.Helper()
	r, err := NewControllerManager(Options{
		Root:   root,
		Loader: loader,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewControllerManager() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNew_RequiresLoader(t *testing.T) {
	if _, err := New(Options{Root: t.TempDir()}); err == nil {
		t.Error("New() without a loader should fail")
	}
}

func TestScan_ValidAndInvalidFiles(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "foo.go", KindController)
	os.WriteFile(filepath.Join(root, "bar.txt"), []byte("-*- mamba-file-type: mamba-controller -*-"), 0o644)
	writeModule(t, root, "post.go", KindModel)
	writeModule(t, root, "_helper.go", KindController)
	writeModule(t, root, "foo_test.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo", "post", "_helper", "foo_test"))
	if err := r.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if diff := cmp.Diff([]string{"foo"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestScan_RecursesInOrder(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "b.go", KindController)
	writeModule(t, root, "a.go", KindController)
	writeModule(t, root, filepath.Join("admin", "users.go"), KindController)

	r := newTestRegistry(t, root, counterLoader("a", "b", "users"))
	if err := r.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if diff := cmp.Diff([]string{"a", "admin/users", "b"}, importPaths(r)); diff != "" {
		t.Errorf("import paths mismatch (-want +got):\n%s", diff)
	}
}

func importPaths(r *Registry) []string {
	var out []string
	for _, e := range r.Entries() {
		out = append(out, e.ImportPath)
	}
	return out
}

func TestScan_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "foo.go", KindController)
	writeModule(t, root, "bar.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo", "bar"))
	if err := r.Scan(root); err != nil {
		t.Fatal(err)
	}
	first, _ := r.Lookup("foo")

	if err := r.Scan(root); err != nil {
		t.Fatal(err)
	}
	second, _ := r.Lookup("foo")

	if r.Count() != 2 {
		t.Errorf("Count() = %d after second scan, want 2", r.Count())
	}
	if first.Instance != second.Instance {
		t.Error("second scan replaced an already loaded instance")
	}
}

func TestScan_UnreadableDirectoryIsSkipped(t *testing.T) {
	r := newTestRegistry(t, t.TempDir(), counterLoader())
	if err := r.Scan(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Errorf("Scan() of missing directory error = %v, want nil", err)
	}
}

func TestScan_LoadErrorAbortsOnlyThatFile(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "broken.go", KindController)
	writeModule(t, root, "good.go", KindController)

	r := newTestRegistry(t, root, counterLoader("good"))
	err := r.Setup()
	if err == nil {
		t.Fatal("Setup() should report the broken module")
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error %v is not a *LoadError", err)
	}
	if loadErr.Name != "broken" {
		t.Errorf("LoadError.Name = %q, want broken", loadErr.Name)
	}
	if !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("error should wrap ErrModuleNotFound: %v", err)
	}
	if _, ok := r.Lookup("good"); !ok {
		t.Error("good module should still be loaded")
	}
}

func TestLoad_AlreadyRegisteredIsNoop(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}
	before, _ := r.Lookup("foo")

	if err := r.Load(path); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	after, _ := r.Lookup("foo")

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
	if before.Instance != after.Instance {
		t.Error("Load() of a registered name replaced the instance")
	}
	if !after.Loaded {
		t.Error("registered entry should be marked loaded")
	}
}

func TestLoad_MissingFactory(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "empty.go", KindController)

	l := NewStaticLoader()
	l.Register("empty", func() Symbols { return Symbols{"Helper": 1} })

	r := newTestRegistry(t, root, l)
	err := r.Load(path)
	if !errors.Is(err, ErrNoFactory) {
		t.Errorf("Load() error = %v, want ErrNoFactory", err)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestReload_NotLoaded(t *testing.T) {
	r := newTestRegistry(t, t.TempDir(), counterLoader())
	err := r.Reload("ghost")
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Reload() error = %v, want ErrNotLoaded", err)
	}
}

func TestReload_ReplacesInstance(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}
	old, _ := r.Lookup("foo")

	if err := r.Reload("foo"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	cur, ok := r.Lookup("foo")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if cur.Instance == old.Instance {
		t.Error("Reload() should build a new instance")
	}
	if cur.Name != "foo" || !cur.Loaded {
		t.Errorf("entry = %+v, want loaded foo", cur)
	}
	if cur.Reloads != 1 {
		t.Errorf("Reloads = %d, want 1", cur.Reloads)
	}
	if got := cur.Instance.(*testController).gen; got != 2 {
		t.Errorf("instance generation = %d, want 2", got)
	}
	if cur.Handle != old.Handle {
		t.Error("Reload() should keep the module handle")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestReload_FailureKeepsPreviousEntry(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	var buf bytes.Buffer
	r, err := NewControllerManager(Options{
		Root:   root,
		Loader: counterLoader("foo"),
		Logger: zerolog.New(&buf),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}
	old, _ := r.Lookup("foo")

	os.Remove(path)

	if err := r.Reload("foo"); err != nil {
		t.Fatalf("Reload() failure should not propagate, got %v", err)
	}

	cur, ok := r.Lookup("foo")
	if !ok {
		t.Fatal("failed reload removed the entry")
	}
	if cur.Instance != old.Instance {
		t.Error("failed reload should keep the previous instance")
	}

	var rerr *ReloadError
	if !errors.As(r.LastReloadError("foo"), &rerr) {
		t.Fatalf("LastReloadError() = %v, want *ReloadError", r.LastReloadError("foo"))
	}
	if !errors.Is(rerr, os.ErrNotExist) {
		t.Errorf("reload error should wrap os.ErrNotExist: %v", rerr)
	}
	if !strings.Contains(buf.String(), "[INFO] Reloading module foo") {
		t.Errorf("reload was not logged: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[ERROR] Error reloading module foo") {
		t.Errorf("reload failure was not logged: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"syslog_priority":3`) {
		t.Errorf("reload failure lacks syslog priority: %s", buf.String())
	}
}

func TestReload_SuccessClearsFailure(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	r.Load(path)

	os.Remove(path)
	r.Reload("foo")
	if r.LastReloadError("foo") == nil {
		t.Fatal("expected a recorded reload failure")
	}

	writeModule(t, root, "foo.go", KindController)
	r.Reload("foo")
	if err := r.LastReloadError("foo"); err != nil {
		t.Errorf("LastReloadError() = %v after successful reload", err)
	}
}

func TestReload_FailedInstantiateRestoresSymbols(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	l := counterLoader("foo")
	r := newTestRegistry(t, root, l)
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}

	l.Register("foo", func() Symbols {
		return Symbols{FactorySymbol: Factory(func() any { return nil })}
	})
	r.Reload("foo")
	if !errors.Is(r.LastReloadError("foo"), ErrNilInstance) {
		t.Fatalf("LastReloadError() = %v, want ErrNilInstance", r.LastReloadError("foo"))
	}

	e, _ := r.Lookup("foo")
	got, err := Instantiate(e.Handle, KindController)
	if err != nil {
		t.Fatalf("Instantiate() after failed reload error = %v", err)
	}
	if c := got.(*testController); c.gen != 1 {
		t.Errorf("handle resolves generation %d, want 1", c.gen)
	}
}

func TestReload_PanickingModule(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	calls := 0
	l := NewStaticLoader()
	l.Register("foo", func() Symbols {
		calls++
		if calls > 1 {
			panic("syntax error")
		}
		return Symbols{FactorySymbol: Factory(func() any { return &testController{} })}
	})

	r := newTestRegistry(t, root, l)
	if err := r.Load(path); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload("foo"); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if r.LastReloadError("foo") == nil {
		t.Error("panicking module should record a reload failure")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestHandle_ModifiedUnregisteredIsIgnored(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	r.Handle(watch.Event{Kind: watch.Modified, Path: path})

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestHandle_ModifiedRegisteredReloads(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	r.Load(path)
	r.Handle(watch.Event{Kind: watch.Modified, Path: path})

	e, _ := r.Lookup("foo")
	if e.Reloads != 1 {
		t.Errorf("Reloads = %d, want 1", e.Reloads)
	}
}

func TestHandle_ModifiedInvalidFileIsIgnored(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	r.Load(path)

	// the file now declares a different kind
	writeModule(t, root, "foo.go", KindModel)
	r.Handle(watch.Event{Kind: watch.Modified, Path: path})

	e, _ := r.Lookup("foo")
	if e.Reloads != 0 {
		t.Errorf("Reloads = %d, want 0", e.Reloads)
	}
}

// A deleted file can no longer be validated, so the modified event is
// dropped and the loaded entry stays as it was.
func TestHandle_ModifiedDeletedFile(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	r.Load(path)
	old, _ := r.Lookup("foo")

	os.Remove(path)
	r.Handle(watch.Event{Kind: watch.Modified, Path: path})

	cur, ok := r.Lookup("foo")
	if !ok || cur.Instance != old.Instance {
		t.Error("entry should be unchanged after modified event for deleted file")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestHandle_CreatedLoads(t *testing.T) {
	root := t.TempDir()
	r := newTestRegistry(t, root, counterLoader("foo"))

	path := writeModule(t, root, "foo.go", KindController)
	r.Handle(watch.Event{Kind: watch.Created, Path: path})

	e, ok := r.Lookup("foo")
	if !ok {
		t.Fatal("created module was not loaded")
	}
	if !e.Loaded {
		t.Error("created module should be marked loaded")
	}
}

func TestHandle_CreatedMissingOrInvalid(t *testing.T) {
	root := t.TempDir()
	r := newTestRegistry(t, root, counterLoader("foo", "bar"))

	r.Handle(watch.Event{Kind: watch.Created, Path: filepath.Join(root, "foo.go")})
	bar := writeModule(t, root, "bar.go", KindModel)
	r.Handle(watch.Event{Kind: watch.Created, Path: bar})

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestHandle_OtherIsIgnored(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	r := newTestRegistry(t, root, counterLoader("foo"))
	r.Handle(watch.Event{Kind: watch.Other, Path: path})

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

type fakeSubscription struct{ closed int }

func (s *fakeSubscription) Close() error {
	s.closed++
	return nil
}

func TestNew_WatchAttached(t *testing.T) {
	root := t.TempDir()
	sub := &fakeSubscription{}
	var handler watch.Handler
	var attachedRoot string

	r, err := NewControllerManager(Options{
		Root:          root,
		ReloadEnabled: true,
		Loader:        counterLoader("foo"),
		Logger:        zerolog.Nop(),
		Source: watch.SourceFunc(func(path string, h watch.Handler) (watch.Subscription, error) {
			attachedRoot = path
			handler = h
			return sub, nil
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := r.Watch(); got != (WatchState{Enabled: true, Active: true}) {
		t.Errorf("Watch() = %+v, want enabled and active", got)
	}
	if attachedRoot != r.Root() {
		t.Errorf("attached %q, want %q", attachedRoot, r.Root())
	}

	path := writeModule(t, root, "foo.go", KindController)
	handler(watch.Event{Kind: watch.Created, Path: path})
	if r.Count() != 1 {
		t.Errorf("Count() = %d after created event, want 1", r.Count())
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	r.Close()
	if sub.closed != 1 {
		t.Errorf("subscription closed %d times, want 1", sub.closed)
	}
	if r.Watch().Active {
		t.Error("watch should be inactive after Close")
	}
}

func TestNew_WatchUnavailableDegrades(t *testing.T) {
	root := t.TempDir()
	writeModule(t, root, "foo.go", KindController)

	r, err := NewControllerManager(Options{
		Root:          root,
		ReloadEnabled: true,
		Loader:        counterLoader("foo"),
		Logger:        zerolog.Nop(),
		Source: watch.SourceFunc(func(string, watch.Handler) (watch.Subscription, error) {
			return nil, ErrWatchUnavailable
		}),
	})
	if err != nil {
		t.Fatalf("watch failure should not be fatal: %v", err)
	}
	defer r.Close()

	if got := r.Watch(); got != (WatchState{Enabled: true, Active: false}) {
		t.Errorf("Watch() = %+v, want enabled but inactive", got)
	}
	if err := r.Setup(); err != nil {
		t.Fatal(err)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestNew_ReloadDisabledDoesNotAttach(t *testing.T) {
	attached := false
	r, err := New(Options{
		Root:   t.TempDir(),
		Loader: counterLoader(),
		Logger: zerolog.Nop(),
		Source: watch.SourceFunc(func(string, watch.Handler) (watch.Subscription, error) {
			attached = true
			return &fakeSubscription{}, nil
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if attached {
		t.Error("watch attached with reload disabled")
	}
	if r.Watch() != (WatchState{}) {
		t.Errorf("Watch() = %+v, want zero", r.Watch())
	}
}

func TestRegistry_PublishesLifecycleEvents(t *testing.T) {
	root := t.TempDir()
	path := writeModule(t, root, "foo.go", KindController)

	bus := events.NewBus(zerolog.Nop())
	var got []string
	bus.Subscribe("module.*", func(ctx context.Context, e events.Event) error {
		got = append(got, e.Name+":"+e.Module)
		return nil
	})

	r, _ := NewControllerManager(Options{
		Root:   root,
		Loader: counterLoader("foo"),
		Bus:    bus,
		Logger: zerolog.Nop(),
	})
	r.Load(path)
	r.Reload("foo")
	os.Remove(path)
	r.Reload("foo")

	want := []string{"module.loaded:foo", "module.reloaded:foo", "module.reload_failed:foo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_AutoReloadWithFSNotify(t *testing.T) {
	root := t.TempDir()
	r, err := NewControllerManager(Options{
		Root:          root,
		ReloadEnabled: true,
		Loader:        counterLoader("foo"),
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if !r.Watch().Active {
		t.Skip("file watching not available on this platform")
	}

	// write elsewhere and move in so the file is complete when it appears
	staged := writeModule(t, t.TempDir(), "foo.go", KindController)
	if err := os.Rename(staged, filepath.Join(root, "foo.go")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for r.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 after file creation", r.Count())
	}
}

func TestRegistry_AutoLoadFileWrittenInPlace(t *testing.T) {
	root := t.TempDir()
	r, err := NewControllerManager(Options{
		Root:          root,
		ReloadEnabled: true,
		Loader:        counterLoader("foo"),
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if !r.Watch().Active {
		t.Skip("file watching not available on this platform")
	}

	f, err := os.Create(filepath.Join(root, "foo.go"))
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := f.WriteString("// -*- mamba-file-type: " + KindController + " -*-\npackage foo\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for r.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 after writing the file in place", r.Count())
	}
}

func TestInstantiate(t *testing.T) {
	ctrl := &testController{name: "ext"}

	tests := []struct {
		name    string
		symbols Symbols
		kind    string
		wantErr error
	}{
		{"factory", Symbols{FactorySymbol: Factory(func() any { return ctrl })}, KindController, nil},
		{"plain func factory", Symbols{FactorySymbol: func() any { return ctrl }}, KindController, nil},
		{"extension point", Symbols{ModuleSymbol: ctrl}, KindController, nil},
		{"extension point any kind", Symbols{ModuleSymbol: ctrl}, "", nil},
		{"extension point other kind", Symbols{ModuleSymbol: ctrl}, KindModel, ErrNoFactory},
		{"not a capability", Symbols{ModuleSymbol: 42}, KindController, ErrNoFactory},
		{"bad factory", Symbols{FactorySymbol: "nope"}, KindController, ErrBadFactory},
		{"nil instance", Symbols{FactorySymbol: Factory(func() any { return nil })}, KindController, ErrNilInstance},
		{"empty", Symbols{}, KindController, ErrNoFactory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &staticHandle{path: "x.go", symbols: tt.symbols}
			got, err := Instantiate(h, tt.kind)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Instantiate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != ctrl {
				t.Errorf("Instantiate() = %v, want %v", got, ctrl)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := map[string]string{
		"/app/controller/blog.go": "blog",
		"blog.go":                 "blog",
		"/app/README":             "README",
		"archive.tar.gz":          "archive.tar",
	}
	for in, want := range tests {
		if got := Name(in); got != want {
			t.Errorf("Name(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestImportPath_WithPackage(t *testing.T) {
	root := t.TempDir()
	r, _ := New(Options{Root: root, Package: "shop/controller", Loader: counterLoader(), Logger: zerolog.Nop()})

	got := r.importPath(filepath.Join(root, "admin", "users.go"))
	if got != "shop/controller/admin/users" {
		t.Errorf("importPath() = %q", got)
	}
}
