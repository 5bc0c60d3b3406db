package formats

import (
	"context"
	"sync"
	"testing"

	"github.com/brensch/flatpack/internal/codec"
)

func TestResolveBuiltins(t *testing.T) {
	r := New(codec.New(nil))
	tests := map[string]codec.Family{
		".zip":  codec.FamilyZip,
		"ZIP":   codec.FamilyZip,
		".CBZ":  codec.FamilyZip,
		".tar":  codec.FamilyTar,
		".tgz":  codec.FamilyStream,
		".gz":   codec.FamilyStream,
		".rar":  codec.FamilyGeneric,
		".7z":   codec.FamilyGeneric,
		".what": codec.FamilyGeneric,
		"":      codec.FamilyGeneric,
	}
	for ext, want := range tests {
		if got := r.Resolve(ext).Family(); got != want {
			t.Errorf("Resolve(%q).Family() = %q, want %q", ext, got, want)
		}
	}
}

func TestBuiltinTable(t *testing.T) {
	r := New(codec.New(nil))
	for _, ext := range []string{".zip", ".jar", ".cbz", ".war", ".ear", ".tar", ".cbt",
		".gz", ".tgz", ".bz2", ".tbz", ".tbz2", ".xz", ".txz", ".zst", ".tzst", ".lz4", ".tlz4",
		".rar", ".cbr", ".7z", ".cb7", ".br", ".sz", ".lz"} {
		if !r.Known(ext) {
			t.Errorf("%s should be routed", ext)
		}
	}
	for _, ext := range []string{".apk", ".xpi", ".iso", ".deb", ".rpm", ".cab", ".arj", ".lzh", ".lha", ".lzma", ".Z"} {
		if r.Known(ext) {
			t.Errorf("%s needs an external tool and should stay unrouted", ext)
		}
	}
}

func TestRegisterLowercasesAndOverrides(t *testing.T) {
	r := New(codec.New(nil))
	called := ""
	r.Register(".PAK", HandlerFunc(func(ctx context.Context, src, dst string) ([]string, error) {
		called = "first"
		return nil, nil
	}))
	r.Register("pak", HandlerFunc(func(ctx context.Context, src, dst string) ([]string, error) {
		called = "second"
		return nil, nil
	}))

	if !r.Known(".pak") {
		t.Fatal("expected .pak to be known")
	}
	if _, err := r.Resolve(".Pak").Decode(context.Background(), "x", "y"); err != nil {
		t.Fatal(err)
	}
	if called != "second" {
		t.Errorf("last registration should win, got %q", called)
	}
	if r.Resolve(".pak").Family() != FamilyCustom {
		t.Errorf("custom handler family = %q", r.Resolve(".pak").Family())
	}
}

func TestDocumentContainers(t *testing.T) {
	r := New(codec.New(nil))
	if !r.IsDocumentContainer(".DOCX") {
		t.Error("docx should be a document container")
	}
	if r.IsDocumentContainer(".zip") {
		t.Error("zip is not a document container")
	}
	r.RegisterFamily(".docx", codec.FamilyZip)
	if r.IsDocumentContainer(".docx") {
		t.Error("explicit registration should clear the document flag")
	}
}

func TestTag(t *testing.T) {
	r := New(codec.New(nil))
	if got := r.Tag("/a/b/Photos.ZIP"); got != "zip" {
		t.Errorf("Tag = %q", got)
	}
	if got := r.Tag("/a/b/file.unknown"); got != "generic" {
		t.Errorf("Tag = %q", got)
	}
}

func TestConcurrentResolveAndRegister(t *testing.T) {
	r := New(codec.New(nil))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = r.Resolve(".zip")
				_ = r.Extensions()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.RegisterFamily(".cbz", codec.FamilyZip)
			}
		}()
	}
	wg.Wait()
	if r.Resolve(".cbz").Family() != codec.FamilyZip {
		t.Error("cbz routing lost")
	}
}
