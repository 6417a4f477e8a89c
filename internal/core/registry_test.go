package core

import (
	"errors"
	"slices"
	"testing"

	"datasync/internal/pkg/errs"
	"datasync/internal/plugin/common"
)

func TestPluginRegistry_RegisterAndLookup(t *testing.T) {
	registry, _ := newFakeRegistry(fakeOptions{})

	if !registry.HasReader("mockreader") || !registry.HasWriter("mockwriter") {
		t.Fatal("Registered plugins should be found")
	}
	if _, err := registry.Reader("mockreader"); err != nil {
		t.Errorf("Reader lookup failed: %v", err)
	}
	if _, err := registry.Writer("nosuchwriter"); !errs.Is(err, errs.Config) {
		t.Errorf("Missing writer should return a Config error, got: %v", err)
	}
	if _, err := registry.Reader("mockwriter"); err == nil {
		t.Error("Readers and writers should live in separate namespaces")
	}
}

func TestPluginRegistry_SortedNamesAndInfo(t *testing.T) {
	registry := NewPluginRegistry()
	for _, name := range []string{"b", "c", "a"} {
		registry.RegisterReader(name+"reader", common.ReaderPlugin{Description: name})
		registry.RegisterWriter(name+"writer", common.WriterPlugin{Description: name})
	}

	if got := registry.GetRegisteredReaders(); !slices.Equal(got, []string{"areader", "breader", "creader"}) {
		t.Errorf("Readers should be sorted, got %v", got)
	}
	info := registry.GetPluginInfo()
	if len(info) != 6 {
		t.Fatalf("Expected 6 plugin infos, got %d", len(info))
	}
	if info[0].Name != "areader" || info[0].Type != "reader" || info[3].Name != "awriter" || info[3].Type != "writer" {
		t.Errorf("Readers should come before writers, got %+v", info)
	}

	registry.Clear()
	if len(registry.GetPluginInfo()) != 0 {
		t.Error("Clear should remove all plugins")
	}
}

func TestPluginManager_RegisterAllPlugins(t *testing.T) {
	registry := NewPluginRegistry()
	pm := NewPluginManager(registry)
	if err := pm.RegisterAllPlugins(); err != nil {
		t.Fatalf("RegisterAllPlugins failed: %v", err)
	}

	readers := []string{"mysqlreader", "postgresqlreader", "oraclereader", "sqlserverreader", "sqlitereader", "streamreader"}
	writers := []string{"mysqlwriter", "postgresqlwriter", "oraclewriter", "sqlserverwriter", "sqlitewriter",
		"hbasesqlwriter", "mongodbwriter", "streamwriter"}
	for _, name := range readers {
		if err := pm.ValidatePlugin("reader", name); err != nil {
			t.Errorf("Reader %s should be registered: %v", name, err)
		}
	}
	for _, name := range writers {
		if !pm.IsPluginRegistered("writer", name) {
			t.Errorf("Writer %s should be registered", name)
		}
	}
	if err := pm.ValidatePlugin("writer", "ftpwriter"); err == nil {
		t.Error("Unknown writer should fail validation")
	}
	var se *errs.SyncError
	if err := pm.ValidatePlugin("transformer", "x"); !errors.As(err, &se) {
		t.Errorf("Unknown plugin type should return a coded error, got: %v", err)
	}
}
