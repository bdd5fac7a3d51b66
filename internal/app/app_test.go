package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"olmkit/internal/app"
	"olmkit/internal/store"
	"olmkit/pkg/olm"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OLMCTL_HOME", "/tmp/olm")

	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Home != "/tmp/olm" || cfg.Store != app.StoreFile || cfg.PickleKDF != "scrypt" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.Prefix != "olmkit" {
		t.Fatalf("unexpected redis defaults %+v", cfg.Redis)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("OLMCTL_STORE", "redis")
	t.Setenv("OLMCTL_REDIS_ADDR", "cache:6380")
	t.Setenv("OLMCTL_REDIS_DB", "3")
	t.Setenv("OLMCTL_PICKLE_KDF", "argon2id")
	t.Setenv("OLMCTL_LOG_PRETTY", "false")

	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != "redis" || cfg.Redis.Addr != "cache:6380" || cfg.Redis.DB != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LogPretty {
		t.Fatal("LOG_PRETTY=false ignored")
	}
	kdf, err := cfg.KDF()
	if err != nil {
		t.Fatalf("kdf: %v", err)
	}
	if kdf != olm.Argon2idKDF(3, 16, 4) {
		t.Fatalf("unexpected kdf %v", kdf)
	}
}

func TestLoadConfig_BadInt(t *testing.T) {
	t.Setenv("OLMCTL_REDIS_DB", "three")
	if _, err := app.LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := app.Config{Home: t.TempDir(), Store: "FILE", PickleKDF: "scrypt"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Store != app.StoreFile {
		t.Fatalf("store not normalised: %q", cfg.Store)
	}

	bad := app.Config{Home: t.TempDir(), Store: "s3"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown store")
	}
	bad = app.Config{Home: t.TempDir(), Store: "file", PickleKDF: "pbkdf2"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown kdf")
	}
}

func TestNewLogger_RunID(t *testing.T) {
	var buf bytes.Buffer
	l := app.NewLogger(&buf, "debug", false)
	l.Debug().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["service"] != "olmctl" || line["message"] != "hello" {
		t.Fatalf("unexpected line %v", line)
	}
	if run, _ := line["run"].(string); len(run) != 36 {
		t.Fatalf("run id = %v", line["run"])
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := app.NewLogger(&buf, "error", false)
	l.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info logged at error level: %q", buf.String())
	}
}

func TestNewWire_FileStore(t *testing.T) {
	cfg := app.Config{Home: t.TempDir(), Store: app.StoreFile, PickleKDF: "scrypt", LogLevel: "error"}
	w, err := app.NewWire(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer w.Close()

	if _, ok := w.Store.(*store.FileStore); !ok {
		t.Fatalf("store = %T, want *store.FileStore", w.Store)
	}
}

func TestNewWire_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := app.Config{
		Home:      t.TempDir(),
		Store:     app.StoreRedis,
		Redis:     app.RedisConfig{Addr: mr.Addr(), Prefix: "t"},
		PickleKDF: "scrypt",
		LogLevel:  "error",
	}
	w, err := app.NewWire(context.Background(), cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer w.Close()

	if err := w.Store.SavePickle(context.Background(), store.KindAccount, "a", "p"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("t:pickles:account") {
		t.Fatalf("keys = %v", mr.Keys())
	}
}

func TestNewWire_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := app.Config{
		Home:      t.TempDir(),
		Store:     app.StoreRedis,
		Redis:     app.RedisConfig{Addr: addr},
		PickleKDF: "scrypt",
		LogLevel:  "error",
	}
	if _, err := app.NewWire(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected ping error")
	}
}
