package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	// Unparseable values fall back to defaults.
	for _, key := range []string{"CONTEXT_IDLE_TTL", "SEARCH_LIMIT", "MAX_HISTORY", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
	t.Setenv("CONTEXT_STORE", "memory")

	if err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if AppConfig.ContextIdleTTL != 45*time.Minute {
		t.Fatalf("ContextIdleTTL = %v, want 45m", AppConfig.ContextIdleTTL)
	}
	if AppConfig.SearchLimit != 5 {
		t.Fatalf("SearchLimit = %d, want 5", AppConfig.SearchLimit)
	}
	if AppConfig.MaxHistory != 20 {
		t.Fatalf("MaxHistory = %d, want 20", AppConfig.MaxHistory)
	}
	if AppConfig.ContextStore != ContextStoreMemory {
		t.Fatalf("ContextStore = %q, want %q", AppConfig.ContextStore, ContextStoreMemory)
	}
}

func TestLoadConfig_ParsesOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONTEXT_STORE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CONTEXT_IDLE_TTL", "30m")
	t.Setenv("MAX_HISTORY", "10")
	t.Setenv("LOG_LEVEL", "debug")

	if err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if AppConfig.ContextStore != ContextStoreRedis {
		t.Fatalf("ContextStore = %q, want redis", AppConfig.ContextStore)
	}
	if AppConfig.RedisDB != 3 {
		t.Fatalf("RedisDB = %d, want 3", AppConfig.RedisDB)
	}
	if AppConfig.ContextIdleTTL != 30*time.Minute {
		t.Fatalf("ContextIdleTTL = %v, want 30m", AppConfig.ContextIdleTTL)
	}
	if AppConfig.MaxHistory != 10 {
		t.Fatalf("MaxHistory = %d, want 10", AppConfig.MaxHistory)
	}
	if !AppConfig.Debug() {
		t.Fatalf("expected debug mode for LOG_LEVEL=debug")
	}
}

func TestLoadConfig_MaxHistoryBounds(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"7", 20},
		{"0", 20},
		{"-4", 20},
		{"40", 20},
		{"22", 20},
		{"20", 20},
		{"2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv("CONTEXT_STORE", "memory")
			t.Setenv("MAX_HISTORY", tt.value)

			if err := LoadConfig(); err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if AppConfig.MaxHistory != tt.want {
				t.Fatalf("MaxHistory = %d, want %d", AppConfig.MaxHistory, tt.want)
			}
		})
	}
}

func TestLoadConfig_UnknownContextStore(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONTEXT_STORE", "memcached")

	if err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown context store")
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir on older toolchains).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q): %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore Chdir(%q): %v", old, err)
		}
	})
}
