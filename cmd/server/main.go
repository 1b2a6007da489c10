package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/typetalk-app/typetalk/internal/api"
	dbstore "github.com/typetalk-app/typetalk/internal/db"
	"github.com/typetalk-app/typetalk/internal/llm"
	"github.com/typetalk-app/typetalk/internal/middleware"
	"github.com/typetalk-app/typetalk/internal/services"
	"github.com/typetalk-app/typetalk/internal/utils"
)

func main() {
	addr := utils.SafeEnv("TYPETALK_ADDR", ":8080")
	commit := os.Getenv("TYPETALK_COMMIT")

	store, err := openStore()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	var client services.ChatClient
	if key := os.Getenv("TYPETALK_OPENAI_KEY"); key != "" {
		client, err = llm.NewClient(key,
			llm.WithBaseURL(os.Getenv("TYPETALK_OPENAI_BASE_URL")),
			llm.WithModel(utils.SafeEnv("TYPETALK_OPENAI_MODEL", "gpt-4o-mini")))
		if err != nil {
			log.Fatalf("chat client: %v", err)
		}
	} else {
		log.Printf("TYPETALK_OPENAI_KEY not set, chat replies will fall back")
	}

	cacheDir := utils.SafeEnv("TYPETALK_CACHE_DIR", ".typetalk-cache")

	mux := http.NewServeMux()
	api.NewRouter(store, client, cacheDir).Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"name":   "typetalk API",
			"commit": commit,
		})
	})

	handler := middleware.CORS(middleware.SecureHeaders(middleware.NoStore(mux)))

	log.Printf("typetalk server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore picks sqlite when TYPETALK_SQLITE_PATH is set and the in-memory
// store otherwise.
func openStore() (api.Store, error) {
	path := os.Getenv("TYPETALK_SQLITE_PATH")
	if path == "" {
		return api.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := dbstore.RunMigrations(sqlDB, os.Getenv("TYPETALK_MIGRATIONS_DIR")); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return dbstore.NewStore(sqlDB)
}
