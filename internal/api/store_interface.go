package api

import "github.com/typetalk-app/typetalk/internal/services"

// Store is the remote row store keyed by canonical phone. Profile writes are
// upserts: merge on conflict, never a strict insert.
type Store interface {
	services.UserStore
	services.ChatStore
}

var _ Store = (*memoryStore)(nil)
