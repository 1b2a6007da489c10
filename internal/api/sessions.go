package api

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/typetalk-app/typetalk/internal/services"
)

// sessionHandle owns one respondent's flow controller and reconciler. All of
// its state is scoped to a single canonical phone; handles never share
// mutable state.
type sessionHandle struct {
	flow    *services.Flow
	session *services.Session
}

type sessionRegistry struct {
	mu       sync.Mutex
	byPhone  map[string]*sessionHandle
	store    Store
	client   services.ChatClient
	cacheDir string
	sched    services.Scheduler
}

func newSessionRegistry(store Store, client services.ChatClient, cacheDir string) *sessionRegistry {
	return &sessionRegistry{
		byPhone:  map[string]*sessionHandle{},
		store:    store,
		client:   client,
		cacheDir: cacheDir,
		sched:    services.TimerScheduler{},
	}
}

// get returns the handle for phone, creating it on first use. The flow's
// commit callback wires the reconciler in: result persistence runs
// fire-and-forget so a failing store can never wedge the flow.
func (g *sessionRegistry) get(phone string) *sessionHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.byPhone[phone]; ok {
		return h
	}

	var cache *services.Cache
	if g.cacheDir != "" {
		cache = services.NewCache(filepath.Join(g.cacheDir, phone+".json"))
	}
	sess := services.NewSession(phone, g.store, g.store, g.client, cache)
	flow := services.NewFlow(g.sched, func(answers services.AnswerSet) {
		if _, err := sess.CommitResult(answers); err != nil {
			log.Printf("api: commit result for %s: %v", phone, err)
		}
	})
	// a completed local snapshot resumes straight at the result view, even
	// when the remote store lost the row
	if cache != nil {
		if snap, err := cache.Load(); err == nil && snap != nil {
			if snap.Profile != nil {
				sess.SetProfile(snap.Profile)
			}
			if snap.Result != nil {
				sess.SetResult(snap.Result)
				flow.Resume(*snap.Result)
			}
		}
	}
	h := &sessionHandle{flow: flow, session: sess}
	g.byPhone[phone] = h
	return h
}

// drop forgets the handle, forcing a fresh flow on the next request.
func (g *sessionRegistry) drop(phone string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.byPhone, phone)
}
