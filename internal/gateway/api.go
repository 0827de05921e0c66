package gateway

import "net/http"

// buildHandler wires all REST and SSE routes onto a new ServeMux, using
// Go 1.22+ method-prefixed patterns ("GET /path", "POST /path").
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", gw.handleRoot)
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/events", gw.handleEvents)

	// Repositories
	mux.HandleFunc("GET /api/repositories", gw.handleListRepositories)
	mux.HandleFunc("POST /api/repositories", gw.handleAddRepository)
	mux.HandleFunc("PATCH /api/repositories/{id}", gw.handleUpdateRepository)
	mux.HandleFunc("DELETE /api/repositories/{id}", gw.handleDeleteRepository)
	mux.HandleFunc("GET /api/repositories/{id}/progress", gw.handleRepositoryProgress)

	// Items
	mux.HandleFunc("GET /api/items", gw.handleListItems)
	mux.HandleFunc("GET /api/items/search", gw.handleSearchItems)
	mux.HandleFunc("POST /api/items", gw.handleCreateItem)
	mux.HandleFunc("GET /api/items/{id}", gw.handleGetItem)
	mux.HandleFunc("PATCH /api/items/{id}", gw.handleUpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", gw.handleDeleteItem)
	mux.HandleFunc("POST /api/items/{id}/move", gw.handleMoveItem)
	mux.HandleFunc("POST /api/items/{id}/children", gw.handleAddChildItem)
	mux.HandleFunc("PUT /api/items/{id}/tags", gw.handleSetItemTags)
	mux.HandleFunc("GET /api/items/{id}/tbc-check", gw.handleItemTBCCheck)

	// Session
	mux.HandleFunc("GET /api/session", gw.handleGetSession)
	mux.HandleFunc("POST /api/session/start", gw.handleStartSession)
	mux.HandleFunc("POST /api/session/complete", gw.handleCompleteSession)
	mux.HandleFunc("PATCH /api/session", gw.handleUpdateSession)
	mux.HandleFunc("POST /api/session/working-on", gw.handleWorkingOn)
	mux.HandleFunc("POST /api/session/also-did", gw.handleAlsoDid)
	mux.HandleFunc("POST /api/session/anchor", gw.handleSetAnchor)
	mux.HandleFunc("DELETE /api/session/anchor", gw.handleClearAnchor)
	mux.HandleFunc("GET /api/session/queue", gw.handleQueueGet)
	mux.HandleFunc("POST /api/session/queue", gw.handleQueueAdd)
	mux.HandleFunc("DELETE /api/session/queue", gw.handleQueueRemove)

	// Workers
	mux.HandleFunc("GET /api/workers", gw.handleListWorkers)
	mux.HandleFunc("GET /api/workers/dead", gw.handleDeadWorkers)
	mux.HandleFunc("POST /api/workers", gw.handleSpawnWorker)
	mux.HandleFunc("PATCH /api/workers/{id}", gw.handleUpdateWorker)
	mux.HandleFunc("DELETE /api/workers/{id}", gw.handleDeleteWorker)
	mux.HandleFunc("POST /api/workers/{id}/complete", gw.handleCompleteWorker)
	mux.HandleFunc("POST /api/workers/{id}/resolve", gw.handleResolveWorker)

	// Signals
	mux.HandleFunc("GET /api/signals", gw.handleListSignals)
	mux.HandleFunc("DELETE /api/signals/{id}", gw.handleDismissSignal)

	// Migration
	mux.HandleFunc("POST /api/migrate/preview", gw.handlePreviewMigration)
	mux.HandleFunc("POST /api/migrate/run", gw.handleRunMigration)

	// Settings
	mux.HandleFunc("GET /api/settings", gw.handleListSettings)
	mux.HandleFunc("GET /api/settings/{key}", gw.handleGetSetting)
	mux.HandleFunc("PUT /api/settings/{key}", gw.handlePutSetting)
	mux.HandleFunc("DELETE /api/settings/{key}", gw.handleDeleteSetting)

	return mux
}
