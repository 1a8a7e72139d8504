package healthcheck

import (
	"net/http"

	"github.com/wpmend-dev/wpmend-agent/api/server/config"
	"github.com/wpmend-dev/wpmend-agent/api/server/shared"
)

type ReadyzHandler struct {
	config *config.Config
}

func NewReadyzHandler(config *config.Config) *ReadyzHandler {
	return &ReadyzHandler{config: config}
}

func (h *ReadyzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	db := h.config.Repository.DB

	switch db.Dialector.Name() {
	case "sqlite":
		writeHealthy(w)
		return
	case "postgres":
		sqlDB, err := db.DB()

		if err != nil {
			shared.WriteError(w, r, http.StatusInternalServerError, "database handle unavailable")
			return
		}

		if err := sqlDB.Ping(); err != nil {
			shared.WriteError(w, r, http.StatusInternalServerError, "database unreachable")
			return
		}

		writeHealthy(w)
		return
	}

	shared.WriteError(w, r, http.StatusBadRequest, "database is not supported")
}

func writeHealthy(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("."))
}
