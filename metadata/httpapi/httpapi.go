// Package httpapi is the REST front door onto a metadata.Fetcher:
// GET /projects/{project}/pages/{title}, GET /projects/{project}, and
// GET /whoami, the concrete shape ensureEditablePage (spec §4.6) talks
// to. Routed with gorilla/mux, which teacher_server/go.mod declares but
// teacher_server/main.go never routes through (it calls http.HandleFunc
// directly) — here it gets a real multi-route home.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// SessionUserId resolves the calling user's id from an inbound request,
// failing with a pageerr of kind NotLoggedIn for a guest request.
type SessionUserId func(r *http.Request) (string, error)

// Handler serves the metadata REST surface over a metadata.Fetcher.
type Handler struct {
	Fetcher metadata.Fetcher
	Session SessionUserId
}

// Router builds the gorilla/mux router wiring Handler's routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/projects/{project}/pages/{title}", h.getPage).Methods(http.MethodGet)
	r.HandleFunc("/projects/{project}", h.getProject).Methods(http.MethodGet)
	r.HandleFunc("/whoami", h.whoami).Methods(http.MethodGet)
	return r
}

func (h *Handler) getPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	page, err := h.Fetcher.GetPage(r.Context(), vars["project"], vars["title"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Id:         page.Id,
		CommitId:   string(page.CommitId),
		Lines:      page.Lines,
		Persistent: page.Persistent,
		Editable:   page.Editable,
	})
}

type pageResponse struct {
	Id         string      `json:"id"`
	CommitId   string      `json:"commitId"`
	Lines      model.Lines `json:"lines"`
	Persistent bool        `json:"persistent"`
	Editable   bool        `json:"editable"`
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectId, err := h.Fetcher.GetProjectId(r.Context(), vars["project"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Id: projectId})
}

func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	if h.Session == nil {
		writeError(w, pageerr.New("httpapi.whoami", pageerr.NotLoggedIn, "no session configured"))
		return
	}
	userId, err := h.Session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, whoamiResponse{UserId: userId})
}

type projectResponse struct {
	Id string `json:"id"`
}

type whoamiResponse struct {
	UserId string `json:"userId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case pageerr.Is(err, pageerr.NotLoggedIn):
		status = http.StatusUnauthorized
	case pageerr.Is(err, pageerr.Forbidden):
		status = http.StatusForbidden
	case pageerr.Is(err, pageerr.Transport):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{err.Error()})
}
