// Package httpapi exposes the two HTTP endpoints spec.md names, /put and
// /get, over a process-wide cluster.Cluster. Grounded on the teacher's
// main.go GetHandler/PutHandler (same JSON request/response shape, but the
// /put and /get route names rather than the teacher's) with the internal cluster-RPC and admin endpoints dropped — this layer
// is stateless, the simulated nodes are the process-wide state.
package httpapi

import (
	"encoding/json"
	"net/http"

	"module/internal/cluster"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler wires the two endpoints onto an existing *mux.Router.
type Handler struct {
	cl  *cluster.Cluster
	log *logrus.Entry
}

// NewHandler constructs the HTTP boundary over cl. log, if nil, falls back
// to the standard logger.
func NewHandler(cl *cluster.Cluster, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{cl: cl, log: log}
}

// Register mounts /put and /get on r, the exact two endpoints spec.md
// names (§6): /put takes key and value, /get takes key.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/get", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/put", h.handlePut).Methods(http.MethodPost)
}

func (h *Handler) requestLog(r *http.Request) *logrus.Entry {
	return h.log.WithField("request_id", uuid.NewString())
}

type getResponse struct {
	Key         string `json:"key"`
	Coordinator string `json:"coordinator"`
	Values      []any  `json:"values"`
	Clocks      []any  `json:"clocks"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "No key provided", http.StatusBadRequest)
		return
	}
	log := h.requestLog(r).WithField("key", key)

	log.Debug("processing GET request")
	result, err := h.cl.Get(key, "")
	if err != nil {
		log.WithError(err).Error("get did not complete")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(result.Values) == 0 {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}

	clocks := make([]any, len(result.Clocks))
	for i, c := range result.Clocks {
		clocks[i] = c
	}
	resp := getResponse{Key: key, Coordinator: result.Coordinator, Values: result.Values, Clocks: clocks}

	js, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(append(js, '\n'))
}

type putResponse struct {
	Key         string `json:"key"`
	Status      string `json:"status"`
	Coordinator string `json:"coordinator"`
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	key, ok := body["key"].(string)
	if !ok || key == "" {
		http.Error(w, "No key provided", http.StatusBadRequest)
		return
	}
	log := h.requestLog(r).WithField("key", key)

	value, ok := body["value"]
	if !ok {
		http.Error(w, "No value provided", http.StatusBadRequest)
		return
	}

	log.Debug("processing PUT request")
	result, err := h.cl.Put(key, value, "")
	if err != nil {
		log.WithError(err).Error("put did not complete")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := putResponse{Key: key, Status: "stored", Coordinator: result.Coordinator}
	js, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(append(js, '\n'))
}
