package topology

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"vns/internal/models"
	"vns/internal/netcalc"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type HTTP struct{ repo *Repo }

func NewHTTP(r *Repo) *HTTP { return &HTTP{repo: r} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// templates
	api.HandleFunc("/templates", h.createTemplate).Methods(http.MethodPost)
	api.HandleFunc("/templates", h.listTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id}", h.getTemplate).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id}", h.deleteTemplate).Methods(http.MethodDelete)
	api.HandleFunc("/templates/{id}/visibility", h.setVisibility).Methods(http.MethodPut)
	api.HandleFunc("/templates/{id}/nodes", h.addNode).Methods(http.MethodPost)
	api.HandleFunc("/nodes/{id}/ports", h.addPort).Methods(http.MethodPost)
	api.HandleFunc("/links", h.addLink).Methods(http.MethodPost)

	// topologies
	api.HandleFunc("/topologies", h.instantiate).Methods(http.MethodPost)
	api.HandleFunc("/topologies", h.listTopologies).Methods(http.MethodGet)
	api.HandleFunc("/topologies/{id}", h.getTopology).Methods(http.MethodGet)
	api.HandleFunc("/topologies/{id}", h.deleteTopology).Methods(http.MethodDelete)
	api.HandleFunc("/topologies/{id}/allowed", h.allowAddress).Methods(http.MethodPost)
	api.HandleFunc("/topologies/{id}/allowed", h.listAllowed).Methods(http.MethodGet)
	api.HandleFunc("/topologies/{id}/allowed/{aid}", h.revokeAddress).Methods(http.MethodDelete)
	api.HandleFunc("/topologies/{id}/may-interact", h.mayInteract).Methods(http.MethodGet)
}

func errStatus(err error) int {
	var fe *netcalc.FormatError
	var re *netcalc.RangeError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, ErrSameEndpoint), errors.Is(err, ErrCrossTemplate),
		errors.As(err, &fe), errors.As(err, &re):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request, key string) (uint, bool) {
	u, err := strconv.ParseUint(mux.Vars(r)[key], 10, 64)
	if err != nil || u == 0 {
		return 0, false
	}
	return uint(u), true
}

func (h *HTTP) createTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Name           string            `json:"name"`
		OwnerID        uint              `json:"owner_id"`
		OrganizationID uint              `json:"organization_id"`
		Visibility     models.Visibility `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" || in.OwnerID == 0 {
		http.Error(w, "invalid body (need {name, owner_id, organization_id, visibility})", http.StatusBadRequest)
		return
	}
	t, err := h.repo.CreateTemplate(in.Name, in.OwnerID, in.OrganizationID, in.Visibility)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(t)
}

func (h *HTTP) listTemplates(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := h.repo.ListTemplates()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

// getTemplate returns the whole graph, not just the header row.
func (h *HTTP) getTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid template id", http.StatusBadRequest)
		return
	}
	g, err := h.repo.TemplateGraph(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(g)
}

func (h *HTTP) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid template id", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteTemplate(id); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) setVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid template id", http.StatusBadRequest)
		return
	}
	var in struct {
		Visibility models.Visibility `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.repo.SetTemplateVisibility(id, in.Visibility); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) addNode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid template id", http.StatusBadRequest)
		return
	}
	var in struct {
		Name string          `json:"name"`
		Type models.NodeType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		http.Error(w, "invalid body (need {name, type})", http.StatusBadRequest)
		return
	}
	n, err := h.repo.AddNode(id, in.Name, in.Type)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(n)
}

func (h *HTTP) addPort(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		http.Error(w, "invalid body (need {name})", http.StatusBadRequest)
		return
	}
	p, err := h.repo.AddPort(id, in.Name)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(p)
}

func (h *HTTP) addLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Port1ID   uint    `json:"port1_id"`
		Port2ID   uint    `json:"port2_id"`
		Lossiness float64 `json:"lossiness"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Port1ID == 0 || in.Port2ID == 0 {
		http.Error(w, "invalid body (need {port1_id, port2_id, lossiness})", http.StatusBadRequest)
		return
	}
	l, err := h.repo.AddLink(in.Port1ID, in.Port2ID, in.Lossiness)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(l)
}

func (h *HTTP) instantiate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		TemplateID uint `json:"template_id"`
		UserID     uint `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.TemplateID == 0 || in.UserID == 0 {
		http.Error(w, "invalid body (need {template_id, user_id})", http.StatusBadRequest)
		return
	}
	topo, err := h.repo.Instantiate(in.TemplateID, in.UserID)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(topo)
}

func (h *HTTP) listTopologies(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var ownerID uint
	if s := r.URL.Query().Get("owner"); s != "" {
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, "invalid owner filter", http.StatusBadRequest)
			return
		}
		ownerID = uint(u)
	}
	out, err := h.repo.ListTopologies(ownerID)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) getTopology(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid topology id", http.StatusBadRequest)
		return
	}
	topo, err := h.repo.GetTopology(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(topo)
}

func (h *HTTP) deleteTopology(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid topology id", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteTopology(id); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) allowAddress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid topology id", http.StatusBadRequest)
		return
	}
	var in struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Address == "" {
		http.Error(w, "invalid body (need {address})", http.StatusBadRequest)
		return
	}
	tu, err := h.repo.AllowAddress(id, in.Address)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tu)
}

func (h *HTTP) listAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid topology id", http.StatusBadRequest)
		return
	}
	out, err := h.repo.ListAllowed(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) revokeAddress(w http.ResponseWriter, r *http.Request) {
	aid, ok := pathID(r, "aid")
	if !ok {
		http.Error(w, "invalid allowed-address id", http.StatusBadRequest)
		return
	}
	if err := h.repo.RevokeAddress(aid); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) mayInteract(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid topology id", http.StatusBadRequest)
		return
	}
	addr := r.URL.Query().Get("address")
	if addr == "" {
		http.Error(w, "address query param required", http.StatusBadRequest)
		return
	}
	allowed, err := h.repo.MayInteract(id, addr)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"topology_id": id, "address": addr, "allowed": allowed})
}
