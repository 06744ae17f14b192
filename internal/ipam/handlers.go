package ipam

import (
	"encoding/hex"
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
	api := r.PathPrefix("/api/v1/ipam").Subrouter()

	// blocks
	// POST /api/v1/ipam/blocks  { simulator_id, organization_id, subnet, mask }
	api.HandleFunc("/blocks", h.createRootBlock).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}", h.getBlock).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}", h.deleteBlock).Methods(http.MethodDelete)
	// POST /api/v1/ipam/blocks/{id}/children  { organization_id, subnet, mask }
	api.HandleFunc("/blocks/{id}/children", h.allocateChild).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}/children", h.listChildren).Methods(http.MethodGet)
	api.HandleFunc("/simulators/{id}/blocks", h.listBySimulator).Methods(http.MethodGet)

	// assignments
	// POST /api/v1/ipam/assignments  { topology_id, port_id, address, mask }
	api.HandleFunc("/assignments", h.assign).Methods(http.MethodPost)
	api.HandleFunc("/assignments/{id}", h.releaseAssignment).Methods(http.MethodDelete)
	api.HandleFunc("/assignments/{id}/binding", h.binding).Methods(http.MethodGet)
	// POST /api/v1/ipam/blocks/{id}/allocate?topology=..&port=..
	api.HandleFunc("/blocks/{id}/allocate", h.allocateInBlock).Methods(http.MethodPost)
	api.HandleFunc("/topologies/{id}/assignments", h.topologyAssignments).Methods(http.MethodGet)
}

func errStatus(err error) int {
	var fe *netcalc.FormatError
	var re *netcalc.RangeError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrHasChildren), errors.Is(err, ErrNoFreeAddress):
		return http.StatusConflict
	case errors.Is(err, ErrOutsideParent), errors.As(err, &fe), errors.As(err, &re):
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

func (h *HTTP) createRootBlock(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		SimulatorID    uint   `json:"simulator_id"`
		OrganizationID uint   `json:"organization_id"`
		Subnet         string `json:"subnet"`
		Mask           int    `json:"mask"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.SimulatorID == 0 || in.Subnet == "" {
		http.Error(w, "invalid body (need {simulator_id, organization_id, subnet, mask})", http.StatusBadRequest)
		return
	}
	b, err := h.repo.CreateRootBlock(in.SimulatorID, in.OrganizationID, in.Subnet, in.Mask)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(b)
}

func (h *HTTP) allocateChild(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid parent block id", http.StatusBadRequest)
		return
	}
	var in struct {
		OrganizationID uint   `json:"organization_id"`
		Subnet         string `json:"subnet"`
		Mask           int    `json:"mask"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Subnet == "" {
		http.Error(w, "invalid body (need {organization_id, subnet, mask})", http.StatusBadRequest)
		return
	}
	b, err := h.repo.AllocateChildBlock(id, in.OrganizationID, in.Subnet, in.Mask)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(b)
}

func (h *HTTP) getBlock(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid block id", http.StatusBadRequest)
		return
	}
	b, err := h.repo.GetBlock(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(b)
}

func (h *HTTP) deleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid block id", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteBlock(id); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) listChildren(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid block id", http.StatusBadRequest)
		return
	}
	out, err := h.repo.ListChildren(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) listBySimulator(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid simulator id", http.StatusBadRequest)
		return
	}
	out, err := h.repo.ListBlocksBySimulator(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) assign(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		TopologyID uint   `json:"topology_id"`
		PortID     uint   `json:"port_id"`
		Address    string `json:"address"`
		Mask       int    `json:"mask"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.TopologyID == 0 || in.PortID == 0 {
		http.Error(w, "invalid body (need {topology_id, port_id, address, mask})", http.StatusBadRequest)
		return
	}
	a, err := h.repo.Assign(in.TopologyID, in.PortID, in.Address, in.Mask)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(a)
}

func (h *HTTP) allocateInBlock(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid block id", http.StatusBadRequest)
		return
	}
	topoU, err := strconv.ParseUint(r.URL.Query().Get("topology"), 10, 64)
	if err != nil || topoU == 0 {
		http.Error(w, "topology query param required (uint)", http.StatusBadRequest)
		return
	}
	portU, err := strconv.ParseUint(r.URL.Query().Get("port"), 10, 64)
	if err != nil || portU == 0 {
		http.Error(w, "port query param required (uint)", http.StatusBadRequest)
		return
	}
	a, e := h.repo.AllocateInBlock(id, uint(topoU), uint(portU))
	if e != nil {
		http.Error(w, e.Error(), errStatus(e))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(a)
}

func (h *HTTP) releaseAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid assignment id", http.StatusBadRequest)
		return
	}
	if err := h.repo.Release(id); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bindingOut struct {
	ID      uint   `json:"id"`
	Address string `json:"address"`
	Mask    int    `json:"mask"`
	Netmask string `json:"netmask"`
	MAC     string `json:"mac"`
	Payload string `json:"payload"` // hex of the 14-byte wire form
}

func bindingView(a *models.IPAssignment) (bindingOut, error) {
	b, err := BindingFor(a)
	if err != nil {
		return bindingOut{}, err
	}
	return bindingOut{
		ID:      a.ID,
		Address: a.Address,
		Mask:    a.Mask,
		Netmask: b.Netmask(),
		MAC:     b.HardwareAddr().String(),
		Payload: hex.EncodeToString(b.Encode()),
	}, nil
}

func (h *HTTP) binding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid assignment id", http.StatusBadRequest)
		return
	}
	a, err := h.repo.GetAssignment(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	out, err := bindingView(a)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) topologyAssignments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid topology id", http.StatusBadRequest)
		return
	}
	recs, err := h.repo.AssignmentsForTopology(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	out := make([]bindingOut, 0, len(recs))
	for i := range recs {
		v, err := bindingView(&recs[i])
		if err != nil {
			http.Error(w, err.Error(), errStatus(err))
			return
		}
		out = append(out, v)
	}
	_ = json.NewEncoder(w).Encode(out)
}
