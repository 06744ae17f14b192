package directory

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

	// simulators
	api.HandleFunc("/simulators", h.createSimulator).Methods(http.MethodPost)
	api.HandleFunc("/simulators", h.listSimulators).Methods(http.MethodGet)
	api.HandleFunc("/simulators/{id}", h.getSimulator).Methods(http.MethodGet)
	api.HandleFunc("/simulators/{id}", h.deleteSimulator).Methods(http.MethodDelete)

	// organizations
	api.HandleFunc("/orgs", h.createOrg).Methods(http.MethodPost)
	api.HandleFunc("/orgs", h.listOrgs).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{id}", h.getOrg).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{id}/parent", h.setOrgParent).Methods(http.MethodPut)
	api.HandleFunc("/orgs/{id}/admins", h.listAdmins).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{id}/admins/{userID}", h.addAdmin).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{id}/admins/{userID}", h.removeAdmin).Methods(http.MethodDelete)

	// user profiles
	api.HandleFunc("/users/{id}/profile", h.upsertProfile).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/users/{id}/profile", h.getProfile).Methods(http.MethodGet)
}

// errStatus maps repo errors onto HTTP codes.
func errStatus(err error) int {
	var fe *netcalc.FormatError
	var re *netcalc.RangeError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrAddressTaken):
		return http.StatusConflict
	case errors.Is(err, ErrOrgCycle), errors.As(err, &fe), errors.As(err, &re):
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

func (h *HTTP) createSimulator(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		http.Error(w, "invalid body (need {name, address})", http.StatusBadRequest)
		return
	}
	s, err := h.repo.CreateSimulator(in.Name, in.Address)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(s)
}

func (h *HTTP) listSimulators(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := h.repo.ListSimulators()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) getSimulator(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid simulator id", http.StatusBadRequest)
		return
	}
	s, err := h.repo.GetSimulator(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(s)
}

func (h *HTTP) deleteSimulator(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid simulator id", http.StatusBadRequest)
		return
	}
	if err := h.repo.DeleteSimulator(id); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) createOrg(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Name     string `json:"name"`
		OwnerID  uint   `json:"owner_id"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" || in.OwnerID == 0 {
		http.Error(w, "invalid body (need {name, owner_id})", http.StatusBadRequest)
		return
	}
	o, err := h.repo.CreateOrganization(in.Name, in.OwnerID, in.ParentID)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(o)
}

func (h *HTTP) listOrgs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := h.repo.ListOrganizations()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) getOrg(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid org id", http.StatusBadRequest)
		return
	}
	o, err := h.repo.GetOrganization(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(o)
}

func (h *HTTP) setOrgParent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid org id", http.StatusBadRequest)
		return
	}
	var in struct {
		ParentID *uint `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.repo.SetOrganizationParent(id, in.ParentID); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) listAdmins(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid org id", http.StatusBadRequest)
		return
	}
	admins, err := h.repo.Admins(id)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"org_id": id, "admins": admins})
}

func (h *HTTP) addAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	uid, ok2 := pathID(r, "userID")
	if !ok || !ok2 {
		http.Error(w, "invalid org/user id", http.StatusBadRequest)
		return
	}
	if err := h.repo.AddAdmin(id, uid); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) removeAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	uid, ok2 := pathID(r, "userID")
	if !ok || !ok2 {
		http.Error(w, "invalid org/user id", http.StatusBadRequest)
		return
	}
	if err := h.repo.RemoveAdmin(id, uid); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) upsertProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	uid, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	var in struct {
		OrganizationID uint            `json:"organization_id"`
		Position       models.Position `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.OrganizationID == 0 {
		http.Error(w, "invalid body (need {organization_id, position})", http.StatusBadRequest)
		return
	}
	p, err := h.repo.UpsertProfile(uid, in.OrganizationID, in.Position)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

func (h *HTTP) getProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	uid, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	p, err := h.repo.GetProfile(uid)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}
