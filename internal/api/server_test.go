package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/engine"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/incident"
	"github.com/hollowvale/vaultkeep/internal/vault"
	"github.com/hollowvale/vaultkeep/internal/wasteland"
)

type memStore struct {
	states map[uuid.UUID]*engine.State
}

func (m *memStore) ListVaults(ctx context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) LoadState(ctx context.Context, vaultID uuid.UUID) (*engine.State, error) {
	st, ok := m.states[vaultID]
	if !ok {
		return nil, fault.NotFound("vault %s not found", vaultID)
	}
	return st, nil
}

func (m *memStore) SaveState(ctx context.Context, st *engine.State) error {
	m.states[st.Vault.ID] = st
	return nil
}

var apiNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *engine.State) {
	t.Helper()

	v := &vault.Vault{
		ID:       uuid.New(),
		Name:     "Vault 117",
		Power:    vault.Gauge{Amount: 150, Capacity: 300},
		Food:     vault.Gauge{Amount: 120, Capacity: 250},
		Water:    vault.Gauge{Amount: 120, Capacity: 250},
		Caps:     500,
		LastTick: apiNow,
		Active:   true,
	}
	room := &vault.Room{
		ID: uuid.New(), VaultID: v.ID, Name: "Power Plant",
		Category: vault.RoomProduction, Ability: vault.AbilityStrength,
		Tier: 1, Size: 2, Output: 3,
	}
	inh := &vault.Inhabitant{
		ID: uuid.New(), VaultID: v.ID, Name: "June Barrow",
		Stats:  vault.Stats{Strength: 6, Luck: 4},
		Health: 100, MaxHealth: 100, Happiness: 75, Level: 1,
	}
	inh.Assign(room)

	inc := &incident.Incident{
		ID: uuid.New(), VaultID: v.ID, RoomID: room.ID,
		Type: incident.TypeFire, Status: incident.StatusActive, Difficulty: 3,
		StartedAt: apiNow,
	}

	st := &engine.State{
		Vault:       v,
		Rooms:       []*vault.Room{room},
		Inhabitants: []*vault.Inhabitant{inh},
		Incidents:   []*incident.Incident{inc},
		Storage:     &vault.Storage{ID: uuid.New(), VaultID: v.ID, Capacity: 20},
	}

	store := &memStore{states: map[uuid.UUID]*engine.State{v.ID: st}}
	bal := config.Defaults()
	field := wasteland.NewField(42)
	srv := &Server{
		Store:       store,
		Orch:        engine.New(store, bal, field),
		Incidents:   incident.NewEngine(bal.Incident),
		Expeditions: expedition.NewCoordinator(bal.Expedition, field),
		Now:         func() time.Time { return apiNow },
		NewSource:   func() entropy.Source { return entropy.NewSeeded(7) },
	}
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVaultListAndDetail(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/v1/vaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []vaultSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, st.Vault.ID, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Population)
	assert.InDelta(t, 0.5, summaries[0].Power, 1e-9)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/vaults/"+st.Vault.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/vaults/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/vaults/not-a-uuid", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPauseResume(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()
	base := "/api/v1/vaults/" + st.Vault.ID.String()

	rec := doJSON(t, h, http.MethodPost, base+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, st.Vault.Paused)

	rec = doJSON(t, h, http.MethodPost, base+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, st.Vault.Paused)
}

func TestLaunchAndRecall(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()
	inh := st.Inhabitants[0]
	base := "/api/v1/vaults/" + st.Vault.ID.String()

	rec := doJSON(t, h, http.MethodPost, base+"/expeditions", launchRequest{
		InhabitantID:    inh.ID,
		DurationSeconds: 3600,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, st.Expeditions, 1)
	assert.Equal(t, vault.StatusExploring, inh.Status)

	// Same inhabitant cannot go out twice.
	rec = doJSON(t, h, http.MethodPost, base+"/expeditions", launchRequest{
		InhabitantID:    inh.ID,
		DurationSeconds: 3600,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown inhabitant maps to 404.
	other := uuid.New()
	rec = doJSON(t, h, http.MethodPost, base+"/expeditions", launchRequest{InhabitantID: other})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	exp := st.Expeditions[0]
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("%s/expeditions/%s/recall", base, exp.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, expedition.StatusRecalled, exp.Status)
	assert.NotEqual(t, vault.StatusExploring, inh.Status)

	// Recalling a settled expedition is a conflict.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("%s/expeditions/%s/recall", base, exp.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fault.NotFound("gone"), http.StatusNotFound},
		{fault.Conflict("busy"), http.StatusConflict},
		{fault.Invalid("bad"), http.StatusUnprocessableEntity},
		{fault.Capacity("full"), http.StatusInsufficientStorage},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.err.Error(), body["error"])
	}
}

func TestResolveIncident(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()
	inc := st.Incidents[0]
	path := fmt.Sprintf("/api/v1/vaults/%s/incidents/%s/resolve", st.Vault.ID, inc.ID)

	rec := doJSON(t, h, http.MethodPost, path, resolveRequest{Success: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, incident.StatusResolved, inc.Status)
	assert.Greater(t, st.Vault.Caps, int64(500), "caps reward must be credited")

	rec = doJSON(t, h, http.MethodPost, path, resolveRequest{Success: false})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
