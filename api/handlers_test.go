package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/api"
	memstore "github.com/warp/settlement-engine/record/store"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Memory, *api.Scenario) {
	t.Helper()
	store := memstore.NewMemory()
	engine := settlement.New(store, nil)
	handler := api.NewHandler(store, engine)
	server := httptest.NewServer(api.NewRouter(handler, nil))
	t.Cleanup(server.Close)

	scenario, err := api.SeedScenario(context.Background(), store, engine.Schema)
	require.NoError(t, err)
	return server, store, scenario
}

func doJSON(t *testing.T, method, url string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// =============================================================================
// SETTLEMENT ENDPOINT
// =============================================================================

func TestAPI_SettleWorkRecord(t *testing.T) {
	// GIVEN: the seeded scenario (09:07-17:52, rates 10 and 15, price 20)
	server, _, scenario := newTestServer(t)

	// WHEN: settling over HTTP
	var body api.SettleResponseDTO
	resp := doJSON(t, http.MethodPost, server.URL+"/api/workrecords/"+scenario.WorkRecord.ID+"/settle", &body)

	// THEN
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, scenario.WorkRecord.ID, body.RecordID)
	assert.Equal(t, "8.75", body.DurationHours)
	assert.Equal(t, 2, body.ParticipantCount)
	assert.Equal(t, "17.50", body.TotalHours)
	assert.Equal(t, "218.75", body.TotalLaborCost)
	assert.Equal(t, "20.00", body.BillingRate)
	assert.Equal(t, "350.00", body.LineTotal)
	assert.Empty(t, body.Warnings)
	require.NotNil(t, body.Report)
	assert.True(t, body.Report.Created)
	assert.Equal(t, "350.00", body.Report.LineTotal)
}

func TestAPI_SettleWorkRecord_NotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body api.ErrorResponse
	resp := doJSON(t, http.MethodPost, server.URL+"/api/workrecords/absent/settle", &body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body.Error)
}

func TestAPI_SettleTwice_ReportStable(t *testing.T) {
	server, _, scenario := newTestServer(t)
	url := server.URL + "/api/workrecords/" + scenario.WorkRecord.ID + "/settle"

	var first, second api.SettleResponseDTO
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url, &first).StatusCode)
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, url, &second).StatusCode)

	require.NotNil(t, second.Report)
	assert.Equal(t, first.Report.ID, second.Report.ID)
	assert.False(t, second.Report.Created)
	assert.True(t, second.Report.Updated)
	assert.Equal(t, first.LineTotal, second.LineTotal)
}

// =============================================================================
// READ ENDPOINTS
// =============================================================================

func TestAPI_GetWorkRecord_AfterSettlement(t *testing.T) {
	server, _, scenario := newTestServer(t)
	doJSON(t, http.MethodPost, server.URL+"/api/workrecords/"+scenario.WorkRecord.ID+"/settle", nil)

	var body api.WorkRecordDTO
	resp := doJSON(t, http.MethodGet, server.URL+"/api/workrecords/"+scenario.WorkRecord.ID, &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2024-06-03", body.Date)
	assert.Equal(t, "Demolition and surface preparation", body.Description)
	assert.Equal(t, "8.75", body.DurationHours)
	assert.Equal(t, "17.50", body.TotalHours)
	require.Len(t, body.Participants, 2)
	assert.Equal(t, "10.00", body.Participants[0].HourlyRate)
	assert.Equal(t, "87.50", body.Participants[0].LaborCost)
	assert.Equal(t, "15.00", body.Participants[1].HourlyRate)
	assert.NotEmpty(t, body.Summary)
}

func TestAPI_GetReport(t *testing.T) {
	server, _, scenario := newTestServer(t)
	var settled api.SettleResponseDTO
	doJSON(t, http.MethodPost, server.URL+"/api/workrecords/"+scenario.WorkRecord.ID+"/settle", &settled)
	require.NotNil(t, settled.Report)

	var body api.ReportDTO
	resp := doJSON(t, http.MethodGet, server.URL+"/api/reports/"+settled.Report.ID, &body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, scenario.Job.ID, body.JobID)
	assert.Equal(t, settlement.DefaultReportType, body.Type)
	require.Len(t, body.LineItems, 1)
	assert.Equal(t, scenario.WorkRecord.ID, body.LineItems[0].WorkRecordID)
	assert.Equal(t, "17.50", body.LineItems[0].Quantity)
	assert.Equal(t, "20.00", body.LineItems[0].UnitRate)
	assert.Equal(t, "350.00", body.LineItems[0].LineTotal)
	assert.Equal(t, "Demolition and surface preparation", body.LineItems[0].Description)
}

func TestAPI_GetReport_NotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/reports/absent", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// SCENARIO AND OPERATIONAL ENDPOINTS
// =============================================================================

func TestAPI_LoadScenario(t *testing.T) {
	store := memstore.NewMemory()
	engine := settlement.New(store, nil)
	server := httptest.NewServer(api.NewRouter(api.NewHandler(store, engine), nil))
	t.Cleanup(server.Close)

	var body api.ScenarioDTO
	resp := doJSON(t, http.MethodPost, server.URL+"/api/scenarios/load", &body)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body.WorkRecordID)
	assert.NotEmpty(t, body.JobID)
	assert.Len(t, body.ParticipantIDs, 2)

	// The seeded record settles cleanly end to end.
	var settled api.SettleResponseDTO
	settle := doJSON(t, http.MethodPost, server.URL+"/api/workrecords/"+body.WorkRecordID+"/settle", &settled)
	assert.Equal(t, http.StatusOK, settle.StatusCode)
	assert.Empty(t, settled.Warnings)
}

func TestAPI_Metrics(t *testing.T) {
	server, _, scenario := newTestServer(t)
	doJSON(t, http.MethodPost, server.URL+"/api/workrecords/"+scenario.WorkRecord.ID+"/settle", nil)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	server, _, _ := newTestServer(t)

	var body map[string]string
	resp := doJSON(t, http.MethodGet, server.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
