package handler

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/testutil"
)

func setupEHSTest(t *testing.T) *gin.Engine {
	t.Helper()
	router := testutil.SetupRouter()
	hub := sse.NewHub(zap.NewNop())
	svc := service.New(service.Deps{
		Repos:  repository.NewMemoryRepositories(),
		Hub:    hub,
		Logger: zap.NewNop(),
	})
	h := NewHandlers(svc, hub, zap.NewNop(), BuildInfo{Version: "test", BuildTime: "now"})
	RegisterRoutes(router, h, AuthConfig{Secret: testutil.JWTSecret, Issuer: testutil.JWTIssuer})
	return router
}

func planBody(workingAtHeightSeverity int) map[string]interface{} {
	return map[string]interface{}{
		"group":                  "Europe",
		"taskName":               "Replace source vessel",
		"date":                   "2026-10-01",
		"location":               "F34 Bay 3",
		"shift":                  "Day",
		"machineNumber":          "M1234",
		"canSocialDistance":      "yes",
		"q1_specializedTraining": "no",
		"q2_chemicals":           "no",
		"q3_impactOthers":        "no",
		"q4_falls":               "yes",
		"q5_barricades":          "no",
		"q6_loto":                "no",
		"q7_lifting":             "no",
		"q8_ergonomics":          "no",
		"q9_otherConcerns":       "no",
		"q10_headInjury":         "no",
		"q11_otherPPE":           "no",
		"hazards":                []string{"Working at Height", "Noise"},
		"assessments": map[string]interface{}{
			"Working at Height": map[string]interface{}{"severity": workingAtHeightSeverity, "likelihood": 3, "mitigation": "Harness"},
			"Noise":             map[string]interface{}{"severity": 1, "likelihood": 2, "mitigation": "Ear defenders"},
		},
		"leadName":  "Aoife Byrne",
		"engineers": []string{"Sean", "Mary"},
	}
}

func createPlan(t *testing.T, router *gin.Engine, token string, severity int) uint {
	t.Helper()
	w := testutil.DoRequest(router, "POST", "/api/safety-plans", planBody(severity), token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.Data(t, w)
	return uint(data["id"].(float64))
}

func TestSafetyPlanApproveFlow(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()
	id := createPlan(t, router, token, 3)
	base := fmt.Sprintf("/api/safety-plans/%d", id)

	w := testutil.DoRequest(router, "POST", base+"/approve", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Approver name is required" {
		t.Errorf("Unexpected message %v", msg)
	}

	w = testutil.DoRequest(router, "POST", base+"/approve", map[string]interface{}{
		"approverName": "Declan Walsh", "comments": "Looks good",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if status := testutil.Data(t, w)["status"]; status != "approved" {
		t.Errorf("Expected approved, got %v", status)
	}

	w = testutil.DoRequest(router, "POST", base+"/approve", map[string]interface{}{"approverName": "Declan Walsh"}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 on second approval, got %d", w.Code)
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Plan is already approved" {
		t.Errorf("Unexpected message %v", msg)
	}

	w = testutil.DoRequest(router, "GET", base+"/audit-logs", nil, token)
	logs := testutil.Items(t, w)
	if len(logs) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(logs))
	}
	newest := logs[0].(map[string]interface{})
	if newest["action"] != "approved" || newest["performedBy"] != "Declan Walsh" {
		t.Errorf("Unexpected newest entry %v", newest)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/audit-logs?safetyPlanId=%d", id), nil, token)
	if n := len(testutil.Items(t, w)); n != 2 {
		t.Errorf("Expected 2 filtered audit entries, got %d", n)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/reports/safety-plan/%d", id), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected report, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSafetyPlanCreateValidation(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	body := planBody(3)
	delete(body, "leadName")
	delete(body, "shift")
	w := testutil.DoRequest(router, "POST", "/api/safety-plans", body, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"] != float64(40000) {
		t.Errorf("Expected code 40000, got %v", resp["code"])
	}
	details, _ := resp["details"].([]interface{})
	if len(details) != 2 {
		t.Errorf("Expected 2 details, got %v", resp["details"])
	}

	w = testutil.DoRequest(router, "POST", "/api/safety-plans", "{not json", token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}
}

func TestSafetyPlanNotFoundAndBadID(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "GET", "/api/safety-plans/999", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Safety plan not found" {
		t.Errorf("Unexpected message %v", msg)
	}

	w = testutil.DoRequest(router, "GET", "/api/safety-plans/abc", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad id, got %d", w.Code)
	}
}

func TestAuthAndAdminDelete(t *testing.T) {
	router := setupEHSTest(t)
	admin := testutil.DefaultTestToken()
	id := createPlan(t, router, admin, 3)
	path := fmt.Sprintf("/api/safety-plans/%d", id)

	w := testutil.DoRequest(router, "GET", "/api/safety-plans", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}

	user := testutil.GenerateTestToken("u-2", "Sean Murphy", []string{"user"})
	w = testutil.DoRequest(router, "DELETE", path, nil, user)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-admin delete, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "DELETE", path, nil, admin)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", w.Code)
	}
	w = testutil.DoRequest(router, "GET", path, nil, admin)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestSafetyPlanEditFallsBackToTokenName(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.GenerateTestToken("u-3", "Mary Walsh", []string{"user"})
	id := createPlan(t, router, token, 3)
	base := fmt.Sprintf("/api/safety-plans/%d", id)

	w := testutil.DoRequest(router, "PUT", base, map[string]interface{}{"location": "F34 Bay 4"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, "GET", base+"/audit-logs", nil, token)
	entry := testutil.Items(t, w)[0].(map[string]interface{})
	if entry["action"] != "edited" || entry["performedBy"] != "Mary Walsh" {
		t.Errorf("Unexpected edit entry %v", entry)
	}
	if entry["comments"] != "Edited fields: location" {
		t.Errorf("Unexpected comments %v", entry["comments"])
	}
}

func TestSafetyPlanReuse(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()
	id := createPlan(t, router, token, 3)

	w := testutil.DoRequest(router, "POST", fmt.Sprintf("/api/safety-plans/%d/reuse", id), map[string]interface{}{
		"date": "2026-10-02", "location": "F34 Bay 5", "shift": "Night", "leadName": "Sean Murphy",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	copyPlan := testutil.Data(t, w)
	if copyPlan["shift"] != "Night" || copyPlan["status"] != "pending" {
		t.Errorf("Unexpected copy %v", copyPlan)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/safety-plans/%d/audit-logs", id), nil, token)
	entry := testutil.Items(t, w)[0].(map[string]interface{})
	if entry["action"] != "reused" || entry["performedBy"] != "Test Admin" {
		t.Errorf("Unexpected reuse entry %v", entry)
	}
}

func TestSRBEscalationEndpoints(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()
	low := createPlan(t, router, token, 2)
	high := createPlan(t, router, token, 3)

	w := testutil.DoRequest(router, "POST", "/api/srb-records", map[string]interface{}{"safetyPlanId": low}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "No hazards require SRB escalation" {
		t.Errorf("Unexpected message %v", msg)
	}

	w = testutil.DoRequest(router, "POST", "/api/srb-records", map[string]interface{}{}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing safetyPlanId, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "POST", "/api/srb-records", map[string]interface{}{"safetyPlanId": high}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	rec := testutil.Data(t, w)
	recID := uint(rec["id"].(float64))

	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/srb-records/%d/complete", recID), nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "All escalated hazards must reach LOW risk before completion" {
		t.Errorf("Unexpected message %v", msg)
	}

	w = testutil.DoRequest(router, "POST", fmt.Sprintf("/api/srb-records/%d/validate?step=signatures", recID), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if valid := testutil.Data(t, w)["valid"]; valid != false {
		t.Errorf("Expected signatures step to be invalid, got %v", valid)
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/srb-records/safety-plan/%d", high), nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 by plan, got %d", w.Code)
	}
}

const pendingPermit = `{
	"date": "2026-10-01",
	"submitter": "Aoife Byrne",
	"manager": "Declan Walsh",
	"authorityName": "Orla Kelly",
	"location": "F34 Bay 3",
	"permitType": "confined-space",
	"status": "pending"
}`

func TestPermitDualApproval(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/permits", pendingPermit, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	permitID := uint(testutil.Data(t, w)["id"].(float64))
	base := fmt.Sprintf("/api/permits/%d", permitID)

	w = testutil.DoRequest(router, "GET", base+"/approvals", nil, token)
	approvals := testutil.Items(t, w)
	if len(approvals) != 2 {
		t.Fatalf("Expected 2 approvals, got %d", len(approvals))
	}

	var last map[string]interface{}
	for _, a := range approvals {
		approvalID := uint(a.(map[string]interface{})["id"].(float64))
		w = testutil.DoRequest(router, "PATCH", fmt.Sprintf("%s/approvals/%d", base, approvalID),
			map[string]interface{}{"status": "approved"}, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
		last = testutil.Data(t, w)
	}
	permit := last["permit"].(map[string]interface{})
	if permit["status"] != "approved" {
		t.Errorf("Expected permit approved, got %v", permit["status"])
	}

	w = testutil.DoRequest(router, "PATCH", base+"/approvals/1", map[string]interface{}{"status": "maybe"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid status, got %d", w.Code)
	}
}

func TestPermitSchemaRejection(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/permits", `{"date":"2026-10-01","status":"archived"}`, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if msg := testutil.ParseResponse(w)["message"]; msg != "Invalid permit data" {
		t.Errorf("Unexpected message %v", msg)
	}
}

const confinedSpacePermit = `{
	"date": "2026-10-01",
	"submitter": "Aoife Byrne",
	"manager": "Declan Walsh",
	"authorityName": "Orla Kelly",
	"location": "F34 Bay 3",
	"permitType": "confined-space",
	"status": "pending",
	"spaceIdentification": {"sourceVessel": true, "other": ""},
	"communicationMethod": {"verbalVisual": true, "radio": true, "other": false, "otherDescription": ""},
	"physicalHazards": [{"id": "ph1", "hazardLabel": "Pinch points", "controlLabel": "Guards", "hazardPresent": true, "controlApplied": true}],
	"atmosphericHazards": [{"id": "ah1", "hazardLabel": "Oxygen deficiency", "monitorLabel": "4-gas monitor", "hazardPresent": true, "monitorDeployed": true}],
	"toolsChecklist": [{"id": "t1", "label": "Tripod", "checked": true}],
	"extractionSituations": [{"id": "es1", "label": "Unconscious entrant", "applicable": true}],
	"extractionMethods": [{"id": "em1", "label": "Winch", "selected": true}],
	"extractionEquipment": [{"id": "ee1", "label": "Harness", "available": true}],
	"medicalEquipment": [{"id": "me1", "label": "AED", "available": true}],
	"enhancedSignOff": {"ehsSpecialistName": "Orla Kelly", "managerName": "Declan Walsh"}
}`

func TestPermitCreateWithConfinedSpaceSections(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/permits", confinedSpacePermit, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	permit := testutil.Data(t, w)
	hazards, ok := permit["physicalHazards"].([]interface{})
	if !ok || len(hazards) != 1 {
		t.Fatalf("Expected 1 physical hazard, got %v", permit["physicalHazards"])
	}
	if label := hazards[0].(map[string]interface{})["hazardLabel"]; label != "Pinch points" {
		t.Errorf("Expected hazardLabel Pinch points, got %v", label)
	}
	if atmos, _ := permit["atmosphericHazards"].([]interface{}); len(atmos) != 1 {
		t.Errorf("Expected 1 atmospheric hazard, got %v", permit["atmosphericHazards"])
	}

	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/permits/%d/approvals", uint(permit["id"].(float64))), nil, token)
	if approvals := testutil.Items(t, w); len(approvals) != 2 {
		t.Errorf("Expected 2 approvals, got %d", len(approvals))
	}

	// 缺少 hazardLabel 仍然拒绝
	w = testutil.DoRequest(router, "POST", "/api/permits",
		`{"date":"2026-10-01","physicalHazards":[{"id":"ph1","label":"Pinch points"}]}`, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without hazardLabel, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGasMeasurementAlert(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "POST", "/api/permits", pendingPermit, token)
	permitID := uint(testutil.Data(t, w)["id"].(float64))
	path := fmt.Sprintf("/api/permits/%d/gas-measurements", permitID)

	w = testutil.DoRequest(router, "POST", path, map[string]interface{}{
		"o2Level": "18.9", "co2Level": "0.1", "coLevel": "5",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	m := testutil.Data(t, w)
	if m["alertTriggered"] != "yes" || m["measuredBy"] != "Test Admin" {
		t.Errorf("Unexpected measurement %v", m)
	}

	w = testutil.DoRequest(router, "POST", path, map[string]interface{}{
		"o2Level": "abc", "co2Level": "0.1", "coLevel": "5",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unparseable reading, got %d", w.Code)
	}
}

func TestHazardCatalogEndpoints(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(router, "GET", "/api/hazards", nil, token)
	if n := len(testutil.Items(t, w)); n != 19 {
		t.Errorf("Expected 19 hazards, got %d", n)
	}

	w = testutil.DoRequest(router, "GET", "/api/hazards/Working%20at%20Height", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	w = testutil.DoRequest(router, "GET", "/api/hazards/Unicorns", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestSupportEndpoints(t *testing.T) {
	router := setupEHSTest(t)
	token := testutil.DefaultTestToken()
	createPlan(t, router, token, 3)

	w := testutil.DoRequest(router, "GET", "/api/user-preferences/u-1", nil, token)
	if site := testutil.Data(t, w)["site"]; site != "F34 Intel Ireland" {
		t.Errorf("Expected default site, got %v", site)
	}
	w = testutil.DoRequest(router, "POST", "/api/user-preferences/u-1", map[string]interface{}{"system": "EUV"}, token)
	if system := testutil.Data(t, w)["system"]; system != "EUV" {
		t.Errorf("Expected EUV, got %v", system)
	}

	w = testutil.DoRequest(router, "GET", "/api/export/sharepoint", nil, token)
	export := testutil.Data(t, w)
	if export["listName"] != "PTPSafetyPlans" || export["itemCount"] != float64(1) {
		t.Errorf("Unexpected export %v", export)
	}

	w = testutil.DoRequest(router, "GET", "/api/export/safety-plans.xlsx", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Unexpected content type %s", ct)
	}

	w = testutil.DoRequest(router, "POST", "/api/documents", map[string]interface{}{
		"title": "LOTO procedure", "category": "procedure",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	docID := uint(testutil.Data(t, w)["id"].(float64))
	w = testutil.DoRequest(router, "GET", fmt.Sprintf("/api/documents/%d/file", docID), nil, token)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without storage, got %d", w.Code)
	}

	w = testutil.DoRequest(router, "GET", "/health/ready", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected ready, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(router, "GET", "/version", nil, "")
	if version := testutil.ParseResponse(w)["version"]; version != "test" {
		t.Errorf("Unexpected version %v", version)
	}
}
