package sandbox

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*Server, *echo.Echo) {
	t.Helper()
	s := New(Options{
		Key:          "test-signing-key",
		Users:        map[string]string{"demo": "demo1234"},
		AccessTTL:    time.Hour,
		RefreshTTL:   time.Hour,
		PatientCount: 25,
		Seed:         42,
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(s.Close)
	e := echo.New()
	s.RegisterRoutes(e)
	return s, e
}

func grant(t *testing.T, e *echo.Echo, form url.Values) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode token response %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func passwordGrant(t *testing.T, e *echo.Echo) map[string]interface{} {
	t.Helper()
	rec, body := grant(t, e, url.Values{
		"grant_type": {"password"},
		"username":   {"demo"},
		"password":   {"demo1234"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("password grant status = %d, body %s", rec.Code, rec.Body.String())
	}
	return body
}

func get(e *echo.Echo, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestToken_PasswordGrant(t *testing.T) {
	_, e := newTestServer(t)
	body := passwordGrant(t, e)

	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatalf("missing tokens: %v", body)
	}
	if body["token_type"] != "Bearer" {
		t.Errorf("token_type = %v", body["token_type"])
	}
	if body["expires_in"].(float64) != 3600 {
		t.Errorf("expires_in = %v", body["expires_in"])
	}
}

func TestToken_BadPassword(t *testing.T) {
	_, e := newTestServer(t)
	rec, body := grant(t, e, url.Values{
		"grant_type": {"password"},
		"username":   {"demo"},
		"password":   {"wrong"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != "invalid_grant" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestToken_RefreshRotates(t *testing.T) {
	_, e := newTestServer(t)
	first := passwordGrant(t, e)
	refreshToken := first["refresh_token"].(string)

	rec, second := grant(t, e, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	if second["refresh_token"] == refreshToken {
		t.Error("refresh token was not rotated")
	}

	// The spent token is dead.
	rec, _ = grant(t, e, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh token status = %d, want 401", rec.Code)
	}
}

func TestToken_UnsupportedGrant(t *testing.T) {
	_, e := newTestServer(t)
	rec, body := grant(t, e, url.Values{"grant_type": {"client_credentials"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != "unsupported_grant_type" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestListPatients_RequiresValidBearer(t *testing.T) {
	_, e := newTestServer(t)

	if rec := get(e, "/Patient", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", rec.Code)
	}
	if rec := get(e, "/Patient", "not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d", rec.Code)
	}
}

func TestListPatients_PagingLinks(t *testing.T) {
	_, e := newTestServer(t)
	access := passwordGrant(t, e)["access_token"].(string)

	rec := get(e, "/Patient?page=2&_count=10", access)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var bundle struct {
		ResourceType string `json:"resourceType"`
		Total        int    `json:"total"`
		Link         []struct {
			Relation string `json:"relation"`
			URL      string `json:"url"`
		} `json:"link"`
		Entry []struct {
			Resource map[string]interface{} `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bundle.ResourceType != "Bundle" || bundle.Total != 25 {
		t.Errorf("resourceType/total = %s/%d", bundle.ResourceType, bundle.Total)
	}
	if len(bundle.Entry) != 10 {
		t.Errorf("entries = %d", len(bundle.Entry))
	}

	rels := map[string]string{}
	for _, l := range bundle.Link {
		rels[l.Relation] = l.URL
	}
	if rels["next"] != "/Patient?page=3&_count=10" {
		t.Errorf("next = %q", rels["next"])
	}
	if rels["previous"] != "/Patient?page=1&_count=10" {
		t.Errorf("previous = %q", rels["previous"])
	}

	// Last page: 25 patients at 10 a page ends on page 3, no next link.
	rec = get(e, "/Patient?page=3&_count=10", access)
	bundle.Link = nil
	bundle.Entry = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode last page: %v", err)
	}
	if len(bundle.Entry) != 5 {
		t.Errorf("last page entries = %d", len(bundle.Entry))
	}
	for _, l := range bundle.Link {
		if l.Relation == "next" {
			t.Error("last page must not carry a next link")
		}
	}
}

func TestGetPatient_NotFoundOutcome(t *testing.T) {
	_, e := newTestServer(t)
	access := passwordGrant(t, e)["access_token"].(string)

	rec := get(e, "/Patient/nope", access)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var outcome map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &outcome)
	if outcome["resourceType"] != "OperationOutcome" {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestUpdatePatient_PersistsAndBumpsVersion(t *testing.T) {
	s, e := newTestServer(t)
	access := passwordGrant(t, e)["access_token"].(string)

	id := s.patients[0]["id"].(string)
	doc := map[string]interface{}{
		"resourceType": "Patient",
		"id":           id,
		"gender":       "other",
	}
	encoded, _ := json.Marshal(doc)

	req := httptest.NewRequest(http.MethodPut, "/Patient/"+id, strings.NewReader(string(encoded)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var stored map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &stored)
	meta := stored["meta"].(map[string]interface{})
	if meta["versionId"] != "2" {
		t.Errorf("versionId = %v", meta["versionId"])
	}

	// A follow-up read sees the change.
	rec = get(e, "/Patient/"+id, access)
	var fetched map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &fetched)
	if fetched["gender"] != "other" {
		t.Errorf("gender = %v after update", fetched["gender"])
	}
}

func TestUpdatePatient_IDMismatchOutcome(t *testing.T) {
	s, e := newTestServer(t)
	access := passwordGrant(t, e)["access_token"].(string)

	id := s.patients[0]["id"].(string)
	req := httptest.NewRequest(http.MethodPut, "/Patient/"+id,
		strings.NewReader(`{"resourceType":"Patient","id":"different"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerator_DeterministicAndComplete(t *testing.T) {
	a := NewGenerator(7).Patients(5)
	b := NewGenerator(7).Patients(5)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Error("same seed must generate the same patients")
	}

	for _, p := range a {
		for _, key := range []string{"id", "name", "gender", "birthDate", "telecom", "address", "maritalStatus", "extension", "identifier", "meta"} {
			if _, ok := p[key]; !ok {
				t.Errorf("generated patient missing %q", key)
			}
		}
	}
}
