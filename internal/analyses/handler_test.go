package analyses_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"desap-backend/internal/shared/auth"
	"desap-backend/internal/shared/config"
	"desap-backend/internal/shared/server"
)

const detectionBody = `{
	"image": {"width": 64, "height": 64},
	"predictions": [
		{"class": "larvae", "class_id": 0, "confidence": 0.91, "detection_id": "d-1", "x": 32, "y": 32, "width": 20, "height": 16},
		{"class": "larvae", "class_id": 0, "confidence": 0.77, "detection_id": "d-2", "x": 10, "y": 50, "width": 8, "height": 8}
	],
	"time": 0.31
}`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	detection := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detect/larvae":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(detectionBody))
		case "/calculate/larvae":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(testPNG(t))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(detection.Close)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		DetectionURL:    detection.URL,
		AnnotateMode:    "local",
		Env:             "dev",
	}
	return server.NewRouter(cfg)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 120, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func base64PNG(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(testPNG(t))
}

func councilToken(t *testing.T) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{
		Sub:       "council-1",
		Email:     "reviewer@council.gov",
		UserName:  "Reviewer",
		Role:      "council",
		CouncilID: "council-7",
		Exp:       time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return token
}

func workerToken(t *testing.T) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{
		Sub:      "chw-1",
		Email:    "ana@example.org",
		UserName: "Ana Silva",
		Role:     "worker",
		Exp:      time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return token
}

func submitImage(t *testing.T, router *gin.Engine, bearer string) map[string]any {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("image", "site.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(testPNG(t)); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %s", resp.Code, resp.Body.String())
	}

	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return created
}

func TestSubmitAndFetchAnalysis(t *testing.T) {
	router := newTestRouter(t)

	created := submitImage(t, router, workerToken(t))
	if created["status"] != "PENDING" {
		t.Fatalf("status = %v, want PENDING", created["status"])
	}
	if created["verdict"] != "UNSET" {
		t.Fatalf("verdict = %v, want UNSET", created["verdict"])
	}
	if count, ok := created["larvaeCount"].(float64); !ok || count != 2 {
		t.Fatalf("larvaeCount = %v, want 2", created["larvaeCount"])
	}

	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("missing analysis id")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+id, nil)
	req.Header.Set("X-Guest-Id", "guest-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("get status = %d", resp.Code)
	}

	var fetched struct {
		ID        string `json:"id"`
		CreatedBy struct {
			UserName string `json:"userName"`
			Email    string `json:"email"`
		} `json:"createdBy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.CreatedBy.UserName != "Ana Silva" || fetched.CreatedBy.Email != "ana@example.org" {
		t.Fatalf("createdBy = %+v", fetched.CreatedBy)
	}
}

func TestSubmitBase64JSON(t *testing.T) {
	router := newTestRouter(t)

	payload := map[string]string{
		"imageBase64": base64PNG(t),
		"fileName":    "site.png",
	}
	raw, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", "guest-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body = %s", resp.Code, resp.Body.String())
	}
}

func TestSubmitRequiresIdentity(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestListNewestFirst(t *testing.T) {
	router := newTestRouter(t)

	first := submitImage(t, router, workerToken(t))
	second := submitImage(t, router, workerToken(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	req.Header.Set("X-Guest-Id", "guest-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("list status = %d", resp.Code)
	}

	var list []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d items, want 2", len(list))
	}
	if list[0].ID != second["id"] || list[1].ID != first["id"] {
		t.Fatalf("list order = [%s %s], want newest first", list[0].ID, list[1].ID)
	}
}

func TestReviewRequiresCouncilRole(t *testing.T) {
	router := newTestRouter(t)
	created := submitImage(t, router, workerToken(t))
	id := created["id"].(string)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/analyses/"+id+"/status", strings.NewReader(`{"status":"CHECKED"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+workerToken(t))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.Code)
	}
}

func TestReviewWorkflow(t *testing.T) {
	router := newTestRouter(t)
	created := submitImage(t, router, workerToken(t))
	id := created["id"].(string)
	token := councilToken(t)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	resp := do(http.MethodPut, "/api/v1/analyses/"+id+"/status", `{"status":"CHECKED"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("check status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var updated map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&updated)
	if updated["status"] != "CHECKED" {
		t.Fatalf("status = %v, want CHECKED", updated["status"])
	}

	// Backwards transition is rejected.
	resp = do(http.MethodPut, "/api/v1/analyses/"+id+"/status", `{"status":"PENDING"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("backwards status = %d, want 400", resp.Code)
	}

	resp = do(http.MethodPut, "/api/v1/analyses/"+id+"/verdict", `{"verdict":"positive"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("verdict status = %d", resp.Code)
	}
	_ = json.NewDecoder(resp.Body).Decode(&updated)
	if updated["verdict"] != "POSITIVE" {
		t.Fatalf("verdict = %v, want POSITIVE", updated["verdict"])
	}

	resp = do(http.MethodDelete, "/api/v1/analyses/"+id, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.Code)
	}

	// Deleting again is still a 204.
	resp = do(http.MethodDelete, "/api/v1/analyses/"+id, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("repeat delete status = %d", resp.Code)
	}

	resp = do(http.MethodGet, "/api/v1/analyses/"+id, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.Code)
	}
}

func TestAnnotatedImage(t *testing.T) {
	router := newTestRouter(t)
	created := submitImage(t, router, workerToken(t))
	id := created["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+id+"/annotated", nil)
	req.Header.Set("X-Guest-Id", "guest-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("annotated status = %d, body = %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); !strings.Contains(ct, "image/png") {
		t.Fatalf("content type = %q, want image/png", ct)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Fatalf("decode annotated png: %v", err)
	}
}

func TestContactSubmitter(t *testing.T) {
	router := newTestRouter(t)
	created := submitImage(t, router, workerToken(t))
	id := created["id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+id+"/contact", nil)
	req.Header.Set("Authorization", "Bearer "+councilToken(t))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("contact status = %d", resp.Code)
	}

	var contact struct {
		Email  string `json:"email"`
		Mailto string `json:"mailto"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		t.Fatalf("decode contact: %v", err)
	}
	if contact.Email != "ana@example.org" {
		t.Fatalf("email = %q", contact.Email)
	}
	if !strings.HasPrefix(contact.Mailto, "mailto:ana@example.org?subject=") {
		t.Fatalf("mailto = %q", contact.Mailto)
	}
}

func TestSubmitDetectionFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	detection := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusInternalServerError)
	}))
	t.Cleanup(detection.Close)

	cfg := config.Config{
		Port:            "0",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		DetectionURL:    detection.URL,
		AnnotateMode:    "local",
		Env:             "dev",
	}
	router := server.NewRouter(cfg)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, _ := writer.CreateFormFile("image", "site.png")
	_, _ = fileWriter.Write(testPNG(t))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", "guest-42")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.Code)
	}
}
