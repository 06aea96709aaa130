package roboflow

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

const inferBody = `{
  "inference_id": "abc",
  "time": 0.12,
  "image": {"width": 640, "height": 640},
  "predictions": [
    {"x": 100, "y": 120, "width": 20, "height": 10, "confidence": 0.91, "class": "solar", "class_id": 0},
    {"x": 10, "y": 12, "width": 4, "confidence": 0.4, "class": "solar", "class_id": 0}
  ]
}`

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tile.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestNew_MissingKey(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("New(\"\") error = %v, want ErrMissingAPIKey", err)
	}
}

func TestDetector_Detect(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/{project}/{version}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		if vars["project"] != "pv-project" || vars["version"] != "8" {
			http.NotFound(w, req)
			return
		}
		if req.URL.Query().Get("api_key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(req.Body)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		if err != nil || string(decoded) != "jpeg-bytes" {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(inferBody))
	}).Methods(http.MethodPost)

	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := New("secret", WithInferURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	inf, err := c.Detector("pv-project/8").Detect(context.Background(), "train/tile.jpg", writeImage(t))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if len(inf.Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(inf.Detections))
	}
	if inf.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", inf.Skipped)
	}
	d := inf.Detections[0]
	if d.ImageID != "train/tile.jpg" || d.Area() != 200 || d.Confidence != 0.91 || d.Class != "solar" {
		t.Errorf("detection = %+v", d)
	}
	if got := inf.Raw.GetFields()["inference_id"].GetStringValue(); got != "abc" {
		t.Errorf("raw inference_id = %q, want abc", got)
	}
}

func TestClient_InferRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"predictions": []}`))
	}))
	defer srv.Close()

	c, err := New("secret", WithInferURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.Infer(context.Background(), "p/1", writeImage(t))
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if len(resp.Predictions) != 0 {
		t.Errorf("got %d predictions, want 0", len(resp.Predictions))
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_InferClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New("secret", WithInferURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Infer(context.Background(), "p/1", writeImage(t))
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("Infer() error = %v, want ErrRequestFailed", err)
	}
}

func TestDecodeResponse_Malformed(t *testing.T) {
	if _, err := DecodeResponse([]byte("<html>")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDatasetRef_ModelID(t *testing.T) {
	ref := DatasetRef{Workspace: "w", Project: "pv", Version: 8}
	if got := ref.ModelID(); got != "pv/8" {
		t.Errorf("ModelID() = %q, want pv/8", got)
	}
}

func datasetZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("train/_annotations.coco.json")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte(`{"images": [], "annotations": []}`)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestClient_DownloadDataset(t *testing.T) {
	archive := datasetZip(t)
	var exportCalls atomic.Int32

	r := mux.NewRouter()
	var srv *httptest.Server
	r.HandleFunc("/{workspace}/{project}/{version}/coco", func(w http.ResponseWriter, _ *http.Request) {
		// First poll reports a pending export.
		if exportCalls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"progress": 0.5}`))
			return
		}
		_, _ = w.Write([]byte(`{"export": {"link": "` + srv.URL + `/download/ds?key=k"}}`))
	}).Methods(http.MethodGet)
	r.HandleFunc("/download/ds", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(archive)
	}).Methods(http.MethodGet, http.MethodHead)

	srv = httptest.NewServer(r)
	defer srv.Close()

	c, err := New("secret", WithAPIURL(srv.URL), WithExportPolling(10*time.Millisecond, 5))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	dst := filepath.Join(t.TempDir(), "dataset")
	got, err := c.DownloadDataset(context.Background(), DatasetRef{Workspace: "w", Project: "pv", Version: 8}, dst)
	if err != nil {
		t.Fatalf("DownloadDataset() error = %v", err)
	}
	if got != dst {
		t.Errorf("DownloadDataset() = %q, want %q", got, dst)
	}
	if _, err := os.Stat(filepath.Join(dst, "train", "_annotations.coco.json")); err != nil {
		t.Errorf("annotations not unpacked: %v", err)
	}
	if exportCalls.Load() != 2 {
		t.Errorf("export polls = %d, want 2", exportCalls.Load())
	}
}

func TestClient_ExportNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"progress": 0.1}`))
	}))
	defer srv.Close()

	c, err := New("secret", WithAPIURL(srv.URL), WithExportPolling(time.Millisecond, 2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.ExportLink(context.Background(), DatasetRef{Workspace: "w", Project: "pv", Version: 1})
	if !errors.Is(err, ErrExportNotReady) {
		t.Fatalf("ExportLink() error = %v, want ErrExportNotReady", err)
	}
}

func TestClient_ExportNotReady_NoWaitAfterLastPoll(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		polls.Add(1)
		_, _ = w.Write([]byte(`{"progress": 0.5}`))
	}))
	defer srv.Close()

	c, err := New("secret", WithAPIURL(srv.URL), WithExportPolling(time.Hour, 1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A wait after the only poll would hit the deadline instead.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.ExportLink(ctx, DatasetRef{Workspace: "w", Project: "pv", Version: 1})
	if !errors.Is(err, ErrExportNotReady) {
		t.Fatalf("ExportLink() error = %v, want ErrExportNotReady", err)
	}
	if polls.Load() != 1 {
		t.Errorf("polls = %d, want 1", polls.Load())
	}
}
