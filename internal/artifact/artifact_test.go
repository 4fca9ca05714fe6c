package artifact

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobtailor/jobtailor/internal/analysis"
	"github.com/jobtailor/jobtailor/internal/model"
	"github.com/jobtailor/jobtailor/internal/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := analysis.NewClient(analysis.ClientOptions{
		BaseURL:  srv.URL,
		APIKey:   "key",
		Model:    "test-model",
		Provider: "generation",
	}, ratelimit.NewThrottle(time.Millisecond), testLogger())
	return NewGenerator(client, "engineeringclassic", testLogger())
}

func TestGenerateResumeDecodesPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	var gotPayload map[string]any
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]string{
			"tailored_resume_json": `{"summary":"tailored"}`,
			"pdf_base64_string":    base64.StdEncoding.EncodeToString(pdf),
		})
	})

	resume := model.ResumeProfile{FullName: "Ada Lovelace", Raw: []byte(`{}`)}
	job := model.JobContext{Company: "Acme Corp", Description: "build things"}

	got, err := g.GenerateResume(context.Background(), resume, job, "", "")
	if err != nil {
		t.Fatalf("GenerateResume: %v", err)
	}
	if string(got.PDF) != string(pdf) {
		t.Error("PDF bytes mismatch")
	}
	if got.Filename != "Ada_Lovelace_resume_Acme_Corp.pdf" {
		t.Errorf("filename = %q", got.Filename)
	}
	if got.JSON != `{"summary":"tailored"}` {
		t.Errorf("JSON = %q", got.JSON)
	}
	if gotPayload["theme"] != "engineeringclassic" {
		t.Errorf("theme = %v", gotPayload["theme"])
	}
	if _, ok := gotPayload["retry_feedback"]; ok {
		t.Error("initial generation must not send retry_feedback")
	}
}

func TestGenerateResumeRegenerationSendsFeedback(t *testing.T) {
	var gotPayload map[string]any
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]string{
			"tailored_resume_json": "{}",
			"pdf_base64_string":    base64.StdEncoding.EncodeToString([]byte("pdf")),
		})
	})

	_, err := g.GenerateResume(context.Background(),
		model.ResumeProfile{FullName: "Ada", Raw: []byte(`{}`)},
		model.JobContext{Company: "Acme"},
		`{"old":true}`, "emphasize Go experience")
	if err != nil {
		t.Fatalf("GenerateResume: %v", err)
	}
	if gotPayload["current_resume_data"] != `{"old":true}` {
		t.Errorf("current_resume_data = %v", gotPayload["current_resume_data"])
	}
	if gotPayload["retry_feedback"] != "emphasize Go experience" {
		t.Errorf("retry_feedback = %v", gotPayload["retry_feedback"])
	}
}

func TestGenerateCoverLetter(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"cover_letter": "Dear team,"})
	})

	got, err := g.GenerateCoverLetter(context.Background(),
		model.ResumeProfile{Raw: []byte(`{}`)},
		model.JobContext{Company: "Acme", Title: "Engineer"}, "", "")
	if err != nil {
		t.Fatalf("GenerateCoverLetter: %v", err)
	}
	if got != "Dear team," {
		t.Errorf("cover letter = %q", got)
	}
}

func TestLocalFilesRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	files, err := NewLocalFiles(dir)
	if err != nil {
		t.Fatalf("NewLocalFiles: %v", err)
	}

	ref, err := files.SaveResume([]byte("pdf-bytes"), "Ada_resume_Acme.pdf")
	if err != nil {
		t.Fatalf("SaveResume: %v", err)
	}
	if _, err := os.Stat(ref); err != nil {
		t.Fatalf("saved resume missing: %v", err)
	}

	clRef, err := files.SaveCoverLetter("Dear team,", "Ada_resume_Acme.pdf")
	if err != nil {
		t.Fatalf("SaveCoverLetter: %v", err)
	}
	if filepath.Ext(clRef) != ".txt" {
		t.Errorf("cover letter ref = %q, want .txt", clRef)
	}

	if err := files.DeleteResume(ref); err != nil {
		t.Fatalf("DeleteResume: %v", err)
	}
	if _, err := os.Stat(ref); !os.IsNotExist(err) {
		t.Error("resume still present after delete")
	}
	// Idempotent.
	if err := files.DeleteResume(ref); err != nil {
		t.Errorf("second DeleteResume: %v", err)
	}
	if err := files.DeleteResume(""); err != nil {
		t.Errorf("DeleteResume(\"\"): %v", err)
	}
}
