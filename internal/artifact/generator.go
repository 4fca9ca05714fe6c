package artifact

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jobtailor/jobtailor/internal/analysis"
	"github.com/jobtailor/jobtailor/internal/model"
)

// Generation endpoint paths on the gateway.
const (
	pathTailorResume = "/tailor-resume"
	pathCoverLetter  = "/generate-cover-letter"
)

// Generator implements model.ArtifactService against the generation
// endpoints of the LLM gateway. It shares the gateway client's credential
// fallback and retry behavior.
type Generator struct {
	client *analysis.Client
	theme  string
	logger *slog.Logger
}

// NewGenerator wraps a gateway client configured with the generation base
// URL. Theme selects the resume rendering template server-side.
func NewGenerator(client *analysis.Client, theme string, logger *slog.Logger) *Generator {
	return &Generator{client: client, theme: theme, logger: logger}
}

// GenerateResume produces a tailored resume for one job. When priorJSON and
// feedback are set this is a feedback-driven regeneration; otherwise an
// initial creation. Returns the tailored resume JSON, the filename, and the
// rendered PDF.
func (g *Generator) GenerateResume(ctx context.Context, resume model.ResumeProfile, job model.JobContext, priorJSON, feedback string) (model.ResumeArtifact, error) {
	filename := resumeFilename(resume.FullName, job.Company)

	payload := map[string]any{
		"job_posting_text": job.Description,
		"resume_json_data": string(resume.Raw),
		"filename":         filename,
		"theme":            g.theme,
	}
	if priorJSON != "" {
		payload["current_resume_data"] = priorJSON
	}
	if feedback != "" {
		payload["retry_feedback"] = feedback
	}

	var resp struct {
		TailoredResumeJSON string `json:"tailored_resume_json"`
		PDFBase64          string `json:"pdf_base64_string"`
	}
	if err := g.client.Post(ctx, pathTailorResume, payload, &resp); err != nil {
		return model.ResumeArtifact{}, err
	}
	if resp.PDFBase64 == "" {
		return model.ResumeArtifact{}, fmt.Errorf("%s: response missing PDF", pathTailorResume)
	}

	pdf, err := base64.StdEncoding.DecodeString(resp.PDFBase64)
	if err != nil {
		return model.ResumeArtifact{}, fmt.Errorf("decode resume PDF: %w", err)
	}

	return model.ResumeArtifact{
		JSON:     resp.TailoredResumeJSON,
		Filename: filename,
		PDF:      pdf,
	}, nil
}

// GenerateCoverLetter produces a tailored cover letter. priorText and
// feedback drive regeneration the same way as for resumes.
func (g *Generator) GenerateCoverLetter(ctx context.Context, resume model.ResumeProfile, job model.JobContext, priorText, feedback string) (string, error) {
	jobContext, err := json.Marshal(map[string]string{
		"company_name": job.Company,
		"job_title":    job.Title,
		"location":     job.Location,
		"job_url":      job.JobURL,
	})
	if err != nil {
		return "", fmt.Errorf("marshal job context: %w", err)
	}

	payload := map[string]any{
		"job_posting_text":     job.Description,
		"job_specific_context": string(jobContext),
		"resume_json_data":     string(resume.Raw),
	}
	if priorText != "" {
		payload["current_content"] = priorText
	}
	if feedback != "" {
		payload["retry_feedback"] = feedback
	}

	var resp struct {
		CoverLetter string `json:"cover_letter"`
	}
	if err := g.client.Post(ctx, pathCoverLetter, payload, &resp); err != nil {
		return "", err
	}
	if resp.CoverLetter == "" {
		return "", fmt.Errorf("%s: empty cover letter", pathCoverLetter)
	}
	return resp.CoverLetter, nil
}

// resumeFilename builds "<Full_Name>_resume_<Company>.pdf" with spaces
// replaced so the name is shell-safe.
func resumeFilename(fullName, company string) string {
	name := strings.ReplaceAll(strings.TrimSpace(fullName), " ", "_")
	if name == "" {
		name = "resume"
	}
	comp := strings.ReplaceAll(strings.TrimSpace(company), " ", "_")
	if comp == "" {
		comp = "Company"
	}
	return fmt.Sprintf("%s_resume_%s.pdf", name, comp)
}

var _ model.ArtifactService = (*Generator)(nil)
