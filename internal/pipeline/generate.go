package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobtailor/jobtailor/internal/model"
)

// Generate produces application artifacts for every record with a
// qualifying score. Excluded records get their stored artifacts cleaned up
// instead. Resume and cover letter are handled independently, so feedback
// on one never forces a regeneration of the other.
func (p *Pipeline) Generate(ctx context.Context) (int, error) {
	if p.deps.Artifacts == nil || p.deps.Files == nil {
		return 0, nil
	}

	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	progress := 0
	for i := range records {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		r := &records[i]
		if !r.HasQualifyingScore() {
			continue
		}

		if r.Excluded() {
			n, err := p.cleanupArtifacts(ctx, r)
			progress += n
			if err != nil {
				return progress, err
			}
			continue
		}

		n, err := p.generateForRecord(ctx, r)
		progress += n
		if err != nil {
			if errors.Is(err, model.ErrRateLimited) {
				p.rateLimited = true
				p.deps.Logger.Warn("artifact generation rate limited, deferring rest of cycle")
				return progress, nil
			}
			p.deps.Logger.Warn("artifact generation failed",
				"title", r.JobTitle, "company", r.Company, "error", err)
		}
	}

	return progress, nil
}

// generateForRecord brings one record's artifacts up to date: an initial
// creation when none exist, or a feedback-driven regeneration when the
// user left feedback that has not been addressed yet.
func (p *Pipeline) generateForRecord(ctx context.Context, r *model.JobRecord) (int, error) {
	progress := 0

	resumeFeedback := r.ResumeFeedback != "" && !r.ResumeFeedbackAddressed
	if r.TailoredResumeRef == "" || resumeFeedback {
		n, err := p.generateResume(ctx, r, resumeFeedback)
		progress += n
		if err != nil {
			return progress, err
		}
	}

	clFeedback := r.CLFeedback != "" && !r.CLFeedbackAddressed
	if r.TailoredCoverLetter == "" || clFeedback {
		n, err := p.generateCoverLetter(ctx, r, clFeedback)
		progress += n
		if err != nil {
			return progress, err
		}
	}

	return progress, nil
}

func (p *Pipeline) generateResume(ctx context.Context, r *model.JobRecord, withFeedback bool) (int, error) {
	var prior, feedback string
	if withFeedback {
		prior = r.TailoredResumePayload
		feedback = r.ResumeFeedback
	}

	art, err := p.deps.Artifacts.GenerateResume(ctx, p.deps.Resume, jobContext(r), prior, feedback)
	if err != nil {
		return 0, err
	}

	ref, err := p.deps.Files.SaveResume(art.PDF, art.Filename)
	if err != nil {
		return 0, err
	}

	fields := model.Fields{
		model.FieldTailoredResumeRef:  ref,
		model.FieldTailoredResumeData: art.JSON,
	}
	if withFeedback {
		fields[model.FieldResumeFeedbackDone] = true
	}
	if _, err := p.deps.Store.UpdateByKey(ctx, r.Key(), fields); err != nil {
		return 0, err
	}
	r.TailoredResumeRef = ref
	r.TailoredResumePayload = art.JSON
	r.ResumeFeedbackAddressed = r.ResumeFeedbackAddressed || withFeedback

	p.deps.Logger.Info("generated tailored resume",
		"title", r.JobTitle, "company", r.Company, "file", ref, "regenerated", withFeedback)
	return 1, nil
}

func (p *Pipeline) generateCoverLetter(ctx context.Context, r *model.JobRecord, withFeedback bool) (int, error) {
	var prior, feedback string
	if withFeedback {
		prior = r.TailoredCoverLetter
		feedback = r.CLFeedback
	}

	text, err := p.deps.Artifacts.GenerateCoverLetter(ctx, p.deps.Resume, jobContext(r), prior, feedback)
	if err != nil {
		return 0, err
	}

	path, err := p.deps.Files.SaveCoverLetter(text, coverLetterFilename(p.deps.Resume.FullName, r.Company))
	if err != nil {
		return 0, err
	}

	fields := model.Fields{model.FieldTailoredCoverLetter: text}
	if withFeedback {
		fields[model.FieldCLFeedbackDone] = true
	}
	if _, err := p.deps.Store.UpdateByKey(ctx, r.Key(), fields); err != nil {
		return 0, err
	}
	r.TailoredCoverLetter = text
	r.CLFeedbackAddressed = r.CLFeedbackAddressed || withFeedback

	p.deps.Logger.Info("generated cover letter",
		"title", r.JobTitle, "company", r.Company, "file", path, "regenerated", withFeedback)
	return 1, nil
}

// cleanupArtifacts removes stored artifacts from records the user has taken
// out of play, so applied or expired jobs do not keep stale files around.
func (p *Pipeline) cleanupArtifacts(ctx context.Context, r *model.JobRecord) (int, error) {
	if r.TailoredResumeRef == "" {
		return 0, nil
	}
	if err := p.deps.Files.DeleteResume(r.TailoredResumeRef); err != nil {
		p.deps.Logger.Warn("deleting stale resume failed", "file", r.TailoredResumeRef, "error", err)
		return 0, nil
	}
	if _, err := p.deps.Store.UpdateByKey(ctx, r.Key(), model.Fields{
		model.FieldTailoredResumeRef:  "",
		model.FieldTailoredResumeData: "",
	}); err != nil {
		return 0, err
	}
	r.TailoredResumeRef = ""
	r.TailoredResumePayload = ""
	return 1, nil
}

func coverLetterFilename(fullName, company string) string {
	name := strings.ReplaceAll(strings.TrimSpace(fullName), " ", "_")
	if name == "" {
		name = "cover_letter"
	}
	comp := strings.ReplaceAll(strings.TrimSpace(company), " ", "_")
	if comp == "" {
		comp = "Company"
	}
	return fmt.Sprintf("%s_cover_letter_%s.txt", name, comp)
}
