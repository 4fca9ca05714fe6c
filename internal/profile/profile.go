package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jobtailor/jobtailor/internal/model"
)

// Load reads the resume profile. resumePath is required and must hold valid
// JSON with personal.full_name set; detailsPath is an optional free-text
// file appended as extra context for analysis and generation prompts.
func Load(resumePath, detailsPath string) (model.ResumeProfile, error) {
	raw, err := os.ReadFile(resumePath)
	if err != nil {
		return model.ResumeProfile{}, fmt.Errorf("read resume profile: %w", err)
	}

	var doc struct {
		Personal struct {
			FullName string `json:"full_name"`
		} `json:"personal"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.ResumeProfile{}, fmt.Errorf("parse resume profile %s: %w", resumePath, err)
	}
	if doc.Personal.FullName == "" {
		return model.ResumeProfile{}, fmt.Errorf("resume profile %s: personal.full_name is required", resumePath)
	}

	p := model.ResumeProfile{
		FullName: doc.Personal.FullName,
		Raw:      json.RawMessage(raw),
	}

	if detailsPath != "" {
		details, err := os.ReadFile(detailsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return model.ResumeProfile{}, fmt.Errorf("read additional details: %w", err)
			}
		} else {
			p.AdditionalDetails = strings.TrimSpace(string(details))
		}
	}

	return p, nil
}
