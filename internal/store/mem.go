package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
)

// MemStore is an in-memory RecordStore with the same update semantics as
// SQLiteStore. Used by tests and by dry-run commands that must not touch
// the real database.
type MemStore struct {
	mu      sync.Mutex
	records []model.JobRecord
	index   map[model.RecordKey]int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{index: make(map[model.RecordKey]int)}
}

// Seed replaces the store contents. Test helper.
func (s *MemStore) Seed(records []model.JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]model.JobRecord(nil), records...)
	s.index = make(map[model.RecordKey]int, len(records))
	for i, r := range s.records {
		s.index[r.Key()] = i
	}
}

func (s *MemStore) GetAll(ctx context.Context) ([]model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JobRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemStore) UpsertMany(ctx context.Context, records []model.JobRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		key := r.Key()
		if _, exists := s.index[key]; exists {
			continue
		}
		r.FitScoreRank = r.FitScore.Rank()
		s.index[key] = len(s.records)
		s.records = append(s.records, r)
		inserted++
	}
	return inserted, nil
}

func (s *MemStore) UpdateByKey(ctx context.Context, key model.RecordKey, fields model.Fields) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return 0, nil
	}
	if err := applyFields(&s.records[i], fields); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *MemStore) BulkUpdateByKey(ctx context.Context, updates []model.KeyedUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		i, ok := s.index[u.Key]
		if !ok {
			continue
		}
		if err := applyFields(&s.records[i], u.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) SortByPriority(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(s.records, func(i, j int) bool {
		a, b := s.records[i], s.records[j]
		if a.FitScoreRank != b.FitScoreRank {
			return a.FitScoreRank > b.FitScoreRank
		}
		return a.LocationPriority < b.LocationPriority
	})
	for i, r := range s.records {
		s.index[r.Key()] = i
	}
	return nil
}

// applyFields mutates a record in place from a partial update, mirroring
// the column whitelist enforced by the SQLite store.
func applyFields(r *model.JobRecord, fields model.Fields) error {
	for name, value := range fields {
		switch name {
		case model.FieldJobTitle:
			r.JobTitle = value.(string)
		case model.FieldLocation:
			r.Location = value.(string)
		case model.FieldLocationPriority:
			r.LocationPriority = value.(int)
		case model.FieldJobDescription:
			r.JobDescription = value.(string)
		case model.FieldCompanyOverview:
			r.CompanyOverview = value.(string)
		case model.FieldCOFetchAttempted:
			r.COFetchAttempted = value.(bool)
		case model.FieldJDCrawlAttempted:
			r.JDCrawlAttempted = value.(bool)
		case model.FieldSustainable:
			r.Sustainable = value.(model.Sustainability)
		case model.FieldSustainabilityMatch:
			r.SustainabilityKeywordMatches = value.(string)
		case model.FieldFitScore:
			score := value.(model.FitScore)
			r.FitScore = score
			r.FitScoreRank = score.Rank()
		case model.FieldBulkFiltered:
			r.BulkFiltered = value.(bool)
		case model.FieldJobAnalysis:
			r.JobAnalysis = value.(string)
		case model.FieldTailoredResumeRef:
			r.TailoredResumeRef = value.(string)
		case model.FieldTailoredResumeData:
			r.TailoredResumePayload = value.(string)
		case model.FieldTailoredCoverLetter:
			r.TailoredCoverLetter = value.(string)
		case model.FieldResumeFeedback:
			r.ResumeFeedback = value.(string)
		case model.FieldResumeFeedbackDone:
			r.ResumeFeedbackAddressed = value.(bool)
		case model.FieldCLFeedback:
			r.CLFeedback = value.(string)
		case model.FieldCLFeedbackDone:
			r.CLFeedbackAddressed = value.(bool)
		case model.FieldApplied:
			r.Applied = value.(bool)
		case model.FieldBadAnalysis:
			r.BadAnalysis = value.(bool)
		case model.FieldExpired:
			r.Expired = value.(bool)
		case model.FieldLastExpirationCheck:
			switch t := value.(type) {
			case *time.Time:
				r.LastExpirationCheck = t
			case time.Time:
				r.LastExpirationCheck = &t
			default:
				return fmt.Errorf("bad value type for %s", name)
			}
		default:
			return fmt.Errorf("unknown column %q", name)
		}
	}
	return nil
}

var _ model.RecordStore = (*MemStore)(nil)
