package service_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

// memoryStore is an in-memory stand-in for the Postgres repository. It
// mirrors the repository's error contract (database.ErrNotFound and
// database.ErrDuplicateKey) so service branching behaves as in production.
type memoryStore struct {
	mu sync.Mutex

	flags       map[string]types.Flag
	segments    map[string]types.Segment
	rules       map[string]types.Rule
	experiments map[string]types.Experiment
	assignments map[string]types.Assignment
	conclusions map[string]types.ExperimentConclusion
	profiles    map[string]types.Profile

	// conflictAssignment, when set, makes CreateAssignmentIfAbsent behave
	// as if a concurrent call had just won the insert race.
	conflictAssignment *types.Assignment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		flags:       make(map[string]types.Flag),
		segments:    make(map[string]types.Segment),
		rules:       make(map[string]types.Rule),
		experiments: make(map[string]types.Experiment),
		assignments: make(map[string]types.Assignment),
		conclusions: make(map[string]types.ExperimentConclusion),
		profiles:    make(map[string]types.Profile),
	}
}

func flagKey(key, environment string) string { return environment + "/" + key }

func assignmentKey(experimentKey, subjectID string) string {
	return experimentKey + "/" + subjectID
}

func (m *memoryStore) CreateFlag(_ context.Context, f types.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := flagKey(f.Key, f.Environment)
	if _, ok := m.flags[k]; ok {
		return fmt.Errorf("flag %q: %w", f.Key, database.ErrDuplicateKey)
	}
	m.flags[k] = f
	return nil
}

func (m *memoryStore) GetFlag(_ context.Context, key, environment string) (types.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flags[flagKey(key, environment)]
	if !ok {
		return types.Flag{}, fmt.Errorf("flag %q: %w", key, database.ErrNotFound)
	}
	return f, nil
}

func (m *memoryStore) ListFlags(_ context.Context, environment string, activeOnly bool) ([]types.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Flag
	for _, f := range m.flags {
		if f.Environment != environment {
			continue
		}
		if activeOnly && !f.Active {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *memoryStore) UpdateFlag(_ context.Context, f types.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := flagKey(f.Key, f.Environment)
	if _, ok := m.flags[k]; !ok {
		return fmt.Errorf("flag %q: %w", f.Key, database.ErrNotFound)
	}
	m.flags[k] = f
	return nil
}

func (m *memoryStore) DeleteFlag(_ context.Context, key, environment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := flagKey(key, environment)
	if _, ok := m.flags[k]; !ok {
		return fmt.Errorf("flag %q: %w", key, database.ErrNotFound)
	}
	delete(m.flags, k)
	return nil
}

func (m *memoryStore) CreateSegment(_ context.Context, s types.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.segments[s.Key]; ok {
		return fmt.Errorf("segment %q: %w", s.Key, database.ErrDuplicateKey)
	}
	m.segments[s.Key] = s
	return nil
}

func (m *memoryStore) GetSegment(_ context.Context, key string) (types.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.segments[key]
	if !ok {
		return types.Segment{}, fmt.Errorf("segment %q: %w", key, database.ErrNotFound)
	}
	return s, nil
}

func (m *memoryStore) ListSegments(_ context.Context) ([]types.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Segment
	for _, s := range m.segments {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryStore) UpdateSegment(_ context.Context, s types.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.segments[s.Key]; !ok {
		return fmt.Errorf("segment %q: %w", s.Key, database.ErrNotFound)
	}
	m.segments[s.Key] = s
	return nil
}

func (m *memoryStore) DeleteSegment(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.segments[key]; !ok {
		return fmt.Errorf("segment %q: %w", key, database.ErrNotFound)
	}
	delete(m.segments, key)
	return nil
}

func (m *memoryStore) CreateRule(_ context.Context, r types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.Key]; ok {
		return fmt.Errorf("rule %q: %w", r.Key, database.ErrDuplicateKey)
	}
	m.rules[r.Key] = r
	return nil
}

func (m *memoryStore) GetRule(_ context.Context, key string) (types.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[key]
	if !ok {
		return types.Rule{}, fmt.Errorf("rule %q: %w", key, database.ErrNotFound)
	}
	return r, nil
}

func (m *memoryStore) ListRulesByType(_ context.Context, ruleType string) ([]types.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Rule
	for _, r := range m.rules {
		if r.Type == ruleType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateRule(_ context.Context, r types.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.Key]; !ok {
		return fmt.Errorf("rule %q: %w", r.Key, database.ErrNotFound)
	}
	m.rules[r.Key] = r
	return nil
}

func (m *memoryStore) DeleteRule(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[key]; !ok {
		return fmt.Errorf("rule %q: %w", key, database.ErrNotFound)
	}
	delete(m.rules, key)
	return nil
}

func (m *memoryStore) CreateExperiment(_ context.Context, exp types.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[exp.Key]; ok {
		return fmt.Errorf("experiment %q: %w", exp.Key, database.ErrDuplicateKey)
	}
	m.experiments[exp.Key] = exp
	return nil
}

func (m *memoryStore) GetExperimentByKey(_ context.Context, key string) (types.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.experiments[key]
	if !ok {
		return types.Experiment{}, fmt.Errorf("experiment %q: %w", key, database.ErrNotFound)
	}
	return exp, nil
}

func (m *memoryStore) ListExperiments(_ context.Context, status types.ExperimentStatus, limit, offset int) ([]types.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Experiment
	for _, exp := range m.experiments {
		if status != "" && exp.Status != status {
			continue
		}
		out = append(out, exp)
	}
	return out, nil
}

func (m *memoryStore) UpdateExperiment(_ context.Context, exp types.Experiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[exp.Key]; !ok {
		return fmt.Errorf("experiment %q: %w", exp.Key, database.ErrNotFound)
	}
	m.experiments[exp.Key] = exp
	return nil
}

func (m *memoryStore) DeleteExperiment(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.experiments[key]; !ok {
		return fmt.Errorf("experiment %q: %w", key, database.ErrNotFound)
	}
	delete(m.experiments, key)
	return nil
}

func (m *memoryStore) GetAssignment(_ context.Context, experimentKey, subjectID string) (types.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[assignmentKey(experimentKey, subjectID)]
	if !ok {
		return types.Assignment{}, fmt.Errorf("assignment for %s/%s: %w", experimentKey, subjectID, database.ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) CreateAssignmentIfAbsent(_ context.Context, a types.Assignment, _ map[string]any) (types.Assignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflictAssignment != nil {
		winner := *m.conflictAssignment
		m.assignments[assignmentKey(winner.ExperimentKey, winner.SubjectID)] = winner
		return winner, false, nil
	}

	k := assignmentKey(a.ExperimentKey, a.SubjectID)
	if existing, ok := m.assignments[k]; ok {
		return existing, false, nil
	}
	m.assignments[k] = a
	return a, true, nil
}

func (m *memoryStore) CountAssignments(_ context.Context, experimentKey string) (map[string]int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	var total int64
	for _, a := range m.assignments {
		if a.ExperimentKey != experimentKey {
			continue
		}
		counts[a.VariantKey]++
		total++
	}
	return counts, total, nil
}

func (m *memoryStore) SaveConclusion(_ context.Context, c types.ExperimentConclusion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conclusions[c.ExperimentKey] = c
	if exp, ok := m.experiments[c.ExperimentKey]; ok {
		exp.Status = types.StatusConcluded
		m.experiments[c.ExperimentKey] = exp
	}
	return nil
}

func (m *memoryStore) GetConclusion(_ context.Context, experimentKey string) (types.ExperimentConclusion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conclusions[experimentKey]
	if !ok {
		return types.ExperimentConclusion{}, fmt.Errorf("conclusion for %q: %w", experimentKey, database.ErrNotFound)
	}
	return c, nil
}

func (m *memoryStore) GetProfileBySubject(_ context.Context, subjectID string) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[subjectID]; ok {
		return p, nil
	}
	for _, p := range m.profiles {
		if p.ExternalUserID == subjectID {
			return p, nil
		}
	}
	return types.Profile{}, fmt.Errorf("profile for subject %q: %w", subjectID, database.ErrNotFound)
}
