package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/draftforge/draftforge/internal/artifact"
	"github.com/draftforge/draftforge/pkg/api"
	"github.com/draftforge/draftforge/pkg/log"
)

// Store loads and persists the durable per-chapter progress record plus
// step output artifacts. Reads fall back from the primary phase root to
// the legacy root for projects written by older pipeline revisions;
// writes always target the primary root
type Store struct {
	artifacts   artifact.Store
	primaryRoot string
	legacyRoot  string
	clock       Clock
}

const stateArtifact = "wizard_state.json"

// stepArtifacts names each step's output blob within a chapter directory
var stepArtifacts = map[api.StepID]string{
	api.StepSceneBrief:  "scene_brief.md",
	api.StepDraft:       "first_draft.md",
	api.StepImprovePlan: "improvement_plan.md",
	api.StepApplyPlan:   "revised_draft.md",
	api.StepFinal:       "final.md",
}

var ErrPersistState = errors.New("failed to persist wizard state")

func NewStore(
	artifacts artifact.Store, primaryRoot, legacyRoot string, clock Clock,
) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		artifacts:   artifacts,
		primaryRoot: primaryRoot,
		legacyRoot:  legacyRoot,
		clock:       clock,
	}
}

// Load returns the progress record for a chapter. A chapter that has
// never been touched yields a fresh empty record, persisted best-effort.
// Read failures of any kind are treated as "does not exist yet"
func (s *Store) Load(
	ctx context.Context, chapter api.ChapterID,
) *api.WizardState {
	if state := s.read(ctx, s.statePath(chapter)); state != nil {
		return s.normalize(state, chapter)
	}
	if state := s.read(ctx, s.legacyStatePath(chapter)); state != nil {
		return s.normalize(state, chapter)
	}

	state := api.NewWizardState(chapter, s.clock())
	if err := s.Persist(ctx, state); err != nil {
		slog.Warn("Best-effort creation of wizard state failed",
			log.Chapter(chapter),
			log.Error(err))
	}
	return state
}

// Persist serializes the record with a refreshed UpdatedAt and writes it
// to the primary path. Failures are surfaced because a lost explicit
// save is user-visible
func (s *Store) Persist(ctx context.Context, state *api.WizardState) error {
	now := s.clock()
	if !now.After(state.UpdatedAt) {
		now = state.UpdatedAt.Add(time.Millisecond)
	}
	state.UpdatedAt = now

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistState, err)
	}

	path := s.statePath(state.Chapter)
	if err := s.artifacts.Write(ctx, path, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistState, err)
	}
	return nil
}

// LoadStepContent fetches a step's output, falling back to the legacy
// root. A step with no content yet is normal and yields an empty string
func (s *Store) LoadStepContent(
	ctx context.Context, chapter api.ChapterID, step api.StepID,
) string {
	if _, ok := stepArtifacts[step]; !ok {
		return ""
	}

	paths := []string{
		StepArtifactPath(s.primaryRoot, chapter, step),
		StepArtifactPath(s.legacyRoot, chapter, step),
	}
	for _, path := range paths {
		content, err := s.artifacts.Read(ctx, path)
		if err == nil {
			return content
		}
		if !errors.Is(err, artifact.ErrNotFound) {
			slog.Warn("Step content read failed",
				log.Chapter(chapter),
				log.StepID(step),
				log.Path(path),
				log.Error(err))
		}
	}
	return ""
}

func (s *Store) read(ctx context.Context, path string) *api.WizardState {
	content, err := s.artifacts.Read(ctx, path)
	if err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			slog.Warn("Wizard state read failed",
				log.Path(path),
				log.Error(err))
		}
		return nil
	}

	var state api.WizardState
	if err := json.Unmarshal([]byte(content), &state); err != nil {
		slog.Warn("Discarding unparseable wizard state",
			log.Path(path),
			log.Error(err))
		return nil
	}
	return &state
}

// normalize migrates records written by older schema versions: missing
// step entries are added and zero-valued fields receive defaults
func (s *Store) normalize(
	state *api.WizardState, chapter api.ChapterID,
) *api.WizardState {
	state.Chapter = chapter
	for _, id := range api.StepOrder() {
		state.Step(id)
	}
	if state.TargetLength <= 0 {
		state.TargetLength = api.DefaultTargetLength
	}
	if !api.IsValidTone(state.Tone) {
		state.Tone = api.ToneNeutral
	}
	if state.SchemaVersion < api.WizardSchemaVersion {
		state.SchemaVersion = api.WizardSchemaVersion
	}
	return state
}

// StepArtifactPath locates a step's output blob under a phase root
func StepArtifactPath(
	root string, chapter api.ChapterID, step api.StepID,
) string {
	return fmt.Sprintf("%s/%s/%s", root, chapter.Dir(), stepArtifacts[step])
}

func (s *Store) statePath(chapter api.ChapterID) string {
	return fmt.Sprintf("%s/%s/%s", s.primaryRoot, chapter.Dir(), stateArtifact)
}

func (s *Store) legacyStatePath(chapter api.ChapterID) string {
	return fmt.Sprintf("%s/%s/%s", s.legacyRoot, chapter.Dir(), stateArtifact)
}
