package repository

import (
	"context"

	"interview-intel/internal/domain/model"
)

// IntelligenceRepository runs the read-only aggregations behind an
// intelligence report. Each method is scoped to the given post ids.
type IntelligenceRepository interface {
	HiringProcess(ctx context.Context, postIDs []string) (*model.HiringProcessAggregate, error)
	Rejections(ctx context.Context, postIDs []string) ([]model.RejectionAggregate, error)
	Questions(ctx context.Context, postIDs []string) ([]model.QuestionAggregate, error)
	InterviewerFocus(ctx context.Context, postIDs []string) ([]model.FocusAggregate, error)
	Timelines(ctx context.Context, postIDs []string) ([]model.TimelineAggregate, error)
	ExperienceLevels(ctx context.Context, postIDs []string) ([]model.LevelAggregate, error)
}
