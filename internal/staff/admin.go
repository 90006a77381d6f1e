package staff

import (
	"context"
	"fmt"
	"strings"
)

func required(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return value, nil
}

func nonNil[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *Service) JobLevels(ctx context.Context) ([]JobLevel, error) {
	return nonNil(s.store.JobLevels(ctx))
}

func (s *Service) CreateJobLevel(ctx context.Context, name string) (JobLevel, error) {
	name, err := required("name", name)
	if err != nil {
		return JobLevel{}, err
	}
	return s.store.CreateJobLevel(ctx, name)
}

func (s *Service) DeleteJobLevel(ctx context.Context, id int64) error {
	return notFound(s.store.DeleteJobLevel(ctx, id), "Job level not found")
}

func (s *Service) JobTitles(ctx context.Context) ([]JobTitle, error) {
	return nonNil(s.store.JobTitles(ctx))
}

func (s *Service) CreateJobTitle(ctx context.Context, in JobTitleInput) (JobTitle, error) {
	title, err := required("title", in.Title)
	if err != nil {
		return JobTitle{}, err
	}
	in.Title = title
	out, err := s.store.CreateJobTitle(ctx, in)
	return out, notFound(err, "Job level not found")
}

func (s *Service) UpdateJobTitle(ctx context.Context, id int64, in JobTitleInput) (JobTitle, error) {
	title, err := required("title", in.Title)
	if err != nil {
		return JobTitle{}, err
	}
	in.Title = title
	out, err := s.store.UpdateJobTitle(ctx, id, in)
	return out, notFound(err, "Job title not found")
}

func (s *Service) DeleteJobTitle(ctx context.Context, id int64) error {
	return notFound(s.store.DeleteJobTitle(ctx, id), "Job title not found")
}

func (s *Service) Adjustments(ctx context.Context, kind Kind) ([]Adjustment, error) {
	return nonNil(s.store.Adjustments(ctx, kind))
}

func validAdjustment(in AdjustmentInput) (AdjustmentInput, error) {
	title, err := required("title", in.Title)
	if err != nil {
		return in, err
	}
	if in.Amount < 0 {
		return in, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	in.Title = title
	return in, nil
}

func (s *Service) CreateAdjustment(ctx context.Context, kind Kind, in AdjustmentInput) (Adjustment, error) {
	in, err := validAdjustment(in)
	if err != nil {
		return Adjustment{}, err
	}
	return s.store.CreateAdjustment(ctx, kind, in)
}

func (s *Service) UpdateAdjustment(ctx context.Context, kind Kind, id int64, in AdjustmentInput) (Adjustment, error) {
	in, err := validAdjustment(in)
	if err != nil {
		return Adjustment{}, err
	}
	out, err := s.store.UpdateAdjustment(ctx, kind, id, in)
	return out, notFound(err, kind.label()+" not found")
}

func (s *Service) DeleteAdjustment(ctx context.Context, kind Kind, id int64) error {
	return notFound(s.store.DeleteAdjustment(ctx, kind, id), kind.label()+" not found")
}

func (k Kind) label() string {
	if k == Deduction {
		return "Deduction"
	}
	return "Allowance"
}
