package staff

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"educbt.org/internal/apperr"
	"educbt.org/internal/paging"
)

// Service validates staff records and delegates persistence to a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func notFound(err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(message)
	}
	return err
}

func validEmail(field, raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %s is not a valid email", ErrInvalidInput, field)
	}
	return strings.ToLower(addr.Address), nil
}

func (s *Service) List(ctx context.Context, orgID int64, p paging.Params, search string) (paging.Page[Member], error) {
	members, total, err := s.store.ListMembers(ctx, orgID, p, strings.TrimSpace(search))
	if err != nil {
		return paging.Page[Member]{}, err
	}
	return paging.New(members, total, p), nil
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Member, error) {
	m, err := s.store.GetMember(ctx, orgID, id)
	return m, notFound(err, "Staff not found")
}

func (s *Service) Create(ctx context.Context, orgID int64, in MemberInput) (Member, error) {
	var err error
	if in.Name, err = required("name", in.Name); err != nil {
		return Member{}, err
	}
	if in.Email, err = validEmail("email", in.Email); err != nil {
		return Member{}, err
	}
	if in.PersonalEmail != nil {
		personal, err := validEmail("personalEmail", *in.PersonalEmail)
		if err != nil {
			return Member{}, err
		}
		in.PersonalEmail = &personal
	}
	if in.Salary < 0 {
		return Member{}, fmt.Errorf("%w: salary must not be negative", ErrInvalidInput)
	}
	m, err := s.store.CreateMember(ctx, orgID, in)
	return m, notFound(err, "Job title not found")
}

func (s *Service) Update(ctx context.Context, orgID, id int64, p MemberPatch) (Member, error) {
	if p.Name != nil {
		name, err := required("name", *p.Name)
		if err != nil {
			return Member{}, err
		}
		p.Name = &name
	}
	if p.Email != nil {
		email, err := validEmail("email", *p.Email)
		if err != nil {
			return Member{}, err
		}
		p.Email = &email
	}
	if p.PersonalEmail != nil {
		personal, err := validEmail("personalEmail", *p.PersonalEmail)
		if err != nil {
			return Member{}, err
		}
		p.PersonalEmail = &personal
	}
	if p.Salary != nil && *p.Salary < 0 {
		return Member{}, fmt.Errorf("%w: salary must not be negative", ErrInvalidInput)
	}
	m, err := s.store.UpdateMember(ctx, orgID, id, p)
	return m, notFound(err, "Staff not found")
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	return notFound(s.store.DeleteMember(ctx, orgID, id), "Staff not found")
}
