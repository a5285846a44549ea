package app

import (
	"context"
	"fmt"
	"strings"

	"bloodlink/internal/util"
	"bloodlink/pkg/domain"
)

// SubmitDonor validates a public application and stores it as pending.
func (a *App) SubmitDonor(ctx context.Context, in domain.DonorInput) (domain.Donor, error) {
	d := domain.Donor{
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		BloodType: strings.TrimSpace(in.BloodType),
		Age:       in.Age,
		Address:   strings.TrimSpace(in.Address),
		Status:    domain.DonorPending,
		AppliedAt: a.now(),
	}
	if anyEmpty(d.Name, d.Email, d.Phone, d.BloodType, d.Address) {
		return domain.Donor{}, ErrFieldsRequired
	}
	if !validEmail(d.Email) {
		return domain.Donor{}, ErrInvalidEmail
	}
	if !validPhone(d.Phone) {
		return domain.Donor{}, ErrPhoneTooShort
	}
	if d.Age <= 0 {
		return domain.Donor{}, ErrInvalidAge
	}
	created, err := a.store.CreateDonor(ctx, d)
	if err != nil {
		return domain.Donor{}, fmt.Errorf("create donor: %w", err)
	}
	return created, nil
}

// ListDonors returns every donor, newest application first.
func (a *App) ListDonors(ctx context.Context, token string) ([]domain.Donor, error) {
	if _, err := a.requireSession(ctx, token); err != nil {
		return nil, err
	}
	donors, err := a.store.ListDonors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}
	return donors, nil
}

// GetDonor returns one donor.
func (a *App) GetDonor(ctx context.Context, token, id string) (domain.Donor, error) {
	if _, err := a.requireSession(ctx, token); err != nil {
		return domain.Donor{}, err
	}
	return a.loadDonor(ctx, id)
}

// SetDonorStatus moves a donor to approved or rejected. Any current status may
// be overwritten. The notifier runs once per actual change and its failure
// does not undo the update.
func (a *App) SetDonorStatus(ctx context.Context, token, id string, status domain.DonorStatus) (domain.Donor, error) {
	sess, err := a.requireSession(ctx, token)
	if err != nil {
		return domain.Donor{}, err
	}
	if status != domain.DonorApproved && status != domain.DonorRejected {
		return domain.Donor{}, ErrInvalidStatus
	}
	prev, err := a.loadDonor(ctx, id)
	if err != nil {
		return domain.Donor{}, err
	}
	updated, ok, err := a.store.SetDonorStatus(ctx, id, status)
	if err != nil {
		return domain.Donor{}, fmt.Errorf("update donor status: %w", err)
	}
	if !ok {
		return domain.Donor{}, ErrDonorNotFound
	}
	util.LoggerFromContext(ctx).Info("donor status set",
		"donor_id", id, "from", string(prev.Status), "to", string(status), "admin_id", sess.AdminID)
	if prev.Status != updated.Status {
		a.notifyStatusChange(ctx, prev.Status, updated)
	}
	return updated, nil
}

func (a *App) notifyStatusChange(ctx context.Context, from domain.DonorStatus, d domain.Donor) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.notifyTimeout)
	defer cancel()
	event := domain.DonorStatusEvent{
		DonorID:   d.ID,
		Name:      d.Name,
		Email:     d.Email,
		From:      from,
		To:        d.Status,
		ChangedAt: a.now(),
	}
	if err := a.notifier.DonorStatusChanged(nctx, event); err != nil {
		util.LoggerFromContext(ctx).Error("donor status notification failed", "donor_id", d.ID, "err", err)
	}
}

// RemoveDonor deletes a donor. Deleting an id that no longer resolves is NotFound.
func (a *App) RemoveDonor(ctx context.Context, token, id string) error {
	if _, err := a.requireSession(ctx, token); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrDonorIDRequired
	}
	deleted, err := a.store.DeleteDonor(ctx, id)
	if err != nil {
		return fmt.Errorf("delete donor: %w", err)
	}
	if !deleted {
		return ErrDonorNotFound
	}
	return nil
}

// DonorStats counts donors per status.
func (a *App) DonorStats(ctx context.Context, token string) (domain.DonorStats, error) {
	if _, err := a.requireSession(ctx, token); err != nil {
		return domain.DonorStats{}, err
	}
	counts, err := a.store.CountDonorsByStatus(ctx)
	if err != nil {
		return domain.DonorStats{}, fmt.Errorf("count donors: %w", err)
	}
	stats := domain.DonorStats{
		Pending:  counts[domain.DonorPending],
		Approved: counts[domain.DonorApproved],
		Rejected: counts[domain.DonorRejected],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (a *App) loadDonor(ctx context.Context, id string) (domain.Donor, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Donor{}, ErrDonorIDRequired
	}
	d, ok, err := a.store.GetDonor(ctx, id)
	if err != nil {
		return domain.Donor{}, fmt.Errorf("get donor: %w", err)
	}
	if !ok {
		return domain.Donor{}, ErrDonorNotFound
	}
	return d, nil
}
