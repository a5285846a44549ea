package app

import (
	"context"
	"fmt"
	"strings"

	"bloodlink/pkg/domain"
)

// SubmitContact stores a public contact form message.
func (a *App) SubmitContact(ctx context.Context, in domain.ContactInput) (domain.ContactMessage, error) {
	msg := domain.ContactMessage{
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: a.now(),
	}
	if anyEmpty(msg.Name, msg.Email, msg.Subject, msg.Message) {
		return domain.ContactMessage{}, ErrFieldsRequired
	}
	if !validEmail(msg.Email) {
		return domain.ContactMessage{}, ErrInvalidEmail
	}
	created, err := a.store.CreateContactMessage(ctx, msg)
	if err != nil {
		return domain.ContactMessage{}, fmt.Errorf("create contact message: %w", err)
	}
	return created, nil
}

// ListContacts returns contact messages, newest first.
func (a *App) ListContacts(ctx context.Context, token string) ([]domain.ContactMessage, error) {
	if _, err := a.requireSession(ctx, token); err != nil {
		return nil, err
	}
	msgs, err := a.store.ListContactMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return msgs, nil
}
