package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/luxury-beauty/api/internal/domain"
	platform "github.com/luxury-beauty/api/internal/platform/firestore"
)

// AuditLogRepository appends immutable records of staff actions.
type AuditLogRepository struct {
	provider *platform.Provider
}

// NewAuditLogRepository builds an audit log repository bound to the provider.
func NewAuditLogRepository(provider *platform.Provider) (*AuditLogRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: audit log repository requires provider")
	}
	return &AuditLogRepository{provider: provider}, nil
}

// Append stores an audit record. Records are never updated or deleted.
func (r *AuditLogRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return errors.New("firestore: audit record id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	doc := auditDocument{
		ActorID:   record.ActorID,
		Action:    record.Action,
		EntityID:  record.EntityID,
		Detail:    record.Detail,
		CreatedAt: record.CreatedAt,
	}
	if _, err := client.Collection(auditLogsCollection).Doc(record.ID).Create(ctx, doc); err != nil {
		return platform.WrapError("audit_logs.append", err)
	}
	return nil
}
