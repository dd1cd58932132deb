package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"skidbuild/models"
)

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Write records an action by an operator against an entity. Before/after
// snapshots are stored as JSON; nil means "no snapshot".
func (s *Service) Write(ctx context.Context, tx bun.Tx, operatorCode, action, entityType, entityID string, before, after any) error {
	if operatorCode == "" {
		operatorCode = "system"
	}
	beforeJSON, err := marshal(before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}
	log := &models.AuditLog{
		OperatorCode: operatorCode,
		Action:       action,
		EntityType:   entityType,
		EntityID:     entityID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    afterJSON,
	}
	_, err = tx.NewInsert().Model(log).Exec(ctx)
	return err
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
