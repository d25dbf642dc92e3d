package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"coparent/internal/database"
	"coparent/internal/models"
	"coparent/internal/repository"
)

// FamilyExport is a full snapshot of one family tenant. Expenses are
// exported unprojected, so an export is an operator artifact and is never
// served to a parent.
type FamilyExport struct {
	Version     string                `json:"version"`
	ExportedAt  time.Time             `json:"exported_at"`
	Family      models.Family         `json:"family"`
	Members     []models.FamilyMember `json:"members"`
	Children    []models.Child        `json:"children"`
	Invitations []models.Invitation   `json:"invitations"`
	Expenses    []ExpenseBackup       `json:"expenses"`
}

// ExpenseBackup represents an expense record for export
type ExpenseBackup struct {
	ID              int64          `json:"id"`
	CreatorParentID int64          `json:"creator_parent_id"`
	ChildID         *int64         `json:"child_id,omitempty"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Category        string         `json:"category"`
	Description     *string        `json:"description,omitempty"`
	ExpenseDate     string         `json:"expense_date"`
	Privacy         models.Privacy `json:"privacy"`
	CreatedAt       time.Time      `json:"created_at"`
}

// BackupService exports family tenants for operators
type BackupService struct {
	families    *repository.FamilyRepository
	children    *repository.ChildRepository
	invitations *repository.InvitationRepository
	expenses    *repository.ExpenseRepository
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{
		families:    repository.NewFamilyRepository(db),
		children:    repository.NewChildRepository(db),
		invitations: repository.NewInvitationRepository(db),
		expenses:    repository.NewExpenseRepository(db),
	}
}

// ExportFamily collects every record of a family
func (s *BackupService) ExportFamily(ctx context.Context, familyID int64) (*FamilyExport, error) {
	family, err := s.families.GetFamilyByID(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, ErrNotFound
	}

	export := &FamilyExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Family:     *family,
	}

	if export.Members, err = s.families.GetFamilyMembers(ctx, familyID); err != nil {
		return nil, fmt.Errorf("failed to export members: %w", err)
	}
	if export.Children, err = s.children.ListChildren(ctx, familyID); err != nil {
		return nil, fmt.Errorf("failed to export children: %w", err)
	}
	if export.Invitations, err = s.invitations.ListByFamily(ctx, familyID); err != nil {
		return nil, fmt.Errorf("failed to export invitations: %w", err)
	}

	expenses, err := s.expenses.ListExpenses(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to export expenses: %w", err)
	}
	export.Expenses = make([]ExpenseBackup, 0, len(expenses))
	for _, e := range expenses {
		export.Expenses = append(export.Expenses, ExpenseBackup{
			ID:              e.ID,
			CreatorParentID: e.CreatorParentID,
			ChildID:         e.ChildID,
			Amount:          e.Amount,
			Currency:        e.Currency,
			Category:        e.Category,
			Description:     e.Description,
			ExpenseDate:     e.ExpenseDate,
			Privacy:         e.Privacy,
			CreatedAt:       e.CreatedAt,
		})
	}

	return export, nil
}

// ExportToWriter writes a family export as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, familyID int64, w io.Writer) error {
	export, err := s.ExportFamily(ctx, familyID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	slog.Info("Family exported",
		"family_id", familyID,
		"members", len(export.Members),
		"children", len(export.Children),
		"invitations", len(export.Invitations),
		"expenses", len(export.Expenses),
	)
	return nil
}
