package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lawoffice/billinghub/common"
	"github.com/lawoffice/billinghub/db/models"
	"github.com/lawoffice/billinghub/lib/interval"
)

type CategorySummary struct {
	Category    string  `json:"category"`
	Entries     int     `json:"entries"`
	Hours       float64 `json:"hours"`
	BilledHours float64 `json:"billed_hours"`
}

type MatterSummary struct {
	MatterID    int64             `json:"matter_id"`
	MatterName  string            `json:"matter_name"`
	Categories  []CategorySummary `json:"categories"`
	TotalHours  float64           `json:"total_hours"`
	BilledHours float64           `json:"billed_hours"`
}

func (svc *BillingService) CreateClient(ctx context.Context, name string) (*models.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &InvalidArgumentError{Field: "name", Reason: "client name must not be blank"}
	}
	client := &models.Client{Name: name}
	if _, err := svc.DB.NewInsert().Model(client).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}
	return client, nil
}

func (svc *BillingService) FindClient(ctx context.Context, clientID int64) (*models.Client, error) {
	client := new(models.Client)
	err := svc.DB.NewSelect().Model(client).Where("id = ?", clientID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "client", ID: clientID}
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (svc *BillingService) CreateMatter(ctx context.Context, clientID int64, name string) (*models.Matter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &InvalidArgumentError{Field: "name", Reason: "matter name must not be blank"}
	}
	if _, err := svc.FindClient(ctx, clientID); err != nil {
		return nil, err
	}
	matter := &models.Matter{
		ClientID: clientID,
		Name:     name,
		Status:   common.MatterStatusOpen,
	}
	if _, err := svc.DB.NewInsert().Model(matter).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert matter: %w", err)
	}
	return matter, nil
}

func (svc *BillingService) FindMatter(ctx context.Context, matterID int64) (*models.Matter, error) {
	matter := new(models.Matter)
	err := svc.DB.NewSelect().Model(matter).Where("id = ?", matterID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "matter", ID: matterID}
	}
	if err != nil {
		return nil, err
	}
	return matter, nil
}

// MatterBillingSummary aggregates the hours of a matter per category. Billed
// hours only count committed entries.
func (svc *BillingService) MatterBillingSummary(ctx context.Context, matterID int64) (*MatterSummary, error) {
	matter, err := svc.FindMatter(ctx, matterID)
	if err != nil {
		return nil, err
	}
	var entries []models.BillingEntry
	err = svc.DB.NewSelect().
		Model(&entries).
		Where("be.matter_id = ?", matterID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := map[string]*CategorySummary{}
	summary := &MatterSummary{
		MatterID:   matter.ID,
		MatterName: matter.Name,
		Categories: []CategorySummary{},
	}
	for _, e := range entries {
		cs, ok := byCategory[e.Category]
		if !ok {
			cs = &CategorySummary{Category: e.Category}
			byCategory[e.Category] = cs
		}
		cs.Entries++
		cs.Hours += e.Hours
		summary.TotalHours += e.Hours
		if e.Status == common.EntryStatusCommitted {
			cs.BilledHours += e.Hours
			summary.BilledHours += e.Hours
		}
	}
	for _, cs := range byCategory {
		cs.Hours = interval.RoundHours(cs.Hours)
		cs.BilledHours = interval.RoundHours(cs.BilledHours)
		summary.Categories = append(summary.Categories, *cs)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Category < summary.Categories[j].Category
	})
	summary.TotalHours = interval.RoundHours(summary.TotalHours)
	summary.BilledHours = interval.RoundHours(summary.BilledHours)
	return summary, nil
}
