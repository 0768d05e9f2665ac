package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/bramblehq/mailvine-backend/internal/errors"
	"github.com/bramblehq/mailvine-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Update(c *model.Campaign) error
	Delete(id int) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, channel, status string) ([]*model.Campaign, int, error)
	MarkSent(id int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.Channel == "" {
		c.Channel = model.ChannelEmail
	}
	query := `
        INSERT INTO campaigns (name, subject, channel, template_ref, html_content, includes_dynamic_asset, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Name, c.Subject, c.Channel, c.TemplateRef, c.HTMLContent, c.IncludesDynamicAsset, c.Status, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, subject=$2, template_ref=$3, html_content=$4, includes_dynamic_asset=$5, updated_at=NOW()
        WHERE id=$6
    `
	_, err := r.DB.Exec(query, c.Name, c.Subject, c.TemplateRef, c.HTMLContent, c.IncludesDynamicAsset, c.ID)
	return err
}

func (r *CampaignRepository) Delete(id int) error {
	result, err := r.DB.Exec(`DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, name, subject, channel, template_ref, html_content, includes_dynamic_asset, status, sent_at, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.Subject, &c.Channel, &c.TemplateRef, &c.HTMLContent, &c.IncludesDynamicAsset, &c.Status, &c.SentAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, name, subject, channel, template_ref, html_content, includes_dynamic_asset, status, sent_at, created_at, updated_at FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if channel != "" {
		query += fmt.Sprintf(" AND channel=$%d", argPos)
		args = append(args, channel)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &c.Channel, &c.TemplateRef, &c.HTMLContent, &c.IncludesDynamicAsset, &c.Status, &c.SentAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if channel != "" {
		countQuery += fmt.Sprintf(" AND channel=$%d", argPosCount)
		argsCount = append(argsCount, channel)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// MarkSent stamps status and sent_at in a single atomic write. The guard
// keeps sent_at at its first value if a campaign is ever dispatched twice;
// a double-send is a data-quality risk, not something repaired here.
func (r *CampaignRepository) MarkSent(id int) error {
	query := `UPDATE campaigns SET status=$1, sent_at=NOW(), updated_at=NOW() WHERE id=$2 AND status <> $1`
	_, err := r.DB.Exec(query, model.CampaignSent, id)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
