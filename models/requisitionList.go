package models

import (
	"context"
	"strings"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/utils"
)

type RequisitionFilter struct {
	Status       *RequisitionStatus
	DepartmentId *int
	ProjectId    *int
	Search       string
	Limit        int
	After        *string
}

type RequisitionsConnection struct {
	Edges    []*RequisitionsEdge `json:"edges"`
	PageInfo *PageInfo           `json:"pageInfo"`
}

type RequisitionsEdge Edge[Requisition]

func (r Requisition) GetId() int {
	return r.ID
}

func (r Requisition) GetCursor() string {
	return cursorTime(r.CreatedAt)
}

// ListRequisitions pages through requisitions newest first. Requisitions
// without lines are hidden; non-admins only see their own.
func ListRequisitions(ctx context.Context, filter RequisitionFilter) (*RequisitionsConnection, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, utils.ErrorUnauthorized
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	dbCtx := db.WithContext(ctx).Model(&Requisition{}).
		Where("EXISTS (SELECT 1 FROM requisition_items ri WHERE ri.requisition_id = requisitions.id)")
	if !utils.IsAdmin(ctx) {
		dbCtx = dbCtx.Where("user_id = ?", userId)
	}
	if filter.Status != nil && *filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", string(*filter.Status))
	}
	if filter.DepartmentId != nil {
		dbCtx = dbCtx.Where("requesting_department_id = ?", *filter.DepartmentId)
	}
	if filter.ProjectId != nil {
		dbCtx = dbCtx.Where("project_id = ?", *filter.ProjectId)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		dbCtx = dbCtx.Where("reason LIKE ?", "%"+escapeLike(search)+"%")
	}
	dbCtx = dbCtx.Preload("Items").Preload("Items.Description").Preload("Items.Product")

	edges, pageInfo, err := FetchPageCompositeCursor[Requisition](dbCtx, filter.Limit, filter.After, "created_at", "<")
	if err != nil {
		config.LogError(config.GetLogger(), "models", "ListRequisitions", "fetch page", filter, err)
		return nil, err
	}

	conn := RequisitionsConnection{PageInfo: pageInfo, Edges: make([]*RequisitionsEdge, 0, len(edges))}
	for _, edge := range edges {
		fillLabels(edge.Node.Items)
		e := RequisitionsEdge(edge)
		conn.Edges = append(conn.Edges, &e)
	}
	return &conn, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
