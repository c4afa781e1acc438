package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"bitbucket.org/uniadq/requisitions_backend/models"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError maps domain errors to status codes. Anything unrecognised is
// a 500 and goes to the error log.
func respondError(c *gin.Context, err error) {
	var conflict *duplicates.ConflictError
	var invalid *models.ValidationError
	var fieldErrors validator.ValidationErrors

	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, conflict.Response)
	case errors.As(err, &invalid):
		field := invalid.Field
		if field == "" {
			field = "non_field_errors"
		}
		c.JSON(http.StatusBadRequest, gin.H{field: invalid.Message})
	case errors.As(err, &fieldErrors):
		c.JSON(http.StatusBadRequest, utils.ProcessValidationErrors(err))
	case errors.Is(err, duplicates.ErrStorageUnavailable), errors.Is(err, utils.ErrorServiceNotReady):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "duplicate check unavailable, try again later"})
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, models.ErrUnknownCatalog):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, utils.ErrorForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, utils.ErrorRequisitionBusy):
		c.JSON(http.StatusLocked, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// writeOptions reads ?force_duplicates and ?window_days. A bad window falls
// back to the default.
func writeOptions(c *gin.Context) models.WriteOptions {
	return models.WriteOptions{
		ForceDuplicates: utils.ParseFlag(c.Query("force_duplicates")),
		WindowDays:      windowDays(c),
	}
}

func windowDays(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("window_days"))
	if err != nil {
		return 0
	}
	return n
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": err.Error()})
		return false
	}
	return true
}

func registerRequisitionRoutes(api *gin.RouterGroup) {
	r := api.Group("/requisitions")
	r.GET("", listRequisitionsHandler)
	r.POST("", createRequisitionHandler)
	r.GET("/:id", getRequisitionHandler)
	r.PUT("/:id", updateRequisitionHandler)
	r.GET("/:id/duplicates", checkDuplicatesHandler)
	r.GET("/:id/history", requisitionHistoryHandler)
	r.GET("/:id/items", listItemsHandler)
	r.POST("/:id/items", addItemHandler)
	r.PATCH("/:id/items/:item_id", updateItemHandler)
	r.DELETE("/:id/items/:item_id", deleteItemHandler)
	r.GET("/:id/cost-audit", costAuditHandler)
	r.POST("/:id/cancel", cancelRequisitionHandler)
	r.POST("/:id/real-amount", setRealAmountHandler)

	api.GET("/catalogs/:name", listCatalogHandler)
	api.POST("/catalogs/item-descriptions", createItemDescriptionHandler)
}

func listRequisitionsHandler(c *gin.Context) {
	filter := models.RequisitionFilter{
		DepartmentId: utils.ParseOptionalID(c.Query("department")),
		ProjectId:    utils.ParseOptionalID(c.Query("project")),
		Search:       c.Query("search"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := duplicates.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": err.Error()})
			return
		}
		filter.Status = &status
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = n
	}
	if after := c.Query("after"); after != "" {
		filter.After = &after
	}

	conn, err := models.ListRequisitions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func createRequisitionHandler(c *gin.Context) {
	var input models.NewRequisition
	if !bindJSON(c, &input) {
		return
	}
	requisition, err := models.CreateRequisition(c.Request.Context(), &input, writeOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, requisition)
}

func getRequisitionHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	requisition, err := models.GetRequisition(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func updateRequisitionHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewRequisition
	if !bindJSON(c, &input) {
		return
	}
	requisition, err := models.UpdateRequisition(c.Request.Context(), id, &input, writeOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

// checkDuplicatesHandler is read-only; it reports matches with 200 and
// never blocks anything.
func checkDuplicatesHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	result, err := models.CheckRequisitionDuplicates(c.Request.Context(), id, windowDays(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func requisitionHistoryHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var action *models.HistoryAction
	if raw := c.Query("action"); raw != "" {
		a := models.HistoryAction(raw)
		action = &a
	}
	histories, err := models.GetRequisitionHistory(c.Request.Context(), id, action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, histories)
}

func listItemsHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := models.ListRequisitionItems(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func addItemHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewRequisitionItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.AddRequisitionItem(c.Request.Context(), id, &input, writeOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func updateItemHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemId, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	var input models.NewRequisitionItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.UpdateRequisitionItem(c.Request.Context(), id, itemId, &input, writeOptions(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deleteItemHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemId, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	if err := models.DeleteRequisitionItem(c.Request.Context(), id, itemId, writeOptions(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func costAuditHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	audit, err := models.GetCostAudit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func cancelRequisitionHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input cancelRequest
	if !bindJSON(c, &input) {
		return
	}
	requisition, err := models.CancelRequisition(c.Request.Context(), id, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func setRealAmountHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewRealAmount
	if !bindJSON(c, &input) {
		return
	}
	requisition, err := models.SetRealAmount(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, requisition)
}

func listCatalogHandler(c *gin.Context) {
	options, err := models.ListCatalog(c.Request.Context(), models.CatalogName(c.Param("name")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, options)
}

func createItemDescriptionHandler(c *gin.Context) {
	if !utils.IsAdmin(c.Request.Context()) {
		respondError(c, utils.ErrorForbidden)
		return
	}
	var input models.NewItemDescription
	if !bindJSON(c, &input) {
		return
	}
	description, err := models.CreateItemDescription(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, description)
}

type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

// outboxReplayHandler requeues a FAILED or DEAD audit event (admin only).
func outboxReplayHandler(c *gin.Context) {
	var req outboxReplayRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.RecordId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"record_id": "required"})
		return
	}
	record, err := models.ReplayRequisitionEvent(c.Request.Context(), req.RecordId)
	if err != nil {
		respondError(c, err)
		return
	}
	config.GetLogger().WithField("record_id", record.ID).Warn("outbox event requeued by admin")
	c.JSON(http.StatusOK, gin.H{
		"record_id":       record.ID,
		"publish_status":  record.PublishStatus,
		"next_attempt_at": record.NextAttemptAt,
	})
}
