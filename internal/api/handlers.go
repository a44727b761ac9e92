package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/roach88/stockline/internal/domain"
	"github.com/roach88/stockline/internal/engine"
	"github.com/roach88/stockline/internal/report"
)

type createCategoryRequest struct {
	Name string `json:"name"`
}

type createCounterpartyRequest struct {
	Kind    domain.CounterpartyKind `json:"kind"`
	Name    string                  `json:"name"`
	Email   string                  `json:"email"`
	Phone   string                  `json:"phone"`
	Address string                  `json:"address"`
}

type updateCounterpartyRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	// Kind is rejected; documents were checked against it.
	Kind *domain.CounterpartyKind `json:"kind"`
}

type createItemRequest struct {
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer"`
	CategoryID   *int64          `json:"category_id"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int64           `json:"quantity"`
	ReorderLevel int64           `json:"reorder_level"`
}

type updateItemRequest struct {
	Name         *string          `json:"name"`
	Manufacturer *string          `json:"manufacturer"`
	CategoryID   *int64           `json:"category_id"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	ReorderLevel *int64           `json:"reorder_level"`
	// Quantity is rejected; stock only moves through document lines.
	Quantity *int64 `json:"quantity"`
}

type createDocumentRequest struct {
	Kind           domain.DocumentKind   `json:"kind"`
	CounterpartyID *int64                `json:"counterparty_id"`
	Date           string                `json:"date"`
	Status         domain.DocumentStatus `json:"status"`
}

type addLineRequest struct {
	ItemID    int64            `json:"item_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type updateLineRequest struct {
	Quantity  *int64           `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type lineResponse struct {
	Mutation domain.Mutation `json:"mutation"`
	Document domain.Document `json:"document"`
	Item     domain.Item     `json:"item"`
	Alert    *domain.Alert   `json:"alert,omitempty"`
	Replayed bool            `json:"replayed"`
}

type deleteDocumentResponse struct {
	DocumentID int64             `json:"document_id"`
	Mutations  []domain.Mutation `json:"mutations"`
	Replayed   bool              `json:"replayed"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.engine.Store().DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": s.service})
}

func (s *Server) createCategory(c *gin.Context) {
	var req createCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := s.engine.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func (s *Server) createCounterparty(c *gin.Context) {
	var req createCounterpartyRequest
	if !bindJSON(c, &req) {
		return
	}
	cp, err := s.engine.CreateCounterparty(c.Request.Context(), domain.Counterparty{
		Kind:    req.Kind,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

func (s *Server) renameCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := s.engine.RenameCategory(c.Request.Context(), id, req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (s *Server) deleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.engine.DeleteCategory(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) updateCounterparty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateCounterpartyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Kind != nil {
		s.writeError(c, domain.Validation("update counterparty", "kind", "kind cannot change"))
		return
	}
	cp, err := s.engine.UpdateCounterparty(c.Request.Context(), id, engine.CounterpartyPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (s *Server) deleteCounterparty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.engine.DeleteCounterparty(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// historyHandler serves one of the counterparty history projections.
// /counterparties/:id/history picks sales or purchases from the
// counterparty's kind; the customer and supplier routes also check it.
func (s *Server) historyHandler(fetch func(r *report.Reporter, ctx context.Context, id int64) ([]report.HistoryRow, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		rows, err := fetch(s.reports, c.Request.Context(), id)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func (s *Server) createItem(c *gin.Context) {
	var req createItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := s.engine.CreateItem(c.Request.Context(), engine.NewItem{
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		CategoryID:   req.CategoryID,
		UnitPrice:    req.UnitPrice,
		Quantity:     req.Quantity,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) listItems(c *gin.Context) {
	ctx := c.Request.Context()
	if category := c.Query("category"); category != "" {
		items, err := s.reports.ItemsByCategory(ctx, category)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
		return
	}
	items, err := s.reports.Items(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := s.reports.Item(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) updateItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity != nil {
		s.writeError(c, domain.Validation("update item", "quantity", "quantity changes only through document lines"))
		return
	}
	item, err := s.engine.UpdateItem(c.Request.Context(), id, engine.ItemPatch{
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		CategoryID:   req.CategoryID,
		UnitPrice:    req.UnitPrice,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) createDocument(c *gin.Context) {
	var req createDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	in := engine.NewDocument{
		Kind:           req.Kind,
		CounterpartyID: req.CounterpartyID,
		Status:         req.Status,
	}
	if req.Date != "" {
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			badRequest(c, "date", "date must be YYYY-MM-DD")
			return
		}
		in.Date = date
	}
	doc, err := s.engine.CreateDocument(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) getDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := s.reports.Document(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) deleteDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := s.engine.DeleteDocument(c.Request.Context(), engine.DeleteDocumentRequest{
		DocumentID: id,
		RequestKey: c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleteDocumentResponse{
		DocumentID: res.DocumentID,
		Mutations:  res.Mutations,
		Replayed:   res.Replayed,
	})
}

func (s *Server) addLine(c *gin.Context) {
	docID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addLineRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.engine.AddLine(c.Request.Context(), engine.AddLineRequest{
		DocumentID: docID,
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		RequestKey: c.GetHeader(IdempotencyHeader),
	})
	s.writeLine(c, http.StatusCreated, res, err)
}

func (s *Server) updateLine(c *gin.Context) {
	docID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	var req updateLineRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.engine.UpdateLine(c.Request.Context(), engine.UpdateLineRequest{
		DocumentID: docID,
		ItemID:     itemID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		RequestKey: c.GetHeader(IdempotencyHeader),
	})
	s.writeLine(c, http.StatusOK, res, err)
}

func (s *Server) removeLine(c *gin.Context) {
	docID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}
	res, err := s.engine.RemoveLine(c.Request.Context(), engine.RemoveLineRequest{
		DocumentID: docID,
		ItemID:     itemID,
		RequestKey: c.GetHeader(IdempotencyHeader),
	})
	s.writeLine(c, http.StatusOK, res, err)
}

// writeLine reports a line mutation. A replay answers 200 whatever status
// the original call got.
func (s *Server) writeLine(c *gin.Context, status int, res engine.LineResult, err error) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, lineResponse{
		Mutation: res.Mutation,
		Document: res.Document,
		Item:     res.Item,
		Alert:    res.Alert,
		Replayed: res.Replayed,
	})
}

func (s *Server) listAlerts(c *gin.Context) {
	itemID, ok := queryID(c, "item")
	if !ok {
		return
	}
	openOnly := false
	if v := c.Query("open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "open", "open must be a boolean")
			return
		}
		openOnly = b
	}
	alerts, err := s.reports.Alerts(c.Request.Context(), itemID, openOnly)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) listJournal(c *gin.Context) {
	itemID, ok := queryID(c, "item")
	if !ok {
		return
	}
	muts, err := s.reports.Journal(c.Request.Context(), itemID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, muts)
}

func (s *Server) reconcile(c *gin.Context) {
	rep, err := s.engine.Reconcile(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) audit(c *gin.Context) {
	rep, err := s.engine.Audit(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) stockValue(c *gin.Context) {
	v, err := s.reports.StockValue(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) availableItems(c *gin.Context) {
	items, err := s.reports.AvailableItems(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "body", "malformed request body: "+err.Error())
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryID reads an optional id query parameter. Absent means nil.
func queryID(c *gin.Context, name string) (*int64, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name, name+" must be a positive integer")
		return nil, false
	}
	return &id, true
}
