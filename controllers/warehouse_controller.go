package controllers

import (
	"net/http"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WarehouseController struct{ *Srv }

func NewWarehouseController(s *Srv) *WarehouseController { return &WarehouseController{Srv: s} }

// GET /api/warehouses
func (wc *WarehouseController) List(c *gin.Context) {
	ws, err := wc.Repo.ListWarehousesForUser(c.Request.Context(), app.UserID(c))
	if err != nil {
		wc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": ws})
}

// POST /api/warehouses
func (wc *WarehouseController) Create(c *gin.Context) {
	var in struct {
		Name string               `json:"name" binding:"required"`
		Mode models.WarehouseMode `json:"mode"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if in.Mode == "" {
		in.Mode = models.ModePersonal
	}
	w, err := wc.Repo.CreateWarehouse(c.Request.Context(), in.Name, in.Mode, app.UserID(c))
	if err != nil {
		wc.writeError(c, err)
		return
	}
	wc.Log.Info("warehouse created", zap.String("warehouse", w.ID), zap.String("mode", string(w.Mode)))
	c.JSON(http.StatusCreated, w)
}

// GET /api/warehouses/:wid
func (wc *WarehouseController) Get(c *gin.Context) {
	c.JSON(http.StatusOK, app.Warehouse(c))
}

// PUT /api/warehouses/:wid
func (wc *WarehouseController) Update(c *gin.Context) {
	var in struct {
		Name      *string               `json:"name"`
		Mode      *models.WarehouseMode `json:"mode"`
		MemberIDs *[]string             `json:"memberIds"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	w, err := wc.Repo.UpdateWarehouse(c.Request.Context(), app.Warehouse(c).ID, app.UserID(c), db.WarehouseUpdate{
		Name:      in.Name,
		Mode:      in.Mode,
		MemberIDs: in.MemberIDs,
	})
	if err != nil {
		wc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// DELETE /api/warehouses/:wid
func (wc *WarehouseController) Delete(c *gin.Context) {
	id := app.Warehouse(c).ID
	if err := wc.Repo.DeleteWarehouse(c.Request.Context(), id, app.UserID(c)); err != nil {
		wc.writeError(c, err)
		return
	}
	wc.Log.Info("warehouse deleted", zap.String("warehouse", id))
	c.JSON(http.StatusOK, app.H{"ok": true})
}
