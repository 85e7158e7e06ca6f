package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/export"
	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DeviceController struct{ *Srv }

func NewDeviceController(s *Srv) *DeviceController { return &DeviceController{Srv: s} }

// GET /devices?q=&status=&category=&group=&sort=&groupBy=&page=&size=
func (dc *DeviceController) List(c *gin.Context) {
	rows, err := dc.Repo.SearchDevices(c.Request.Context(), app.Warehouse(c).ID, deviceQuery(c))
	if err != nil {
		dc.writeError(c, err)
		return
	}
	resp := app.H{"items": rows}
	if by := c.Query("groupBy"); by != "" {
		resp["groups"] = export.GroupDevices(rows, by)
	}
	c.JSON(http.StatusOK, resp)
}

// GET /devices/facets
func (dc *DeviceController) Facets(c *gin.Context) {
	f, err := dc.Repo.Facets(c.Request.Context(), app.Warehouse(c).ID)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

type deviceInput struct {
	Name            string  `json:"name" binding:"required"`
	ScanCode        string  `json:"scanCode"`
	Location        string  `json:"location"`
	Description     string  `json:"description"`
	SerialNumber    string  `json:"serialNumber"`
	Model           string  `json:"model"`
	Category        string  `json:"category"`
	InventoryNumber string  `json:"inventoryNumber"`
	PurchaseDate    string  `json:"purchaseDate"`
	UnitPrice       float64 `json:"unitPrice"`
	StockQuantity   int     `json:"stockQuantity"`
	Manufacturer    string  `json:"manufacturer"`
	Defective       bool    `json:"defective"`
}

// POST /devices
func (dc *DeviceController) Create(c *gin.Context) {
	var in deviceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	d := &models.Device{
		WarehouseID:     app.Warehouse(c).ID,
		Name:            in.Name,
		ScanCode:        in.ScanCode,
		Location:        in.Location,
		SerialNumber:    in.SerialNumber,
		Model:           in.Model,
		Category:        in.Category,
		InventoryNumber: in.InventoryNumber,
		PurchaseDate:    in.PurchaseDate,
		UnitPrice:       in.UnitPrice,
		StockQuantity:   in.StockQuantity,
		Manufacturer:    in.Manufacturer,
		Defective:       in.Defective,
	}
	if text := strings.TrimSpace(in.Description); text != "" {
		d.Description = ledger.AppendLogEntry("", text, app.UserName(c), time.Now())
	}
	if err := dc.Repo.CreateDevice(c.Request.Context(), d); err != nil {
		dc.writeError(c, err)
		return
	}
	dc.Log.Info("device created",
		zap.String("warehouse", d.WarehouseID),
		zap.Int64("device", d.ID),
		zap.String("scan_code", d.ScanCode))
	c.JSON(http.StatusCreated, d)
}

// GET /devices/:id
func (dc *DeviceController) Get(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		dc.writeError(c, err)
		return
	}
	ctx, wid := c.Request.Context(), app.Warehouse(c).ID
	d, err := dc.Repo.FindDevice(ctx, wid, id)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	status, err := dc.Ledger.RefreshStatus(ctx, wid, id)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	avail, err := dc.Ledger.AvailableQuantity(ctx, wid, id)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	loans, err := dc.Repo.ActiveLoansForDevice(ctx, wid, id)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	d.Status = status.String()
	c.JSON(http.StatusOK, app.H{
		"device":    d,
		"status":    status,
		"available": avail,
		"loans":     loans,
		"log":       ledger.LogEntries(d.Description),
	})
}

// PUT /devices/:id with any subset of the editable fields.
func (dc *DeviceController) Update(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		dc.writeError(c, err)
		return
	}
	var in struct {
		Name            *string  `json:"name"`
		ScanCode        *string  `json:"scanCode"`
		Location        *string  `json:"location"`
		Description     *string  `json:"description"`
		SerialNumber    *string  `json:"serialNumber"`
		Model           *string  `json:"model"`
		Category        *string  `json:"category"`
		InventoryNumber *string  `json:"inventoryNumber"`
		PurchaseDate    *string  `json:"purchaseDate"`
		UnitPrice       *float64 `json:"unitPrice"`
		StockQuantity   *int     `json:"stockQuantity"`
		Manufacturer    *string  `json:"manufacturer"`
		Defective       *bool    `json:"defective"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := dc.Ledger.EditDevice(c.Request.Context(), app.Warehouse(c).ID, id, ledger.DeviceEdit{
		Name:            in.Name,
		ScanCode:        in.ScanCode,
		Location:        in.Location,
		SerialNumber:    in.SerialNumber,
		Model:           in.Model,
		Category:        in.Category,
		InventoryNumber: in.InventoryNumber,
		PurchaseDate:    in.PurchaseDate,
		Manufacturer:    in.Manufacturer,
		UnitPrice:       in.UnitPrice,
		StockQuantity:   in.StockQuantity,
		Defective:       in.Defective,
		Description:     in.Description,
		Editor:          app.UserName(c),
	})
	if err != nil {
		dc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// DELETE /devices/:id
func (dc *DeviceController) Delete(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		dc.writeError(c, err)
		return
	}
	if err := dc.Repo.DeleteDevice(c.Request.Context(), app.Warehouse(c).ID, id); err != nil {
		dc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /devices/:id/availability
func (dc *DeviceController) Availability(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		dc.writeError(c, err)
		return
	}
	n, err := dc.Ledger.AvailableQuantity(c.Request.Context(), app.Warehouse(c).ID, id)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"deviceId": id, "available": n})
}

// Scan resolves a scanned code to the device and who holds it.
// GET /scan/:code
func (dc *DeviceController) Scan(c *gin.Context) {
	ctx, wid := c.Request.Context(), app.Warehouse(c).ID
	code := strings.TrimSpace(c.Param("code"))
	d, err := dc.Repo.FindDeviceByScanCode(ctx, wid, code)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	avail, err := dc.Ledger.AvailableQuantity(ctx, wid, d.ID)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	loans, err := dc.Repo.FindActiveLoansByScanCode(ctx, wid, code)
	if err != nil {
		dc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"device": d, "available": avail, "loans": loans})
}
