package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/export"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type ExportController struct{ *Srv }

func NewExportController(s *Srv) *ExportController { return &ExportController{Srv: s} }

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Export downloads the filtered inventory as CSV, a Word table or a label sheet.
// GET /export?format=csv|docx|labels&layoutId=&q=&status=&category=&group=&sort=
func (ec *ExportController) Export(c *gin.Context) {
	ctx, wid := c.Request.Context(), app.Warehouse(c).ID
	q := deviceQuery(c)
	q.Page, q.Size = 0, 0
	rows, err := ec.Repo.SearchDevices(ctx, wid, q)
	if err != nil {
		ec.writeError(c, err)
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		var buf bytes.Buffer
		if err := export.WriteDevicesCSV(&buf, rows); err != nil {
			ec.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="devices.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "docx":
		doc, err := export.DevicesDocx(app.Warehouse(c).Name, rows, time.Now())
		if err != nil {
			ec.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="devices.docx"`)
		c.Data(http.StatusOK, docxMIME, doc)
	case "labels":
		var stored *models.LabelLayout
		if raw := c.Query("layoutId"); raw != "" {
			id, perr := strconv.ParseUint(raw, 10, 32)
			if perr != nil {
				badRequest(c, "invalid layoutId")
				return
			}
			stored, err = ec.Repo.FindLayout(ctx, wid, uint(id))
		} else {
			stored, err = ec.Repo.ResolveLabelLayout(ctx, wid)
		}
		if err != nil {
			ec.writeError(c, err)
			return
		}
		layout, err := export.ParseLayout(stored.LayoutData)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		pdf, err := export.LabelsPDF(layout, rows)
		if err != nil {
			ec.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="labels.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		badRequest(c, "format must be csv, docx or labels")
	}
}

// GET /labels
func (ec *ExportController) ListLayouts(c *gin.Context) {
	ls, err := ec.Repo.ListLayouts(c.Request.Context(), app.Warehouse(c).ID)
	if err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": ls})
}

// GET /labels/:id
func (ec *ExportController) GetLayout(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		ec.writeError(c, err)
		return
	}
	l, err := ec.Repo.FindLayout(c.Request.Context(), app.Warehouse(c).ID, id)
	if err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

type layoutInput struct {
	Name       string          `json:"name" binding:"required"`
	LayoutData json.RawMessage `json:"layoutData" binding:"required"`
	IsDefault  bool            `json:"isDefault"`
}

// POST /labels and PUT /labels/:id
func (ec *ExportController) SaveLayout(c *gin.Context) {
	var in layoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if _, err := export.ParseLayout(in.LayoutData); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx, wid := c.Request.Context(), app.Warehouse(c).ID
	l := &models.LabelLayout{WarehouseID: wid, Name: in.Name, LayoutData: datatypes.JSON(in.LayoutData)}
	status := http.StatusCreated
	if c.Param("id") != "" {
		id, err := uintParam(c, "id")
		if err != nil {
			ec.writeError(c, err)
			return
		}
		l.ID, status = id, http.StatusOK
	}
	if err := ec.Repo.SaveLayout(ctx, l); err != nil {
		ec.writeError(c, err)
		return
	}
	if in.IsDefault {
		if err := ec.Repo.SetDefaultLayout(ctx, wid, l.ID); err != nil {
			ec.writeError(c, err)
			return
		}
		l.IsDefault = true
	}
	c.JSON(status, l)
}

// POST /labels/:id/default
func (ec *ExportController) SetDefault(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		ec.writeError(c, err)
		return
	}
	if err := ec.Repo.SetDefaultLayout(c.Request.Context(), app.Warehouse(c).ID, id); err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// DELETE /labels/:id
func (ec *ExportController) DeleteLayout(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		ec.writeError(c, err)
		return
	}
	if err := ec.Repo.DeleteLayout(c.Request.Context(), app.Warehouse(c).ID, id); err != nil {
		ec.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// RegenerateSlips writes any missing slips of active loans.
// POST /slips/regenerate
func (ec *ExportController) RegenerateSlips(c *gin.Context) {
	if ec.Slips == nil {
		c.JSON(http.StatusServiceUnavailable, app.H{"error": "slip archive disabled"})
		return
	}
	wid := app.Warehouse(c).ID
	n, err := ec.Slips.ArchiveWarehouse(c.Request.Context(), wid)
	if err != nil {
		ec.writeError(c, err)
		return
	}
	ec.Log.Info("slips regenerated", zap.String("warehouse", wid), zap.Int("created", n))
	c.JSON(http.StatusOK, app.H{"created": n})
}

// DownloadSlips streams every archived slip of the warehouse as one zip.
// GET /slips/archive.zip
func (ec *ExportController) DownloadSlips(c *gin.Context) {
	if ec.Slips == nil {
		c.JSON(http.StatusServiceUnavailable, app.H{"error": "slip archive disabled"})
		return
	}
	w := app.Warehouse(c)
	name := fmt.Sprintf("slips_%s_%s.zip", w.ID, time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)

	n, err := ec.Slips.ZipWarehouse(c.Request.Context(), w.ID, c.Writer)
	if err != nil {
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Disposition")
			ec.writeError(c, err)
			return
		}
		ec.Log.Error("slip zip aborted", zap.String("warehouse", w.ID), zap.Int("files", n), zap.Error(err))
		return
	}
	ec.Log.Info("slips downloaded", zap.String("warehouse", w.ID), zap.Int("files", n))
}

// GET /api/version
func (ec *ExportController) Version(c *gin.Context) {
	c.JSON(http.StatusOK, ec.Updates.State())
}
