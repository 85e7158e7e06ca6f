package routes

import (
	"net/http"

	"github.com/Matti-Krebelder/DMS/app"
	"github.com/Matti-Krebelder/DMS/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App, slips controllers.SlipArchiver) {
	s := controllers.GetSrv(a, slips)
	sessCtl := controllers.NewSessionController(s)
	userCtl := controllers.NewUserController(s)
	whCtl := controllers.NewWarehouseController(s)
	devCtl := controllers.NewDeviceController(s)
	cartCtl := controllers.NewCartController(s)
	loanCtl := controllers.NewLoanController(s)
	expCtl := controllers.NewExportController(s)

	authMW := app.AuthRequired(s.AppSess, s.Repo, a.Config)
	adminMW := app.AdminOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, a.Config.Session.SeenThrottle)
	accessMW := app.WarehouseAccess(s.Repo, s.AppSess)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	api := r.Group("/api")
	api.POST("/session", sessCtl.Login)
	api.GET("/version", expCtl.Version)

	authed := api.Group("", authMW, seenMW)
	{
		authed.GET("/session", sessCtl.WhoAmI)
		authed.DELETE("/session", sessCtl.Logout)

		authed.GET("/users", adminMW, userCtl.ListUsers)

		authed.GET("/warehouses", whCtl.List)
		authed.POST("/warehouses", whCtl.Create)
	}

	wh := authed.Group("/warehouses/:wid", accessMW)
	{
		wh.GET("", whCtl.Get)
		wh.PUT("", whCtl.Update)
		wh.DELETE("", whCtl.Delete)

		wh.GET("/devices", devCtl.List)
		wh.GET("/devices/facets", devCtl.Facets)
		wh.POST("/devices", devCtl.Create)
		wh.GET("/devices/:id", devCtl.Get)
		wh.PUT("/devices/:id", devCtl.Update)
		wh.DELETE("/devices/:id", devCtl.Delete)
		wh.GET("/devices/:id/availability", devCtl.Availability)
		wh.GET("/scan/:code", devCtl.Scan)

		wh.GET("/cart", cartCtl.Get)
		wh.POST("/cart/items", cartCtl.AddItems)
		wh.DELETE("/cart/items/:deviceId", cartCtl.RemoveItem)
		wh.DELETE("/cart", cartCtl.Clear)
		wh.POST("/borrow", cartCtl.Borrow)

		wh.GET("/loans", loanCtl.List)
		wh.GET("/loans/:loanId", loanCtl.Get)
		wh.GET("/loans/:loanId/slip", loanCtl.Slip)
		wh.GET("/loans/:loanId/qr", loanCtl.QR)
		wh.POST("/loans/:loanId/return", loanCtl.Return)
		wh.GET("/returns/lookup", loanCtl.Lookup)
		wh.GET("/returns/mine", loanCtl.Mine)

		wh.GET("/export", expCtl.Export)
		wh.GET("/labels", expCtl.ListLayouts)
		wh.GET("/labels/:id", expCtl.GetLayout)
		wh.POST("/labels", expCtl.SaveLayout)
		wh.PUT("/labels/:id", expCtl.SaveLayout)
		wh.POST("/labels/:id/default", expCtl.SetDefault)
		wh.DELETE("/labels/:id", expCtl.DeleteLayout)
		wh.POST("/slips/regenerate", expCtl.RegenerateSlips)
		wh.GET("/slips/archive.zip", expCtl.DownloadSlips)
	}
}
