package v1

import "github.com/gin-gonic/gin"

// ServerInterface lists the handlers the API expects.
type ServerInterface interface {
	GetWizardStatus(c *gin.Context)
	AdvanceWizard(c *gin.Context)
	StepBack(c *gin.Context)
	RetryStep(c *gin.Context)
	ResetWizard(c *gin.Context)

	ListDevices(c *gin.Context)
	ListBoards(c *gin.Context)
	SelectDevice(c *gin.Context)
	ListProducts(c *gin.Context)
	SelectProduct(c *gin.Context)

	StartToolchain(c *gin.Context)
	SyncRepository(c *gin.Context)
	CheckoutVersion(c *gin.Context)
	SetConfiguration(c *gin.Context)
	ImportConfiguration(c *gin.Context)
	StartBuild(c *gin.Context)

	GetTask(c *gin.Context)
	CancelTask(c *gin.Context)

	GetPreferences(c *gin.Context)
	SetPreferences(c *gin.Context)
}

// RegisterHandlers wires the API routes under router.
func RegisterHandlers(router *gin.RouterGroup, si ServerInterface) {
	router.GET("/wizard", si.GetWizardStatus)
	router.POST("/wizard/advance", si.AdvanceWizard)
	router.POST("/wizard/back", si.StepBack)
	router.POST("/wizard/retry", si.RetryStep)
	router.DELETE("/wizard", si.ResetWizard)

	router.GET("/devices", si.ListDevices)
	router.GET("/boards", si.ListBoards)
	router.POST("/wizard/device", si.SelectDevice)
	router.GET("/products", si.ListProducts)
	router.POST("/wizard/product", si.SelectProduct)

	router.POST("/wizard/toolchain", si.StartToolchain)
	router.POST("/wizard/repository", si.SyncRepository)
	router.POST("/wizard/checkout", si.CheckoutVersion)
	router.PUT("/wizard/config", si.SetConfiguration)
	router.POST("/wizard/config/import", si.ImportConfiguration)
	router.POST("/wizard/build", si.StartBuild)

	router.GET("/task", si.GetTask)
	router.DELETE("/task", si.CancelTask)

	router.GET("/preferences", si.GetPreferences)
	router.PUT("/preferences", si.SetPreferences)
}
