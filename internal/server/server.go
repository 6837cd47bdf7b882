// Package server assembles the HTTP routes of the API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"lana/internal/handlers"
	"lana/internal/middleware"
	"lana/internal/services"
	"lana/internal/tiers"

	_ "lana/internal/docs" // swagger docs
)

// Services are the dependencies of the route handlers.
type Services struct {
	User        services.UserServicer
	Audit       services.AuditServicer
	Category    services.CategoryServicer
	Transaction services.TransactionServicer
	Budget      services.BudgetServicer
	Recurring   services.RecurringServicer
	Settings    services.SettingsServicer
	Cashflow    services.CashflowServicer
	Calendar    services.CalendarServicer
	Invoice     services.InvoiceServicer
	Receipt     services.ReceiptServicer
	Billing     services.BillingServicer
	Export      services.ExportServicer
}

// Options tune the router.
type Options struct {
	PipelineAPIKey string
	// RequestLogging enables the per-request access log.
	RequestLogging bool
	Swagger        bool
}

// NewRouter builds the gin engine with every API route.
func NewRouter(s Services, opts Options) *gin.Engine {
	authHandler := handlers.NewAuthHandler(s.User, s.Audit)
	categoryHandler := handlers.NewCategoryHandler(s.Category, s.Audit)
	transactionHandler := handlers.NewTransactionHandler(s.Transaction, s.Settings, s.Audit)
	budgetHandler := handlers.NewBudgetHandler(s.Budget, s.Audit)
	recurringHandler := handlers.NewRecurringHandler(s.Recurring, s.Audit)
	pipelineHandler := handlers.NewPipelineHandler(s.Recurring)
	settingsHandler := handlers.NewSettingsHandler(s.Settings, s.Audit)
	cashflowHandler := handlers.NewCashflowHandler(s.Cashflow)
	calendarHandler := handlers.NewCalendarHandler(s.Calendar, s.Settings)
	invoiceHandler := handlers.NewInvoiceHandler(s.Invoice, s.Settings, s.Audit)
	receiptHandler := handlers.NewReceiptHandler(s.Receipt, s.Audit)
	billingHandler := handlers.NewBillingHandler(s.Billing, s.Audit)
	exportHandler := handlers.NewExportHandler(s.Export, s.Settings, s.Audit)

	requireFeature := func(f tiers.Feature) gin.HandlerFunc {
		return middleware.RequireFeature(f, s.User.GetLimits)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.RequestLogging {
		router.Use(middleware.RequestLogging())
	}
	router.Use(middleware.ErrorHandler())

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	v1.POST("/billing/webhook", billingHandler.Webhook)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/recurring/sweep", pipelineHandler.SweepRecurring)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	settings := protected.Group("/settings")
	settings.GET("", settingsHandler.GetSettings)
	settings.PUT("", settingsHandler.UpdateSettings)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.POST("/suggest", receiptHandler.SuggestCategory)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.POST("/import", transactionHandler.ImportTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.POST("/:id/payment", transactionHandler.RegisterPayment)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/summary", budgetHandler.GetBudgetSummary)
	budgets.GET("/:id", budgetHandler.GetBudgetByID)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/progress", budgetHandler.GetBudgetProgress)

	recurring := protected.Group("/recurring")
	recurring.POST("", recurringHandler.CreateRule)
	recurring.GET("", recurringHandler.GetRules)
	recurring.POST("/materialize", recurringHandler.Materialize)
	recurring.GET("/:id", recurringHandler.GetRuleByID)
	recurring.PUT("/:id", recurringHandler.UpdateRule)
	recurring.DELETE("/:id", recurringHandler.DeleteRule)

	protected.GET("/cashflow", cashflowHandler.GetCashflow)
	protected.GET("/calendar", calendarHandler.GetMonth)

	invoices := protected.Group("/invoices")
	invoices.Use(requireFeature(tiers.FeatureCFDIInvoicing))
	invoices.POST("", invoiceHandler.CreateInvoice)
	invoices.GET("", invoiceHandler.GetInvoices)
	invoices.GET("/:id", invoiceHandler.GetInvoiceByID)
	invoices.POST("/:id/cancel", invoiceHandler.CancelInvoice)
	invoices.GET("/:id/files/:format", invoiceHandler.DownloadFile)
	invoices.GET("/:id/printable", invoiceHandler.RenderPDF)

	protected.POST("/receipts/scan", requireFeature(tiers.FeatureReceiptScan), receiptHandler.ScanReceipt)

	billing := protected.Group("/billing")
	billing.POST("/checkout", billingHandler.CreateCheckoutSession)
	billing.POST("/payment-intent", billingHandler.CreatePaymentIntent)

	export := protected.Group("/export")
	export.GET("/transactions.csv", requireFeature(tiers.FeatureExportCSV), exportHandler.ExportCSV)
	export.GET("/transactions.pdf", requireFeature(tiers.FeatureExportPDF), exportHandler.ExportPDF)

	return router
}
