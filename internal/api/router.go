package api

import (
	"inspection_system/internal/domain"     // Roles
	"inspection_system/internal/middleware" // Auth and logging middleware
	"inspection_system/internal/service"    // Engine services

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps is everything the HTTP layer needs
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client // Optional read cache
	JWTSecret   string
	Accounts    *service.Accounts
	Ledger      *service.Ledger
	Inspections *service.Inspections
	Payments    *service.Payments
	Revenue     *service.Revenue
	Signatures  *service.Signatures
	Withdrawals *service.Withdrawals
	Webhooks    *service.Webhooks
}

// NewRouter registers every route on a fresh gin engine
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	// Auth routes
	r.POST("/user", RegisterHandler(d.Accounts))                 // Registration endpoint
	r.POST("/user/login", LoginHandler(d.Accounts, d.JWTSecret)) // Login endpoint

	// Gateway callbacks authenticate with the HMAC header, not a token
	r.POST("/hooks/payment-webhook", PaymentWebhookHandler(d.Webhooks))

	authed := r.Group("")
	authed.Use(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.RequireRoles(d.DB))

	customer := middleware.AllowRoles(domain.RoleCustomer)
	inspector := middleware.AllowRoles(domain.RoleInspector)
	inspectorOrAdmin := middleware.AllowRoles(domain.RoleInspector, domain.RoleAdmin)
	payee := middleware.AllowRoles(domain.RoleDealer, domain.RoleInspector)

	// Wallet routes
	wallet := authed.Group("/wallet")
	wallet.GET("", GetWalletHandler(d.Ledger))                          // Get wallet endpoint
	wallet.POST("/transfer", TransferHandler(d.DB, d.Ledger))           // Transfer endpoint
	wallet.GET("/transactions", GetTransactionHistoryHandler(d.Ledger)) // Transaction history endpoint
	wallet.POST("/withdrawal-requests", payee, CreateWithdrawalHandler(d.Withdrawals))
	wallet.GET("/withdrawal-requests", ListMyWithdrawalsHandler(d.Withdrawals))

	// Inspection workflow
	inspections := authed.Group("/inspections")
	inspections.GET("/quote", QuoteHandler(d.Inspections, d.Redis))
	inspections.POST("", customer, CreateInspectionHandler(d.Inspections))
	inspections.GET("", ListInspectionsHandler(d.Inspections))
	inspections.GET("/:id", GetInspectionHandler(d.Inspections))
	inspections.POST("/:id/pay", customer, PayInspectionHandler(d.Payments))
	inspections.POST("/:id/verify-payment", VerifyPaymentHandler(d.Payments))
	inspections.POST("/:id/start", inspector, StartInspectionHandler(d.Inspections))
	inspections.POST("/:id/photos", inspector, AddPhotoHandler(d.Inspections))
	inspections.POST("/:id/complete", inspector, CompleteInspectionHandler(d.Inspections))
	inspections.POST("/:id/document", inspectorOrAdmin, GenerateDocumentHandler(d.Signatures))

	// Documents and signatures
	documents := authed.Group("/documents")
	documents.GET("/:id", GetDocumentHandler(d.Signatures))
	documents.POST("/:id/sign", SignDocumentHandler(d.Signatures))
	documents.GET("/:id/audit", AuditTrailHandler(d.Signatures))
	authed.POST("/signatures/:id/reject", inspectorOrAdmin, RejectSignatureHandler(d.Signatures))
	authed.POST("/signatures/:id/resend", inspectorOrAdmin, ResendSignatureHandler(d.Signatures))

	authed.GET("/revenue/splits", middleware.AllowRoles(domain.RoleDealer, domain.RoleAdmin), ListSplitsHandler(d.Revenue))

	// Admin routes
	admin := authed.Group("/admin")
	admin.Use(middleware.AllowRoles(domain.RoleAdmin))
	admin.GET("/users", ListUsersHandler(d.DB, d.Redis))               // List users endpoint
	admin.GET("/transactions", ListTransactionsHandler(d.DB, d.Redis)) // List transactions endpoint
	admin.POST("/wallets/deposit", DepositHandler(d.Ledger))           // Fund a wallet
	admin.GET("/revenue-settings", ListSettingsHandler(d.Revenue))
	admin.POST("/revenue-settings", CreateSettingsHandler(d.Revenue))
	admin.POST("/revenue-settings/:id/activate", ActivateSettingsHandler(d.Revenue))
	admin.GET("/withdrawal-requests", ListWithdrawalsHandler(d.Withdrawals))
	admin.POST("/withdrawal-requests/:id/approve", ApproveWithdrawalHandler(d.Withdrawals))
	admin.POST("/withdrawal-requests/:id/reject", RejectWithdrawalHandler(d.Withdrawals))
	admin.POST("/withdrawal-requests/:id/process", ProcessWithdrawalHandler(d.Withdrawals))

	return r
}
