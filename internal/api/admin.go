package api

import (
	"strings" // String manipulation
	"time"    // Time durations

	"inspection_system/internal/domain" // Importing domain models
	"inspection_system/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// adminListTTL bounds how stale an admin listing may be
const adminListTTL = 60 * time.Second

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID               uint        `json:"id"`                // User ID
	Username         string      `json:"username"`          // Username
	Email            string      `json:"email"`             // Email
	Role             domain.Role `json:"role"`              // User role
	LedgerBalance    string      `json:"ledger_balance"`    // Wallet ledger balance
	AvailableBalance string      `json:"available_balance"` // Wallet available balance
}

// adminPage is the cached form of an admin listing
type adminPage struct {
	Items      any   `json:"items"`       // Rows of the page
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total rows
	TotalPages int   `json:"total_pages"` // Total pages
}

// ListUsersHandler returns all users with their wallet info
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c)
		role := c.Query("role")
		// Create a cache key based on filter and pagination parameters
		cacheKey := "admin:users:role=" + role + ":page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		var cached struct {
			Items      []UserAdminResponse `json:"items"`
			Page       int                 `json:"page"`
			PageSize   int                 `json:"page_size"`
			Total      int64               `json:"total"`
			TotalPages int                 `json:"total_pages"`
		}
		// If cached data found, return it
		if rdb != nil {
			if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
				c.Header("X-Cache-Hit", "true")
				okPage(c, "Users retrieved", cached.Items, cached.Page, cached.PageSize, cached.Total)
				return
			}
		}
		query := db.WithContext(ctx).Model(&domain.User{})
		if role != "" {
			query = query.Where("role = ?", role)
		}
		var total int64 // Total user count
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		var users []domain.User // Slice to hold users
		// Preload Wallet relation, apply offset and limit for pagination
		if err := query.Preload("Wallet").Order("id asc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
			respondError(c, err)
			return
		}
		resp := make([]UserAdminResponse, len(users))
		// Map users to response format
		for i, u := range users {
			resp[i] = UserAdminResponse{
				ID:               u.ID,
				Username:         u.Username,
				Email:            u.Email,
				Role:             u.Role,
				LedgerBalance:    u.Wallet.LedgerBalance.StringFixed(2),
				AvailableBalance: u.Wallet.AvailableBalance.StringFixed(2),
			}
		}
		if rdb != nil {
			// Cache the response for future requests
			_ = utils.SetCache(ctx, rdb, cacheKey, adminPage{
				Items: resp, Page: page, PageSize: pageSize, Total: total,
				TotalPages: (int(total) + pageSize - 1) / pageSize,
			}, adminListTTL)
		}
		okPage(c, "Users retrieved", resp, page, pageSize, total)
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering by
// user, type, status, inspection, or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := pagination(c)
		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "status", "inspection_id", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, "")) // Append key-value pair
		}
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached struct {
			Items      []domain.Transaction `json:"items"`
			Page       int                  `json:"page"`
			PageSize   int                  `json:"page_size"`
			Total      int64                `json:"total"`
			TotalPages int                  `json:"total_pages"`
		}
		if rdb != nil {
			if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
				c.Header("X-Cache-Hit", "true")
				okPage(c, "Transactions retrieved", cached.Items, cached.Page, cached.PageSize, cached.Total)
				return
			}
		}
		query := db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("wallet_id IN (?)", db.Model(&domain.Wallet{}).Select("id").Where("user_id = ?", userID))
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status) // Filter by status
		}
		if inspectionID := c.Query("inspection_id"); inspectionID != "" {
			query = query.Where("related_inspection_id = ?", inspectionID)
		}
		if from := c.Query("from"); from != "" {
			query = query.Where("created_at >= ?", from) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			query = query.Where("created_at <= ?", to) // Filter by end date
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			respondError(c, err)
			return
		}
		var txs []domain.Transaction
		if err := query.Order("created_at desc, id desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&txs).Error; err != nil {
			respondError(c, err)
			return
		}
		if rdb != nil {
			_ = utils.SetCache(ctx, rdb, cacheKey, adminPage{
				Items: txs, Page: page, PageSize: pageSize, Total: total,
				TotalPages: (int(total) + pageSize - 1) / pageSize,
			}, adminListTTL)
		}
		okPage(c, "Transactions retrieved", txs, page, pageSize, total)
	}
}
