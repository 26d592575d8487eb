package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	transactiondomain "github.com/smallbiznis/posbridge/internal/transaction/domain"
)

const maxListLimit = 500

func parseLimit(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, newValidationError("limit", "invalid_limit", "invalid limit")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func (s *Server) ListTransactionRecords(c *gin.Context) {
	placed, err := parseOptionalBool(c.Query("placed"))
	if err != nil {
		AbortWithError(c, newValidationError("placed", "invalid_placed", "invalid placed"))
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.transactions.List(c.Request.Context(), transactiondomain.ListRequest{
		Placed: placed,
		Limit:  limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetTransactionRecord(c *gin.Context) {
	c.Set("trx_no", c.Param("trxNo"))
	record, err := s.transactions.Get(c.Request.Context(), c.Param("trxNo"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// DeleteTransactionRecord removes a placed record. Unplaced records conflict.
func (s *Server) DeleteTransactionRecord(c *gin.Context) {
	c.Set("trx_no", c.Param("trxNo"))
	if err := s.transactions.Delete(c.Request.Context(), c.Param("trxNo")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListCatalogVariants(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	variants, err := s.catalog.List(c.Request.Context(), catalogdomain.ListRequest{
		SKU:     strings.TrimSpace(c.Query("sku")),
		Barcode: strings.TrimSpace(c.Query("barcode")),
		Limit:   limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": variants})
}
