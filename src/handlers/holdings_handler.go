// backend/src/handlers/holdings_handler.go
package handlers

import (
	"encoding/csv"
	"net/http"

	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/schema"
	"github.com/username/wealthfolio/backend/src/security/validation"
	"github.com/username/wealthfolio/backend/src/services"
	"github.com/username/wealthfolio/backend/src/utils"
)

type HoldingsHandler struct {
	ledgerService services.LedgerService
}

func NewHoldingsHandler(service services.LedgerService) *HoldingsHandler {
	return &HoldingsHandler{
		ledgerService: service,
	}
}

func (h *HoldingsHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.ledgerService.ListHoldings(r.Context())
	if err != nil {
		logger.L.Error("Error retrieving holdings", "error", err)
		utils.SendJSONError(w, "Error retrieving holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.ExistingHolding{}
	}

	etag, err := utils.GenerateETag(holdings)
	if err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	utils.SendJSON(w, holdings, http.StatusOK)
}

// HandleGetDuplicateGroups lists ledger holdings that normalize to the same
// merge key, with the weighted-average merge preview for each group.
func (h *HoldingsHandler) HandleGetDuplicateGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.ledgerService.DuplicateGroups(r.Context())
	if err != nil {
		logger.L.Error("Error computing duplicate groups", "error", err)
		utils.SendJSONError(w, "Error computing duplicate groups", http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []services.DuplicateGroup{}
	}
	utils.SendJSON(w, groups, http.StatusOK)
}

// HandleExportHoldings streams the ledger as a CSV download. Text fields go
// through the formula-injection sanitizer since the file is meant to be
// opened in a spreadsheet.
func (h *HoldingsHandler) HandleExportHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.ledgerService.ListHoldings(r.Context())
	if err != nil {
		logger.L.Error("Error retrieving holdings for export", "error", err)
		utils.SendJSONError(w, "Error retrieving holdings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="holdings.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"asset_class", "name", "quantity", "avg_buy_price", "currency", "isin", "exchange", "institution", "interest_rate", "maturity_date", "buy_date"})
	for _, holding := range holdings {
		cw.Write([]string{
			holding.AssetClass,
			validation.SanitizeForFormulaInjection(holding.DisplayName),
			holding.Quantity.String(),
			holding.UnitPrice.String(),
			holding.Currency,
			holding.ISIN,
			validation.SanitizeForFormulaInjection(holding.Exchange),
			validation.SanitizeForFormulaInjection(holding.Institution),
			holding.InterestRate,
			holding.MaturityDate,
			holding.BuyDate,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.L.Error("Error writing holdings CSV", "error", err)
	}
}

// HandleGetAssetClasses returns the asset-class registry so clients can
// build their entry forms from the same schema the engine validates with.
func (h *HoldingsHandler) HandleGetAssetClasses(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, schema.All(), http.StatusOK)
}
