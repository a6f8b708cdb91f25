package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mariibrb/dizimeiro/internal/archive"
	"github.com/mariibrb/dizimeiro/internal/audit"
	"github.com/mariibrb/dizimeiro/internal/difal"
	"github.com/mariibrb/dizimeiro/internal/domain"
	"github.com/mariibrb/dizimeiro/internal/export"
	"github.com/mariibrb/dizimeiro/internal/ingestion"
	"github.com/mariibrb/dizimeiro/internal/reconciliation"
	"github.com/mariibrb/dizimeiro/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	auditSvc  *audit.Service
	auditRepo *repository.AuditRepo
	tables    difal.Tables
	log       zerolog.Logger
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// --- RunAudit ---

func (h *Handlers) RunAudit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	regime, err := domain.ParseRegime(r.FormValue("regime"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rateSource, err := difal.ParseRateSource(r.FormValue("rate_source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	matchMode, err := reconciliation.ParseMode(r.FormValue("match_mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	defaults := ingestion.DefaultLedgerLayout()
	params := audit.Params{
		TargetCNPJ:    r.FormValue("cnpj"),
		DestinationUF: r.FormValue("uf"),
		Regime:        regime,
		RateSource:    rateSource,
		MatchMode:     matchMode,
		LedgerLayout: ingestion.LedgerLayout{
			SkipRows:   parseIntDefault(r.FormValue("skip_rows"), defaults.SkipRows),
			DocCol:     parseIntDefault(r.FormValue("doc_col"), defaults.DocCol),
			CFOPCol:    parseIntDefault(r.FormValue("cfop_col"), defaults.CFOPCol),
			ProductCol: parseIntDefault(r.FormValue("product_col"), defaults.ProductCol),
			DescCol:    parseIntDefault(r.FormValue("desc_col"), defaults.DescCol),
			ValueCol:   parseIntDefault(r.FormValue("value_col"), defaults.ValueCol),
		},
	}
	if params.TargetCNPJ == "" || params.DestinationUF == "" {
		writeError(w, http.StatusBadRequest, "cnpj and uf are required")
		return
	}

	uploads, err := readUploads(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file upload is required")
		return
	}

	ledger, err := readLedger(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, rows, err := h.auditSvc.Run(params, uploads, ledger)
	if err != nil {
		// Configuration errors (unknown UF, bad CNPJ) are the caller's to fix.
		h.log.Warn().Err(err).Msg("audit rejected")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"results": rows,
	})
}

func readUploads(form *multipart.Form) ([]archive.Blob, error) {
	var uploads []archive.Blob
	for _, hdr := range form.File["files"] {
		f, err := hdr.Open()
		if err != nil {
			return nil, errors.New("open upload " + hdr.Filename + ": " + err.Error())
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.New("read upload " + hdr.Filename + ": " + err.Error())
		}
		uploads = append(uploads, archive.Blob{Name: hdr.Filename, Data: data})
	}
	return uploads, nil
}

// readLedger returns nil when no ledger file was attached; a run without a
// ledger is valid and skips the inner join.
func readLedger(r *http.Request) ([]byte, error) {
	f, _, err := r.FormFile("ledger")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// --- ListAudits ---

func (h *Handlers) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	runs, err := h.auditRepo.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

// --- GetAudit ---

func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// --- GetAuditResults ---

func (h *Handlers) GetAuditResults(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	actionable := r.URL.Query().Get("actionable") == "true"
	rows, err := h.auditRepo.GetResults(run.ID, actionable)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    run.ID,
		"results":   rows,
		"total_due": run.TotalDue,
	})
}

// --- ExportAudit ---

func (h *Handlers) ExportAudit(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	// The export always carries the full dataset, zero-amount rows included.
	rows, err := h.auditRepo.GetResults(run.ID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	book, err := export.Workbook(run, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "build workbook: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(run)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(book)
}

// --- GetRates ---

func (h *Handlers) GetRates(w http.ResponseWriter, r *http.Request) {
	type ufEntry struct {
		UF           string  `json:"uf"`
		InternalRate float64 `json:"internal_rate"`
		DoubleBase   bool    `json:"double_base"`
	}

	entries := make([]ufEntry, 0, len(h.tables.InternalRates))
	for uf, rate := range h.tables.InternalRates {
		entries = append(entries, ufEntry{
			UF:           uf,
			InternalRate: rate,
			DoubleBase:   h.tables.DoubleBase[uf],
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UF < entries[j].UF })

	cfops := make([]string, 0, len(h.tables.EligibleCFOPs))
	for cfop := range h.tables.EligibleCFOPs {
		cfops = append(cfops, cfop)
	}
	sort.Strings(cfops)

	writeJSON(w, http.StatusOK, map[string]any{
		"jurisdictions":  entries,
		"eligible_cfops": cfops,
	})
}

func (h *Handlers) lookupRun(w http.ResponseWriter, r *http.Request) (*domain.AuditRun, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return nil, false
	}

	run, err := h.auditRepo.GetRun(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "audit run not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}
