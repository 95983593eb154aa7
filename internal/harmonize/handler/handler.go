package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/fileio"
	"hydro-harmonizer/internal/harmonize/model"
	"hydro-harmonizer/internal/harmonize/service"
	"hydro-harmonizer/internal/middleware"
)

type harmonizeResponse struct {
	Table    *model.Table       `json:"table"`
	Names    *model.MatchReport `json:"names,omitempty"`
	Units    *model.MatchReport `json:"units,omitempty"`
	Warnings []string           `json:"warnings"`
	Summary  string             `json:"summary"`
}

type mapResponse struct {
	Names   *model.MatchReport `json:"names,omitempty"`
	Units   *model.MatchReport `json:"units,omitempty"`
	Summary string             `json:"summary"`
}

const (
	xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvType  = "text/csv; charset=utf-8"
)

// Harmonize handles POST /harmonize: read the uploaded sheet, map names and
// units, convert and pivot to one row per sample.
func Harmonize(d *Deps, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := requestLogger(r, logger)

		t, ok := readUpload(w, r, d, log)
		if !ok {
			return
		}
		ctx := r.Context()

		names, err := d.nameDict(ctx, r, t.Names(), log)
		if err != nil {
			writeError(w, err)
			return
		}
		nm, err := d.mapper(r, model.FieldName, d.Profile.Names, names, log)
		if err != nil {
			writeError(w, err)
			return
		}
		um, err := d.mapper(r, model.FieldUnit, d.Profile.Units, d.UnitDict, log)
		if err != nil {
			writeError(w, err)
			return
		}
		h, err := d.harmonizer(r, log)
		if err != nil {
			writeError(w, err)
			return
		}
		p := &service.Pipeline{Names: nm, Units: um, Harmonizer: h, Log: log}
		if !toBool(r.FormValue("map_names"), true) {
			p.Names = nil
		}
		if !toBool(r.FormValue("map_units"), true) {
			p.Units = nil
		}

		out, err := p.Run(ctx, t)
		if err != nil {
			writeError(w, err)
			return
		}
		saveReports(d, r, log, out.NameReport, out.UnitReport)

		switch strings.ToLower(r.FormValue("output")) {
		case "xlsx":
			w.Header().Set("Content-Type", xlsxType)
			w.Header().Set("Content-Disposition", `attachment; filename="harmonized.xlsx"`)
			err = fileio.WriteTableXLSX(w, out.Table)
		case "csv":
			w.Header().Set("Content-Type", csvType)
			w.Header().Set("Content-Disposition", `attachment; filename="harmonized.csv"`)
			err = fileio.WriteTableCSV(w, out.Table)
		case "mapping":
			w.Header().Set("Content-Type", xlsxType)
			w.Header().Set("Content-Disposition", `attachment; filename="mapping.xlsx"`)
			err = fileio.MappingWorkbook(w, out.NameReport, out.UnitReport)
		default:
			err = writeJSON(w, harmonizeResponse{
				Table:    out.Table,
				Names:    out.NameReport,
				Units:    out.UnitReport,
				Warnings: nonNil(out.Warnings),
				Summary:  out.ImportNotes,
			})
		}
		if err != nil {
			log.Error().Err(err).Msg("write response")
			return
		}

		log.Info().
			Int("features", t.Len()).
			Int("samples", len(out.Table.Index)).
			Int("columns", len(out.Table.Columns)).
			Int("warnings", len(out.Warnings)).
			Dur("elapsed", time.Since(start)).
			Msg("harmonize done")
	}
}

// Map handles POST /map: only the name and unit mapping reports.
func Map(d *Deps, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := requestLogger(r, logger)

		t, ok := readUpload(w, r, d, log)
		if !ok {
			return
		}
		ctx := r.Context()
		resp := mapResponse{Summary: t.Summary()}

		field := strings.ToLower(firstNonEmpty(r.FormValue("field"), "both"))
		if field != "both" && field != "names" && field != "units" {
			writeError(w, model.NewConfigError("field", fmt.Sprintf("invalid field %q, must be names, units or both", field)))
			return
		}
		if field != "units" {
			names, err := d.nameDict(ctx, r, t.Names(), log)
			if err != nil {
				writeError(w, err)
				return
			}
			nm, err := d.mapper(r, model.FieldName, d.Profile.Names, names, log)
			if err != nil {
				writeError(w, err)
				return
			}
			if resp.Names, err = nm.Map(ctx, t.Keys(), t.Names()); err != nil {
				writeError(w, err)
				return
			}
		}
		if field != "names" {
			um, err := d.mapper(r, model.FieldUnit, d.Profile.Units, d.UnitDict, log)
			if err != nil {
				writeError(w, err)
				return
			}
			if resp.Units, err = um.Map(ctx, t.Keys(), t.Units()); err != nil {
				writeError(w, err)
				return
			}
		}
		saveReports(d, r, log, resp.Names, resp.Units)

		var err error
		if strings.EqualFold(r.FormValue("output"), "xlsx") {
			w.Header().Set("Content-Type", xlsxType)
			w.Header().Set("Content-Disposition", `attachment; filename="mapping.xlsx"`)
			err = fileio.MappingWorkbook(w, resp.Names, resp.Units)
		} else {
			err = writeJSON(w, resp)
		}
		if err != nil {
			log.Error().Err(err).Msg("write response")
			return
		}
		log.Info().Int("features", t.Len()).Str("field", field).Dur("elapsed", time.Since(start)).Msg("map done")
	}
}

func requestLogger(r *http.Request, logger zerolog.Logger) zerolog.Logger {
	if rid := middleware.GetRequestID(r); rid != "" {
		return logger.With().Str("req_id", rid).Logger()
	}
	return logger
}

// readUpload parses the multipart form and reads the "file" part into
// feature entries. On failure the response is already written.
func readUpload(w http.ResponseWriter, r *http.Request, d *Deps, log zerolog.Logger) (*model.FeatureTable, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	defer r.Body.Close()
	if err := r.ParseMultipartForm(int64(max(d.Cfg.MaxUploadMB, 1)) << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	sheet, err := fileio.ReadSheet(file, header.Filename, r.FormValue("sheet"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, fileio.ErrUnsupported) {
			status = http.StatusUnsupportedMediaType
		}
		http.Error(w, "failed to read file: "+err.Error(), status)
		return nil, false
	}
	l, err := layout(r)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	t, err := service.ReadEntries(sheet, l)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	log.Debug().
		Str("file", header.Filename).
		Str("sheet", sheet.Name).
		Int("rows", len(sheet.Rows)).
		Int("entries", t.Len()).
		Msg("upload read")
	return t, true
}

// saveReports keeps a copy of the mapping reports when REPORT_DIR is set.
// Failures are logged, the request still succeeds.
func saveReports(d *Deps, r *http.Request, log zerolog.Logger, reports ...*model.MatchReport) {
	if d.Cfg.ReportDir == "" {
		return
	}
	if err := os.MkdirAll(d.Cfg.ReportDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", d.Cfg.ReportDir).Msg("create report dir")
		return
	}
	rid := firstNonEmpty(middleware.GetRequestID(r), time.Now().Format("20060102-150405"))
	path := filepath.Join(d.Cfg.ReportDir, rid+"_mapping.xlsx")
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		if err := fileio.WriteMappingSheet(path, rep); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("save mapping report")
			return
		}
	}
}

// writeError maps configuration errors to 400 and the rest to 500.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrConfig) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
