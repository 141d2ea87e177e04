package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
)

const maxRequestBytes = 10 << 20

// detectRequest carries raw collector rows and optional overrides of the
// service's default clustering parameters.
type detectRequest struct {
	Records     []domain.RawAccidentRecord `json:"records"`
	Algorithm   *string                    `json:"algorithm,omitempty"`
	Eps         *float64                   `json:"eps,omitempty"`
	MinSamples  *int                       `json:"min_samples,omitempty"`
	K           *int                       `json:"k,omitempty"`
	Seed        *uint64                    `json:"seed,omitempty"`
	Features    []string                   `json:"features,omitempty"`
	Standardize *bool                      `json:"standardize,omitempty"`
	// CrossTabs lists extra dimensions to tabulate against clusters.
	CrossTabs []string `json:"cross_tabs,omitempty"`
	// SeverityBy lists dimensions to average severity over.
	SeverityBy []string `json:"severity_by,omitempty"`
	// OmitRecords drops the per-record labels from the response.
	OmitRecords bool `json:"omit_records,omitempty"`
}

type rejectedRecord struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type detectResponse struct {
	domain.DetectionResult
	CrossTabs  map[string]domain.CrossTab      `json:"cross_tabs,omitempty"`
	SeverityBy map[string]domain.SeverityTable `json:"severity_by,omitempty"`
	Rejected   []rejectedRecord                `json:"rejected,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	params, err := req.params(s.detector.Params())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tabDims, err := parseDimensions(req.CrossTabs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	severityDims, err := parseDimensions(req.SeverityBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := make([]domain.AccidentRecord, 0, len(req.Records))
	var rejected []rejectedRecord
	for i, raw := range req.Records {
		rec, err := domain.ParseRawRecord(raw)
		if err != nil {
			rejected = append(rejected, rejectedRecord{Index: i, Error: err.Error()})
			continue
		}
		records = append(records, rec)
	}

	result, err := s.detector.DetectWith(r.Context(), records, params)
	if err != nil {
		var perr *domain.InvalidParameterError
		if errors.As(err, &perr) {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		s.logger.Error("hotspot detection failed", "error", err)
		writeError(w, http.StatusInternalServerError, "hotspot detection failed")
		return
	}

	resp := detectResponse{DetectionResult: result, Rejected: rejected}
	plain := make([]domain.AccidentRecord, len(result.Records))
	for i, lr := range result.Records {
		plain[i] = lr.AccidentRecord
	}
	if len(tabDims) > 0 {
		resp.CrossTabs = make(map[string]domain.CrossTab, len(tabDims))
		for _, d := range tabDims {
			tab, err := hotspot.CrossTabulate(plain, result.Labeling.Labels, d)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			resp.CrossTabs[string(d)] = tab
		}
	}
	if len(severityDims) > 0 {
		resp.SeverityBy = make(map[string]domain.SeverityTable, len(severityDims))
		for _, d := range severityDims {
			tab, err := hotspot.SeverityBy(plain, result.Labeling.Labels, d)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			resp.SeverityBy[string(d)] = tab
		}
	}
	if req.OmitRecords {
		resp.Records = nil
		resp.Labeling.Labels = nil
	}

	s.logger.Debug("detect request served",
		"run_id", result.RunID,
		"records", len(records),
		"rejected", len(rejected),
	)
	writeJSON(w, http.StatusOK, resp)
}

// params overlays the request's overrides on the defaults.
func (req detectRequest) params(p hotspot.Params) (hotspot.Params, error) {
	if req.Algorithm != nil {
		algo, err := hotspot.ParseAlgorithm(*req.Algorithm)
		if err != nil {
			return p, err
		}
		p.Algorithm = algo
	}
	if req.Eps != nil {
		p.Density.Eps = *req.Eps
	}
	if req.MinSamples != nil {
		p.Density.MinSamples = *req.MinSamples
	}
	if req.K != nil {
		p.Centroid.K = *req.K
	}
	if req.Seed != nil {
		p.Centroid.Seed = *req.Seed
	}
	if req.Standardize != nil {
		p.Standardize = *req.Standardize
	}
	if len(req.Features) > 0 {
		features, err := hotspot.ParseFeatures(strings.Join(req.Features, ","))
		if err != nil {
			return p, err
		}
		p.Features = features
	}
	return p, nil
}

func parseDimensions(names []string) ([]hotspot.Dimension, error) {
	dims := make([]hotspot.Dimension, 0, len(names))
	for _, s := range names {
		d, err := hotspot.ParseDimension(s)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return dims, nil
}
