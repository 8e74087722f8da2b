package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/access"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/reputation"
)

const (
	codeReputationInvalidParams = -32031
	codeReputationConflict      = -32032
	codeReputationInternal      = -32033
)

type reputationRateParams struct {
	Subject string `json:"subject"`
	Rater   string `json:"rater"`
	Rating  uint8  `json:"rating"`
	Review  string `json:"review"`
}

type reputationGetParams struct {
	Address string `json:"address"`
}

type aggregateJSON struct {
	Rating       uint8  `json:"rating"`
	TotalRatings uint64 `json:"totalRatings"`
	LastUpdated  int64  `json:"lastUpdated"`
	Review       string `json:"review,omitempty"`
}

type profileJSON struct {
	Address     string        `json:"address"`
	AsDonor     aggregateJSON `json:"asDonor"`
	AsNonprofit aggregateJSON `json:"asNonprofit"`
}

func aggregateToJSON(agg reputation.Aggregate) aggregateJSON {
	return aggregateJSON{
		Rating:       agg.Rating,
		TotalRatings: agg.TotalRatings,
		LastUpdated:  agg.LastUpdated,
		Review:       agg.Review,
	}
}

func writeReputationError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, reputation.ErrInvalidRating),
		errors.Is(err, reputation.ErrEmptyString),
		errors.Is(err, reputation.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, id, codeReputationInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, reputation.ErrAlreadyRated),
		errors.Is(err, access.ErrModulePaused):
		writeError(w, http.StatusConflict, id, codeReputationConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeReputationInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleReputationRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params reputationRateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", err.Error())
		return
	}
	subject, err := parseBech32Address(params.Subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", err.Error())
		return
	}
	rater, err := parseBech32Address(params.Rater)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", err.Error())
		return
	}
	aggregate, err := s.node.ReputationRate(subject, rater, params.Rating, params.Review)
	if err != nil {
		writeReputationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, aggregateToJSON(*aggregate))
}

func (s *Server) handleReputationGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params reputationGetParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeReputationInvalidParams, "invalid_params", err.Error())
		return
	}
	profile, err := s.node.ReputationGet(addr)
	if err != nil {
		writeReputationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, profileJSON{
		Address:     encodeAddress(profile.Address),
		AsDonor:     aggregateToJSON(profile.AsDonor),
		AsNonprofit: aggregateToJSON(profile.AsNonprofit),
	})
}
