package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/access"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/donation"
)

const (
	codeDonationInvalidParams = -32021
	codeDonationNotFound      = -32022
	codeDonationForbidden     = -32023
	codeDonationConflict      = -32024
	codeDonationInternal      = -32025
)

type donationCreateParams struct {
	Donor            string `json:"donor"`
	Amount           string `json:"amount"`
	EquityPercentage uint8  `json:"equityPercentage"`
	NonprofitName    string `json:"nonprofitName"`
	Description      string `json:"description"`
	Valuation        string `json:"valuation"`
}

type donationFundParams struct {
	ID     uint64 `json:"id"`
	Funder string `json:"funder"`
	Value  string `json:"value"`
}

type donationActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type donationExtendParams struct {
	ID            uint64 `json:"id"`
	Caller        string `json:"caller"`
	ExtensionDays uint32 `json:"extensionDays"`
}

type donationIDParams struct {
	ID uint64 `json:"id"`
}

type donationJSON struct {
	ID               uint64 `json:"id"`
	Donor            string `json:"donor"`
	Nonprofit        string `json:"nonprofit,omitempty"`
	Amount           string `json:"amount"`
	EquityPercentage uint8  `json:"equityPercentage"`
	FundingDeadline  int64  `json:"fundingDeadline"`
	Valuation        string `json:"valuation"`
	NonprofitName    string `json:"nonprofitName"`
	Description      string `json:"description"`
	CreatedAt        int64  `json:"createdAt"`
	Status           string `json:"status"`
}

type donationCreateResult struct {
	ID uint64 `json:"id"`
}

type donationCountResult struct {
	Count uint64 `json:"count"`
}

type eventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func donationToJSON(d *donation.Donation) donationJSON {
	out := donationJSON{
		ID:               d.ID,
		Donor:            encodeAddress(d.Donor),
		Amount:           d.Amount.String(),
		EquityPercentage: d.EquityPercentage,
		FundingDeadline:  d.FundingDeadline,
		Valuation:        d.Valuation.String(),
		NonprofitName:    d.NonprofitName,
		Description:      d.Description,
		CreatedAt:        d.CreatedAt,
		Status:           d.Status.String(),
	}
	if d.Nonprofit != ([20]byte{}) {
		out.Nonprofit = encodeAddress(d.Nonprofit)
	}
	return out
}

// writeDonationError maps engine errors onto JSON-RPC status and error codes.
func writeDonationError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, donation.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeDonationNotFound, "not_found", err.Error())
	case errors.Is(err, donation.ErrUnauthorizedAccess):
		writeError(w, http.StatusForbidden, id, codeDonationForbidden, "forbidden", err.Error())
	case errors.Is(err, donation.ErrInvalidAmount),
		errors.Is(err, donation.ErrInvalidPercentage),
		errors.Is(err, donation.ErrEmptyString),
		errors.Is(err, donation.ErrZeroValue),
		errors.Is(err, donation.ErrInvalidDeadline):
		writeError(w, http.StatusBadRequest, id, codeDonationInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, donation.ErrDonationNotActive),
		errors.Is(err, donation.ErrDeadlinePassed),
		errors.Is(err, donation.ErrInsufficientFunds),
		errors.Is(err, donation.ErrTransferFailed),
		errors.Is(err, donation.ErrReentrantCall),
		errors.Is(err, access.ErrModulePaused):
		writeError(w, http.StatusConflict, id, codeDonationConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeDonationInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleDonationCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params donationCreateParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	donor, err := parseBech32Address(params.Donor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	valuation, err := parsePositiveBigInt(params.Valuation)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.DonationCreate(donor, amount, params.EquityPercentage, params.NonprofitName, params.Description, valuation)
	if err != nil {
		writeDonationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, donationCreateResult{ID: record.ID})
}

func (s *Server) handleDonationFund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params donationFundParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	funder, err := parseBech32Address(params.Funder)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parsePositiveBigInt(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DonationFund(params.ID, funder, value); err != nil {
		writeDonationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDonationDistribute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := s.decodeActorParams(w, req)
	if !ok {
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DonationDistribute(params.ID, caller); err != nil {
		writeDonationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDonationCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, ok := s.decodeActorParams(w, req)
	if !ok {
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DonationCancel(params.ID, caller); err != nil {
		writeDonationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) decodeActorParams(w http.ResponseWriter, req *RPCRequest) (donationActorParams, bool) {
	var params donationActorParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return params, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return params, false
	}
	return params, true
}

func (s *Server) handleDonationExtend(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params donationExtendParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.DonationExtend(params.ID, caller, params.ExtensionDays); err != nil {
		writeDonationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDonationGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params donationIDParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeDonationInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.DonationGet(params.ID)
	if err != nil {
		writeDonationError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, donationToJSON(record))
}

func (s *Server) handleDonationCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.node.DonationCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeDonationInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, donationCountResult{Count: count})
}

func (s *Server) handleDonationListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	events := s.node.Events()
	out := make([]eventJSON, 0, len(events))
	for _, evt := range events {
		out = append(out, eventJSON{Type: evt.Type, Attributes: copyAttributes(evt)})
	}
	writeResult(w, req.ID, out)
}

func copyAttributes(evt types.Event) map[string]string {
	attrs := make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		attrs[k] = v
	}
	return attrs
}
