package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/access"
)

const (
	codeAdminInvalidParams = -32041
	codeAdminForbidden     = -32042
	codeAdminInternal      = -32043
)

type adminModuleParams struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
}

type adminRoleParams struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

type adminWithdrawParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient,omitempty"`
}

type adminWithdrawResult struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func writeAdminError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, core.ErrNotAdmin):
		writeError(w, http.StatusForbidden, id, codeAdminForbidden, "forbidden", err.Error())
	case errors.Is(err, core.ErrUnknownModule),
		errors.Is(err, access.ErrUnknownRole):
		writeError(w, http.StatusBadRequest, id, codeAdminInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeAdminInternal, "internal_error", err.Error())
	}
}

func (s *Server) decodeModuleParams(w http.ResponseWriter, req *RPCRequest) (adminModuleParams, [20]byte, bool) {
	var params adminModuleParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "exactly one parameter object expected")
		return params, [20]byte{}, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return params, [20]byte{}, false
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return params, [20]byte{}, false
	}
	return params, caller, true
}

func (s *Server) handleAdminPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := s.decodeModuleParams(w, req)
	if !ok {
		return
	}
	if err := s.node.Pause(caller, params.Module); err != nil {
		writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleAdminUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := s.decodeModuleParams(w, req)
	if !ok {
		return
	}
	if err := s.node.Unpause(caller, params.Module); err != nil {
		writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleAdminEmergencyWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var params adminWithdrawParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient := caller
	if params.Recipient != "" {
		recipient, err = parseBech32Address(params.Recipient)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	total, err := s.node.EmergencyWithdraw(caller, recipient)
	if err != nil {
		writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, adminWithdrawResult{
		Amount:    total.String(),
		Recipient: encodeAddress(recipient),
	})
}

func (s *Server) decodeRoleParams(w http.ResponseWriter, req *RPCRequest) (adminRoleParams, [20]byte, []byte, bool) {
	var params adminRoleParams
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", "exactly one parameter object expected")
		return params, [20]byte{}, nil, false
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return params, [20]byte{}, nil, false
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return params, [20]byte{}, nil, false
	}
	target, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAdminInvalidParams, "invalid_params", err.Error())
		return params, [20]byte{}, nil, false
	}
	return params, caller, target[:], true
}

func (s *Server) handleAdminGrantRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, target, ok := s.decodeRoleParams(w, req)
	if !ok {
		return
	}
	if err := s.node.GrantRole(caller, params.Role, target); err != nil {
		writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleAdminRevokeRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, target, ok := s.decodeRoleParams(w, req)
	if !ok {
		return
	}
	if err := s.node.RevokeRole(caller, params.Role, target); err != nil {
		writeAdminError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
