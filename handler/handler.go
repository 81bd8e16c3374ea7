package handler

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/cidutil"
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/ecrecover"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
	"github.com/xellDart/ERC721-IP/service"
)

type Server struct {
	reg *service.Registry
}

// claimRequest is the body of recover, digest and mint. Signature is
// 0x-prefixed r||s||v hex and is ignored by digest.
type claimRequest struct {
	Owner     model.Address `json:"owner"`
	OwnerName string        `json:"ownerName"`
	Title     string        `json:"title"`
	Creation  int64         `json:"creation"`
	Contents  []string      `json:"contents"`
	Signature string        `json:"signature"`
}

func (c claimRequest) claim() service.Claim {
	return service.Claim{
		Owner:     c.Owner,
		OwnerName: c.OwnerName,
		Title:     c.Title,
		Creation:  c.Creation,
		Contents:  c.Contents,
	}
}

type certificateResponse struct {
	Digest   model.Digest  `json:"digest"`
	CID      string        `json:"cid"`
	Owner    model.Address `json:"owner"`
	Schema   string        `json:"schema,omitempty"`
	MintedAt *time.Time    `json:"mintedAt,omitempty"`
}

// New returns a ready Server instance.
func New(reg *service.Registry) *Server { return &Server{reg: reg} }

func (s *Server) Recover(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	sig, err := ecrecover.ParseSignatureHex(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	signer, err := s.reg.RecoverSigner(r.Context(), req.claim(), sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signer": signer})
}

func (s *Server) Digest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	d, err := s.reg.GenerateDigest(req.claim())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"digest": d, "cid": cidutil.String(d)})
}

// SigningHash returns the EIP-712 hash a wallet must sign for the claim.
func (s *Server) SigningHash(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	h, err := s.reg.Options().SigningHash(req.claim())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hash": "0x" + hex.EncodeToString(h[:])})
}

func (s *Server) Mint(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	sig, err := ecrecover.ParseSignatureHex(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	cert, err := s.reg.Mint(r.Context(), req.claim(), sig)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(cert))
}

func (s *Server) Certificate(w http.ResponseWriter, r *http.Request) {
	d, err := cidutil.ParseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		writeError(w, err)
		return
	}
	cert, err := s.reg.Certificate(r.Context(), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(cert))
}

func (s *Server) OwnerOf(w http.ResponseWriter, r *http.Request) {
	d, err := cidutil.ParseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := s.reg.OwnerOf(r.Context(), d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"digest": d, "owner": owner})
}

func (s *Server) BalanceOf(w http.ResponseWriter, r *http.Request) {
	a, err := model.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := s.reg.BalanceOf(r.Context(), a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": a, "balance": n})
}

func (s *Server) Symbol(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"symbol": s.reg.Symbol(), "name": s.reg.Name()})
}

// Domain publishes what a wallet needs to build the typed data itself.
func (s *Server) Domain(w http.ResponseWriter, r *http.Request) {
	opts := s.reg.Options()
	types, err := attest.SigningTypes(opts.Schema)
	if err != nil {
		writeError(w, err)
		return
	}
	types["EIP712Domain"] = typeddata.DomainFields()
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":      opts.Domain,
		"issuer":      map[string]any{"name": opts.Issuer.Name, "wallet": opts.Issuer.Wallet},
		"schema":      opts.Schema,
		"primaryType": "IPP",
		"types":       types,
	})
}

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Stats())
}

func toResponse(c *model.Certificate) certificateResponse {
	mintedAt := c.MintedAt
	return certificateResponse{
		Digest:   c.Digest,
		CID:      cidutil.String(c.Digest),
		Owner:    c.Owner,
		Schema:   c.Schema,
		MintedAt: &mintedAt,
	}
}

func decodeClaim(w http.ResponseWriter, r *http.Request) (claimRequest, bool) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindInput:
		status = http.StatusBadRequest
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindNotFound:
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
