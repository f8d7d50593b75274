package pncp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Endpoint selects which consulta listing the fetcher pages through.
type Endpoint string

const (
	// EndpointPublication lists tenders by publication date; drives the
	// first-ingest (create) path.
	EndpointPublication Endpoint = "publicacao"
	// EndpointUpdate lists tenders by update date; drives the delta-sync path.
	EndpointUpdate Endpoint = "atualizacao"
)

// ModalityCodes are the known contract-modality classifiers, iterated
// sequentially by the sync walk.
var ModalityCodes = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}

// DefaultPageSize is the fixed tamanhoPagina sent on every page request.
const DefaultPageSize = 50

// PageRequest identifies one page of one (endpoint, range, modality) walk.
type PageRequest struct {
	Endpoint     Endpoint
	DateStart    string // AAAAMMDD
	DateEnd      string // AAAAMMDD
	ModalityCode int
	Page         int
	PageSize     int
}

// Page is the normalized payload of one consulta response.
type Page struct {
	Empty      bool
	TotalPages int
	Records    []Record
}

// Record is a raw tender row as returned by the consulta API.
type Record struct {
	ControlNumber       string         `json:"numeroControlePNCP"`
	PurchaseNumber      string         `json:"numeroCompra"`
	PurchaseYear        int            `json:"anoCompra"`
	PurchaseSequence    int            `json:"sequencialCompra"`
	Process             string         `json:"processo"`
	ModalityID          int            `json:"modalidadeId"`
	ModalityName        string         `json:"modalidadeNome"`
	InstrumentTypeName  string         `json:"tipoInstrumentoConvocatorioNome"`
	StatusID            int            `json:"situacaoCompraId"`
	StatusName          string         `json:"situacaoCompraNome"`
	PurchaseObject      string         `json:"objetoCompra"`
	EstimatedTotalValue *float64       `json:"valorTotalEstimado"`
	ApprovedTotalValue  *float64       `json:"valorTotalHomologado"`
	InclusionDate       string         `json:"dataInclusao"`
	PublicationDate     string         `json:"dataPublicacaoPncp"`
	UpdateDate          string         `json:"dataAtualizacao"`
	ProposalOpeningDate string         `json:"dataAberturaProposta"`
	ProposalClosingDate string         `json:"dataEncerramentoProposta"`
	DisputeModeID       int            `json:"modoDisputaId"`
	DisputeModeName     string         `json:"modoDisputaNome"`
	SRP                 bool           `json:"srp"`
	UserName            string         `json:"usuarioNome"`
	SourceSystemLink    string         `json:"linkSistemaOrigem"`
	EProcessLink        string         `json:"linkProcessoEletronico"`
	GlobalUpdateDate    string         `json:"dataAtualizacaoGlobal"`
	LegalBasis          *LegalBasisRef `json:"amparoLegal"`
	Unit                *UnitRef       `json:"unidadeOrgao"`
	Entity              *EntityRef     `json:"orgaoEntidade"`
}

// LegalBasisRef is the embedded statutory-basis reference.
type LegalBasisRef struct {
	Code        int    `json:"codigo"`
	Name        string `json:"nome"`
	Description string `json:"descricao"`
}

// UnitRef is the embedded organizational-unit reference.
type UnitRef struct {
	UnitCode  string `json:"codigoUnidade"`
	Name      string `json:"nomeUnidade"`
	City      string `json:"municipioNome"`
	StateName string `json:"ufNome"`
	StateAbbr string `json:"ufSigla"`
	IBGECode  string `json:"codigoIbge"`
}

// EntityRef is the embedded contracting-entity reference.
type EntityRef struct {
	TaxID      string `json:"cnpj"`
	Name       string `json:"razaoSocial"`
	BranchCode string `json:"poderId"`
	SphereCode string `json:"esferaId"`
}

// pageEnvelope mirrors the consulta wire response. The data field is
// normally an array but the source occasionally returns a bare object for
// single-result pages; recordList absorbs both shapes.
type pageEnvelope struct {
	Data       recordList `json:"data"`
	TotalPages int        `json:"totalPaginas"`
	Empty      bool       `json:"empty"`
}

type recordList []Record

func (l *recordList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return fmt.Errorf("decode record array: %w", err)
		}
		*l = records
		return nil
	}
	var single Record
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return fmt.Errorf("decode single record: %w", err)
	}
	*l = recordList{single}
	return nil
}
