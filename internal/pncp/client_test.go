package pncp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(page int) PageRequest {
	return PageRequest{
		Endpoint:     EndpointPublication,
		DateStart:    "20240101",
		DateEnd:      "20240102",
		ModalityCode: 6,
		Page:         page,
		PageSize:     50,
	}
}

func TestFetchPage_SendsRequiredParams(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"totalPaginas":0,"empty":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	_, err := client.FetchPage(context.Background(), testRequest(3))
	require.NoError(t, err)

	assert.Equal(t, "/v1/contratacoes/publicacao", gotPath)
	assert.Equal(t, "20240101", gotQuery["dataInicial"])
	assert.Equal(t, "20240102", gotQuery["dataFinal"])
	assert.Equal(t, "6", gotQuery["codigoModalidadeContratacao"])
	assert.Equal(t, "3", gotQuery["pagina"])
	assert.Equal(t, "50", gotQuery["tamanhoPagina"])
}

func TestFetchPage_UpdateEndpointPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	req := testRequest(1)
	req.Endpoint = EndpointUpdate
	_, err := client.FetchPage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "/v1/contratacoes/atualizacao", gotPath)
}

func TestFetchPage_NoContentIsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	page, err := client.FetchPage(context.Background(), testRequest(1))
	require.NoError(t, err)
	assert.True(t, page.Empty)
	assert.Empty(t, page.Records)
}

func TestFetchPage_ParsesRecordsAndTotalPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{
					"numeroControlePNCP": "00394460000141-1-000001/2024",
					"objetoCompra": "AQUISIÇÃO DE MATERIAL",
					"valorTotalEstimado": 150000.50,
					"dataAtualizacaoGlobal": "2024-01-15T10:30:00",
					"amparoLegal": {"codigo": 1, "nome": "Lei 14.133"},
					"unidadeOrgao": {"codigoUnidade": "1234"},
					"orgaoEntidade": {"cnpj": "00394460000141"}
				}
			],
			"totalPaginas": 7,
			"empty": false
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	page, err := client.FetchPage(context.Background(), testRequest(1))
	require.NoError(t, err)

	assert.False(t, page.Empty)
	assert.Equal(t, 7, page.TotalPages)
	require.Len(t, page.Records, 1)

	rec := page.Records[0]
	assert.Equal(t, "00394460000141-1-000001/2024", rec.ControlNumber)
	require.NotNil(t, rec.EstimatedTotalValue)
	assert.Equal(t, 150000.50, *rec.EstimatedTotalValue)
	require.NotNil(t, rec.LegalBasis)
	assert.Equal(t, 1, rec.LegalBasis.Code)
	require.NotNil(t, rec.Unit)
	assert.Equal(t, "1234", rec.Unit.UnitCode)
	require.NotNil(t, rec.Entity)
	assert.Equal(t, "00394460000141", rec.Entity.TaxID)
}

func TestFetchPage_SingleObjectDataNormalized(t *testing.T) {
	// The source sometimes returns data as a bare object instead of an
	// array when one record matches.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {"numeroControlePNCP": "x-1-000001/2024"},
			"totalPaginas": 1
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	page, err := client.FetchPage(context.Background(), testRequest(1))
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "x-1-000001/2024", page.Records[0].ControlNumber)
}

func TestFetchPage_EmptyDataArrayIsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"totalPaginas":0}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	page, err := client.FetchPage(context.Background(), testRequest(1))
	require.NoError(t, err)
	assert.True(t, page.Empty)
}

func TestFetchPage_ErrorStatusIncludesCode(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"erro"}`))
		}))

		client := NewClient(srv.URL, 5*time.Second, nil)
		_, err := client.FetchPage(context.Background(), testRequest(1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http status")
		srv.Close()
	}
}

func TestFetchPage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, nil)
	_, err := client.FetchPage(context.Background(), testRequest(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}
