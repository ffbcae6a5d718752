package bridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/storekit/wallet-bridge/internal/bridge"
	"github.com/storekit/wallet-bridge/internal/events"
	"github.com/storekit/wallet-bridge/internal/gateway"
	"github.com/storekit/wallet-bridge/internal/negotiation"
	"github.com/storekit/wallet-bridge/internal/prefetch"
	"github.com/storekit/wallet-bridge/internal/present"
	"github.com/storekit/wallet-bridge/internal/wallet"
)

type fakeGateway struct {
	info     wallet.TransactionInfo
	infoErr  error
	totals   gateway.Totals
	redirect string
	authErr  error
}

func (g *fakeGateway) FetchTransactionInfo(_ context.Context, _ gateway.CallContext) (wallet.TransactionInfo, error) {
	return g.info, g.infoErr
}

func (g *fakeGateway) RecalculateTotals(_ context.Context, _ gateway.CallContext, _ *wallet.ShippingAddress, _ string) (gateway.Totals, error) {
	return g.totals, nil
}

func (g *fakeGateway) AuthorizePayment(_ context.Context, _ gateway.CallContext, _ wallet.PaymentData) (string, error) {
	return g.redirect, g.authErr
}

func testBuilder() wallet.DescriptorBuilder {
	return wallet.DescriptorBuilder{
		MerchantID:        "merchant-1",
		MerchantName:      "Test Shop",
		GatewayID:         "examplegateway",
		GatewayMerchantID: "shop-42",
		CardNetworks:      []string{"VISA"},
		AuthMethods:       []string{"PAN_ONLY"},
	}
}

func newTestServer(t *testing.T, gw negotiation.Gateway, cache *prefetch.Cache) *httptest.Server {
	t.Helper()
	queue := present.NewQueue(0)
	relay := bridge.NewRelay(queue, 2*time.Second)
	registry := negotiation.NewRegistry(0)
	orch := negotiation.New(negotiation.Config{
		Provider:  relay,
		Gateway:   gw,
		Presenter: queue,
		Builder:   testBuilder(),
		Sessions:  registry,
		Events:    events.NewBus(),
		Logger:    zerolog.Nop(),
	})
	h := &bridge.Handler{
		Registry:     registry,
		Orchestrator: orch,
		Relay:        relay,
		Queue:        queue,
		Prefetch:     cache,
		Builder:      testBuilder(),
		Validate:     validator.New(),
		Log:          zerolog.Nop(),
	}

	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{id}/commands", h.Commands)
	r.Post("/sessions/{id}/ready", h.Ready)
	r.Post("/sessions/{id}/click", h.Click)
	r.Post("/sessions/{id}/callbacks/data", h.DataCallback)
	r.Post("/sessions/{id}/callbacks/authorize", h.AuthorizeCallback)
	r.Post("/sessions/{id}/close", h.Close)
	r.Get("/prefetch", h.PrefetchRequest)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

type commandsResp struct {
	State    string            `json:"state"`
	Commands []present.Command `json:"commands"`
}

// pollFor drains the command queue until a command of the wanted type shows
// up or the deadline passes.
func pollFor(t *testing.T, srv *httptest.Server, sessionID string, want present.CommandType) ([]present.Command, present.Command) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var seen []present.Command
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/sessions/" + sessionID + "/commands")
		require.NoError(t, err)
		var cr commandsResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&cr))
		resp.Body.Close()
		seen = append(seen, cr.Commands...)
		for _, cmd := range cr.Commands {
			if cmd.Type == want {
				return seen, cmd
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("command %q never arrived; saw %v", want, seen)
	return nil, present.Command{}
}

func createSession(t *testing.T, srv *httptest.Server, surface string) string {
	t.Helper()
	resp, body := postJSON(t, srv.URL+"/sessions", map[string]any{
		"surface":   surface,
		"productId": "sku-1",
		"nonces":    map[string]string{"checkout": "n1"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sr struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(body, &sr))
	require.NotEmpty(t, sr.SessionID)
	return sr.SessionID
}

func TestCreateSessionRejectsUnknownSurface(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGateway{}, prefetch.NewCache(nil, 0))
	resp, _ := postJSON(t, srv.URL+"/sessions", map[string]any{"surface": "sidebar"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNegotiationRoundTripOverHTTP(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		info: wallet.TransactionInfo{TotalPrice: "42.00", CurrencyCode: "USD", TotalPriceStatus: wallet.PriceFinal},
		totals: gateway.Totals{
			Info:            wallet.TransactionInfo{TotalPrice: "47.50", CurrencyCode: "USD", TotalPriceStatus: wallet.PriceFinal},
			ShippingOptions: []wallet.ShippingOption{{ID: "std", Label: "Standard"}},
			DefaultOptionID: "std",
		},
		redirect: "/thank-you",
	}
	srv := newTestServer(t, gw, prefetch.NewCache(nil, 0))
	id := createSession(t, srv, "product")

	// The probe arrives as a queued command; the page answers it.
	_, probe := pollFor(t, srv, id, present.CmdReadyCheck)
	var probeReq wallet.ReadinessRequest
	require.NoError(t, json.Unmarshal(probe.Request, &probeReq))
	require.NotEmpty(t, probeReq.AllowedPaymentMethods)

	resp, _ := postJSON(t, srv.URL+"/sessions/"+id+"/ready", map[string]any{"ready": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pollFor(t, srv, id, present.CmdShowButton)

	resp, _ = postJSON(t, srv.URL+"/sessions/"+id+"/click", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	seen, open := pollFor(t, srv, id, present.CmdOpenSheet)
	require.Equal(t, present.CmdSetBusy, seen[0].Type, "busy engages before the sheet request")
	var sheetReq wallet.PaymentDataRequest
	require.NoError(t, json.Unmarshal(open.Request, &sheetReq))
	require.Equal(t, "42.00", sheetReq.TransactionInfo.TotalPrice)

	resp, body := postJSON(t, srv.URL+"/sessions/"+id+"/callbacks/data", wallet.IntermediatePaymentData{
		CallbackTrigger: wallet.IntentShippingAddressChanged,
		ShippingAddress: &wallet.ShippingAddress{CountryCode: "US", PostalCode: "94043"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res wallet.DataResolution
	require.NoError(t, json.Unmarshal(body, &res))
	require.Nil(t, res.Error)
	require.Equal(t, "47.50", res.Update.NewTransactionInfo.TotalPrice)

	resp, body = postJSON(t, srv.URL+"/sessions/"+id+"/callbacks/authorize", wallet.PaymentData{
		PaymentMethodData: []byte(`{"token":"tok"}`),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auth wallet.AuthorizationResult
	require.NoError(t, json.Unmarshal(body, &auth))
	require.Equal(t, wallet.TxStateSuccess, auth.TransactionState)

	_, nav := pollFor(t, srv, id, present.CmdNavigate)
	require.Equal(t, "/thank-you", nav.Target)
}

func TestNotReadyAnswerLeavesSessionIdle(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGateway{}, prefetch.NewCache(nil, 0))
	id := createSession(t, srv, "cart")

	pollFor(t, srv, id, present.CmdReadyCheck)
	resp, _ := postJSON(t, srv.URL+"/sessions/"+id+"/ready", map[string]any{"ready": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/sessions/" + id + "/commands")
		if err != nil {
			return false
		}
		var cr commandsResp
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&cr); err != nil {
			return false
		}
		for _, cmd := range cr.Commands {
			require.NotEqual(t, present.CmdShowButton, cmd.Type)
		}
		return cr.State == string(negotiation.StateIdle)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestClickOnUnknownSessionIs404(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGateway{}, prefetch.NewCache(nil, 0))
	resp, _ := postJSON(t, srv.URL+"/sessions/nope/click", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrefetchServesEstimateTaggedRequest(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := prefetch.NewCache(client, time.Minute)
	require.NoError(t, cache.Store(context.Background(), "product", "sku-1",
		wallet.TransactionInfo{TotalPrice: "42.00", CurrencyCode: "USD", TotalPriceStatus: wallet.PriceFinal}))

	srv := newTestServer(t, &fakeGateway{}, cache)

	resp, err := http.Get(srv.URL + "/prefetch?surface=product&productId=sku-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var req wallet.PaymentDataRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&req))
	require.Equal(t, wallet.PriceEstimated, req.TransactionInfo.TotalPriceStatus)

	miss, err := http.Get(srv.URL + "/prefetch?surface=cart")
	require.NoError(t, err)
	miss.Body.Close()
	require.Equal(t, http.StatusNoContent, miss.StatusCode)
}

func TestReplayGuardRejectsDuplicateNonce(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := bridge.ReplayGuard{R: client, TTL: time.Minute}
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := httptest.NewServer(guard.Middleware(inner))
	t.Cleanup(srv.Close)

	do := func(nonce string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
		require.NoError(t, err)
		if nonce != "" {
			req.Header.Set("X-Callback-Nonce", nonce)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, do("n-1"))
	require.Equal(t, http.StatusConflict, do("n-1"))
	require.Equal(t, http.StatusOK, do("n-2"))
	require.Equal(t, http.StatusOK, do(""), "missing nonce passes through")
}
