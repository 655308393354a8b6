package availability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-cascade/internal/schedule"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

func newTestGateway(t *testing.T, cfg HTTPGatewayConfig, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	cfg.BaseURL = ts.URL
	return NewHTTPGateway(cfg, logging.Default())
}

func TestHTTPGateway_FetchSpecialties(t *testing.T) {
	gw := newTestGateway(t, HTTPGatewayConfig{}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/especialidades" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"nombre":"Cardiologia"},{"id":"2","name":"Pediatria"},{"id":3}]`))
	})

	got, err := gw.FetchSpecialties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Specialty{{ID: "1", Name: "Cardiologia"}, {ID: "2", Name: "Pediatria"}}, got)
}

func TestHTTPGateway_FetchSpecialties_WrappedBody(t *testing.T) {
	gw := newTestGateway(t, HTTPGatewayConfig{}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"7","name":"Urologia"}]}`))
	})

	got, err := gw.FetchSpecialties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Specialty{{ID: "7", Name: "Urologia"}}, got)
}

func TestHTTPGateway_FetchProviders_FilteredMode(t *testing.T) {
	gw := newTestGateway(t, HTTPGatewayConfig{}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/medicos-por-especialidad" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("idEspecialidad"); got != "1" {
			t.Fatalf("idEspecialidad = %s", got)
		}
		// One record leaks from another specialty and must be dropped.
		_, _ = w.Write([]byte(`[
			{"id":10,"nombre":"Ana","apellido":"Torres"},
			{"id":11,"nombre":"Luis","apellido":"Paz","especialidad":{"id":1,"nombre":"Cardiologia"}},
			{"id":12,"fullName":"Rosa Vega","specialtyId":"2"}
		]`))
	})

	got, err := gw.FetchProviders(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []Provider{
		{ID: "10", FullName: "Ana Torres", SpecialtyID: "1"},
		{ID: "11", FullName: "Luis Paz", SpecialtyID: "1"},
	}, got)
}

func TestHTTPGateway_FetchProviders_CatalogMode(t *testing.T) {
	gw := newTestGateway(t, HTTPGatewayConfig{ProviderMode: ProviderModeCatalog}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/medicos" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`[
			{"id":"a","fullName":"Dr A","specialtyId":"1"},
			{"id":"b","fullName":"Dr B","specialtyId":"2"},
			{"id":"c","fullName":"Dr C"}
		]`))
	})

	got, err := gw.FetchProviders(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, []Provider{{ID: "b", FullName: "Dr B", SpecialtyID: "2"}}, got)
}

func TestHTTPGateway_FetchProviders_EmptySpecialty(t *testing.T) {
	gw := NewHTTPGateway(HTTPGatewayConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := gw.FetchProviders(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestHTTPGateway_FetchSlots_Modes(t *testing.T) {
	body := `[
		{"hora":"15:00:00","disponible":true},
		{"hora":"09:30"},
		{"time":"11:00","available":false},
		{"hora":"15:00","disponible":true},
		{"hora":"nonsense"}
	]`
	date := schedule.Date{Year: 2026, Month: 3, Day: 2}

	tests := []struct {
		mode SlotMode
		want []string
	}{
		{mode: SlotModeFlagged, want: []string{"09:30", "15:00"}},
		{mode: SlotModeStrict, want: []string{"15:00"}},
		{mode: SlotModePrefiltered, want: []string{"09:30", "11:00", "15:00"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			gw := newTestGateway(t, HTTPGatewayConfig{SlotMode: tt.mode}, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/horarios-disponibles" {
					t.Fatalf("path = %s", r.URL.Path)
				}
				assert.Equal(t, "p-1", r.URL.Query().Get("idMedico"))
				assert.Equal(t, "2026-03-02", r.URL.Query().Get("fechaCita"))
				_, _ = w.Write([]byte(body))
			})

			got, err := gw.FetchSlots(context.Background(), "p-1", date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, schedule.Times(got))
		})
	}
}

func TestHTTPGateway_Non2xxIsNetworkError(t *testing.T) {
	gw := newTestGateway(t, HTTPGatewayConfig{}, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	})

	_, err := gw.FetchSpecialties(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrDecode)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
	assert.Equal(t, ResourceSpecialties, fetchErr.Resource)
}

func TestHTTPGateway_MalformedBodyIsDecodeError(t *testing.T) {
	gw := newTestGateway(t, HTTPGatewayConfig{}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})

	_, err := gw.FetchProviders(context.Background(), "1")
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, OutcomeDecode, Outcome(err))
}

func TestHTTPGateway_UnreachableIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	gw := NewHTTPGateway(HTTPGatewayConfig{BaseURL: url}, nil)
	_, err := gw.FetchSlots(context.Background(), "p-1", schedule.Date{Year: 2026, Month: 3, Day: 2})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, OutcomeNetwork, Outcome(err))
}
