package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/rollcall/internal/adapters/http/api"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/capture"
	"github.com/okian/rollcall/internal/domain/engagement"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDependencies struct {
	startErr  error
	session   model.CaptureSession
	open      bool
	view      types.View
	viewErr   error
	status    types.Status
	statusErr error
}

func (m *mockDependencies) StartSession(_ context.Context) (model.CaptureSession, error) {
	if m.startErr != nil {
		return model.CaptureSession{}, m.startErr
	}
	m.open = true
	return m.session, nil
}

func (m *mockDependencies) StopSession(_ context.Context) bool {
	was := m.open
	m.open = false
	return was
}

func (m *mockDependencies) View(_ context.Context) (types.View, error) {
	return m.view, m.viewErr
}

func (m *mockDependencies) Status(_ context.Context) (types.Status, error) {
	return m.status, m.statusErr
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func serve(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		deps := &mockDependencies{
			session: model.CaptureSession{ID: uuid.New(), Active: true, Source: "dir:/frames", StartedAt: ts},
			view: types.View{
				RecognitionView: model.RecognitionView{
					LiveIdentities: []string{"S1", "S2"},
					LiveCapturedAt: ts,
					RecentEvents:   []model.LogEvent{{IdentityID: "S1", Timestamp: ts, EngagementScore: 90}},
				},
				Engagement: engagement.Summary{Events: 1, DistinctIdentities: 1, AverageEngagement: 90, Engaged: 1},
			},
			status: types.Status{ScanStatus: model.ScanMatched, Armed: true, Generation: 1},
		}
		stats := &mockStatsProvider{stats: map[string]interface{}{"started": true, "queueLength": 0}}
		mux := http.NewServeMux()
		api.NewServer(deps, stats).Register(context.Background(), mux)

		Convey("When the health endpoint is scraped", func() {
			w := serve(mux, http.MethodGet, "/healthz")

			Convey("Then metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When stats are requested", func() {
			w := serve(mux, http.MethodGet, "/stats")

			Convey("Then the provider's stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got["started"], ShouldEqual, true)
			})
		})

		Convey("When a session is started", func() {
			w := serve(mux, http.MethodPost, "/session")

			Convey("Then it is created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var got struct {
					Session model.CaptureSession `json:"session"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Session.ID, ShouldResemble, deps.session.ID)
				So(got.Session.Source, ShouldEqual, "dir:/frames")
			})

			Convey("And then stopped", func() {
				w := serve(mux, http.MethodDelete, "/session")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"stopped":true`)

				again := serve(mux, http.MethodDelete, "/session")
				So(again.Body.String(), ShouldContainSubstring, `"stopped":false`)
			})
		})

		Convey("When activation fails", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{fmt.Errorf("%w: %w", service.ErrActivation, capture.ErrPermissionDenied), http.StatusForbidden, "permission_denied"},
				{fmt.Errorf("%w: %w", service.ErrActivation, capture.ErrNoDevice), http.StatusServiceUnavailable, "no_device"},
				{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
				{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
			}

			Convey("Then the error is mapped to a status and code", func() {
				for _, tc := range cases {
					deps.startErr = tc.err
					w := serve(mux, http.MethodPost, "/session")
					So(w.Code, ShouldEqual, tc.status)

					var body errorBody
					So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
					So(body.Code, ShouldEqual, tc.code)
					So(body.Message, ShouldEqual, tc.err.Error())
				}
			})
		})

		Convey("When the view is requested", func() {
			w := serve(mux, http.MethodGet, "/view")

			Convey("Then live identities, recent events and the summary are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got["live_identities"], ShouldResemble, []any{"S1", "S2"})
				So(got["recent_events"], ShouldHaveLength, 1)
				So(got["engagement"].(map[string]any)["engaged"], ShouldEqual, 1.0)
			})
		})

		Convey("When the view is requested before the service started", func() {
			deps.viewErr = service.ErrNotStarted
			w := serve(mux, http.MethodGet, "/view")

			Convey("Then 503 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When the status is requested", func() {
			w := serve(mux, http.MethodGet, "/status")

			Convey("Then the scan status is named", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"scan_status":"matched"`)
				So(w.Body.String(), ShouldContainSubstring, `"armed":true`)
			})
		})

		Convey("When a route is called with the wrong method", func() {
			Convey("Then 405 is returned with the allowed methods", func() {
				w := serve(mux, http.MethodPut, "/session")
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Values("Allow"), ShouldResemble, []string{http.MethodPost, http.MethodDelete})

				So(serve(mux, http.MethodPost, "/view").Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(serve(mux, http.MethodPost, "/status").Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(serve(mux, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped with the metrics middleware", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}, "teapot")

		Convey("When it is called", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/teapot", http.NoBody))

			Convey("Then the response passes through unchanged", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
				So(w.Body.String(), ShouldEqual, "short and stout")
			})
		})
	})
}
