// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

//go:build integration

package handshake_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/waygate/waygate/internal/api"
	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/internal/region"
)

var _ = Describe("Login handshake over HTTP", func() {
	var (
		up  *upstream
		gw  *httptest.Server
		reg *backend.Registry
	)

	BeforeEach(func() {
		up = startUpstream()
		reg = backend.NewRegistry(
			backend.WithHTTPClient(up.srv.Client()),
			backend.WithConfigURL(region.EN, up.srv.URL+"/config"),
			backend.WithConfigURL(region.KR, up.srv.URL+"/config"),
		)
		dispatcher, err := backend.NewDispatcher(reg)
		Expect(err).NotTo(HaveOccurred())

		factory := func(rg region.Region) (provider.AuthProvider, error) {
			return provider.New(provider.Deps{
				Dispatcher:  dispatcher,
				Versions:    reg,
				PassportURL: up.srv.URL + "/passport",
			}, rg)
		}
		srv, err := api.NewServer(factory)
		Expect(err).NotTo(HaveOccurred())
		gw = httptest.NewServer(srv)
	})

	AfterEach(func() {
		gw.Close()
		up.srv.Close()
	})

	post := func(path, body string) (*http.Response, map[string]any) {
		resp, err := http.Post(gw.URL+path, "application/json", strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var out map[string]any
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
		return resp, out
	}

	Describe("code login", func() {
		It("walks every step in order and returns the channel token", func() {
			resp, body := post("/v1/auth/login", `{"email":"user@example.com","code":"123456"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("channelUid", "chan-9"))
			Expect(body).To(HaveKeyWithValue("token", "chan-token"))
			Expect(resp.Header.Get(api.HeaderRequestID)).NotTo(BeEmpty())

			Expect(up.paths()).To(ContainElements(
				"/passport"+provider.PathAuthSubmit,
				"/passport"+provider.PathCreateLogin,
				"/passport"+provider.PathUserLogin,
				"/config",
				"/u8/"+provider.PathU8Token,
				"/hv/Android/version",
				"/gs/"+provider.PathGameLogin,
			))
		})

		It("loads the network and version config once across handshakes", func() {
			for range 3 {
				resp, _ := post("/v1/auth/login", `{"email":"user@example.com","code":"123456"}`)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			}

			var configLoads, versionLoads int
			for _, p := range up.paths() {
				switch p {
				case "/config":
					configLoads++
				case "/hv/Android/version":
					versionLoads++
				}
			}
			Expect(configLoads).To(Equal(1))
			Expect(versionLoads).To(Equal(1))

			v, ok := reg.Version(region.EN)
			Expect(ok).To(BeTrue())
			Expect(v.ResVersion).To(Equal("res-int"))
		})

		It("maps a provider rejection to provider_rejected and stops", func() {
			up.rejectPath("/u8/" + provider.PathU8Token)

			resp, body := post("/v1/auth/login", `{"email":"user@example.com","code":"123456"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(body).To(HaveKeyWithValue("code", api.PublicProviderRejected))
			Expect(body).To(HaveKeyWithValue("requestId", resp.Header.Get(api.HeaderRequestID)))
			Expect(up.paths()).NotTo(ContainElement("/gs/" + provider.PathGameLogin))
		})

		It("serves other regions of the same family", func() {
			resp, _ := post("/v1/auth/login", `{"email":"user@example.com","code":"1","region":"kr"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			_, ok := reg.Endpoint(region.KR, backend.ServiceGame)
			Expect(ok).To(BeTrue())
		})

		It("reports unimplemented families without touching upstream", func() {
			resp, body := post("/v1/auth/login", `{"email":"user@example.com","code":"1","region":"cn"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusNotImplemented))
			Expect(body).To(HaveKeyWithValue("code", api.PublicNotImplemented))
			Expect(up.paths()).To(BeEmpty())
		})
	})

	Describe("guest login", func() {
		It("gives concurrent handshakes their own device", func() {
			const n = 5
			var wg sync.WaitGroup
			codes := make(chan int, n)
			for range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					resp, err := http.Post(gw.URL+"/v1/auth/guest", "application/json", nil)
					Expect(err).NotTo(HaveOccurred())
					_ = resp.Body.Close()
					codes <- resp.StatusCode
				}()
			}
			wg.Wait()
			close(codes)
			for code := range codes {
				Expect(code).To(Equal(http.StatusOK))
			}

			devices := map[any]bool{}
			for _, b := range up.bodiesFor("/passport" + provider.PathGuestCreate) {
				devices[b["deviceId"]] = true
			}
			Expect(devices).To(HaveLen(n))
		})
	})

	Describe("code request", func() {
		It("passes the provider response through", func() {
			resp, body := post("/v1/auth/code", `{"email":"user@example.com"}`)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("result", BeNumerically("==", 0)))
		})
	})
})
