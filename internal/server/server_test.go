package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/metrics"
	"github.com/zombor/receipt-keeper/internal/models"
	"github.com/zombor/receipt-keeper/internal/receipt"
	"github.com/zombor/receipt-keeper/internal/scanning"
	"github.com/zombor/receipt-keeper/internal/store"
)

var _ = Describe("Server", func() {
	var (
		db          *store.Store
		scanner     *mockScanner
		sessions    *auth.Sessions
		m           *metrics.Metrics
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		var err error
		db, err = store.Open(filepath.Join(GinkgoT().TempDir(), "server.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		scanner = &mockScanner{receiptData: &scanning.ReceiptData{
			StoreName:   "Target",
			TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("42.75")),
			Currency:    "USD",
			Date:        "2024-01-15",
			Category:    "Grocery",
		}}
		sessions = auth.NewSessions([]byte("test-secret"), time.Hour, 10*time.Minute)
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)

		server := NewServer(Deps{
			Receipts: receipt.NewService(db, scanner),
			Accounts: auth.NewService(db, auth.SHA256Hasher{}, nil),
			Sessions: sessions,
			Health:   db,
			Metrics:  m,
			Gatherer: reg,
		})

		ghttpServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "DELETE", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
		DeferCleanup(ghttpServer.Close)
	})

	do := func(method, path, token string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, ghttpServer.URL()+path, reader)
		Expect(err).NotTo(HaveOccurred())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	decode := func(resp *http.Response, v any) {
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	errorOf := func(resp *http.Response) string {
		var body map[string]string
		decode(resp, &body)
		return body["error"]
	}

	register := func(email string) string {
		resp := do("POST", "/api/auth/register", "", map[string]string{
			"name":              "Ann",
			"email":             email,
			"password":          "Passw0rd!",
			"security_question": "pet",
			"security_answer":   "Rex ",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var session sessionResponse
		decode(resp, &session)
		return session.Token
	}

	upload := func(token, filename, contentType string, data []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		part.Write(data)
		Expect(mw.Close()).To(Succeed())

		req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/receipts/scan", &buf)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			resp := do("OPTIONS", "/api/receipts", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(ContainSubstring("Authorization"))
		})

		It("sets headers on errors", func() {
			resp := do("GET", "/api/receipts", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("handleRegister", func() {
		It("creates the account and signs in", func() {
			token := register("Ann@Example.com")
			resp := do("GET", "/api/auth/me", token, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var me userResponse
			decode(resp, &me)
			Expect(me.Email).To(Equal("ann@example.com"))
			Expect(me.Name).To(Equal("Ann"))
		})

		It("rejects a duplicate email with 409", func() {
			register("a@x.com")
			resp := do("POST", "/api/auth/register", "", map[string]string{
				"name": "Other", "email": " A@X.COM ", "password": "Passw0rd!",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			Expect(errorOf(resp)).To(ContainSubstring("already exists"))
			Expect(testutil.ToFloat64(m.AuthOps.WithLabelValues("register", "rejected"))).To(Equal(1.0))
		})

		It("rejects a weak password with 400", func() {
			resp := do("POST", "/api/auth/register", "", map[string]string{
				"name": "Ann", "email": "a@x.com", "password": "password",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorOf(resp)).To(ContainSubstring("an uppercase letter"))
		})

		It("rejects malformed JSON", func() {
			req, _ := http.NewRequest("POST", ghttpServer.URL()+"/api/auth/register", bytes.NewBufferString("{"))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleLogin", func() {
		BeforeEach(func() {
			register("a@x.com")
		})

		It("signs in with a normalized email", func() {
			resp := do("POST", "/api/auth/login", "", loginRequest{Email: " A@X.com", Password: "Passw0rd!"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var session sessionResponse
			decode(resp, &session)
			Expect(session.Token).NotTo(BeEmpty())
			Expect(session.User.HasRecovery).To(BeTrue())
		})

		It("distinguishes a wrong password", func() {
			resp := do("POST", "/api/auth/login", "", loginRequest{Email: "a@x.com", Password: "passw0rd!"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(errorOf(resp)).To(Equal(auth.ErrIncorrectPassword.Error()))
		})

		It("distinguishes an unknown account", func() {
			resp := do("POST", "/api/auth/login", "", loginRequest{Email: "b@x.com", Password: "Passw0rd!"})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(errorOf(resp)).To(Equal(auth.ErrAccountNotFound.Error()))
		})
	})

	Describe("handleLogout", func() {
		It("revokes the token", func() {
			token := register("a@x.com")
			Expect(do("POST", "/api/auth/logout", token, nil).StatusCode).To(Equal(http.StatusNoContent))
			Expect(do("GET", "/api/auth/me", token, nil).StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("recovery", func() {
		var ticket string

		BeforeEach(func() {
			register("a@x.com")
			resp := do("POST", "/api/recovery/email", "", recoveryRequest{Email: "A@x.com"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body recoveryResponse
			decode(resp, &body)
			Expect(body.Step).To(Equal(auth.StepQuestion))
			Expect(body.Question).To(Equal("pet"))
			ticket = body.Ticket
		})

		It("walks through to a new password", func() {
			resp := do("POST", "/api/recovery/answer", "", recoveryRequest{Ticket: ticket, Answer: "REX"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var body recoveryResponse
			decode(resp, &body)
			Expect(body.Step).To(Equal(auth.StepNewPassword))

			resp = do("POST", "/api/recovery/password", "", recoveryRequest{Ticket: body.Ticket, Password: "NewPass1!"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			Expect(do("POST", "/api/auth/login", "", loginRequest{Email: "a@x.com", Password: "Passw0rd!"}).StatusCode).
				To(Equal(http.StatusUnauthorized))
			Expect(do("POST", "/api/auth/login", "", loginRequest{Email: "a@x.com", Password: "NewPass1!"}).StatusCode).
				To(Equal(http.StatusOK))
		})

		It("keeps the step on a wrong answer", func() {
			resp := do("POST", "/api/recovery/answer", "", recoveryRequest{Ticket: ticket, Answer: "max"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			resp = do("POST", "/api/recovery/answer", "", recoveryRequest{Ticket: ticket, Answer: "rex"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("refuses to skip the answer", func() {
			resp := do("POST", "/api/recovery/password", "", recoveryRequest{Ticket: ticket, Password: "NewPass1!"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("rejects a forged ticket", func() {
			resp := do("POST", "/api/recovery/password", "", recoveryRequest{Ticket: "forged", Password: "NewPass1!"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects accounts without recovery", func() {
			resp := do("POST", "/api/auth/register", "", map[string]string{
				"name": "Bo", "email": "b@x.com", "password": "Passw0rd!",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			resp = do("POST", "/api/recovery/email", "", recoveryRequest{Email: "b@x.com"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("receipts", func() {
		var token string

		BeforeEach(func() {
			token = register("a@x.com")
		})

		scan := func() models.Receipt {
			resp := upload(token, "IMG_0001.jpg", "image/jpeg", []byte("jpeg bytes"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var draft models.Receipt
			decode(resp, &draft)
			return draft
		}

		save := func(draft models.Receipt) *http.Response {
			return do("POST", "/api/receipts", token, draft)
		}

		It("requires a session", func() {
			Expect(do("GET", "/api/receipts", "", nil).StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(do("GET", "/api/receipts", "garbage", nil).StatusCode).To(Equal(http.StatusUnauthorized))
		})

		Describe("handleScanReceipt", func() {
			It("returns an unsaved draft", func() {
				draft := scan()
				Expect(draft.StoreName).To(Equal("TARGET"))
				Expect(draft.UserEmail).To(Equal("a@x.com"))
				Expect(draft.Image).To(Equal([]byte("jpeg bytes")))
				Expect(draft.Total.Amount.String()).To(Equal("42.75"))

				stats, err := db.Stats(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.Receipts).To(BeZero())
				Expect(testutil.ToFloat64(m.Scans.WithLabelValues("ok"))).To(Equal(1.0))
			})

			It("guesses the type from the extension", func() {
				upload(token, "receipt.HEIC", "", []byte("heic bytes"))
				Expect(scanner.lastType).To(Equal("image/heic"))
			})

			It("maps an incomplete scan to 422", func() {
				scanner.scanErr = scanning.ErrIncompleteScan
				resp := upload(token, "a.jpg", "image/jpeg", []byte("x"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(testutil.ToFloat64(m.Scans.WithLabelValues("incomplete"))).To(Equal(1.0))
			})

			It("hides provider failures", func() {
				scanner.scanErr = errors.New("quota exceeded for key abc")
				resp := upload(token, "a.jpg", "image/jpeg", []byte("x"))
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(errorOf(resp)).To(Equal("Internal server error"))
			})

			It("requires a file", func() {
				req, _ := http.NewRequest("POST", ghttpServer.URL()+"/api/receipts/scan", bytes.NewBufferString("x"))
				req.Header.Set("Authorization", "Bearer "+token)
				req.Header.Set("Content-Type", "multipart/form-data; boundary=nothing")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		Describe("handleSaveReceipt", func() {
			It("saves the draft once", func() {
				draft := scan()
				resp := save(draft)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var saved models.Receipt
				decode(resp, &saved)
				Expect(saved.ID).To(Equal(draft.ID))
				Expect(saved.Image).To(BeEmpty())

				Expect(save(draft).StatusCode).To(Equal(http.StatusConflict))
				Expect(testutil.ToFloat64(m.ReceiptsSaved)).To(Equal(1.0))
			})

			It("rejects an incomplete receipt", func() {
				draft := scan()
				draft.Category = ""
				resp := save(draft)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(errorOf(resp)).To(ContainSubstring("category"))
			})

			It("rejects an unknown category", func() {
				resp := do("POST", "/api/receipts", token, map[string]any{
					"store_name": "X", "category": "Toys",
				})
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		Describe("listing", func() {
			var first, second models.Receipt

			BeforeEach(func() {
				first = scan()
				Expect(save(first).StatusCode).To(Equal(http.StatusCreated))
				time.Sleep(2 * time.Millisecond)
				scanner.receiptData.StoreName = "Walmart"
				second = scan()
				Expect(save(second).StatusCode).To(Equal(http.StatusCreated))
			})

			It("lists newest first without images", func() {
				resp := do("GET", "/api/receipts", token, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var list []models.Receipt
				decode(resp, &list)
				Expect(list).To(HaveLen(2))
				Expect(list[0].ID).To(Equal(second.ID))
				Expect(list[1].ID).To(Equal(first.ID))
				Expect(list[0].Image).To(BeEmpty())
			})

			It("groups by store", func() {
				resp := do("GET", "/api/receipts/stores", token, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var groups []receipt.StoreGroup
				decode(resp, &groups)
				Expect(groups).To(HaveLen(2))
				Expect(groups[0].StoreName).To(Equal("WALMART"))
				Expect(groups[1].StoreName).To(Equal("TARGET"))
			})

			It("serves the image", func() {
				resp := do("GET", "/api/receipts/"+first.ID+"/image", token, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
				body, _ := io.ReadAll(resp.Body)
				Expect(body).To(Equal([]byte("jpeg bytes")))
			})

			It("scopes everything to the session's user", func() {
				other := register("b@x.com")

				resp := do("GET", "/api/receipts", other, nil)
				var list []models.Receipt
				decode(resp, &list)
				Expect(list).To(BeEmpty())

				Expect(do("GET", "/api/receipts/"+first.ID+"/image", other, nil).StatusCode).To(Equal(http.StatusNotFound))
				Expect(do("DELETE", "/api/receipts/"+first.ID, other, nil).StatusCode).To(Equal(http.StatusNoContent))

				got, err := db.GetReceipt(context.Background(), first.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).NotTo(BeNil())
			})

			It("deletes", func() {
				Expect(do("DELETE", "/api/receipts/"+first.ID, token, nil).StatusCode).To(Equal(http.StatusNoContent))
				resp := do("GET", "/api/receipts", token, nil)
				var list []models.Receipt
				decode(resp, &list)
				Expect(list).To(HaveLen(1))
			})
		})
	})

	Describe("operations", func() {
		It("reports health from the store", func() {
			register("a@x.com")
			resp := do("GET", "/healthz", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decode(resp, &body)
			Expect(body["status"]).To(Equal("ok"))
			Expect(body["users"]).To(BeNumerically("==", 1))
			Expect(body["schema_version"]).To(BeNumerically("==", store.LatestVersion()))
		})

		It("exposes metrics", func() {
			do("GET", "/healthz", "", nil)
			resp := do("GET", "/metrics", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(ContainSubstring(`receipt_keeper_http_request_duration_seconds_count{route="GET /healthz",status="200"} 1`))
		})
	})
})
