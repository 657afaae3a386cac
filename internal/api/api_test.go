package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"wallet_ledger/internal/account"
	"wallet_ledger/internal/api"
	"wallet_ledger/internal/db"
	"wallet_ledger/internal/db/dbtest"
	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"
	"wallet_ledger/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const secret = "api-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type env struct {
	t      *testing.T
	db     *gorm.DB
	redis  *miniredis.Miniredis
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.Open(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r, err := api.NewRouter(api.Deps{
		DB:              gdb,
		Redis:           rdb,
		Ledger:          ledger.NewService(gdb, ledger.NewRedisCache(rdb, time.Minute)),
		Accounts:        account.NewService(gdb).WithHashCost(bcrypt.MinCost),
		JWTSecret:       secret,
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		CacheTTL:        time.Minute,
	})
	require.NoError(t, err)
	return &env{t: t, db: gdb, redis: mr, router: r}
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// signup registers a user and returns an access token for it
func (e *env) signup(username, email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/register", "", gin.H{
		"username": username, "email": email, "password": "s3cret-pass", "password2": "s3cret-pass",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/token", "", gin.H{"email": email, "password": "s3cret-pass"})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return decode(e.t, w)["access"].(string)
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/register", "", gin.H{
		"username": "alice", "email": "Alice@Example.com", "password": "s3cret-pass", "password2": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotContains(t, w.Body.String(), "password")

	tests := []struct {
		name string
		body any
	}{
		{"duplicate email", gin.H{"username": "a2", "email": "alice@example.com", "password": "s3cret-pass", "password2": "s3cret-pass"}},
		{"mismatch", gin.H{"username": "bob", "email": "bob@example.com", "password": "s3cret-pass", "password2": "other-pass"}},
		{"weak password", gin.H{"username": "bob", "email": "bob@example.com", "password": "12345678", "password2": "12345678"}},
		{"bad email", gin.H{"username": "bob", "email": "bob", "password": "s3cret-pass", "password2": "s3cret-pass"}},
		{"missing fields", gin.H{"username": "bob"}},
		{"malformed", `{"username":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestTokens(t *testing.T) {
	e := newEnv(t)
	e.signup("alice", "alice@example.com")

	w := e.do(http.MethodPost, "/token", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(http.MethodPost, "/token", "", gin.H{"email": "nobody@example.com", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(http.MethodPost, "/token", "", gin.H{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/token", "", gin.H{"email": "ALICE@example.com", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decode(t, w)
	access, refresh := pair["access"].(string), pair["refresh"].(string)

	w = e.do(http.MethodPost, "/token/refresh", "", gin.H{"refresh": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	fresh := decode(t, w)["access"].(string)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/wallet/balance", fresh, nil).Code)

	// an access token cannot be used as a refresh token and vice versa
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/token/refresh", "", gin.H{"refresh": access}).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/wallet/balance", refresh, nil).Code)
}

func TestWalletRequiresAuth(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/wallet/balance", "/wallet/history"} {
		assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, path, "", nil).Code, path)
	}
	for _, path := range []string{"/wallet/deposit", "/wallet/withdraw"} {
		assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, path, "", gin.H{"amount": "1"}).Code, path)
	}
}

func TestDepositWithdrawScenario(t *testing.T) {
	e := newEnv(t)
	tok := e.signup("alice", "alice@example.com")

	w := e.do(http.MethodGet, "/wallet/balance", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"balance": "0.00"}`, w.Body.String())
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodGet, "/wallet/history", tok, nil).Code)

	w = e.do(http.MethodPost, "/wallet/deposit", tok, gin.H{"amount": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "50.00", body["balance"])
	txn := body["transaction"].(map[string]any)
	assert.Equal(t, "50.00", txn["amount"])
	assert.Equal(t, "DEPOSIT", txn["transaction_type"])
	assert.Equal(t, ledger.DepositDescription, txn["description"])
	assert.NotEmpty(t, txn["timestamp"])

	w = e.do(http.MethodPost, "/wallet/withdraw", tok, gin.H{"amount": "20.00", "description": "groceries"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, "30.00", body["balance"])
	assert.Equal(t, "groceries", body["transaction"].(map[string]any)["description"])

	w = e.do(http.MethodPost, "/wallet/withdraw", tok, gin.H{"amount": "999.00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ledger.ErrInsufficientBalance.Error(), decode(t, w)["error"])

	w = e.do(http.MethodGet, "/wallet/balance", tok, nil)
	assert.JSONEq(t, `{"balance": "30.00"}`, w.Body.String())

	w = e.do(http.MethodGet, "/wallet/history", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var h api.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "30.00", h.Balance)
	assert.EqualValues(t, 2, h.Total)
	require.Len(t, h.History, 2)
	assert.Equal(t, "WITHDRAWAL", h.History[0].Type)
	assert.Equal(t, "DEPOSIT", h.History[1].Type)
}

func TestInvalidAmounts(t *testing.T) {
	e := newEnv(t)
	tok := e.signup("alice", "alice@example.com")

	bodies := map[string]string{
		"zero":          `{"amount": 0}`,
		"negative":      `{"amount": "-5"}`,
		"not a number":  `{"amount": "abc"}`,
		"three places":  `{"amount": 1.234}`,
		"null":          `{"amount": null}`,
		"object":        `{"amount": {}}`,
		"missing":       `{"description": "x"}`,
		"too large":     `{"amount": "10000000000"}`,
		"malformed":     `{"amount": `,
		"long describe": `{"amount": 1, "description": "` + string(bytes.Repeat([]byte("x"), 256)) + `"}`,
		"huge exponent": `{"amount": 1e20000000}`,
		"tiny exponent": `{"amount": "1e-20000000"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			for _, path := range []string{"/wallet/deposit", "/wallet/withdraw"} {
				start := time.Now()
				w := e.do(http.MethodPost, path, tok, body)
				assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", path, w.Body.String())
				assert.Less(t, time.Since(start), time.Second, path)
			}
		})
	}

	w := e.do(http.MethodGet, "/wallet/balance", tok, nil)
	assert.JSONEq(t, `{"balance": "0.00"}`, w.Body.String())
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodGet, "/wallet/history", tok, nil).Code)
}

func TestHistoryPagination(t *testing.T) {
	e := newEnv(t)
	tok := e.signup("alice", "alice@example.com")
	for i := 1; i <= 5; i++ {
		w := e.do(http.MethodPost, "/wallet/deposit", tok, gin.H{"amount": i})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := e.do(http.MethodGet, "/wallet/history?page=2&page_size=2", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var h api.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.EqualValues(t, 5, h.Total)
	assert.Equal(t, 3, h.TotalPages)
	assert.Equal(t, 2, h.Page)
	require.Len(t, h.History, 2)
	assert.Equal(t, "3.00", h.History[0].Amount)
	assert.Equal(t, "2.00", h.History[1].Amount)
	assert.Equal(t, "15.00", h.Balance)

	for _, q := range []string{"page=1000001", "page=9223372036854775807", "page=99999999999999999999"} {
		w = e.do(http.MethodGet, "/wallet/history?"+q, tok, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
	w = e.do(http.MethodGet, "/wallet/history?page=1000000", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, 1000000, h.Page)
	assert.Empty(t, h.History)
}

func TestBalanceCache(t *testing.T) {
	e := newEnv(t)
	tok := e.signup("alice", "alice@example.com")

	e.do(http.MethodPost, "/wallet/deposit", tok, gin.H{"amount": "10"})
	e.do(http.MethodGet, "/wallet/balance", tok, nil)
	keys := e.redis.Keys()
	require.Len(t, keys, 1)

	// a committed change drops the cached balance
	e.do(http.MethodPost, "/wallet/withdraw", tok, gin.H{"amount": "4"})
	assert.Empty(t, e.redis.Keys())
	w := e.do(http.MethodGet, "/wallet/balance", tok, nil)
	assert.JSONEq(t, `{"balance": "6.00"}`, w.Body.String())

	// the ledger keeps working without Redis
	e.redis.Close()
	w = e.do(http.MethodPost, "/wallet/deposit", tok, gin.H{"amount": "1"})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, "/wallet/balance", tok, nil)
	assert.JSONEq(t, `{"balance": "7.00"}`, w.Body.String())
}

func TestAdmin(t *testing.T) {
	e := newEnv(t)
	alice := e.signup("alice", "alice@example.com")
	e.signup("root", "root@example.com")
	require.NoError(t, db.PromoteAdmin(e.db, "root@example.com"))
	// login again so nothing depends on claims issued before the promotion
	w := e.do(http.MethodPost, "/token", "", gin.H{"email": "root@example.com", "password": "s3cret-pass"})
	root := decode(t, w)["access"].(string)

	e.do(http.MethodPost, "/wallet/deposit", alice, gin.H{"amount": "40"})
	e.do(http.MethodPost, "/wallet/withdraw", alice, gin.H{"amount": "15"})
	e.do(http.MethodPost, "/wallet/deposit", root, gin.H{"amount": "5"})

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/admin/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/admin/users", alice, nil).Code)

	t.Run("users", func(t *testing.T) {
		w := e.do(http.MethodGet, "/admin/users", root, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp api.UserListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.EqualValues(t, 2, resp.Total)
		assert.False(t, resp.Cached)
		require.Len(t, resp.Users, 2)
		assert.Equal(t, "25.00", resp.Users[0].Balance)
		assert.Equal(t, "admin", resp.Users[1].Role)

		w = e.do(http.MethodGet, "/admin/users", root, nil)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Cached)
	})

	t.Run("users search", func(t *testing.T) {
		searches := map[string][]string{
			"ALI":          {"alice"},
			"root@example": {"root"},
			"example.com":  {"alice", "root"},
			"nobody":       {},
			"%":            {},
			"_":            {},
		}
		for q, want := range searches {
			w := e.do(http.MethodGet, "/admin/users?q="+url.QueryEscape(q), root, nil)
			require.Equal(t, http.StatusOK, w.Code, q)
			var resp api.UserListResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			got := make([]string, 0, len(resp.Users))
			for _, u := range resp.Users {
				got = append(got, u.Username)
			}
			assert.Equal(t, want, got, q)
			assert.EqualValues(t, len(want), resp.Total, q)
		}
		long := strings.Repeat("a", 101)
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/admin/users?q="+long, root, nil).Code)
	})

	t.Run("transactions", func(t *testing.T) {
		w := e.do(http.MethodGet, "/admin/transactions?user_id=1", root, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp api.TransactionListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.EqualValues(t, 2, resp.Total)
		for _, txn := range resp.Transactions {
			assert.EqualValues(t, 1, txn.UserID)
		}

		w = e.do(http.MethodGet, "/admin/transactions?type=deposit", root, nil)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.EqualValues(t, 2, resp.Total)

		for _, q := range []string{"user_id=abc", "type=transfer", "from=yesterday"} {
			w = e.do(http.MethodGet, "/admin/transactions?"+q, root, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})

	t.Run("reconcile", func(t *testing.T) {
		w := e.do(http.MethodGet, "/admin/wallets/1/reconcile", root, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["consistent"])
		assert.Equal(t, "25.00", body["ledger_sum"])

		assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/admin/wallets/99/reconcile", root, nil).Code)
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/admin/wallets/x/reconcile", root, nil).Code)
	})
}

func TestWalletMissingAnswersNotFound(t *testing.T) {
	e := newEnv(t)
	user := domain.User{Username: "ghost", Email: "ghost@example.com", Password: "x"}
	require.NoError(t, e.db.Omit("Wallet").Create(&user).Error)
	tok, err := utils.GenerateJWT(utils.TokenSubject{UserID: user.ID, Email: user.Email}, utils.TokenTypeAccess, secret, time.Minute)
	require.NoError(t, err)

	for _, path := range []string{"/wallet/balance", "/wallet/history"} {
		w := e.do(http.MethodGet, path, tok, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, ledger.ErrWalletNotFound.Error(), decode(t, w)["error"], path)
	}
	for _, path := range []string{"/wallet/deposit", "/wallet/withdraw"} {
		w := e.do(http.MethodPost, path, tok, gin.H{"amount": "5"})
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestUnexpectedErrorsAreNotLeaked(t *testing.T) {
	e := newEnv(t)
	tok := e.signup("alice", "alice@example.com")
	require.NoError(t, db.Close(e.db))

	requests := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/wallet/deposit", gin.H{"amount": "5"}},
		{http.MethodPost, "/wallet/withdraw", gin.H{"amount": "5"}},
		{http.MethodGet, "/wallet/balance", nil},
		{http.MethodGet, "/wallet/history", nil},
	}
	for _, r := range requests {
		w := e.do(r.method, r.path, tok, r.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, r.path)
		assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String(), r.path)
		assert.NotContains(t, w.Body.String(), "sql", r.path)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	e.redis.Close()
	w = e.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
