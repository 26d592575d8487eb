package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/posbridge/internal/config"
	"github.com/smallbiznis/posbridge/internal/pos/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePOS struct {
	mu       sync.Mutex
	calls    []string
	bodies   map[string][]string
	handlers map[string]func(body string) (int, string)
}

func newFakePOS(t *testing.T) (*fakePOS, *httptest.Server) {
	t.Helper()
	f := &fakePOS{
		bodies: map[string][]string{},
		handlers: map[string]func(string) (int, string){
			"Login":           func(string) (int, string) { return 200, `{"Data":true,"WarningMsg":["L-1"]}` },
			"LockProcess":     func(string) (int, string) { return 200, `{"Data":"P-1"}` },
			"ExecuteFunction": func(string) (int, string) { return 200, `{"Data":true,"Error":null}` },
			"UnlockProcess":   func(string) (int, string) { return 200, `{"Data":true}` },
			"logout":          func(string) (int, string) { return 200, `true` },
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/")
		raw, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.calls = append(f.calls, name)
		f.bodies[name] = append(f.bodies[name], string(raw))
		handler := f.handlers[name]
		f.mu.Unlock()

		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		status, body := handler(string(raw))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePOS) set(name string, fn func(string) (int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
}

func (f *fakePOS) body(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies[name]) == 0 {
		return ""
	}
	return f.bodies[name][0]
}

func (f *fakePOS) callsTo(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakePOS) sequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.POSConfig{
		BaseURL:      baseURL + "/api",
		Timeout:      2 * time.Second,
		MaxRedirects: 5,
	}, zaptest.NewLogger(t), nil)
}

func decodeEnvelope(t *testing.T, body string) map[string]any {
	t.Helper()
	var inner string
	require.NoError(t, json.Unmarshal([]byte(body), &inner))
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(inner), &out))
	return out
}

func TestEncodeEnvelope(t *testing.T) {
	got, err := EncodeEnvelope(map[string]string{"a": `x"y\z`})
	require.NoError(t, err)
	assert.Equal(t, `"{\"a\":\"x\\\"y\\\\z\"}"`, string(got))

	var inner string
	require.NoError(t, json.Unmarshal(got, &inner))
	assert.Equal(t, `{"a":"x\"y\\z"}`, inner)
}

func TestEncodeEnvelopeKeepsHTMLCharacters(t *testing.T) {
	got, err := EncodeEnvelope(map[string]string{"data": `{"item_name":"Tom & Jerry <M>"}`})
	require.NoError(t, err)
	assert.Equal(t, `"{\"data\":\"{\\\"item_name\\\":\\\"Tom & Jerry <M>\\\"}\"}"`, string(got))
}

func TestOpenReturnsLoginID(t *testing.T) {
	f, srv := newFakePOS(t)
	c := newTestClient(t, srv.URL)

	loginID, err := c.Open(context.Background(), domain.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "L-1", loginID)

	body := decodeEnvelope(t, f.body("Login"))
	assert.Equal(t, "u", body["UserName"])
	assert.Equal(t, float64(1), body["ProcessType"])
}

func TestOpenRejected(t *testing.T) {
	f, srv := newFakePOS(t)
	f.set("Login", func(string) (int, string) { return 200, `{"Data":false,"WarningMsg":[]}` })
	c := newTestClient(t, srv.URL)

	_, err := c.Open(context.Background(), domain.Credentials{})
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestAcquireLockFailureIsRetryable(t *testing.T) {
	f, srv := newFakePOS(t)
	f.set("LockProcess", func(string) (int, string) {
		return 200, `{"Data":null,"Error":{"ErrCode":-1,"ErrMsg":"locked by another user"}}`
	})
	c := newTestClient(t, srv.URL)

	_, err := c.AcquireLock(context.Background(), "L-1", "user", "pwd")
	assert.ErrorIs(t, err, domain.ErrLockFailed)
	assert.True(t, domain.IsRetryable(err))
}

func TestSubmitSendsExecuteFunctionShape(t *testing.T) {
	f, srv := newFakePOS(t)
	c := newTestClient(t, srv.URL)

	_, err := c.Submit(context.Background(), domain.Session{LoginID: "L-1", LockID: "P-1"}, domain.WindowActionUpdate, domain.TargetSales, `{"hdr":{}}`)
	require.NoError(t, err)

	body := decodeEnvelope(t, f.body("ExecuteFunction"))
	assert.Equal(t, "L-1", body["loginID"])
	assert.Equal(t, "P-1", body["procID"])
	assert.Equal(t, "import_data", body["funcNo"])
	assert.Equal(t, float64(4), body["funcTableType"])
	assert.Equal(t, float64(-1), body["pmtID"])
	assert.Nil(t, body["numberParms"])

	parms := body["stringParms"].([]any)
	require.Len(t, parms, 3)
	assert.Equal(t, map[string]any{"Name": "window__action", "Value": "update__window_data"}, parms[0])
	assert.Equal(t, map[string]any{"Name": "data", "Value": `{"hdr":{}}`}, parms[2])
}

func TestTransportErrorOnServerFailure(t *testing.T) {
	f, srv := newFakePOS(t)
	f.set("ExecuteFunction", func(string) (int, string) { return 502, `bad gateway` })
	c := newTestClient(t, srv.URL)

	_, err := c.Submit(context.Background(), domain.Session{LoginID: "L-1", LockID: "P-1"}, domain.WindowActionUpdate, domain.TargetSales, "{}")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestCloseSendsLoginIDLiteral(t *testing.T) {
	f, srv := newFakePOS(t)
	c := newTestClient(t, srv.URL)

	require.NoError(t, c.Close(context.Background(), "L-1"))
	assert.Equal(t, `"L-1"`, f.body("logout"))
}

func TestWithSessionReleasesAndClosesOnCallbackError(t *testing.T) {
	f, srv := newFakePOS(t)
	c := newTestClient(t, srv.URL)
	boom := errors.New("boom")

	err := WithSession(context.Background(), c, domain.Credentials{}, func(ctx context.Context, s domain.Session) error {
		assert.Equal(t, domain.Session{LoginID: "L-1", LockID: "P-1"}, s)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Login", "LockProcess", "UnlockProcess", "logout"}, f.sequence())
}

func TestWithSessionClosesWhenLockFails(t *testing.T) {
	f, srv := newFakePOS(t)
	f.set("LockProcess", func(string) (int, string) { return 200, `{"Data":null}` })
	c := newTestClient(t, srv.URL)

	called := false
	err := WithSession(context.Background(), c, domain.Credentials{}, func(context.Context, domain.Session) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, domain.ErrLockFailed)
	assert.False(t, called)
	assert.Equal(t, 0, f.callsTo("UnlockProcess"))
	assert.Equal(t, 1, f.callsTo("logout"))
}

func TestWithSessionRecoversPanic(t *testing.T) {
	f, srv := newFakePOS(t)
	c := newTestClient(t, srv.URL)

	err := WithSession(context.Background(), c, domain.Credentials{}, func(context.Context, domain.Session) error {
		panic("translator exploded")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "translator exploded")
	assert.Equal(t, 1, f.callsTo("UnlockProcess"))
	assert.Equal(t, 1, f.callsTo("logout"))
}

func TestFetchStock(t *testing.T) {
	f, srv := newFakePOS(t)
	f.set("ExecuteFunction", func(string) (int, string) {
		return 200, `{"Data":"[{\"item_code\":\"B1\",\"qty\":4}]","Error":null}`
	})
	c := newTestClient(t, srv.URL)

	rows, err := c.FetchStock(context.Background(), domain.Session{LoginID: "L-1", LockID: "P-1"}, "SW004")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B1", rows[0].ItemCode)

	body := decodeEnvelope(t, f.body("ExecuteFunction"))
	parms := body["stringParms"].([]any)
	assert.Equal(t, map[string]any{"Name": "window__action", "Value": "export__window_data"}, parms[0])
	assert.Equal(t, map[string]any{"Name": "window__action_target", "Value": "STK"}, parms[1])
	assert.Equal(t, map[string]any{"Name": "data", "Value": `{"wh_code":"SW004"}`}, parms[2])
}
