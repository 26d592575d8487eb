package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/posbridge/internal/config"
	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
	"github.com/smallbiznis/posbridge/internal/observability/tracing"
	"github.com/smallbiznis/posbridge/internal/pos/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	pathLogin   = "Login"
	pathLock    = "LockProcess"
	pathExecute = "ExecuteFunction"
	pathUnlock  = "UnlockProcess"
	pathLogout  = "logout"
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Client speaks the POS session protocol over HTTP.
type Client struct {
	http    *resty.Client
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	sync    *obsmetrics.SyncMetrics
}

func New(p Params) domain.Client {
	return NewClient(p.Config.POS, p.Log, p.Metrics)
}

func NewClient(cfg config.POSConfig, log *zap.Logger, metrics *obsmetrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	redirects := cfg.MaxRedirects
	if redirects <= 0 {
		redirects = 5
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(redirects)).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		log:     log.Named("pos.client"),
		metrics: metrics,
		sync:    obsmetrics.Sync(),
	}
}

type loginRequest struct {
	UserName    string `json:"UserName"`
	Password    string `json:"Password"`
	ProcessType int    `json:"ProcessType"`
}

type lockRequest struct {
	LoginID string `json:"loginID"`
	UserID  string `json:"userID"`
	UserPWD string `json:"userPWD"`
	IsBatch string `json:"isBatch"`
}

type stringParm struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type executeRequest struct {
	LoginID       string       `json:"loginID"`
	ProcID        string       `json:"procID"`
	FuncNo        string       `json:"funcNo"`
	FuncType      int          `json:"funcType"`
	FuncTableType int          `json:"funcTableType"`
	PmtID         int          `json:"pmtID"`
	StringParms   []stringParm `json:"stringParms"`
	NumberParms   any          `json:"numberParms"`
	DatetimeParms any          `json:"datetimeParms"`
}

type unlockRequest struct {
	LoginID  string `json:"loginID"`
	ParmData string `json:"parmData"`
}

func (c *Client) Open(ctx context.Context, creds domain.Credentials) (string, error) {
	body, err := EncodeEnvelope(loginRequest{
		UserName:    creds.Username,
		Password:    creds.Password,
		ProcessType: 1,
	})
	if err != nil {
		return "", err
	}

	var resp domain.Response
	if err := c.post(ctx, "login", pathLogin, body, &resp); err != nil {
		return "", err
	}

	var ok bool
	if err := json.Unmarshal(resp.Data, &ok); err != nil || !ok || len(resp.WarningMsg) == 0 {
		err := fmt.Errorf("%w: login rejected", domain.ErrAuthFailed)
		c.metrics.RecordPOSCall(ctx, "login", obsmetrics.SyncErrorTypePOSAuth)
		return "", err
	}
	return resp.WarningMsg[0], nil
}

func (c *Client) AcquireLock(ctx context.Context, loginID, userID, userPassword string) (string, error) {
	body, err := EncodeEnvelope(lockRequest{
		LoginID: loginID,
		UserID:  userID,
		UserPWD: userPassword,
		IsBatch: "Y",
	})
	if err != nil {
		return "", err
	}

	var resp domain.Response
	if err := c.post(ctx, "lock", pathLock, body, &resp); err != nil {
		return "", err
	}

	var lockID string
	if err := json.Unmarshal(resp.Data, &lockID); err != nil || strings.TrimSpace(lockID) == "" {
		msg := "process already locked"
		if resp.Error != nil && resp.Error.ErrMsg != "" {
			msg = resp.Error.ErrMsg
		}
		err := fmt.Errorf("%w: %s", domain.ErrLockFailed, msg)
		c.metrics.RecordPOSCall(ctx, "lock", obsmetrics.SyncErrorTypePOSLock)
		return "", err
	}
	return lockID, nil
}

func (c *Client) Submit(ctx context.Context, session domain.Session, windowAction, target, payload string) (*domain.Response, error) {
	body, err := EncodeEnvelope(executeRequest{
		LoginID:       session.LoginID,
		ProcID:        session.LockID,
		FuncNo:        "import_data",
		FuncType:      1,
		FuncTableType: 4,
		PmtID:         -1,
		StringParms: []stringParm{
			{Name: "window__action", Value: windowAction},
			{Name: "window__action_target", Value: target},
			{Name: "data", Value: payload},
		},
	})
	if err != nil {
		return nil, err
	}

	var resp domain.Response
	if err := c.post(ctx, "execute", pathExecute, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Release(ctx context.Context, session domain.Session) error {
	if session.LockID == "" {
		return nil
	}
	body, err := EncodeEnvelope(unlockRequest{LoginID: session.LoginID, ParmData: session.LockID})
	if err != nil {
		return err
	}
	return c.post(ctx, "unlock", pathUnlock, body, nil)
}

func (c *Client) Close(ctx context.Context, loginID string) error {
	if loginID == "" {
		return nil
	}
	body := []byte(`"` + loginID + `"`)
	return c.post(ctx, "logout", pathLogout, body, nil)
}

// FetchStock exports the stock window for one warehouse.
func (c *Client) FetchStock(ctx context.Context, session domain.Session, warehouseCode string) ([]domain.StockLevel, error) {
	payload, err := domain.MarshalJSON(map[string]string{"wh_code": warehouseCode})
	if err != nil {
		return nil, err
	}
	resp, err := c.Submit(ctx, session, domain.WindowActionExport, domain.TargetStock, string(payload))
	if err != nil {
		return nil, err
	}
	if !resp.HasData() {
		_, cerr := resp.Classify("")
		return nil, cerr
	}
	return domain.ParseStockFeed(resp.Data)
}

func (c *Client) post(ctx context.Context, operation, path string, body []byte, out any) error {
	ctx, span := tracing.StartSpan(ctx, "pos."+operation, attribute.String("pos.operation", operation))
	defer span.End()

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", domain.ErrTransport, operation, err)
	} else if resp.IsError() {
		err = fmt.Errorf("%w: %s: status %d", domain.ErrTransport, operation, resp.StatusCode())
	} else if out != nil {
		if derr := decodeReply(resp.Body(), out); derr != nil {
			err = fmt.Errorf("%w: %s: decode reply: %v", domain.ErrTransport, operation, derr)
		}
	}

	c.observe(ctx, operation, time.Since(start), err)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, operation)
		c.log.Warn("pos.call.failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return err
	}
	c.log.Debug("pos.call.ok", zap.String("operation", operation))
	return nil
}

func (c *Client) observe(ctx context.Context, operation string, elapsed time.Duration, err error) {
	c.sync.ObservePOSCall(operation, elapsed, err)
	result := "ok"
	if err != nil {
		result = obsmetrics.ClassifySyncErrorType(err)
	}
	c.metrics.RecordPOSCall(ctx, operation, result)
}

// WithSession opens a session, acquires the process lock and runs fn. Once the
// session is open it is always closed, and an acquired lock is always released,
// each exactly once, whatever fn returns or panics with.
func WithSession(ctx context.Context, c domain.Client, creds domain.Credentials, fn func(ctx context.Context, session domain.Session) error) (err error) {
	loginID, err := c.Open(ctx, creds)
	if err != nil {
		return err
	}
	session := domain.Session{LoginID: loginID}

	defer func() {
		cleanup := context.WithoutCancel(ctx)
		if session.LockID != "" {
			if rerr := c.Release(cleanup, session); rerr != nil && err == nil {
				err = rerr
			}
		}
		if cerr := c.Close(cleanup, session.LoginID); cerr != nil && err == nil {
			err = cerr
		}
	}()

	lockID, err := c.AcquireLock(ctx, loginID, creds.UserID, creds.UserPassword)
	if err != nil {
		return err
	}
	session.LockID = lockID

	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(err, fmt.Errorf("pos session callback panicked: %v", r))
		}
	}()
	return fn(ctx, session)
}

// CredentialsFromConfig maps configured POS credentials.
func CredentialsFromConfig(cfg config.POSConfig) domain.Credentials {
	return domain.Credentials{
		Username:     cfg.Username,
		Password:     cfg.Password,
		UserID:       cfg.UserID,
		UserPassword: cfg.UserPassword,
	}
}
