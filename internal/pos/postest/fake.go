// Package postest provides a scripted POS client for package tests.
package postest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/smallbiznis/posbridge/internal/pos/domain"
)

type Submission struct {
	Session      domain.Session
	WindowAction string
	Target       string
	Payload      string
}

// Fake implements domain.Client and records every call in order.
type Fake struct {
	mu sync.Mutex

	OpenErr    error
	LockErr    error
	SubmitErr  error
	ReleaseErr error
	CloseErr   error

	// SubmitResponse answers Submit when SubmitErr is nil. Defaults to success.
	SubmitResponse func(s Submission) *domain.Response
	Stock          []domain.StockLevel
	StockErr       error

	calls       []string
	submissions []Submission
	opened      int
}

func NewFake() *Fake {
	return &Fake{}
}

func Success() *domain.Response {
	return &domain.Response{Data: json.RawMessage(`true`)}
}

// Failure builds a logical failure reply.
func Failure(code int, msg string) *domain.Response {
	return &domain.Response{
		Data:  json.RawMessage(`null`),
		Error: &domain.ResponseError{ErrCode: code, ErrMsg: msg},
	}
}

func (f *Fake) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *Fake) Open(ctx context.Context, creds domain.Credentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("open")
	if f.OpenErr != nil {
		return "", f.OpenErr
	}
	f.opened++
	return "L-1", nil
}

func (f *Fake) AcquireLock(ctx context.Context, loginID, userID, userPassword string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("lock")
	if f.LockErr != nil {
		return "", f.LockErr
	}
	return "P-1", nil
}

func (f *Fake) Submit(ctx context.Context, session domain.Session, windowAction, target, payload string) (*domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submit")
	sub := Submission{Session: session, WindowAction: windowAction, Target: target, Payload: payload}
	f.submissions = append(f.submissions, sub)
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	if f.SubmitResponse != nil {
		return f.SubmitResponse(sub), nil
	}
	return Success(), nil
}

func (f *Fake) Release(ctx context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("release")
	return f.ReleaseErr
}

func (f *Fake) Close(ctx context.Context, loginID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("close")
	return f.CloseErr
}

func (f *Fake) FetchStock(ctx context.Context, session domain.Session, warehouseCode string) ([]domain.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("fetch_stock")
	if f.StockErr != nil {
		return nil, f.StockErr
	}
	return append([]domain.StockLevel(nil), f.Stock...), nil
}

func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *Fake) Submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.submissions...)
}
