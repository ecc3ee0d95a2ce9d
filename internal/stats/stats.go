// Package stats fetches a fixed account's problem-solving statistics from the
// public stats API. The account is deployment configuration, never request input.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Zachkp/folio/internal/apperr"
)

// Result is republished to callers unchanged.
type Result struct {
	TotalSolved  int `json:"totalSolved"`
	EasySolved   int `json:"easySolved"`
	MediumSolved int `json:"mediumSolved"`
	HardSolved   int `json:"hardSolved"`
	Ranking      int `json:"ranking"`
}

// Fetcher is anything that can produce a Result.
type Fetcher interface {
	Fetch(ctx context.Context) (Result, error)
}

// upstream bodies are capped; a real stats payload is well under this.
const maxBody = 1 << 20

type Client struct {
	http     *http.Client
	baseURL  string
	identity string
}

func NewClient(hc *http.Client, baseURL, identity string) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{http: hc, baseURL: baseURL, identity: identity}
}

// upstreamBody is what the stats API sends. It answers unknown accounts
// with 200 and status "error". Counters are pointers so a missing key is
// distinguishable from zero.
type upstreamBody struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	TotalSolved  *int   `json:"totalSolved"`
	EasySolved   *int   `json:"easySolved"`
	MediumSolved *int   `json:"mediumSolved"`
	HardSolved   *int   `json:"hardSolved"`
	Ranking      *int   `json:"ranking"`
}

// result requires every counter to be present and non-negative.
func (ub upstreamBody) result() (Result, error) {
	fields := []struct {
		name string
		v    *int
	}{
		{"totalSolved", ub.TotalSolved},
		{"easySolved", ub.EasySolved},
		{"mediumSolved", ub.MediumSolved},
		{"hardSolved", ub.HardSolved},
		{"ranking", ub.Ranking},
	}
	var missing []string
	for _, f := range fields {
		if f.v == nil {
			missing = append(missing, f.name)
			continue
		}
		if *f.v < 0 {
			return Result{}, fmt.Errorf("%w: negative %s", apperr.ErrMalformed, f.name)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: missing %s", apperr.ErrMalformed, strings.Join(missing, ", "))
	}
	return Result{
		TotalSolved:  *ub.TotalSolved,
		EasySolved:   *ub.EasySolved,
		MediumSolved: *ub.MediumSolved,
		HardSolved:   *ub.HardSolved,
		Ranking:      *ub.Ranking,
	}, nil
}

// Fetch issues exactly one GET to <base>/<identity>.
func (c *Client) Fetch(ctx context.Context) (Result, error) {
	const op = "stats.fetch"

	if c.baseURL == "" || c.identity == "" {
		return Result{}, &apperr.OpError{Op: op, Kind: apperr.KindInvalidConfig, Err: apperr.ErrConfig}
	}

	endpoint := c.baseURL + "/" + url.PathEscape(c.identity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, &apperr.OpError{Op: op, Kind: apperr.KindInvalidConfig, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &apperr.OpError{Op: op, Kind: apperr.KindUpstreamUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return Result{}, &apperr.OpError{
			Op:     op,
			Kind:   apperr.KindUpstreamRejected,
			Status: resp.StatusCode,
			Err:    apperr.ErrRejected,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result{}, &apperr.OpError{Op: op, Kind: apperr.KindUpstreamUnavailable, Err: err}
	}

	var ub upstreamBody
	if err := json.Unmarshal(body, &ub); err != nil {
		return Result{}, &apperr.OpError{Op: op, Kind: apperr.KindMalformedResponse, Status: resp.StatusCode, Err: err}
	}
	if ub.Status == "error" {
		return Result{}, &apperr.OpError{
			Op:     op,
			Kind:   apperr.KindMalformedResponse,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: %s", apperr.ErrMalformed, ub.Message),
		}
	}
	res, err := ub.result()
	if err != nil {
		return Result{}, &apperr.OpError{Op: op, Kind: apperr.KindMalformedResponse, Status: resp.StatusCode, Err: err}
	}
	return res, nil
}
