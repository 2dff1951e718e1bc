// Package sheets implements table.Client on top of the Google Sheets API.
// Each logical table is one worksheet of a single spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"scheletro/backend/internal/table"
)

const (
	defaultTimeout = 20 * time.Second
	retryBackoff   = 2 * time.Second
)

type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	timeout       time.Duration
	log           *logrus.Logger
}

// New builds a client from a service-account credentials file.
// credentialsJSON takes precedence over credentialsFile when both are set.
func New(ctx context.Context, spreadsheetID, credentialsFile string, credentialsJSON []byte, log *logrus.Logger) (*Client, error) {
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	} else {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		timeout:       defaultTimeout,
		log:           log,
	}, nil
}

func (c *Client) Read(ctx context.Context, name string) ([][]string, error) {
	var resp *sheetsapi.ValueRange
	err := c.withRetry(ctx, "read", name, func(callCtx context.Context) error {
		var callErr error
		resp, callErr = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, name).
			ValueRenderOption("UNFORMATTED_VALUE").
			Context(callCtx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) Overwrite(ctx context.Context, name string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}

	return c.withRetry(ctx, "overwrite", name, func(callCtx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, name, &sheetsapi.ClearValuesRequest{}).
			Context(callCtx).Do()
		if err != nil {
			return err
		}
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, name, &sheetsapi.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(callCtx).Do()
		return err
	})
}

// withRetry runs one call with a bounded timeout and retries exactly once,
// after a fixed backoff, when the store answers with a 429. A second 429
// surfaces as table.ErrRateLimited.
func (c *Client) withRetry(ctx context.Context, op, name string, call func(context.Context) error) error {
	err := c.attempt(ctx, call)
	if err == nil {
		return nil
	}
	if !isRateLimit(err) {
		return fmt.Errorf("%s %s: %w: %v", op, name, table.ErrUnavailable, err)
	}

	c.log.WithFields(logrus.Fields{"component": "sheets", "table": name, "op": op}).
		Warnf("rate limited, retrying once after %s", retryBackoff)

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", op, name, ctx.Err())
	}

	err = c.attempt(ctx, call)
	if err == nil {
		return nil
	}
	if isRateLimit(err) {
		return fmt.Errorf("%s %s: %w", op, name, table.ErrRateLimited)
	}
	return fmt.Errorf("%s %s: %w: %v", op, name, table.ErrUnavailable, err)
}

func (c *Client) attempt(ctx context.Context, call func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return call(callCtx)
}

func isRateLimit(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return true
		}
	}
	// Quota errors sometimes arrive with the gRPC status spelling instead
	// of an HTTP 429.
	return strings.Contains(err.Error(), "RESOURCE_EXHAUSTED")
}

func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		// Sheets hands back unformatted numbers as float64. Trim the
		// trailing .0 for whole values so downstream coercion sees "3",
		// not "3.000000".
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

var _ table.Client = (*Client)(nil)
